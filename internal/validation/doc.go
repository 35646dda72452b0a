// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package validation wraps go-playground/validator behind a thread-safe
// singleton and translates its field errors into the VALIDATION_ERROR
// envelope the API responds with.
//
// # Quick Start
//
//	type CheckRequest struct {
//	    ActorID  string `validate:"required,min=1,max=128"`
//	    Endpoint string `validate:"required,max=256"`
//	    IP       string `validate:"omitempty,ip"`
//	}
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    if err := validation.ValidateStruct(&req); err != nil {
//	        apiErr := err.ToAPIError()
//	        respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message)
//	        return
//	    }
//	}
//
// The singleton caches struct metadata, so validating the same request type
// repeatedly costs one reflection pass.
package validation
