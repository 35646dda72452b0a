// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vigil/internal/validation"
)

// maxBodyBytes bounds request bodies; pipeline payloads are small.
const maxBodyBytes = 1 << 20

// CheckRequest is the body of POST /api/v1/check: the context of one
// player-initiated action awaiting an inline allow/deny decision.
type CheckRequest struct {
	ActorID   string `json:"actor_id" validate:"required,min=1,max=128"`
	Endpoint  string `json:"endpoint" validate:"required,min=1,max=256"`
	IP        string `json:"ip" validate:"omitempty,ip"`
	UserAgent string `json:"user_agent" validate:"omitempty,max=512"`
	SessionID string `json:"session_id" validate:"omitempty,max=512"`
}

// EmitEventRequest is the body of POST /api/v1/events: one fire-and-forget
// security event.
type EmitEventRequest struct {
	ActorID  string            `json:"actor_id" validate:"required,min=1,max=128"`
	Type     string            `json:"type" validate:"required,min=1,max=64"`
	Severity string            `json:"severity" validate:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
	Data     map[string]string `json:"data,omitempty"`
	SourceIP string            `json:"source_ip" validate:"omitempty,ip"`
	Endpoint string            `json:"endpoint" validate:"omitempty,max=256"`
}

// RegisterSessionRequest is the body of POST /api/v1/sessions. The token is
// opaque to Vigil; the game backend mints it.
type RegisterSessionRequest struct {
	Token   string `json:"token" validate:"required,min=1,max=512"`
	ActorID string `json:"actor_id" validate:"required,min=1,max=128"`
}

// ValidateSessionRequest is the body of POST /api/v1/sessions/validate.
type ValidateSessionRequest struct {
	Token string `json:"token" validate:"required,min=1,max=512"`
}

// BanRequest is the body of POST /api/v1/bans. Duration is capped at 30
// days; permanent bans belong in the game backend's account system.
type BanRequest struct {
	ActorID         string `json:"actor_id" validate:"required,min=1,max=128"`
	DurationSeconds int    `json:"duration_seconds" validate:"required,gte=1,lte=2592000"`
}

// decodeJSON decodes a bounded request body, rejecting unknown fields so
// collaborator typos fail loudly instead of silently dropping data.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// validateRequest validates a struct using go-playground/validator. Returns
// nil when validation passes.
func validateRequest(v interface{}) *APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}

	apiErr := validationErr.ToAPIError()
	return &APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}
