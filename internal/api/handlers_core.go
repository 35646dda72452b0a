// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/vigil/internal/audit"
	"github.com/tomtom215/vigil/internal/event"
	"github.com/tomtom215/vigil/internal/pipeline"
	"github.com/tomtom215/vigil/internal/session"
)

// Check evaluates the inline security gate for one request.
//
// Method: POST
// Path: /api/v1/check
//
// A check always answers 200 with an allow/deny decision in the body. Deny is
// policy, not transport failure: callers must be able to tell "your player is
// banned" apart from "the pipeline is broken", and only the latter surfaces
// as a non-2xx status.
//
// Response:
//   - 200: Decision evaluated (allow or deny with reason and mitigations)
//   - 400: Malformed or invalid request body
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, r, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	decision := h.pipeline.CheckRequest(event.RequestContext{
		ActorID:   req.ActorID,
		Endpoint:  req.Endpoint,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		SessionID: req.SessionID,
		Timestamp: time.Now(),
	})

	respondJSON(w, r, http.StatusOK, decision)
}

// EmitEvent ingests one security observation into the event bus.
//
// Method: POST
// Path: /api/v1/events
//
// Returns 202: the event is enqueued and processed asynchronously. Under
// sustained overload the bus sheds oldest events first, so acceptance is not
// a durability promise.
//
// Response:
//   - 202: Event accepted for asynchronous processing
//   - 400: Malformed or invalid request body
func (h *Handler) EmitEvent(w http.ResponseWriter, r *http.Request) {
	var req EmitEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, r, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	var opts []pipeline.EmitOption
	if req.SourceIP != "" {
		opts = append(opts, pipeline.WithSourceIP(req.SourceIP))
	}
	if req.Endpoint != "" {
		opts = append(opts, pipeline.WithEndpoint(req.Endpoint))
	}

	h.pipeline.EmitEvent(req.ActorID, req.Type, event.Severity(req.Severity), req.Data, opts...)

	respondJSON(w, r, http.StatusAccepted, map[string]interface{}{
		"accepted": true,
	})
}

// RegisterSession binds a session token to an actor for later validation.
//
// Method: POST
// Path: /api/v1/sessions
//
// Registering an existing token rebinds it; game servers reissue tokens on
// reconnect and the newest binding wins.
//
// Response:
//   - 201: Session registered
//   - 400: Malformed or invalid request body
func (h *Handler) RegisterSession(w http.ResponseWriter, r *http.Request) {
	var req RegisterSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, r, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	h.pipeline.RegisterSession(req.Token, req.ActorID)

	respondJSON(w, r, http.StatusCreated, map[string]interface{}{
		"actor_id": req.ActorID,
	})
}

// ValidateSession resolves a session token to its actor.
//
// Method: POST
// Path: /api/v1/sessions/validate
//
// The two failure modes are deliberately distinct: an expired session tells
// the game server to re-register, an unknown token is a signal worth
// investigating.
//
// Response:
//   - 200: Token is valid; body carries the bound actor
//   - 404: Token was never registered
//   - 410: Token existed but its TTL elapsed
func (h *Handler) ValidateSession(w http.ResponseWriter, r *http.Request) {
	var req ValidateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, r, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	actorID, err := h.pipeline.ValidateSession(req.Token)
	switch {
	case errors.Is(err, session.ErrExpired):
		respondError(w, r, http.StatusGone, "SESSION_EXPIRED", "Session expired", nil)
		return
	case errors.Is(err, session.ErrNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Session not found", nil)
		return
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Session validation failed", err)
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"actor_id": actorID,
		"valid":    true,
	})
}

// InvalidateSession removes a session eagerly (logout, kick, server-side
// disconnect).
//
// Method: DELETE
// Path: /api/v1/sessions/{token}
//
// Deleting an absent token still succeeds; the operation is idempotent.
//
// Response:
//   - 200: Session removed (or was already absent)
//   - 400: Empty token path segment
func (h *Handler) InvalidateSession(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Missing session token", nil)
		return
	}

	h.pipeline.InvalidateSession(token)
	h.ledger.LogSessionInvalidated(r.Context(), requestActor(r), audit.SourceFromRequest(r), token)

	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"invalidated": true,
	})
}

// RecordViolation increments an actor's violation count from an external
// referee (server-side physics checks, manual review tooling).
//
// Method: POST
// Path: /api/v1/violations/{actorID}
//
// Crossing the violation threshold escalates to a temp ban inside the policy
// engine; the response carries the running count either way.
//
// Response:
//   - 200: Violation recorded; body carries the new count
//   - 400: Empty actor path segment
func (h *Handler) RecordViolation(w http.ResponseWriter, r *http.Request) {
	actorID := r.PathValue("actorID")
	if actorID == "" {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Missing actor ID", nil)
		return
	}

	count := h.pipeline.RecordViolation(actorID)
	h.ledger.LogViolationRecorded(r.Context(), requestActor(r), audit.SourceFromRequest(r), actorID, count)

	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"actor_id":   actorID,
		"violations": count,
	})
}
