// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/vigil/internal/audit"
)

// ListBans returns all currently active temporary bans.
//
// Method: GET
// Path: /api/v1/bans
//
// Expired entries are cleared lazily, so the list is exact at read time.
//
// Response:
//   - 200: Active bans with count
func (h *Handler) ListBans(w http.ResponseWriter, r *http.Request) {
	bans := h.pipeline.Engine().Bans().Active()

	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"bans":  bans,
		"count": len(bans),
	})
}

// AddBan imposes a manual temporary ban on an actor.
//
// Method: POST
// Path: /api/v1/bans
//
// Banning an already-banned actor replaces the expiry; the longest intent
// wins operationally because admins re-ban to extend.
//
// Response:
//   - 201: Ban imposed; body carries the expiry
//   - 400: Malformed or invalid request body
func (h *Handler) AddBan(w http.ResponseWriter, r *http.Request) {
	var req BanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, r, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	d := time.Duration(req.DurationSeconds) * time.Second
	h.pipeline.Engine().AddTempBan(req.ActorID, d)
	h.ledger.LogBanAdded(r.Context(), requestActor(r), audit.SourceFromRequest(r), req.ActorID, d)

	respondJSON(w, r, http.StatusCreated, map[string]interface{}{
		"actor_id":   req.ActorID,
		"expires_at": time.Now().Add(d),
	})
}

// RemoveBan lifts an active ban early.
//
// Method: DELETE
// Path: /api/v1/bans/{actorID}
//
// Response:
//   - 200: Ban lifted
//   - 400: Empty actor path segment
//   - 404: No active ban for the actor
func (h *Handler) RemoveBan(w http.ResponseWriter, r *http.Request) {
	actorID := r.PathValue("actorID")
	if actorID == "" {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Missing actor ID", nil)
		return
	}

	if !h.pipeline.Engine().RemoveTempBan(actorID) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "No active ban for actor", nil)
		return
	}
	h.ledger.LogBanRemoved(r.Context(), requestActor(r), audit.SourceFromRequest(r), actorID)

	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"actor_id": actorID,
		"removed":  true,
	})
}

// ClearViolations resets an actor's violation count (appeal resolved, false
// positive confirmed).
//
// Method: DELETE
// Path: /api/v1/violations/{actorID}
//
// Clearing violations does not lift an existing ban; admins lift bans
// explicitly so the two decisions stay independently auditable.
//
// Response:
//   - 200: Violations cleared
//   - 400: Empty actor path segment
func (h *Handler) ClearViolations(w http.ResponseWriter, r *http.Request) {
	actorID := r.PathValue("actorID")
	if actorID == "" {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Missing actor ID", nil)
		return
	}

	h.pipeline.Engine().ClearViolations(actorID)
	h.ledger.LogViolationsCleared(r.Context(), requestActor(r), audit.SourceFromRequest(r), actorID)

	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"actor_id": actorID,
		"cleared":  true,
	})
}
