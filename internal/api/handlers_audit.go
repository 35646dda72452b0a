// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/vigil/internal/audit"
	"github.com/tomtom215/vigil/internal/logging"
)

// maxAuditPageSize bounds one ledger page; the ledger can hold far more than
// a response should carry.
const maxAuditPageSize = 1000

// AuditQuery returns a paginated slice of the audit ledger with optional
// filtering.
//
// Method: GET
// Path: /api/v1/audit
//
// Query parameters:
//   - limit, offset: pagination (default 100, max 1000)
//   - type, severity, outcome: repeatable enum filters
//   - actor_id, target_id: exact-match filters
//   - start_time, end_time: RFC3339 bounds
//
// Unparseable filter values are ignored rather than rejected; an operator
// mid-incident gets their page, not a 400.
//
// Response:
//   - 200: Events with total count and pagination echo
//   - 500: Ledger query failed
func (h *Handler) AuditQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := audit.DefaultQueryFilter()

	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 && limit <= maxAuditPageSize {
			filter.Limit = limit
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	// Repeatable enum filters
	for _, t := range r.URL.Query()["type"] {
		filter.Types = append(filter.Types, audit.EventType(t))
	}
	for _, s := range r.URL.Query()["severity"] {
		filter.Severities = append(filter.Severities, audit.Severity(s))
	}
	for _, o := range r.URL.Query()["outcome"] {
		filter.Outcomes = append(filter.Outcomes, audit.Outcome(o))
	}

	if v := r.URL.Query().Get("actor_id"); v != "" {
		filter.ActorID = v
	}
	if v := r.URL.Query().Get("target_id"); v != "" {
		filter.TargetID = v
	}

	// Time range filter
	if v := r.URL.Query().Get("start_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.StartTime = &t
		}
	}
	if v := r.URL.Query().Get("end_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.EndTime = &t
		}
	}

	events, err := h.ledger.Query(ctx, filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeLedgerError, "Failed to fetch audit events", err)
		return
	}

	// Total count for pagination
	count, err := h.ledger.Count(ctx, filter)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to get audit event count")
		count = int64(len(events))
	}

	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  count,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}
