// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/tomtom215/vigil/internal/auth"
)

// auditPage is the decoded audit query payload.
type auditPage struct {
	Events []struct {
		Type      string `json:"type"`
		Outcome   string `json:"outcome"`
		RequestID string `json:"request_id"`
		Target    *struct {
			ID string `json:"id"`
		} `json:"target"`
	} `json:"events"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// queryAudit polls the ledger endpoint until at least want events match the
// query. Ledger writes are asynchronous, so the page may trail the action
// that produced it by a few milliseconds.
func queryAudit(t *testing.T, env *testEnv, query string, want int) auditPage {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp := env.request(t, http.MethodGet, "/api/v1/audit"+query, nil, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET /api/v1/audit = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var page auditPage
		mustUnmarshalData(t, decodeEnvelope(t, resp), &page)

		if len(page.Events) >= want {
			return page
		}
		if time.Now().After(deadline) {
			t.Fatalf("audit query %q returned %d events, want at least %d", query, len(page.Events), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAuditQueryRecordsAdminActions(t *testing.T) {
	env := newTestEnv(t, auth.ModeNone)

	resp := env.request(t, http.MethodPost, "/api/v1/bans", map[string]interface{}{
		"actor_id":         "audited-griefer",
		"duration_seconds": 60,
	}, "")
	drainBody(t, resp)

	resp = env.request(t, http.MethodDelete, "/api/v1/bans/audited-griefer", nil, "")
	drainBody(t, resp)

	page := queryAudit(t, env, "", 2)

	types := map[string]bool{}
	for _, ev := range page.Events {
		types[ev.Type] = true
		if ev.Outcome != "success" {
			t.Errorf("event %s outcome = %q, want success", ev.Type, ev.Outcome)
		}
	}
	if !types["ban.added"] || !types["ban.removed"] {
		t.Errorf("event types = %v, want ban.added and ban.removed", types)
	}
}

func TestAuditQueryFiltersByType(t *testing.T) {
	env := newTestEnv(t, auth.ModeNone)

	resp := env.request(t, http.MethodPost, "/api/v1/bans", map[string]interface{}{
		"actor_id":         "filter-griefer",
		"duration_seconds": 60,
	}, "")
	drainBody(t, resp)

	resp = env.request(t, http.MethodPost, "/api/v1/violations/filter-player", nil, "")
	drainBody(t, resp)

	page := queryAudit(t, env, "?type=ban.added", 1)

	for _, ev := range page.Events {
		if ev.Type != "ban.added" {
			t.Errorf("filtered page contains type %q, want only ban.added", ev.Type)
		}
	}
}

func TestAuditQueryFiltersByTarget(t *testing.T) {
	env := newTestEnv(t, auth.ModeNone)

	for _, actor := range []string{"target-a", "target-b"} {
		resp := env.request(t, http.MethodPost, "/api/v1/violations/"+actor, nil, "")
		drainBody(t, resp)
	}

	page := queryAudit(t, env, "?target_id="+url.QueryEscape("target-a"), 1)

	for _, ev := range page.Events {
		if ev.Target == nil || ev.Target.ID != "target-a" {
			t.Errorf("filtered page contains target %v, want only target-a", ev.Target)
		}
	}
}

func TestAuditQueryPagination(t *testing.T) {
	env := newTestEnv(t, auth.ModeNone)

	for i := 0; i < 3; i++ {
		resp := env.request(t, http.MethodPost, "/api/v1/violations/paged-player", nil, "")
		drainBody(t, resp)
	}

	// Wait until all three are flushed.
	queryAudit(t, env, "", 3)

	page := queryAudit(t, env, "?limit=2", 2)
	if len(page.Events) != 2 {
		t.Fatalf("limited page size = %d, want 2", len(page.Events))
	}
	if page.Total < 3 {
		t.Errorf("total = %d, want at least 3", page.Total)
	}
	if page.Limit != 2 {
		t.Errorf("limit echo = %d, want 2", page.Limit)
	}

	offsetPage := queryAudit(t, env, "?limit=2&offset=2", 1)
	if offsetPage.Offset != 2 {
		t.Errorf("offset echo = %d, want 2", offsetPage.Offset)
	}
}

func TestAuditQueryIgnoresBadFilterValues(t *testing.T) {
	env := newTestEnv(t, auth.ModeNone)

	resp := env.request(t, http.MethodPost, "/api/v1/violations/forgiving-player", nil, "")
	drainBody(t, resp)

	// Unparseable limit, offset, and timestamps fall back to defaults
	// instead of rejecting the query.
	page := queryAudit(t, env, "?limit=banana&offset=-3&start_time=yesterday", 1)
	if page.Limit != 100 {
		t.Errorf("limit = %d, want the 100 default when unparseable", page.Limit)
	}
	if page.Offset != 0 {
		t.Errorf("offset = %d, want 0 when negative", page.Offset)
	}
}

func TestAuditEntriesCarryRequestID(t *testing.T) {
	env := newTestEnv(t, auth.ModeNone)

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/v1/violations/traced-player", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Request-ID", "req-audit-trace")

	resp, err := env.server.Client().Do(req)
	if err != nil {
		t.Fatalf("POST violations: %v", err)
	}
	drainBody(t, resp)

	page := queryAudit(t, env, "?type=violation.recorded", 1)
	if page.Events[0].RequestID != "req-audit-trace" {
		t.Errorf("request_id = %q, want req-audit-trace", page.Events[0].RequestID)
	}
}
