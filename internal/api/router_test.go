// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vigil/internal/audit"
	"github.com/tomtom215/vigil/internal/auth"
	"github.com/tomtom215/vigil/internal/authz"
	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/pipeline"
	ws "github.com/tomtom215/vigil/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

const testJWTSecret = "test_secret_with_at_least_32_characters"

// envelope mirrors APIResponse with the payload left raw so each test can
// decode it into the shape it expects.
type envelope struct {
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	Error    *APIError       `json:"error"`
	Metadata Metadata        `json:"metadata"`
}

type testEnv struct {
	server  *httptest.Server
	pipe    *pipeline.Pipeline
	hub     *ws.Hub
	ledger  *audit.Logger
	manager *auth.Manager
	cfg     *config.Config
}

// quietPipelineConfig returns a pipeline configuration with every periodic
// timer effectively disabled, so tests observe only the effects of their own
// requests. The violation threshold is lowered to keep escalation tests
// short.
func quietPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Bus.DrainInterval = time.Hour
	cfg.Scheduler.CompactionInterval = time.Hour
	cfg.Scheduler.FlushInterval = time.Hour
	cfg.Policy.DecayInterval = time.Hour
	cfg.Policy.ViolationThreshold = 3
	cfg.Policy.TempBanDuration = time.Minute
	return cfg
}

func newTestEnv(t *testing.T, authMode string) *testEnv {
	t.Helper()
	return newTestEnvConfig(t, authMode, quietPipelineConfig())
}

func newTestEnvConfig(t *testing.T, authMode string, pipeCfg pipeline.Config) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Security: config.SecurityConfig{
			AuthMode:          authMode,
			TokenTTL:          time.Hour,
			RateLimitDisabled: true,
			CORSOrigins:       []string{"*"},
		},
	}

	var manager *auth.Manager
	if authMode == auth.ModeJWT {
		cfg.Security.JWTSecret = testJWTSecret
		var err error
		manager, err = auth.NewManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
		if err != nil {
			t.Fatalf("auth.NewManager: %v", err)
		}
	}

	pipe := pipeline.New(pipeCfg)
	if err := pipe.Start(); err != nil {
		t.Fatalf("pipeline start: %v", err)
	}
	t.Cleanup(pipe.Stop)

	ledger := audit.NewLogger(audit.NewMemoryStore(1000), nil)
	t.Cleanup(func() { _ = ledger.Close() })

	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()
	t.Cleanup(cancel)

	handler := NewHandler(pipe, ledger, cfg, hub)

	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		t.Fatalf("authz.NewEnforcer: %v", err)
	}

	router := NewRouter(handler, auth.NewMiddleware(manager, authMode), authz.NewMiddleware(enforcer), cfg)

	server := httptest.NewServer(router.SetupChi())
	t.Cleanup(server.Close)

	return &testEnv{
		server:  server,
		pipe:    pipe,
		hub:     hub,
		ledger:  ledger,
		manager: manager,
		cfg:     cfg,
	}
}

// token mints a bearer token for the given subject and roles. Only valid in
// JWT mode.
func (e *testEnv) token(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	if e.manager == nil {
		t.Fatal("token requested but env is not in JWT mode")
	}
	tok, err := e.manager.GenerateToken(subject, roles)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return tok
}

// request performs one HTTP call against the test server. A nil body sends
// no payload; a non-nil body is JSON-encoded. An empty token omits the
// Authorization header.
func (e *testEnv) request(t *testing.T, method, path string, body interface{}, token string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// rawRequest performs one HTTP call with the body sent verbatim, for tests
// that need to exercise malformed payloads.
func (e *testEnv) rawRequest(t *testing.T, method, path, body, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, e.server.URL+path, bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// decodeEnvelope reads and closes the response body, decoding the standard
// response envelope.
func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope from %q: %v", raw, err)
	}
	return env
}

// dataMap decodes the envelope payload into a generic map.
func dataMap(t *testing.T, env envelope) map[string]interface{} {
	t.Helper()

	var m map[string]interface{}
	if err := json.Unmarshal(env.Data, &m); err != nil {
		t.Fatalf("decode envelope data %q: %v", env.Data, err)
	}
	return m
}

// mustUnmarshalData decodes the envelope payload into out.
func mustUnmarshalData(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode envelope data %q: %v", env.Data, err)
	}
}

// drainBody discards and closes a response body so the connection can be
// reused.
func drainBody(t *testing.T, resp *http.Response) {
	t.Helper()
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func TestRouterPublicEndpoints(t *testing.T) {
	env := newTestEnv(t, auth.ModeJWT)

	// Health probes and metrics must answer without credentials even when
	// the API requires bearer tokens.
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp := env.request(t, http.MethodGet, path, nil, "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want %d", path, resp.StatusCode, http.StatusOK)
		}
		drainBody(t, resp)
	}
}

func TestRouterMetricsExposition(t *testing.T) {
	env := newTestEnv(t, auth.ModeNone)

	resp := env.request(t, http.MethodGet, "/metrics", nil, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics body: %v", err)
	}
	if !bytes.Contains(body, []byte("# HELP")) {
		t.Error("metrics exposition missing # HELP lines")
	}
	if !bytes.Contains(body, []byte("bus_queue_depth")) {
		t.Error("metrics exposition missing bus_queue_depth gauge")
	}
}

func TestRouterSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, auth.ModeNone)

	resp := env.request(t, http.MethodGet, "/api/v1/stats", nil, "")
	drainBody(t, resp)

	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for name, want := range headers {
		if got := resp.Header.Get(name); got != want {
			t.Errorf("header %s = %q, want %q", name, got, want)
		}
	}
}

func TestRouterRequestIDPropagation(t *testing.T) {
	env := newTestEnv(t, auth.ModeNone)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/v1/stats", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Request-ID", "req-integration-42")

	resp, err := env.server.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /api/v1/stats: %v", err)
	}

	body := decodeEnvelope(t, resp)
	if body.Metadata.RequestID != "req-integration-42" {
		t.Errorf("metadata request_id = %q, want %q", body.Metadata.RequestID, "req-integration-42")
	}
}

func TestRouterGeneratesRequestID(t *testing.T) {
	env := newTestEnv(t, auth.ModeNone)

	resp := env.request(t, http.MethodGet, "/api/v1/stats", nil, "")
	body := decodeEnvelope(t, resp)

	if body.Metadata.RequestID == "" {
		t.Error("expected a generated request ID in metadata when the caller sends none")
	}
}

func TestRouterUnknownRouteReturns404(t *testing.T) {
	env := newTestEnv(t, auth.ModeNone)

	resp := env.request(t, http.MethodGet, "/api/v1/no-such-resource", nil, "")
	drainBody(t, resp)

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown route = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestRouterMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, auth.ModeNone)

	resp := env.request(t, http.MethodGet, "/api/v1/check", nil, "")
	drainBody(t, resp)

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/v1/check = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	env := newTestEnv(t, auth.ModeNone)

	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/api/v1/check", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Origin", "http://game-backend.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := env.server.Client().Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	drainBody(t, resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 200 or 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got == "" {
		t.Error("preflight missing Access-Control-Allow-Origin")
	}
}

func TestNewRouterDefaults(t *testing.T) {
	env := newTestEnv(t, auth.ModeNone)

	// A second router over the same handler must be constructible without a
	// config: middleware falls back to defaults.
	handler := NewHandler(env.pipe, env.ledger, env.cfg, env.hub)
	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		t.Fatalf("authz.NewEnforcer: %v", err)
	}

	router := NewRouter(handler, auth.NewMiddleware(nil, auth.ModeNone), authz.NewMiddleware(enforcer), nil)
	if router == nil {
		t.Fatal("NewRouter returned nil")
	}

	srv := httptest.NewServer(router.SetupChi())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	drainBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /healthz = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}
