// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/tomtom215/vigil/internal/audit"
	"github.com/tomtom215/vigil/internal/auth"
	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/middleware"
	"github.com/tomtom215/vigil/internal/pipeline"
	ws "github.com/tomtom215/vigil/internal/websocket"
)

// Handler contains dependencies for API handlers.
//
// Handler methods are split across multiple files:
//   - handlers.go: Handler struct, constructor, WebSocket origin checks (this file)
//   - handlers_core.go: Collaborator endpoints (check, events, sessions, violations)
//   - handlers_admin.go: Admin ban and violation management endpoints
//   - handlers_ops.go: Stats, health, and readiness endpoints
//   - handlers_audit.go: Ledger query endpoint
//   - handlers_stream.go: WebSocket alert stream endpoint
type Handler struct {
	pipeline  *pipeline.Pipeline
	ledger    *audit.Logger
	config    *config.Config
	hub       *ws.Hub
	startTime time.Time
	perfMon   *middleware.PerformanceMonitor
	proc      *process.Process
}

// NewHandler creates a new API handler with all required dependencies.
//
// Dependencies:
//   - pipe: the event pipeline serving checks, ingest, and session state
//   - ledger: append-only audit ledger for administrative actions
//   - cfg: application configuration
//   - hub: WebSocket hub for real-time alert streaming (nil disables streaming)
//
// The handler initializes with a performance monitor tracking the last 1000
// requests and a process handle for resource stats. Both degrade gracefully:
// stats responses simply omit what is unavailable.
func NewHandler(pipe *pipeline.Pipeline, ledger *audit.Logger, cfg *config.Config, hub *ws.Hub) *Handler {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logging.Warn().Err(err).Msg("Process stats unavailable")
		proc = nil
	}

	return &Handler{
		pipeline:  pipe,
		ledger:    ledger,
		config:    cfg,
		hub:       hub,
		startTime: time.Now(),
		perfMon:   middleware.NewPerformanceMonitor(1000), // Keep last 1000 requests
		proc:      proc,
	}
}

// requestActor resolves the authenticated principal for ledger attribution.
// Falls back to the system actor when the route carries no claims.
func requestActor(r *http.Request) audit.Actor {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		return audit.SystemActor()
	}
	return audit.ActorFromSubject(claims.Subject, claims.Roles)
}

// getUpgrader creates a WebSocket upgrader with proper origin checking and
// a handshake timeout for protection against slow client attacks.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// If no origin header, REJECT - legitimate browser WebSockets ALWAYS include Origin
	// Only non-browser clients (curl, scripts, dashboards) omit Origin header
	// Allowing empty Origin bypasses CORS entirely - security vulnerability
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	// If config is nil, allow by default (fail open for tests/development)
	if h.config == nil {
		return true
	}

	// Check against allowed origins from config
	for _, allowedOrigin := range h.config.Security.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	// Origin not in allowed list - sanitize origin to prevent log injection
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
