// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/tomtom215/vigil/internal/middleware"
	"github.com/tomtom215/vigil/internal/pipeline"
)

// statsResponse is the operations snapshot served by the stats endpoint.
type statsResponse struct {
	Pipeline         pipeline.SystemStats       `json:"pipeline"`
	Process          *processStats              `json:"process,omitempty"`
	Endpoints        []middleware.EndpointStats `json:"endpoints,omitempty"`
	WebSocketClients int                        `json:"websocket_clients"`
	Goroutines       int                        `json:"goroutines"`
	UptimeSeconds    float64                    `json:"uptime_seconds"`
}

// processStats carries resource usage of the vigil process itself.
type processStats struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryRSSMB float64 `json:"memory_rss_mb"`
}

// Stats returns the pipeline diagnostics snapshot together with process
// resource usage and per-endpoint latency profiles.
//
// Method: GET
// Path: /api/v1/stats
//
// The process block is best effort: fields the platform cannot report are
// zero and the whole block is omitted when no process handle exists.
//
// Response:
//   - 200: Snapshot retrieved
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		Pipeline:      h.pipeline.Stats(),
		Endpoints:     h.perfMon.Stats(),
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	if h.hub != nil {
		resp.WebSocketClients = h.hub.ClientCount()
	}

	if h.proc != nil {
		ps := &processStats{}
		if cpuPct, err := h.proc.CPUPercent(); err == nil {
			ps.CPUPercent = cpuPct
		}
		if memInfo, err := h.proc.MemoryInfo(); err == nil && memInfo != nil {
			ps.MemoryRSSMB = float64(memInfo.RSS) / (1024 * 1024)
		}
		resp.Process = ps
	}

	respondJSON(w, r, http.StatusOK, resp)
}

// Healthz handles liveness probe requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of pipeline state.
//
// Method: GET
// Path: /healthz
//
// Response:
//   - 200: Process is alive
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// Readyz handles readiness probe requests (Kubernetes-style).
// Returns 200 OK only while the pipeline consumers are running; a stopped or
// not-yet-started pipeline would silently drop every emitted event.
//
// Method: GET
// Path: /readyz
//
// Response:
//   - 200: Ready to serve traffic
//   - 503: Pipeline not running
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if !h.pipeline.Running() {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Pipeline not running", nil)
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"ready_to_serve": true,
		"uptime":         time.Since(h.startTime).Seconds(),
	})
}
