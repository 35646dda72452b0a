// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"net/http"

	"github.com/tomtom215/vigil/internal/logging"
	ws "github.com/tomtom215/vigil/internal/websocket"
)

// AlertStream upgrades the connection to WebSocket and streams dispatched
// alerts until the client disconnects.
//
// Method: GET
// Path: /api/v1/alerts/stream
//
// A slow consumer is disconnected rather than allowed to stall the hub;
// dashboards reconnect, the pipeline does not wait.
//
// Response:
//   - 101: Connection upgraded; alert messages follow
//   - 503: Streaming disabled (no hub configured)
func (h *Handler) AlertStream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Alert streaming unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote its own error response
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}
