// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package services

import (
	"context"
)

// AlertHub interface matches *websocket.Hub's Run method.
//
// This interface allows the AlertHubService to work with the hub without
// direct dependency, enabling testing with mocks.
//
// Satisfied by *websocket.Hub from internal/websocket/hub.go:
//   - Run(ctx context.Context) error
type AlertHub interface {
	Run(ctx context.Context) error
}

// AlertHubService wraps the WebSocket alert hub as a supervised service.
//
// The hub's Run method already implements the suture.Service pattern,
// so this wrapper simply delegates to it and provides a name for logging.
//
// Example usage:
//
//	hub := websocket.NewHub()
//	svc := services.NewAlertHubService(hub)
//	tree.AddMessagingService(svc)
type AlertHubService struct {
	hub  AlertHub
	name string
}

// NewAlertHubService creates a new alert hub service wrapper.
func NewAlertHubService(hub AlertHub) *AlertHubService {
	return &AlertHubService{
		hub:  hub,
		name: "alert-hub",
	}
}

// Serve implements suture.Service.
//
// This method delegates to hub.Run which:
//  1. Processes client registration/unregistration and alert broadcasts
//  2. Returns when the context is canceled
//  3. Gracefully closes all clients on shutdown
//
// The method returns ctx.Err() on normal shutdown.
func (a *AlertHubService) Serve(ctx context.Context) error {
	return a.hub.Run(ctx)
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (a *AlertHubService) String() string {
	return a.name
}
