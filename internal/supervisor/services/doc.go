// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package services provides suture.Service wrappers for Vigil components.

This package adapts application components to the suture v4 supervision
model, translating various lifecycle patterns (Start/Stop, Run,
ListenAndServe) into suture's context-aware Serve pattern.

# Overview

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

The wrappers handle:
  - Lifecycle translation (Start/Stop to Serve pattern)
  - Graceful shutdown via context cancellation
  - Error propagation for supervisor restart decisions
  - Service identification via fmt.Stringer

# Available Services

Event Pipeline (PipelineService):
  - Wraps pipeline.Pipeline with Start/Stop lifecycle
  - Launches the bus drain loop, the scheduler, and the violation decay
  - Stop halts the timers; queued events are intentionally not flushed

Ledger Retention (LedgerService):
  - Wraps audit.Logger's retention sweeper
  - Deletes ledger entries past the retention window on an interval
  - The ledger's async writer is NOT included; Close owns that lifecycle

Alert Hub (AlertHubService):
  - Wraps websocket.Hub with context support
  - Handles client connection cleanup on shutdown
  - Delegates directly to Hub.Run which is already context-aware

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections

# Usage Example

Creating and registering services:

	import (
	    "net/http"
	    "time"

	    "github.com/tomtom215/vigil/internal/supervisor"
	    "github.com/tomtom215/vigil/internal/supervisor/services"
	)

	func setupSupervisor(pipe *pipeline.Pipeline, hub *websocket.Hub, server *http.Server) {
	    tree, _ := supervisor.NewSupervisorTree(logger, config)

	    // Event pipeline
	    pipeSvc := services.NewPipelineService(pipe)
	    tree.AddPipelineService(pipeSvc)

	    // Alert hub
	    hubSvc := services.NewAlertHubService(hub)
	    tree.AddMessagingService(hubSvc)

	    // HTTP server with 10s shutdown timeout
	    httpSvc := services.NewHTTPServerService(server, 10*time.Second)
	    tree.AddAPIService(httpSvc)

	    // Start supervision
	    tree.Serve(ctx)
	}

# Lifecycle Patterns

The package handles three common lifecycle patterns:

Start/Stop Pattern (PipelineService):

	type StartStopper interface {
	    Start() error
	    Stop()
	}

	// Wrapped as:
	func (s *Service) Serve(ctx context.Context) error {
	    if err := s.component.Start(); err != nil {
	        return err
	    }
	    <-ctx.Done()
	    s.component.Stop()
	    return ctx.Err()
	}

Context-Aware Run Pattern (AlertHubService):

	type Runner interface {
	    Run(ctx context.Context) error  // Blocks until ctx canceled
	}

	// Wrapped as:
	func (s *Service) Serve(ctx context.Context) error {
	    return s.component.Run(ctx)
	}

ListenAndServe Pattern (HTTPServerService):

	type Listener interface {
	    ListenAndServe() error
	    Shutdown(ctx context.Context) error
	}

	// Wrapped as:
	func (s *Service) Serve(ctx context.Context) error {
	    go s.server.ListenAndServe()
	    <-ctx.Done()
	    return s.server.Shutdown(shutdownCtx)
	}

# Error Handling

Suture restarts a service whenever Serve returns while the context is
still live - a nil return restarts too. The exceptions:

	suture.ErrDoNotRestart            -> service is removed, not restarted
	suture.ErrTerminateSupervisorTree -> the whole tree shuts down
	any return after ctx is canceled  -> normal shutdown, no restart

Example error handling:

	func (p *PipelineService) Serve(ctx context.Context) error {
	    if err := p.pipeline.Start(); err != nil {
	        // Transient error - supervisor should restart
	        return fmt.Errorf("pipeline start failed: %w", err)
	    }

	    <-ctx.Done()

	    p.pipeline.Stop()

	    return ctx.Err()  // Clean shutdown, no restart
	}

# Service Identification

All services implement fmt.Stringer for logging:

	func (h *HTTPServerService) String() string {
	    return "http-server"
	}

Suture uses this for log messages:

	INFO http-server: starting
	INFO http-server: stopped
	ERROR http-server: restarting after failure

# Testing

Services can be tested with mock components. Shutdown must release
ListenAndServe, because Serve waits for the listen goroutine to finish:

	type MockServer struct {
	    started atomic.Bool
	    stopCh  chan struct{}
	}

	func (m *MockServer) ListenAndServe() error {
	    m.started.Store(true)
	    <-m.stopCh // Released by Shutdown
	    return http.ErrServerClosed
	}

	func (m *MockServer) Shutdown(ctx context.Context) error {
	    close(m.stopCh)
	    return nil
	}

	func TestHTTPService(t *testing.T) {
	    mock := &MockServer{stopCh: make(chan struct{})}
	    svc := services.NewHTTPServerService(mock, time.Second)

	    ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	    defer cancel()

	    svc.Serve(ctx)

	    if !mock.started.Load() { t.Error("server not started") }
	}

# Thread Safety

All service wrappers are safe for concurrent use:
  - The wrapped components protect their own state
  - Context cancellation is handled atomically
  - Multiple Serve calls are not supported (undefined behavior)

# See Also

  - internal/supervisor: SupervisorTree that manages these services
  - github.com/thejerf/suture/v4: Underlying supervision library
  - internal/pipeline: Event pipeline implementation
  - internal/websocket: Alert hub implementation
*/
package services
