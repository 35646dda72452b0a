// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package services

import (
	"context"
	"fmt"
)

// EventPipeline interface matches the internal/pipeline.Pipeline lifecycle.
//
// This interface abstracts the pipeline's Start/Stop pattern, allowing the
// PipelineService wrapper to adapt it to suture's Serve pattern without
// modifying the pipeline code.
//
// The interface is satisfied by *pipeline.Pipeline from internal/pipeline:
//   - Start() error
//   - Stop()
type EventPipeline interface {
	Start() error
	Stop()
}

// PipelineService wraps the event pipeline as a supervised service.
//
// It adapts the Start/Stop lifecycle pattern to suture's Serve pattern:
//  1. Calls Start() to launch the bus drain loop and maintenance timers
//  2. Waits for context cancellation
//  3. Calls Stop() for graceful shutdown
//
// The pipeline handles its own goroutines internally via WaitGroup, so
// this wrapper simply orchestrates the lifecycle transitions.
type PipelineService struct {
	pipeline EventPipeline
	name     string
}

// NewPipelineService creates a new pipeline service wrapper.
//
// Example usage:
//
//	pipe := pipeline.New(pipeline.DefaultConfig(), sinks...)
//	svc := services.NewPipelineService(pipe)
//	tree.AddPipelineService(svc)
func NewPipelineService(pipeline EventPipeline) *PipelineService {
	return &PipelineService{
		pipeline: pipeline,
		name:     "event-pipeline",
	}
}

// Serve implements suture.Service.
//
// This method:
//  1. Starts the pipeline (which spawns its internal goroutines)
//  2. Blocks until the context is canceled
//  3. Stops the pipeline (which waits for its goroutines to complete)
//
// If Start() fails, the error is returned immediately, causing suture to
// restart the service according to its backoff policy.
func (p *PipelineService) Serve(ctx context.Context) error {
	// Start the pipeline - this spawns internal goroutines but returns immediately
	if err := p.pipeline.Start(); err != nil {
		return fmt.Errorf("pipeline start failed: %w", err)
	}

	// Wait for shutdown signal
	<-ctx.Done()

	// Stop the pipeline - this blocks until the drain loop and maintenance
	// timers have wound down. Queued events are intentionally not flushed.
	p.pipeline.Stop()

	return ctx.Err()
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (p *PipelineService) String() string {
	return p.name
}
