// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package scheduler drives the pipeline's periodic maintenance: a
// compaction job that sweeps expired state across components and a faster
// log-flush job. Every tick recovers its own panics so one bad run never
// stops the timers.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/vigil/internal/aggregator"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// SessionSweeper removes expired sessions.
type SessionSweeper interface {
	SweepExpired() int
}

// BucketSweeper removes elapsed rate-limit buckets.
type BucketSweeper interface {
	Sweep() int
}

// StaleSweeper garbage-collects idle detector state.
type StaleSweeper interface {
	SweepStale() int
}

// Flusher empties the log aggregator.
type Flusher interface {
	Flush() aggregator.Summary
}

// Targets are the components the scheduler maintains. Nil fields are
// skipped.
type Targets struct {
	Sessions   SessionSweeper
	RateLimit  BucketSweeper
	Pattern    StaleSweeper
	Anomaly    StaleSweeper
	Aggregator Flusher
}

// Config holds scheduler tuning parameters.
type Config struct {
	// CompactionInterval is the cadence of the full maintenance sweep.
	CompactionInterval time.Duration

	// FlushInterval is the cadence of the standalone aggregator flush.
	FlushInterval time.Duration
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		CompactionInterval: time.Minute,
		FlushInterval:      30 * time.Second,
	}
}

// CompactionSummary reports what one compaction pass cleared.
type CompactionSummary struct {
	SessionsRemoved      int       `json:"sessions_removed"`
	BucketsRemoved       int       `json:"buckets_removed"`
	PatternActorsRemoved int       `json:"pattern_actors_removed"`
	AnomalyActorsRemoved int       `json:"anomaly_actors_removed"`
	FlushedEvents        int       `json:"flushed_events"`
	RanAt                time.Time `json:"ran_at"`
}

// Scheduler runs the periodic jobs. All methods are safe for concurrent
// use.
type Scheduler struct {
	mu             sync.Mutex
	lastCompaction time.Time

	cfg     Config
	targets Targets
	now     func() time.Time
}

// New creates a scheduler over the given targets. Zero intervals fall back
// to defaults.
func New(cfg Config, targets Targets) *Scheduler {
	def := DefaultConfig()
	if cfg.CompactionInterval <= 0 {
		cfg.CompactionInterval = def.CompactionInterval
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}

	return &Scheduler{
		cfg:     cfg,
		targets: targets,
		now:     time.Now,
	}
}

// Run drives both jobs until ctx is cancelled. It satisfies the suture
// service contract.
func (s *Scheduler) Run(ctx context.Context) error {
	logging.Info().
		Dur("compaction_interval", s.cfg.CompactionInterval).
		Dur("flush_interval", s.cfg.FlushInterval).
		Msg("Scheduler started")

	compaction := time.NewTicker(s.cfg.CompactionInterval)
	defer compaction.Stop()
	flush := time.NewTicker(s.cfg.FlushInterval)
	defer flush.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Scheduler stopped")
			return nil
		case <-compaction.C:
			s.runJob("compaction", func() { s.Compact() })
		case <-flush.C:
			s.runJob("log-flush", s.flushLogs)
		}
	}
}

// Compact runs one full maintenance pass and returns its summary.
func (s *Scheduler) Compact() CompactionSummary {
	now := s.now()
	sum := CompactionSummary{RanAt: now}

	if s.targets.Sessions != nil {
		sum.SessionsRemoved = s.targets.Sessions.SweepExpired()
	}
	if s.targets.RateLimit != nil {
		sum.BucketsRemoved = s.targets.RateLimit.Sweep()
	}
	if s.targets.Pattern != nil {
		sum.PatternActorsRemoved = s.targets.Pattern.SweepStale()
	}
	if s.targets.Anomaly != nil {
		sum.AnomalyActorsRemoved = s.targets.Anomaly.SweepStale()
	}
	if s.targets.Aggregator != nil {
		sum.FlushedEvents = s.targets.Aggregator.Flush().Total
	}

	s.mu.Lock()
	s.lastCompaction = now
	s.mu.Unlock()
	metrics.LastCompactionTimestamp.Set(float64(now.Unix()))

	logging.Info().
		Int("sessions_removed", sum.SessionsRemoved).
		Int("buckets_removed", sum.BucketsRemoved).
		Int("pattern_actors_removed", sum.PatternActorsRemoved).
		Int("anomaly_actors_removed", sum.AnomalyActorsRemoved).
		Int("flushed_events", sum.FlushedEvents).
		Msg("Compaction finished")
	return sum
}

// LastCompaction returns when the most recent compaction ran, zero before
// the first one.
func (s *Scheduler) LastCompaction() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCompaction
}

func (s *Scheduler) flushLogs() {
	if s.targets.Aggregator == nil {
		return
	}
	s.targets.Aggregator.Flush()
}

// runJob executes one tick, converting panics into logged errors so a
// failing job never kills the timer loop.
func (s *Scheduler) runJob(name string, fn func()) {
	start := time.Now()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job panic: %v", r)
			}
		}()
		fn()
	}()

	metrics.RecordSchedulerRun(name, time.Since(start), err)
	if err != nil {
		logging.Error().
			Err(err).
			Str("job", name).
			Msg("Scheduler job failed")
	}
}
