// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/vigil/internal/aggregator"
)

// countingSweeper returns a fixed count and records calls.
type countingSweeper struct {
	mu    sync.Mutex
	calls int
	n     int
}

func (c *countingSweeper) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.n
}

func (c *countingSweeper) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *countingSweeper) SweepExpired() int { return c.sweep() }
func (c *countingSweeper) Sweep() int        { return c.sweep() }
func (c *countingSweeper) SweepStale() int   { return c.sweep() }

// countingFlusher records flush calls.
type countingFlusher struct {
	mu    sync.Mutex
	calls int
	total int
}

func (c *countingFlusher) Flush() aggregator.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return aggregator.Summary{Total: c.total}
}

func (c *countingFlusher) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// panickySweeper always panics.
type panickySweeper struct{}

func (panickySweeper) SweepExpired() int { panic("corrupt state") }

func TestScheduler_CompactSweepsEverything(t *testing.T) {
	sessions := &countingSweeper{n: 3}
	buckets := &countingSweeper{n: 7}
	pattern := &countingSweeper{n: 1}
	anomaly := &countingSweeper{n: 2}
	flusher := &countingFlusher{total: 42}

	s := New(DefaultConfig(), Targets{
		Sessions:   sessions,
		RateLimit:  buckets,
		Pattern:    pattern,
		Anomaly:    anomaly,
		Aggregator: flusher,
	})

	sum := s.Compact()
	if sum.SessionsRemoved != 3 {
		t.Errorf("got %d sessions removed, want 3", sum.SessionsRemoved)
	}
	if sum.BucketsRemoved != 7 {
		t.Errorf("got %d buckets removed, want 7", sum.BucketsRemoved)
	}
	if sum.PatternActorsRemoved != 1 {
		t.Errorf("got %d pattern actors removed, want 1", sum.PatternActorsRemoved)
	}
	if sum.AnomalyActorsRemoved != 2 {
		t.Errorf("got %d anomaly actors removed, want 2", sum.AnomalyActorsRemoved)
	}
	if sum.FlushedEvents != 42 {
		t.Errorf("got %d flushed events, want 42", sum.FlushedEvents)
	}
	if s.LastCompaction().IsZero() {
		t.Error("lastCompaction was not recorded")
	}
}

func TestScheduler_CompactSkipsNilTargets(t *testing.T) {
	s := New(DefaultConfig(), Targets{})

	sum := s.Compact()
	if sum.SessionsRemoved != 0 || sum.FlushedEvents != 0 {
		t.Errorf("got non-zero summary %+v from empty targets", sum)
	}
}

func TestScheduler_RunTicksBothJobs(t *testing.T) {
	sessions := &countingSweeper{}
	flusher := &countingFlusher{}
	s := New(Config{
		CompactionInterval: 20 * time.Millisecond,
		FlushInterval:      10 * time.Millisecond,
	}, Targets{Sessions: sessions, Aggregator: flusher})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(120 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}

	if got := sessions.callCount(); got < 2 {
		t.Errorf("got %d compaction ticks, want at least 2", got)
	}
	// The flusher is hit by both compaction and the log-flush job.
	if got := flusher.callCount(); got < 4 {
		t.Errorf("got %d flushes, want at least 4", got)
	}
}

func TestScheduler_PanickingJobDoesNotStopTimer(t *testing.T) {
	flusher := &countingFlusher{}
	s := New(Config{
		CompactionInterval: 10 * time.Millisecond,
		FlushInterval:      10 * time.Millisecond,
	}, Targets{Sessions: panickySweeper{}, Aggregator: flusher})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}

	// Compaction panicked every tick, yet the flush job kept running.
	if got := flusher.callCount(); got < 3 {
		t.Errorf("got %d flushes alongside panicking compaction, want at least 3", got)
	}
}

func TestScheduler_LastCompactionZeroBeforeFirstRun(t *testing.T) {
	s := New(DefaultConfig(), Targets{})
	if !s.LastCompaction().IsZero() {
		t.Error("got non-zero lastCompaction before any run")
	}
}
