// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package aggregator folds noisy event storms into per-(type, severity)
// counters so the log volume stays proportional to the variety of trouble,
// not its intensity. Flushing logs high-severity summaries and resets all
// state wholesale.
package aggregator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/vigil/internal/event"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// Key identifies one aggregation bucket.
type Key struct {
	Type     string
	Severity event.Severity
}

// Config holds aggregator tuning parameters.
type Config struct {
	// FlushThreshold is the number of distinct keys that forces an
	// immediate flush.
	FlushThreshold int

	// ActorSampleCap bounds the unique actor sample kept per key.
	ActorSampleCap int
}

// DefaultConfig returns the default aggregator configuration.
func DefaultConfig() Config {
	return Config{
		FlushThreshold: 100,
		ActorSampleCap: 5,
	}
}

type entry struct {
	count       int
	firstSeenAt time.Time
	lastSeenAt  time.Time
	actors      []string
}

// FlushEntry is one bucket in a flush summary.
type FlushEntry struct {
	Type        string         `json:"type"`
	Severity    event.Severity `json:"severity"`
	Count       int            `json:"count"`
	FirstSeenAt time.Time      `json:"first_seen_at"`
	LastSeenAt  time.Time      `json:"last_seen_at"`
	Actors      []string       `json:"actors,omitempty"`
}

// Summary is the result of one flush. Entries are ordered by descending
// severity, then type.
type Summary struct {
	Entries   []FlushEntry `json:"entries"`
	Total     int          `json:"total"`
	FlushedAt time.Time    `json:"flushed_at"`
}

// Stats is a point-in-time view of the aggregator for diagnostics.
type Stats struct {
	DistinctKeys   int       `json:"distinct_keys"`
	BufferedEvents int       `json:"buffered_events"`
	Flushes        uint64    `json:"flushes"`
	LastFlushAt    time.Time `json:"last_flush_at"`
}

// Aggregator is a bus consumer that deduplicates events into counters. All
// methods are safe for concurrent use.
type Aggregator struct {
	mu       sync.Mutex
	entries  map[Key]*entry
	total    int
	flushes  uint64
	lastFlush time.Time

	cfg     Config
	onFlush func(Summary)
	now     func() time.Time
}

// New creates an aggregator. onFlush, when non-nil, receives every flush
// summary (threshold-forced and scheduled alike) outside the aggregator
// lock.
func New(cfg Config, onFlush func(Summary)) *Aggregator {
	def := DefaultConfig()
	if cfg.FlushThreshold <= 0 {
		cfg.FlushThreshold = def.FlushThreshold
	}
	if cfg.ActorSampleCap <= 0 {
		cfg.ActorSampleCap = def.ActorSampleCap
	}

	return &Aggregator{
		entries: make(map[Key]*entry),
		cfg:     cfg,
		onFlush: onFlush,
		now:     time.Now,
	}
}

// Name implements bus.Consumer.
func (a *Aggregator) Name() string { return "log-aggregator" }

// OnBatch folds each event into its (type, severity) bucket. Exceeding the
// distinct-key threshold forces an immediate flush.
func (a *Aggregator) OnBatch(_ context.Context, batch []*event.SecurityEvent) error {
	now := a.now()

	a.mu.Lock()
	for _, ev := range batch {
		if ev == nil {
			continue
		}
		key := Key{Type: ev.Type, Severity: ev.Severity}
		e, ok := a.entries[key]
		if !ok {
			e = &entry{firstSeenAt: now}
			a.entries[key] = e
		}
		e.count++
		e.lastSeenAt = now
		e.sampleActor(ev.ActorID, a.cfg.ActorSampleCap)
		a.total++
		metrics.AggregatorEvents.Inc()
	}
	distinct := len(a.entries)

	var sum Summary
	forced := distinct > a.cfg.FlushThreshold
	if forced {
		sum = a.flushLocked(now)
	}
	a.mu.Unlock()

	metrics.AggregatorEntries.Set(float64(distinct))
	if forced {
		metrics.AggregatorFlushes.WithLabelValues("threshold").Inc()
		a.report(sum)
	}
	return nil
}

// Flush empties the aggregator, logging a summary line per high-severity
// key, and returns the summary. All counters reset wholesale.
func (a *Aggregator) Flush() Summary {
	a.mu.Lock()
	sum := a.flushLocked(a.now())
	a.mu.Unlock()

	metrics.AggregatorFlushes.WithLabelValues("scheduled").Inc()
	a.report(sum)
	return sum
}

// flushLocked builds the summary and resets all state. Caller holds a.mu.
func (a *Aggregator) flushLocked(now time.Time) Summary {
	sum := Summary{
		Entries:   make([]FlushEntry, 0, len(a.entries)),
		Total:     a.total,
		FlushedAt: now,
	}
	for key, e := range a.entries {
		sum.Entries = append(sum.Entries, FlushEntry{
			Type:        key.Type,
			Severity:    key.Severity,
			Count:       e.count,
			FirstSeenAt: e.firstSeenAt,
			LastSeenAt:  e.lastSeenAt,
			Actors:      e.actors,
		})
	}
	sort.Slice(sum.Entries, func(i, j int) bool {
		if sum.Entries[i].Severity.Rank() != sum.Entries[j].Severity.Rank() {
			return sum.Entries[i].Severity.Rank() > sum.Entries[j].Severity.Rank()
		}
		return sum.Entries[i].Type < sum.Entries[j].Type
	})

	a.entries = make(map[Key]*entry)
	a.total = 0
	a.flushes++
	a.lastFlush = now

	metrics.AggregatorEntries.Set(0)
	return sum
}

// report logs high-severity buckets and hands the summary to the flush
// hook. Runs outside the aggregator lock.
func (a *Aggregator) report(sum Summary) {
	for _, e := range sum.Entries {
		if !e.Severity.AtLeast(event.SeverityHigh) {
			continue
		}
		logging.Warn().
			Str("event_type", e.Type).
			Str("severity", string(e.Severity)).
			Int("count", e.Count).
			Strs("actors", e.Actors).
			Time("first_seen", e.FirstSeenAt).
			Time("last_seen", e.LastSeenAt).
			Msg("Aggregated security events")
	}
	if a.onFlush != nil && len(sum.Entries) > 0 {
		a.onFlush(sum)
	}
}

// Stats returns a snapshot of the aggregator state.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		DistinctKeys:   len(a.entries),
		BufferedEvents: a.total,
		Flushes:        a.flushes,
		LastFlushAt:    a.lastFlush,
	}
}

// sampleActor appends actorID to the bounded unique sample.
func (e *entry) sampleActor(actorID string, limit int) {
	if actorID == "" || len(e.actors) >= limit {
		return
	}
	for _, a := range e.actors {
		if a == actorID {
			return
		}
	}
	e.actors = append(e.actors, actorID)
}
