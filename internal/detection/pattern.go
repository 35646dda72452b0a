// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/vigil/internal/event"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// Sequence is one suspicious ordered run of event types inside a time
// window. Each completed non-overlapping match contributes Score to the
// actor's suspicion.
type Sequence struct {
	Name   string
	Types  []string
	Window time.Duration
	Score  int
}

// PatternConfig holds pattern detector tuning parameters.
type PatternConfig struct {
	// RingCapacity bounds the per-actor event history.
	RingCapacity int

	// AnalysisCooldown is the minimum gap between analyses of one actor.
	// Events arriving during the cooldown are still recorded.
	AnalysisCooldown time.Duration

	// ScoreThreshold is the suspicion score that triggers a PATTERN_ALERT.
	ScoreThreshold int

	// ScoreDecay is subtracted from the score on every analysis.
	ScoreDecay int

	// Staleness is how long an actor's newest entry may age before the
	// actor is garbage-collected.
	Staleness time.Duration

	// Sequences are the patterns to match.
	Sequences []Sequence
}

// DefaultPatternConfig returns the built-in pattern table: loot-roll
// hammering and trade-request spam.
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		RingCapacity:     100,
		AnalysisCooldown: 5 * time.Second,
		ScoreThreshold:   50,
		ScoreDecay:       1,
		Staleness:        5 * time.Minute,
		Sequences: []Sequence{
			{
				Name:   "rapid-loot-roll",
				Types:  []string{"LOOT_ROLL", "LOOT_ROLL", "LOOT_ROLL"},
				Window: 2 * time.Second,
				Score:  25,
			},
			{
				Name:   "rapid-trade-request",
				Types:  []string{"TRADE_REQUEST", "TRADE_REQUEST", "TRADE_REQUEST"},
				Window: 5 * time.Second,
				Score:  20,
			},
		},
	}
}

type ringEntry struct {
	eventType string
	ts        time.Time
}

// eventRing is a fixed-capacity ring of (type, timestamp) pairs. When full,
// a push overwrites the oldest entry.
type eventRing struct {
	entries []ringEntry
	start   int
	count   int
}

func newEventRing(capacity int) *eventRing {
	return &eventRing{entries: make([]ringEntry, capacity)}
}

func (r *eventRing) push(eventType string, ts time.Time) {
	if r.count < len(r.entries) {
		r.entries[(r.start+r.count)%len(r.entries)] = ringEntry{eventType: eventType, ts: ts}
		r.count++
		return
	}
	r.entries[r.start] = ringEntry{eventType: eventType, ts: ts}
	r.start = (r.start + 1) % len(r.entries)
}

// ordered returns the entries oldest first.
func (r *eventRing) ordered() []ringEntry {
	out := make([]ringEntry, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.entries[(r.start+i)%len(r.entries)])
	}
	return out
}

// newest returns the most recently pushed entry.
func (r *eventRing) newest() (ringEntry, bool) {
	if r.count == 0 {
		return ringEntry{}, false
	}
	return r.entries[(r.start+r.count-1)%len(r.entries)], true
}

type suspicionState struct {
	ring           *eventRing
	score          int
	lastAnalyzedAt time.Time
}

// PatternDetector is a bus consumer that matches configured event sequences
// against each actor's recent history. All methods are safe for concurrent
// use.
type PatternDetector struct {
	mu      sync.Mutex
	actors  map[string]*suspicionState
	cfg     PatternConfig
	emitter Emitter
	now     func() time.Time
}

// NewPatternDetector creates a detector. emitter may be nil; alerts are
// then dropped silently.
func NewPatternDetector(cfg PatternConfig, emitter Emitter) *PatternDetector {
	def := DefaultPatternConfig()
	if cfg.RingCapacity <= 0 {
		cfg.RingCapacity = def.RingCapacity
	}
	if cfg.AnalysisCooldown <= 0 {
		cfg.AnalysisCooldown = def.AnalysisCooldown
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = def.ScoreThreshold
	}
	if cfg.ScoreDecay <= 0 {
		cfg.ScoreDecay = def.ScoreDecay
	}
	if cfg.Staleness <= 0 {
		cfg.Staleness = def.Staleness
	}
	if cfg.Sequences == nil {
		cfg.Sequences = def.Sequences
	}

	return &PatternDetector{
		actors:  make(map[string]*suspicionState),
		cfg:     cfg,
		emitter: emitter,
		now:     time.Now,
	}
}

// Name implements bus.Consumer.
func (d *PatternDetector) Name() string { return "pattern-detector" }

// OnBatch records every event into its actor's ring, then analyzes each
// touched actor at most once per cooldown window. An actor inside its
// cooldown still has its events recorded; only the analysis is skipped.
func (d *PatternDetector) OnBatch(_ context.Context, batch []*event.SecurityEvent) error {
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	touched := make(map[string]*suspicionState)
	for _, ev := range batch {
		if ev == nil || ev.ActorID == "" {
			continue
		}
		st, ok := d.actors[ev.ActorID]
		if !ok {
			st = &suspicionState{ring: newEventRing(d.cfg.RingCapacity)}
			d.actors[ev.ActorID] = st
		}
		st.ring.push(ev.Type, ev.Timestamp)
		touched[ev.ActorID] = st
	}

	for actorID, st := range touched {
		if now.Sub(st.lastAnalyzedAt) > d.cfg.AnalysisCooldown {
			st.lastAnalyzedAt = now
			d.analyze(actorID, st, now)
		}
	}

	metrics.TrackedActors.WithLabelValues("pattern").Set(float64(len(d.actors)))
	return nil
}

// analyze matches every configured sequence against the window-filtered
// ring, accumulates the gained score, and emits a PATTERN_ALERT when the
// score crosses the threshold from below. The score always decays by the
// configured amount afterwards. Caller holds d.mu.
func (d *PatternDetector) analyze(actorID string, st *suspicionState, now time.Time) {
	gained := 0
	var matched []string

	entries := st.ring.ordered()
	for _, seq := range d.cfg.Sequences {
		windowed := filterWindow(entries, now.Add(-seq.Window))
		n := countSequenceMatches(windowed, seq.Types)
		if n == 0 {
			continue
		}
		gained += n * seq.Score
		matched = append(matched, seq.Name)
		metrics.PatternMatches.WithLabelValues(seq.Name).Add(float64(n))
	}

	before := st.score
	st.score += gained
	crossed := before < d.cfg.ScoreThreshold && st.score >= d.cfg.ScoreThreshold

	if crossed {
		metrics.PatternAlerts.Inc()
		logging.Warn().
			Str("actor_id", actorID).
			Int("suspicion_score", st.score).
			Strs("sequences", matched).
			Msg("Suspicion threshold crossed")

		if d.emitter != nil {
			d.emitter.Publish(event.NewSecurityEvent(actorID, event.TypePatternAlert, event.SeverityHigh, map[string]string{
				"suspicion_score": strconv.Itoa(st.score),
				"sequences":       strings.Join(matched, ","),
			}))
		}
	}

	st.score -= d.cfg.ScoreDecay
	if st.score < 0 {
		st.score = 0
	}
}

// SweepStale removes actors whose newest ring entry is older than the
// staleness window. It returns how many actors were removed.
func (d *PatternDetector) SweepStale() int {
	now := d.now()

	d.mu.Lock()
	removed := 0
	for actorID, st := range d.actors {
		newest, ok := st.ring.newest()
		if !ok || now.Sub(newest.ts) > d.cfg.Staleness {
			delete(d.actors, actorID)
			removed++
		}
	}
	size := len(d.actors)
	d.mu.Unlock()

	metrics.TrackedActors.WithLabelValues("pattern").Set(float64(size))
	return removed
}

// ActorCount returns the number of actors currently tracked.
func (d *PatternDetector) ActorCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.actors)
}

// Score returns the actor's current suspicion score, zero when untracked.
func (d *PatternDetector) Score(actorID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.actors[actorID]; ok {
		return st.score
	}
	return 0
}

// filterWindow returns the entries at or after cutoff, preserving order.
func filterWindow(entries []ringEntry, cutoff time.Time) []ringEntry {
	out := make([]ringEntry, 0, len(entries))
	for _, e := range entries {
		if !e.ts.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// countSequenceMatches counts non-overlapping full matches of types in
// entries: the index advances on a type match, resets on a mismatch, and a
// completed sequence counts one match and resets.
func countSequenceMatches(entries []ringEntry, types []string) int {
	if len(types) == 0 {
		return 0
	}
	matches, idx := 0, 0
	for _, e := range entries {
		if e.eventType == types[idx] {
			idx++
			if idx == len(types) {
				matches++
				idx = 0
			}
			continue
		}
		idx = 0
	}
	return matches
}
