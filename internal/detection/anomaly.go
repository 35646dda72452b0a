// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/tomtom215/vigil/internal/event"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// FrequencyRule scores one event type: every count above Threshold inside
// the window adds Weight to the actor's anomaly score.
type FrequencyRule struct {
	EventType string
	Threshold int
	Weight    int
}

// AnomalyConfig holds anomaly analyzer tuning parameters.
type AnomalyConfig struct {
	// SampleRate is the fraction of each batch that is processed. Small
	// batches (below SmallBatchSize) are always processed in full so light
	// traffic is never starved of detection.
	SampleRate float64

	// SmallBatchSize is the batch length under which sampling is skipped.
	SmallBatchSize int

	// Window is the approximate counting window; an actor's counters reset
	// wholesale once the window is stale.
	Window time.Duration

	// ScoreThreshold is the anomaly score that triggers ANOMALY_DETECTED.
	ScoreThreshold int

	// ScoreDecay is subtracted from every tracked actor's score after each
	// batch scan.
	ScoreDecay int

	// Staleness is how long an actor's metrics may go untouched before the
	// actor is garbage-collected.
	Staleness time.Duration

	// Rules are the per-type frequency thresholds.
	Rules []FrequencyRule
}

// DefaultAnomalyConfig returns the built-in frequency table.
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		SampleRate:     0.10,
		SmallBatchSize: 10,
		Window:         time.Minute,
		ScoreThreshold: 30,
		ScoreDecay:     5,
		Staleness:      5 * time.Minute,
		Rules: []FrequencyRule{
			{EventType: "LOOT_ROLL", Threshold: 20, Weight: 2},
			{EventType: "TRADE_REQUEST", Threshold: 15, Weight: 2},
			{EventType: "CHAT_MESSAGE", Threshold: 40, Weight: 1},
		},
	}
}

type anomalyMetrics struct {
	totalEvents     int
	perType         map[string]int
	score           int
	windowStartedAt time.Time
	lastTouchedAt   time.Time
}

// AnomalyAnalyzer is a bus consumer that counts per-actor event frequencies
// in approximate windows and scores excesses against configured thresholds.
// All methods are safe for concurrent use.
type AnomalyAnalyzer struct {
	mu      sync.Mutex
	actors  map[string]*anomalyMetrics
	cfg     AnomalyConfig
	emitter Emitter
	now     func() time.Time
	rng     *rand.Rand
}

// NewAnomalyAnalyzer creates an analyzer. emitter may be nil; alerts are
// then dropped silently.
func NewAnomalyAnalyzer(cfg AnomalyConfig, emitter Emitter) *AnomalyAnalyzer {
	def := DefaultAnomalyConfig()
	if cfg.SampleRate <= 0 || cfg.SampleRate > 1 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.SmallBatchSize <= 0 {
		cfg.SmallBatchSize = def.SmallBatchSize
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
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
	if cfg.Rules == nil {
		cfg.Rules = def.Rules
	}

	return &AnomalyAnalyzer{
		actors:  make(map[string]*anomalyMetrics),
		cfg:     cfg,
		emitter: emitter,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // G404: sampling only, not security-sensitive
	}
}

// Name implements bus.Consumer.
func (a *AnomalyAnalyzer) Name() string { return "anomaly-analyzer" }

// OnBatch folds a sample of the batch into per-actor frequency windows,
// then scores every tracked actor against the rule table. Batches below
// SmallBatchSize are processed in full.
func (a *AnomalyAnalyzer) OnBatch(_ context.Context, batch []*event.SecurityEvent) error {
	now := a.now()
	sampleAll := len(batch) < a.cfg.SmallBatchSize

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, ev := range batch {
		if ev == nil || ev.ActorID == "" {
			continue
		}
		if !sampleAll && a.rng.Float64() >= a.cfg.SampleRate {
			continue
		}
		a.record(ev, now)
	}

	a.scanAll(now)
	metrics.TrackedActors.WithLabelValues("anomaly").Set(float64(len(a.actors)))
	return nil
}

// record counts one event, resetting the actor's window wholesale when it
// is absent or stale. Caller holds a.mu.
func (a *AnomalyAnalyzer) record(ev *event.SecurityEvent, now time.Time) {
	st, ok := a.actors[ev.ActorID]
	if !ok || now.Sub(st.windowStartedAt) > a.cfg.Window {
		st = &anomalyMetrics{
			perType:         make(map[string]int),
			windowStartedAt: now,
		}
		a.actors[ev.ActorID] = st
	}
	st.totalEvents++
	st.perType[ev.Type]++
	st.lastTouchedAt = now
}

// scanAll scores every tracked actor: each rule whose count exceeds its
// threshold contributes (count-threshold)*weight; a score above the global
// threshold emits ANOMALY_DETECTED with the offending counts. Every actor
// then decays by the configured amount. Counts in a stale window no longer
// score; they are reset wholesale on the actor's next event. Caller holds
// a.mu.
func (a *AnomalyAnalyzer) scanAll(now time.Time) {
	for actorID, st := range a.actors {
		windowLive := now.Sub(st.windowStartedAt) <= a.cfg.Window

		offending := make(map[string]string)
		if windowLive {
			for _, rule := range a.cfg.Rules {
				count := st.perType[rule.EventType]
				if count > rule.Threshold {
					st.score += (count - rule.Threshold) * rule.Weight
					offending[rule.EventType] = strconv.Itoa(count)
				}
			}
		}

		if st.score > a.cfg.ScoreThreshold {
			metrics.AnomalyAlerts.Inc()
			logging.Warn().
				Str("actor_id", actorID).
				Int("anomaly_score", st.score).
				Int("total_events", st.totalEvents).
				Msg("Anomaly threshold exceeded")

			if a.emitter != nil {
				offending["anomaly_score"] = strconv.Itoa(st.score)
				a.emitter.Publish(event.NewSecurityEvent(actorID, event.TypeAnomalyDetected, event.SeverityHigh, offending))
			}
		}

		st.score -= a.cfg.ScoreDecay
		if st.score < 0 {
			st.score = 0
		}
	}
}

// SweepStale removes actors whose metrics have gone untouched beyond the
// staleness window. It returns how many actors were removed.
func (a *AnomalyAnalyzer) SweepStale() int {
	now := a.now()

	a.mu.Lock()
	removed := 0
	for actorID, st := range a.actors {
		if now.Sub(st.lastTouchedAt) > a.cfg.Staleness {
			delete(a.actors, actorID)
			removed++
		}
	}
	size := len(a.actors)
	a.mu.Unlock()

	metrics.TrackedActors.WithLabelValues("anomaly").Set(float64(size))
	return removed
}

// ActorCount returns the number of actors currently tracked.
func (a *AnomalyAnalyzer) ActorCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.actors)
}

// Score returns the actor's current anomaly score, zero when untracked.
func (a *AnomalyAnalyzer) Score(actorID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if st, ok := a.actors[actorID]; ok {
		return st.score
	}
	return 0
}
