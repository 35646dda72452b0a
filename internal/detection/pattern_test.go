// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/vigil/internal/event"
)

// mockEmitter implements Emitter for testing.
type mockEmitter struct {
	mu     sync.Mutex
	events []*event.SecurityEvent
}

func (m *mockEmitter) Publish(ev *event.SecurityEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *mockEmitter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockEmitter) last() *event.SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

// evAt builds an event with an explicit timestamp.
func evAt(actorID, eventType string, ts time.Time) *event.SecurityEvent {
	ev := event.NewSecurityEvent(actorID, eventType, event.SeverityLow, nil)
	ev.Timestamp = ts
	return ev
}

func lootSeqConfig() PatternConfig {
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
		},
	}
}

func TestPatternDetector_MatchWithinWindow(t *testing.T) {
	emitter := &mockEmitter{}
	d := NewPatternDetector(lootSeqConfig(), emitter)
	now := time.Now()
	d.now = func() time.Time { return now }

	// Six loot rolls inside the 2s window: two non-overlapping matches,
	// +50 suspicion, threshold crossed.
	batch := make([]*event.SecurityEvent, 0, 6)
	for i := 0; i < 6; i++ {
		batch = append(batch, evAt("actor-1", "LOOT_ROLL", now.Add(-time.Duration(6-i)*100*time.Millisecond)))
	}
	if err := d.OnBatch(context.Background(), batch); err != nil {
		t.Fatalf("OnBatch failed: %v", err)
	}

	if got := emitter.count(); got != 1 {
		t.Fatalf("got %d alerts, want 1", got)
	}
	alert := emitter.last()
	if alert.Type != event.TypePatternAlert {
		t.Errorf("got type %q, want %q", alert.Type, event.TypePatternAlert)
	}
	if alert.Severity != event.SeverityHigh {
		t.Errorf("got severity %q, want %q", alert.Severity, event.SeverityHigh)
	}
	if alert.ActorID != "actor-1" {
		t.Errorf("got actor %q, want %q", alert.ActorID, "actor-1")
	}

	// Two matches scored 50, then one decay tick.
	if got := d.Score("actor-1"); got != 49 {
		t.Errorf("got score %d, want 49", got)
	}
}

func TestPatternDetector_NoMatchWhenSpreadBeyondWindow(t *testing.T) {
	emitter := &mockEmitter{}
	d := NewPatternDetector(lootSeqConfig(), emitter)
	now := time.Now()
	d.now = func() time.Time { return now }

	// The same three loot rolls spread over 3s: the 2s window only ever
	// holds a partial sequence, so no match is counted.
	batch := []*event.SecurityEvent{
		evAt("actor-1", "LOOT_ROLL", now.Add(-3*time.Second)),
		evAt("actor-1", "LOOT_ROLL", now.Add(-1500*time.Millisecond)),
		evAt("actor-1", "LOOT_ROLL", now),
	}
	if err := d.OnBatch(context.Background(), batch); err != nil {
		t.Fatalf("OnBatch failed: %v", err)
	}

	if got := emitter.count(); got != 0 {
		t.Errorf("got %d alerts, want 0", got)
	}
	if got := d.Score("actor-1"); got != 0 {
		t.Errorf("got score %d, want 0", got)
	}
}

func TestPatternDetector_CooldownSkipsAnalysisButRecords(t *testing.T) {
	cfg := lootSeqConfig()
	// A wide window so only the cooldown, not the window, limits matching.
	cfg.Sequences[0].Window = time.Minute
	emitter := &mockEmitter{}
	d := NewPatternDetector(cfg, emitter)
	now := time.Now()
	d.now = func() time.Time { return now }

	// First batch analyzes (one entry, no match) and starts the cooldown.
	if err := d.OnBatch(context.Background(), []*event.SecurityEvent{
		evAt("actor-1", "LOOT_ROLL", now),
	}); err != nil {
		t.Fatalf("OnBatch failed: %v", err)
	}

	// Inside the cooldown: recorded, not analyzed.
	if err := d.OnBatch(context.Background(), []*event.SecurityEvent{
		evAt("actor-1", "LOOT_ROLL", now),
		evAt("actor-1", "LOOT_ROLL", now),
	}); err != nil {
		t.Fatalf("OnBatch failed: %v", err)
	}
	if got := d.Score("actor-1"); got != 0 {
		t.Fatalf("got score %d during cooldown, want 0", got)
	}

	// Past the cooldown the next analysis sees everything recorded so far:
	// four loot rolls, one full match.
	now = now.Add(6 * time.Second)
	if err := d.OnBatch(context.Background(), []*event.SecurityEvent{
		evAt("actor-1", "LOOT_ROLL", now),
	}); err != nil {
		t.Fatalf("OnBatch failed: %v", err)
	}
	if got := d.Score("actor-1"); got != 24 {
		t.Errorf("got score %d, want 24 (one match, one decay)", got)
	}
}

func TestPatternDetector_ScoreDecaysPerAnalysis(t *testing.T) {
	cfg := lootSeqConfig()
	cfg.ScoreThreshold = 1000
	emitter := &mockEmitter{}
	d := NewPatternDetector(cfg, emitter)
	now := time.Now()
	d.now = func() time.Time { return now }

	batch := []*event.SecurityEvent{
		evAt("actor-1", "LOOT_ROLL", now),
		evAt("actor-1", "LOOT_ROLL", now),
		evAt("actor-1", "LOOT_ROLL", now),
	}
	if err := d.OnBatch(context.Background(), batch); err != nil {
		t.Fatalf("OnBatch failed: %v", err)
	}
	if got := d.Score("actor-1"); got != 24 {
		t.Fatalf("got score %d, want 24", got)
	}

	// A matchless analysis still decays.
	now = now.Add(6 * time.Second)
	if err := d.OnBatch(context.Background(), []*event.SecurityEvent{
		evAt("actor-1", "CHAT_MESSAGE", now),
	}); err != nil {
		t.Fatalf("OnBatch failed: %v", err)
	}
	if got := d.Score("actor-1"); got != 23 {
		t.Errorf("got score %d, want 23", got)
	}
}

func TestPatternDetector_SweepStale(t *testing.T) {
	d := NewPatternDetector(lootSeqConfig(), nil)
	now := time.Now()
	d.now = func() time.Time { return now }

	d.OnBatch(context.Background(), []*event.SecurityEvent{
		evAt("idle", "LOOT_ROLL", now),
	})

	now = now.Add(4 * time.Minute)
	d.OnBatch(context.Background(), []*event.SecurityEvent{
		evAt("active", "LOOT_ROLL", now),
	})

	// idle's newest entry is 6 minutes old by now; active's is 2.
	now = now.Add(2 * time.Minute)
	if got := d.SweepStale(); got != 1 {
		t.Errorf("got %d swept, want 1", got)
	}
	if got := d.ActorCount(); got != 1 {
		t.Errorf("got %d actors, want 1", got)
	}
	if got := d.Score("idle"); got != 0 {
		t.Errorf("got idle score %d after sweep, want 0", got)
	}
}

func TestEventRing_OverwritesOldest(t *testing.T) {
	r := newEventRing(3)
	base := time.Now()

	for i, typ := range []string{"a", "b", "c", "d", "e"} {
		r.push(typ, base.Add(time.Duration(i)*time.Second))
	}

	ordered := r.ordered()
	if len(ordered) != 3 {
		t.Fatalf("got %d entries, want 3", len(ordered))
	}
	for i, want := range []string{"c", "d", "e"} {
		if ordered[i].eventType != want {
			t.Errorf("ordered[%d]: got %q, want %q", i, ordered[i].eventType, want)
		}
	}

	newest, ok := r.newest()
	if !ok || newest.eventType != "e" {
		t.Errorf("got newest %q (ok=%v), want %q", newest.eventType, ok, "e")
	}
}

func TestCountSequenceMatches(t *testing.T) {
	mk := func(types ...string) []ringEntry {
		out := make([]ringEntry, len(types))
		for i, typ := range types {
			out[i] = ringEntry{eventType: typ}
		}
		return out
	}

	tests := []struct {
		name    string
		entries []ringEntry
		seq     []string
		want    int
	}{
		{"exact match", mk("A", "A", "A"), []string{"A", "A", "A"}, 1},
		{"two non-overlapping", mk("A", "A", "A", "A", "A", "A"), []string{"A", "A", "A"}, 2},
		{"mismatch resets", mk("A", "A", "B", "A", "A", "A"), []string{"A", "A", "A"}, 1},
		{"interleaved never completes", mk("A", "B", "A", "B", "A"), []string{"A", "A", "A"}, 0},
		{"mixed types", mk("X", "A", "A", "A", "X"), []string{"A", "A", "A"}, 1},
		{"empty sequence", mk("A"), nil, 0},
		{"empty entries", nil, []string{"A"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := countSequenceMatches(tt.entries, tt.seq); got != tt.want {
				t.Errorf("got %d matches, want %d", got, tt.want)
			}
		})
	}
}
