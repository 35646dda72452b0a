// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package policy

import (
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

func reqCtx(actorID string) event.RequestContext {
	return event.RequestContext{
		ActorID:   actorID,
		Endpoint:  "/game/action",
		IP:        "203.0.113.7",
		Timestamp: time.Now(),
	}
}

func TestEngine_DefaultAllow(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil)

	dec := e.Evaluate(reqCtx("actor-1"))
	if !dec.Allow {
		t.Errorf("got denied (%q), want allowed", dec.Reason)
	}
}

func TestEngine_BannedActorDenied(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil)

	e.AddTempBan("actor-1", time.Minute)

	dec := e.Evaluate(reqCtx("actor-1"))
	if dec.Allow {
		t.Fatal("got allowed, want denied")
	}
	if dec.Reason != "temporarily suspended" {
		t.Errorf("got reason %q, want %q", dec.Reason, "temporarily suspended")
	}

	// Other actors are unaffected.
	if dec := e.Evaluate(reqCtx("actor-2")); !dec.Allow {
		t.Errorf("unbanned actor: got denied (%q), want allowed", dec.Reason)
	}
}

func TestEngine_BanExpiresLazily(t *testing.T) {
	now := time.Now()
	bans := NewBanList()
	bans.now = func() time.Time { return now }
	e := NewEngine(DefaultConfig(), bans, nil)

	e.AddTempBan("actor-1", 5*time.Minute)
	if !e.IsBanned("actor-1") {
		t.Fatal("got not banned, want banned")
	}

	// Past expiry the ban reads as absent and the entry is cleared.
	now = now.Add(5*time.Minute + time.Second)
	if e.IsBanned("actor-1") {
		t.Fatal("got banned after expiry, want not banned")
	}
	if got := bans.Count(); got != 0 {
		t.Errorf("got %d ban entries after lazy clear, want 0", got)
	}

	if dec := e.Evaluate(reqCtx("actor-1")); !dec.Allow {
		t.Errorf("got denied (%q) after ban expiry, want allowed", dec.Reason)
	}
}

func TestEngine_RemoveTempBan(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil)

	e.AddTempBan("actor-1", time.Minute)
	if !e.RemoveTempBan("actor-1") {
		t.Error("got false removing existing ban, want true")
	}
	if e.RemoveTempBan("actor-1") {
		t.Error("got true removing absent ban, want false")
	}
	if e.IsBanned("actor-1") {
		t.Error("got banned after removal, want not banned")
	}
}

func TestEngine_ViolationEscalation(t *testing.T) {
	emitter := &mockEmitter{}
	e := NewEngine(DefaultConfig(), nil, emitter)

	// Ten violations stay at the threshold.
	for i := 0; i < 10; i++ {
		e.RecordViolation("actor-1")
	}
	if dec := e.Evaluate(reqCtx("actor-1")); !dec.Allow {
		t.Fatalf("at threshold: got denied (%q), want allowed", dec.Reason)
	}

	// The eleventh crosses it: deny, TEMP_BAN action, ban installed.
	e.RecordViolation("actor-1")
	dec := e.Evaluate(reqCtx("actor-1"))
	if dec.Allow {
		t.Fatal("above threshold: got allowed, want denied")
	}
	if len(dec.Actions) != 1 || dec.Actions[0].Kind != event.MitigationTempBan {
		t.Fatalf("got actions %+v, want one TEMP_BAN", dec.Actions)
	}
	if dec.Actions[0].Duration != 5*time.Minute {
		t.Errorf("got ban duration %v, want 5m", dec.Actions[0].Duration)
	}
	if !e.IsBanned("actor-1") {
		t.Error("got not banned after escalation, want banned")
	}

	// The next evaluation hits the higher-priority ban rule instead.
	dec = e.Evaluate(reqCtx("actor-1"))
	if dec.Allow || dec.Reason != "temporarily suspended" {
		t.Errorf("got (%v, %q), want denied with suspension reason", dec.Allow, dec.Reason)
	}
}

func TestEngine_RecordViolationEmitsEvent(t *testing.T) {
	emitter := &mockEmitter{}
	e := NewEngine(DefaultConfig(), nil, emitter)

	if got := e.RecordViolation("actor-1"); got != 1 {
		t.Errorf("got count %d, want 1", got)
	}
	e.RecordViolation("actor-1")

	if got := emitter.count(); got != 2 {
		t.Fatalf("got %d emitted events, want 2", got)
	}
	ev := emitter.last()
	if ev.Type != event.TypeViolationRecorded {
		t.Errorf("got type %q, want %q", ev.Type, event.TypeViolationRecorded)
	}
	if ev.ActorID != "actor-1" {
		t.Errorf("got actor %q, want %q", ev.ActorID, "actor-1")
	}
	if ev.Data["violation_count"] != "2" {
		t.Errorf("got violation_count %q, want %q", ev.Data["violation_count"], "2")
	}
}

func TestEngine_DecayViolations(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil)

	e.RecordViolation("actor-1")
	e.RecordViolation("actor-1")
	e.RecordViolation("actor-2")

	if got := e.DecayViolations(); got != 1 {
		t.Errorf("first decay: got %d removed, want 1", got)
	}
	if got := e.ViolationCount("actor-1"); got != 1 {
		t.Errorf("got actor-1 count %d, want 1", got)
	}
	if got := e.ViolationCount("actor-2"); got != 0 {
		t.Errorf("got actor-2 count %d, want 0", got)
	}

	if got := e.DecayViolations(); got != 1 {
		t.Errorf("second decay: got %d removed, want 1", got)
	}
	if got := e.DecayViolations(); got != 0 {
		t.Errorf("decay of empty state: got %d removed, want 0", got)
	}
}

func TestEngine_DecayRecoversEscalatedActor(t *testing.T) {
	now := time.Now()
	bans := NewBanList()
	bans.now = func() time.Time { return now }
	e := NewEngine(DefaultConfig(), bans, nil)

	for i := 0; i < 11; i++ {
		e.RecordViolation("actor-1")
	}
	if dec := e.Evaluate(reqCtx("actor-1")); dec.Allow {
		t.Fatal("got allowed, want denied after escalation")
	}

	// Decay below the threshold and let the ban run out: the actor is
	// welcome again.
	e.DecayViolations()
	now = now.Add(5*time.Minute + time.Second)

	if dec := e.Evaluate(reqCtx("actor-1")); !dec.Allow {
		t.Errorf("got denied (%q) after decay and ban expiry, want allowed", dec.Reason)
	}
}

func TestEngine_ClearViolations(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil)

	for i := 0; i < 11; i++ {
		e.RecordViolation("actor-1")
	}
	e.ClearViolations("actor-1")

	if got := e.ViolationCount("actor-1"); got != 0 {
		t.Errorf("got count %d, want 0", got)
	}
	if dec := e.Evaluate(reqCtx("actor-1")); !dec.Allow {
		t.Errorf("got denied (%q) after clear, want allowed", dec.Reason)
	}
}

func TestEngine_RulePriorityOrder(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil)

	matchAll := func(event.RequestContext) bool { return true }
	e.AddRule(Rule{
		ID: "low", Priority: 1, Predicate: matchAll,
		Decide: func(event.RequestContext) event.PolicyDecision {
			return event.Denied("low")
		},
	})
	e.AddRule(Rule{
		ID: "high", Priority: 50, Predicate: matchAll,
		Decide: func(event.RequestContext) event.PolicyDecision {
			return event.Denied("high")
		},
	})

	dec := e.Evaluate(reqCtx("actor-1"))
	if dec.Reason != "high" {
		t.Errorf("got reason %q, want %q (higher priority wins)", dec.Reason, "high")
	}
}

func TestEngine_RuleTieBreakByDeclarationOrder(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil)

	matchAll := func(event.RequestContext) bool { return true }
	e.AddRule(Rule{
		ID: "first", Priority: 10, Predicate: matchAll,
		Decide: func(event.RequestContext) event.PolicyDecision {
			return event.Denied("first")
		},
	})
	e.AddRule(Rule{
		ID: "second", Priority: 10, Predicate: matchAll,
		Decide: func(event.RequestContext) event.PolicyDecision {
			return event.Denied("second")
		},
	})

	dec := e.Evaluate(reqCtx("actor-1"))
	if dec.Reason != "first" {
		t.Errorf("got reason %q, want %q (declaration order breaks ties)", dec.Reason, "first")
	}
}

func TestEngine_FirstMatchShortCircuits(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil)

	evaluated := false
	e.AddRule(Rule{
		ID: "winner", Priority: 20,
		Predicate: func(event.RequestContext) bool { return true },
		Decide: func(event.RequestContext) event.PolicyDecision {
			return event.Denied("winner")
		},
	})
	e.AddRule(Rule{
		ID: "shadowed", Priority: 10,
		Predicate: func(event.RequestContext) bool {
			evaluated = true
			return true
		},
		Decide: func(event.RequestContext) event.PolicyDecision {
			return event.Denied("shadowed")
		},
	})

	e.Evaluate(reqCtx("actor-1"))
	if evaluated {
		t.Error("lower-priority predicate ran after a match; want short-circuit")
	}
}

func TestBanList_ExpiryHook(t *testing.T) {
	now := time.Now()
	bans := NewBanList()
	bans.now = func() time.Time { return now }

	var gotActor string
	var gotExpiry time.Time
	calls := 0
	bans.SetExpiryHook(func(actorID string, expiredAt time.Time) {
		gotActor = actorID
		gotExpiry = expiredAt
		calls++
	})

	bans.Add("actor-1", time.Second)
	wantExpiry := now.Add(time.Second)

	// An active ban does not fire the hook.
	if !bans.IsBanned("actor-1") {
		t.Fatal("got not banned, want banned")
	}
	if calls != 0 {
		t.Fatalf("got %d hook calls before expiry, want 0", calls)
	}

	// The lazy clear on read fires it exactly once.
	now = now.Add(2 * time.Second)
	if bans.IsBanned("actor-1") {
		t.Fatal("got banned after expiry, want not banned")
	}
	if calls != 1 {
		t.Fatalf("got %d hook calls, want 1", calls)
	}
	if gotActor != "actor-1" {
		t.Errorf("got actor %q, want %q", gotActor, "actor-1")
	}
	if !gotExpiry.Equal(wantExpiry) {
		t.Errorf("got expiry %v, want %v", gotExpiry, wantExpiry)
	}

	// The entry is gone, so a second read stays quiet.
	bans.IsBanned("actor-1")
	if calls != 1 {
		t.Errorf("got %d hook calls after re-read, want 1", calls)
	}
}

func TestBanList_ExpiryHookFromSnapshot(t *testing.T) {
	now := time.Now()
	bans := NewBanList()
	bans.now = func() time.Time { return now }

	var expired []string
	bans.SetExpiryHook(func(actorID string, expiredAt time.Time) {
		expired = append(expired, actorID)
	})

	bans.Add("actor-1", time.Minute)
	bans.Add("actor-2", time.Second)

	now = now.Add(2 * time.Second)
	if got := len(bans.Active()); got != 1 {
		t.Fatalf("got %d active bans, want 1", got)
	}
	if len(expired) != 1 || expired[0] != "actor-2" {
		t.Errorf("got expired %v, want [actor-2]", expired)
	}
}

func TestEngine_EscalationHook(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil, nil)

	var gotActor string
	var gotDuration time.Duration
	calls := 0
	e.SetEscalationHook(func(actorID string, d time.Duration) {
		gotActor = actorID
		gotDuration = d
		calls++
	})

	for i := 0; i < 11; i++ {
		e.RecordViolation("actor-1")
	}
	if dec := e.Evaluate(reqCtx("actor-1")); dec.Allow {
		t.Fatal("got allowed, want denied after escalation")
	}

	if calls != 1 {
		t.Fatalf("got %d hook calls, want 1", calls)
	}
	if gotActor != "actor-1" {
		t.Errorf("got actor %q, want %q", gotActor, "actor-1")
	}
	if gotDuration != 5*time.Minute {
		t.Errorf("got duration %v, want 5m", gotDuration)
	}

	// Subsequent evaluations hit the ban rule, not the threshold rule.
	e.Evaluate(reqCtx("actor-1"))
	if calls != 1 {
		t.Errorf("got %d hook calls after re-evaluation, want 1", calls)
	}
}

func TestBanList_ActiveSnapshot(t *testing.T) {
	now := time.Now()
	bans := NewBanList()
	bans.now = func() time.Time { return now }

	bans.Add("actor-1", time.Minute)
	bans.Add("actor-2", time.Second)

	now = now.Add(2 * time.Second)
	active := bans.Active()
	if len(active) != 1 {
		t.Fatalf("got %d active bans, want 1", len(active))
	}
	if active[0].ActorID != "actor-1" {
		t.Errorf("got actor %q, want %q", active[0].ActorID, "actor-1")
	}
	// The expired entry was cleared during the snapshot.
	if got := bans.Count(); got != 1 {
		t.Errorf("got %d entries after snapshot, want 1", got)
	}
}
