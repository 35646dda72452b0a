// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package policy evaluates inline allow/deny rules and tracks the ban and
// violation state that feeds them. Rule evaluation is first-match-wins over
// a list sorted by descending priority; ties keep declaration order.
package policy

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/tomtom215/vigil/internal/event"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// Emitter publishes events back onto the pipeline. *bus.Bus satisfies it.
type Emitter interface {
	Publish(ev *event.SecurityEvent)
}

// Rule is one policy rule. Predicate decides whether the rule applies;
// Decide produces the decision once it has.
type Rule struct {
	ID       string
	Priority int

	Predicate func(rc event.RequestContext) bool
	Decide    func(rc event.RequestContext) event.PolicyDecision
}

// Config holds policy engine tuning parameters.
type Config struct {
	// ViolationThreshold is the count beyond which an actor is temp-banned.
	ViolationThreshold int

	// TempBanDuration is how long an escalation ban lasts.
	TempBanDuration time.Duration

	// DecayInterval is how often every violation counter decrements by one.
	DecayInterval time.Duration
}

// DefaultConfig returns the default policy configuration.
func DefaultConfig() Config {
	return Config{
		ViolationThreshold: 10,
		TempBanDuration:    5 * time.Minute,
		DecayInterval:      time.Minute,
	}
}

// Engine owns the rule list, violation counters, and the ban list. All
// methods are safe for concurrent use.
type Engine struct {
	mu         sync.Mutex
	rules      []Rule
	violations map[string]int

	bans    *BanList
	emitter Emitter
	cfg     Config

	// onEscalation, when set, is invoked after the violation threshold
	// rule installs a ban.
	onEscalation func(actorID string, d time.Duration)
}

// NewEngine creates an engine with the built-in escalation rules installed.
// emitter may be nil; violation events are then dropped silently.
func NewEngine(cfg Config, bans *BanList, emitter Emitter) *Engine {
	def := DefaultConfig()
	if cfg.ViolationThreshold <= 0 {
		cfg.ViolationThreshold = def.ViolationThreshold
	}
	if cfg.TempBanDuration <= 0 {
		cfg.TempBanDuration = def.TempBanDuration
	}
	if cfg.DecayInterval <= 0 {
		cfg.DecayInterval = def.DecayInterval
	}
	if bans == nil {
		bans = NewBanList()
	}

	e := &Engine{
		violations: make(map[string]int),
		bans:       bans,
		emitter:    emitter,
		cfg:        cfg,
	}
	e.installBuiltinRules()
	return e
}

// installBuiltinRules registers the two escalation rules: active ban wins,
// then the violation threshold which installs a fresh temp ban as a side
// effect of matching.
func (e *Engine) installBuiltinRules() {
	e.AddRule(Rule{
		ID:       "banned-actor",
		Priority: 100,
		Predicate: func(rc event.RequestContext) bool {
			return e.bans.IsBanned(rc.ActorID)
		},
		Decide: func(rc event.RequestContext) event.PolicyDecision {
			return event.Denied("temporarily suspended")
		},
	})
	e.AddRule(Rule{
		ID:       "violation-threshold",
		Priority: 90,
		Predicate: func(rc event.RequestContext) bool {
			return e.ViolationCount(rc.ActorID) > e.cfg.ViolationThreshold
		},
		Decide: func(rc event.RequestContext) event.PolicyDecision {
			e.AddTempBan(rc.ActorID, e.cfg.TempBanDuration)
			e.notifyEscalation(rc.ActorID, e.cfg.TempBanDuration)
			return event.Denied("violation threshold exceeded", event.MitigationAction{
				Kind:     event.MitigationTempBan,
				Duration: e.cfg.TempBanDuration,
				Detail:   "violation count exceeded " + strconv.Itoa(e.cfg.ViolationThreshold),
			})
		},
	})
}

// SetEscalationHook registers fn to be called whenever the violation
// threshold rule installs a ban. fn must not block.
func (e *Engine) SetEscalationHook(fn func(actorID string, d time.Duration)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onEscalation = fn
}

// notifyEscalation invokes the escalation hook outside the lock, if set.
func (e *Engine) notifyEscalation(actorID string, d time.Duration) {
	e.mu.Lock()
	hook := e.onEscalation
	e.mu.Unlock()

	if hook != nil {
		hook(actorID, d)
	}
}

// AddRule registers a rule and re-sorts by descending priority. Equal
// priorities keep their registration order.
func (e *Engine) AddRule(r Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rules = append(e.rules, r)
	sort.SliceStable(e.rules, func(i, j int) bool {
		return e.rules[i].Priority > e.rules[j].Priority
	})
}

// Evaluate runs the rules in order and returns the first match's decision,
// or default-allow when nothing matches. Decisions are computed fresh on
// every call.
func (e *Engine) Evaluate(rc event.RequestContext) event.PolicyDecision {
	e.mu.Lock()
	rules := make([]Rule, len(e.rules))
	copy(rules, e.rules)
	e.mu.Unlock()

	for _, r := range rules {
		if r.Predicate == nil || !r.Predicate(rc) {
			continue
		}
		metrics.PolicyRuleMatches.WithLabelValues(r.ID).Inc()
		if r.Decide == nil {
			return event.Denied("rule " + r.ID)
		}
		return r.Decide(rc)
	}
	return event.Allowed()
}

// RecordViolation increments the actor's violation counter and emits a
// VIOLATION_RECORDED event. It returns the new count.
func (e *Engine) RecordViolation(actorID string) int {
	e.mu.Lock()
	e.violations[actorID]++
	count := e.violations[actorID]
	e.mu.Unlock()

	metrics.ViolationsRecorded.Inc()

	if e.emitter != nil {
		ev := event.NewSecurityEvent(actorID, event.TypeViolationRecorded, event.SeverityMedium, map[string]string{
			"violation_count": strconv.Itoa(count),
		})
		e.emitter.Publish(ev)
	}
	return count
}

// ClearViolations resets the actor's counter to zero.
func (e *Engine) ClearViolations(actorID string) {
	e.mu.Lock()
	delete(e.violations, actorID)
	e.mu.Unlock()
}

// ViolationCount returns the actor's current counter.
func (e *Engine) ViolationCount(actorID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.violations[actorID]
}

// DecayViolations decrements every counter by one, removing entries that
// reach zero. It returns the number of entries removed.
func (e *Engine) DecayViolations() int {
	e.mu.Lock()
	removed := 0
	for actorID, count := range e.violations {
		if count <= 1 {
			delete(e.violations, actorID)
			removed++
			continue
		}
		e.violations[actorID] = count - 1
	}
	e.mu.Unlock()
	return removed
}

// AddTempBan bans the actor for the given duration.
func (e *Engine) AddTempBan(actorID string, d time.Duration) {
	e.bans.Add(actorID, d)
}

// RemoveTempBan lifts the actor's ban. It reports whether a ban existed.
func (e *Engine) RemoveTempBan(actorID string) bool {
	return e.bans.Remove(actorID)
}

// IsBanned reports whether the actor has an active ban.
func (e *Engine) IsBanned(actorID string) bool {
	return e.bans.IsBanned(actorID)
}

// Bans exposes the underlying ban list for the operations surface.
func (e *Engine) Bans() *BanList {
	return e.bans
}

// StartDecayRoutine launches the periodic violation decay in a background
// goroutine that stops when ctx is cancelled.
func (e *Engine) StartDecayRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(e.cfg.DecayInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := e.DecayViolations(); removed > 0 {
					logging.Debug().
						Int("removed", removed).
						Msg("Violation counters decayed")
				}
			}
		}
	}()
}
