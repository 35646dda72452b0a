// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package pipeline assembles the components into the embeddable facade:
// inline checks, fire-and-forget ingestion, session calls, violation
// recording, and lifecycle. Construction wires consumers; Start and Stop
// only control the timers, so the facade can also run under an external
// supervisor that drives the component loops itself.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/vigil/internal/aggregator"
	"github.com/tomtom215/vigil/internal/alerting"
	"github.com/tomtom215/vigil/internal/bus"
	"github.com/tomtom215/vigil/internal/detection"
	"github.com/tomtom215/vigil/internal/event"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
	"github.com/tomtom215/vigil/internal/policy"
	"github.com/tomtom215/vigil/internal/ratelimit"
	"github.com/tomtom215/vigil/internal/scheduler"
	"github.com/tomtom215/vigil/internal/session"
)

// ErrPipelineStopped indicates the pipeline was stopped; a stopped pipeline
// cannot be restarted.
var ErrPipelineStopped = errors.New("pipeline stopped")

// alertDispatchTimeout bounds one flush-driven alert delivery.
const alertDispatchTimeout = 15 * time.Second

// Config aggregates the tuning of every component.
type Config struct {
	Bus           bus.Config
	RateLimit     ratelimit.Config
	SessionTTL    time.Duration
	Policy        policy.Config
	Pattern       detection.PatternConfig
	Anomaly       detection.AnomalyConfig
	Aggregator    aggregator.Config
	Scheduler     scheduler.Config
	AlertCooldown time.Duration
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Bus:           bus.DefaultConfig(),
		RateLimit:     ratelimit.DefaultConfig(),
		SessionTTL:    session.DefaultTTL,
		Policy:        policy.DefaultConfig(),
		Pattern:       detection.DefaultPatternConfig(),
		Anomaly:       detection.DefaultAnomalyConfig(),
		Aggregator:    aggregator.DefaultConfig(),
		Scheduler:     scheduler.DefaultConfig(),
		AlertCooldown: alerting.DefaultCooldown,
	}
}

// SystemStats is the read-only diagnostics snapshot.
type SystemStats struct {
	Sessions       int              `json:"sessions"`
	PatternActors  int              `json:"pattern_actors"`
	AnomalyActors  int              `json:"anomaly_actors"`
	QueueDepth     int              `json:"queue_depth"`
	DroppedEvents  uint64           `json:"dropped_events"`
	AggregatedLogs aggregator.Stats `json:"aggregated_logs"`
	LastCompaction time.Time        `json:"last_compaction"`
}

// Pipeline is the assembled system. All methods are safe for concurrent
// use.
type Pipeline struct {
	bus        *bus.Bus
	limiter    *ratelimit.Limiter
	sessions   *session.Registry
	engine     *policy.Engine
	pattern    *detection.PatternDetector
	anomaly    *detection.AnomalyAnalyzer
	aggregator *aggregator.Aggregator
	scheduler  *scheduler.Scheduler
	dispatcher *alerting.Dispatcher

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a pipeline and wires the consumers exactly once. Alert sinks
// are optional; with none the dispatcher logs alerts locally.
func New(cfg Config, sinks ...alerting.Notifier) *Pipeline {
	p := &Pipeline{
		bus:        bus.New(cfg.Bus),
		limiter:    ratelimit.New(cfg.RateLimit),
		sessions:   session.NewRegistry(cfg.SessionTTL),
		dispatcher: alerting.NewDispatcher(cfg.AlertCooldown, sinks...),
	}

	p.engine = policy.NewEngine(cfg.Policy, policy.NewBanList(), p.bus)
	p.pattern = detection.NewPatternDetector(cfg.Pattern, p.bus)
	p.anomaly = detection.NewAnomalyAnalyzer(cfg.Anomaly, p.bus)
	p.aggregator = aggregator.New(cfg.Aggregator, p.alertOnFlush)

	p.bus.RegisterConsumer(p.pattern.Name(), p.pattern)
	p.bus.RegisterConsumer(p.anomaly.Name(), p.anomaly)
	p.bus.RegisterConsumer(p.aggregator.Name(), p.aggregator)

	p.scheduler = scheduler.New(cfg.Scheduler, scheduler.Targets{
		Sessions:   p.sessions,
		RateLimit:  p.limiter,
		Pattern:    p.pattern,
		Anomaly:    p.anomaly,
		Aggregator: p.aggregator,
	})

	return p
}

// Start launches the bus drain, the scheduler, and the violation decay.
// It is an idempotent no-op while running and fails with
// ErrPipelineStopped after Stop.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrPipelineStopped
	}
	if p.started {
		return nil
	}
	p.started = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		_ = p.bus.Run(ctx)
	}()
	go func() {
		defer p.wg.Done()
		_ = p.scheduler.Run(ctx)
	}()
	p.engine.StartDecayRoutine(ctx)

	logging.Info().Msg("Pipeline started")
	return nil
}

// Stop halts the timers without flushing in-flight work. It is idempotent
// and safe to call before Start.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		p.wg.Wait()
	}
	logging.Info().
		Int("queue_depth", p.bus.Depth()).
		Uint64("dropped", p.bus.Dropped()).
		Msg("Pipeline stopped")
}

// CheckRequest composes the policy engine and the rate limiter into one
// inline decision: policy rules first, then the per-(actor, class) budget.
// A rate-limited request is denied and recorded as a RATE_LIMIT_EXCEEDED
// event.
func (p *Pipeline) CheckRequest(rc event.RequestContext) event.PolicyDecision {
	start := time.Now()
	if rc.Timestamp.IsZero() {
		rc.Timestamp = start
	}

	dec := p.engine.Evaluate(rc)
	if dec.Allow {
		res := p.limiter.Check(rc.ActorID, ActionClass(rc.Endpoint))
		if !res.Allowed {
			p.EmitEvent(rc.ActorID, event.TypeRateLimitExceeded, event.SeverityMedium, map[string]string{
				"action_class": ActionClass(rc.Endpoint),
				"reset_at":     res.ResetAt.UTC().Format(time.RFC3339),
			}, WithSourceIP(rc.IP), WithEndpoint(rc.Endpoint))

			dec = event.Denied("rate limit exceeded", event.MitigationAction{
				Kind:     event.MitigationRateLimit,
				Duration: time.Until(res.ResetAt),
				Detail:   "budget exhausted for class " + ActionClass(rc.Endpoint),
			})
		}
	}

	metrics.RecordCheck(dec.Allow, time.Since(start))
	return dec
}

// EmitOption customizes an emitted event.
type EmitOption func(*event.SecurityEvent)

// WithSourceIP attaches the sender's IP.
func WithSourceIP(ip string) EmitOption {
	return func(ev *event.SecurityEvent) { ev.SourceIP = ip }
}

// WithEndpoint attaches the endpoint the event originated from.
func WithEndpoint(endpoint string) EmitOption {
	return func(ev *event.SecurityEvent) { ev.Endpoint = endpoint }
}

// EmitEvent constructs and publishes an event. Fire-and-forget: a full
// queue drops the event and increments the dropped counter.
func (p *Pipeline) EmitEvent(actorID, eventType string, severity event.Severity, data map[string]string, opts ...EmitOption) {
	ev := event.NewSecurityEvent(actorID, eventType, severity, data)
	for _, opt := range opts {
		opt(ev)
	}
	p.bus.Publish(ev)
}

// RecordViolation increments the actor's violation counter and returns the
// new count.
func (p *Pipeline) RecordViolation(actorID string) int {
	return p.engine.RecordViolation(actorID)
}

// RegisterSession upserts a session token for the actor.
func (p *Pipeline) RegisterSession(token, actorID string) {
	p.sessions.Register(token, actorID)
}

// ValidateSession resolves a token, sliding its TTL on success.
func (p *Pipeline) ValidateSession(token string) (string, error) {
	return p.sessions.Validate(token)
}

// InvalidateSession removes a session token.
func (p *Pipeline) InvalidateSession(token string) {
	p.sessions.Invalidate(token)
}

// Running reports whether the pipeline has started and not yet stopped.
// The readiness probe keys off this.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started && !p.stopped
}

// Stats returns the diagnostics snapshot. It remains safe after Stop.
func (p *Pipeline) Stats() SystemStats {
	return SystemStats{
		Sessions:       p.sessions.Count(),
		PatternActors:  p.pattern.ActorCount(),
		AnomalyActors:  p.anomaly.ActorCount(),
		QueueDepth:     p.bus.Depth(),
		DroppedEvents:  p.bus.Dropped(),
		AggregatedLogs: p.aggregator.Stats(),
		LastCompaction: p.scheduler.LastCompaction(),
	}
}

// Bus exposes the event bus for diagnostics and deterministic flushes in
// tests.
func (p *Pipeline) Bus() *bus.Bus { return p.bus }

// Scheduler exposes the scheduler so callers can force a compaction.
func (p *Pipeline) Scheduler() *scheduler.Scheduler { return p.scheduler }

// Engine exposes the policy engine for the operations surface and for
// wiring enforcement hooks.
func (p *Pipeline) Engine() *policy.Engine { return p.engine }

// alertOnFlush turns high-severity flush entries into dispatcher alerts.
func (p *Pipeline) alertOnFlush(sum aggregator.Summary) {
	for _, e := range sum.Entries {
		if !e.Severity.AtLeast(event.SeverityHigh) {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), alertDispatchTimeout)
		err := p.dispatcher.Dispatch(ctx, alerting.Alert{
			Level:   alerting.LevelForSeverity(e.Severity),
			Title:   e.Type,
			Message: fmt.Sprintf("%d %s events at severity %s", e.Count, e.Type, e.Severity),
			Metadata: map[string]string{
				"count":      fmt.Sprintf("%d", e.Count),
				"actors":     strings.Join(e.Actors, ","),
				"first_seen": e.FirstSeenAt.UTC().Format(time.RFC3339),
				"last_seen":  e.LastSeenAt.UTC().Format(time.RFC3339),
			},
		})
		cancel()
		if err != nil {
			logging.Error().Err(err).Str("event_type", e.Type).Msg("Flush alert dispatch failed")
		}
	}
}

// ActionClass maps an endpoint to its rate-limit class: the first path
// segment, or "default" when the endpoint is empty.
func ActionClass(endpoint string) string {
	s := strings.TrimPrefix(endpoint, "/")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return "default"
	}
	return s
}
