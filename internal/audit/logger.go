// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package audit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/vigil/internal/logging"
)

// Config holds ledger logger tuning parameters.
type Config struct {
	// Enabled controls whether entries are recorded at all.
	Enabled bool

	// BufferSize is the capacity of the async write buffer.
	BufferSize int

	// Retention is how long entries are kept. Zero keeps them forever.
	Retention time.Duration

	// CleanupInterval is how often retention cleanup runs.
	CleanupInterval time.Duration
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		BufferSize:      256,
		Retention:       0,
		CleanupInterval: time.Hour,
	}
}

// Logger records enforcement actions to the ledger. Writes are buffered and
// flushed by a background goroutine so callers never block on storage; when
// the buffer is full the entry is dropped with a warning.
type Logger struct {
	config    *Config
	store     Store
	eventChan chan *Event
	stopChan  chan struct{}
	wg        sync.WaitGroup

	now func() time.Time
}

// NewLogger creates a ledger logger writing to store and starts its async
// writer. A nil config selects defaults.
func NewLogger(store Store, config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}

	l := &Logger{
		config:    config,
		store:     store,
		eventChan: make(chan *Event, config.BufferSize),
		stopChan:  make(chan struct{}),
		now:       time.Now,
	}

	l.wg.Add(1)
	go l.asyncWriter()

	return l
}

// asyncWriter drains the buffer into the store.
func (l *Logger) asyncWriter() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopChan:
			for {
				select {
				case event := <-l.eventChan:
					l.writeEvent(event)
				default:
					return
				}
			}
		case event := <-l.eventChan:
			l.writeEvent(event)
		}
	}
}

// writeEvent persists one entry.
func (l *Logger) writeEvent(event *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.store.Save(ctx, event); err != nil {
		logging.Error().Err(err).Msg("Failed to save ledger entry")
	}
}

// Log records one entry. Missing IDs and timestamps are filled in.
func (l *Logger) Log(event *Event) {
	if !l.config.Enabled {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}

	select {
	case l.eventChan <- event:
	default:
		logging.Warn().
			Str("event_id", event.ID).
			Str("type", string(event.Type)).
			Msg("Ledger buffer full, dropping entry")
	}
}

// Run executes retention cleanup until ctx is cancelled. It is the service
// body for the supervision tree; with no retention configured it only waits
// for shutdown.
func (l *Logger) Run(ctx context.Context) error {
	if l.config.Retention <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := l.now().Add(-l.config.Retention)
			count, err := l.store.Delete(ctx, cutoff)
			if err != nil {
				logging.Error().Err(err).Msg("Ledger cleanup error")
			} else if count > 0 {
				logging.Info().Int64("count", count).Msg("Expired ledger entries removed")
			}
		}
	}
}

// Close flushes buffered entries and stops the writer. The store itself is
// closed by the caller that opened it.
func (l *Logger) Close() error {
	close(l.stopChan)
	l.wg.Wait()
	return nil
}

// Query returns ledger entries matching the filter.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}

// Count returns the number of ledger entries matching the filter.
func (l *Logger) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return l.store.Count(ctx, filter)
}

// LogBanAdded records an operator-issued ban.
func (l *Logger) LogBanAdded(ctx context.Context, actor Actor, source Source, targetID string, d time.Duration) {
	l.Log(&Event{
		Type:        EventTypeBanAdded,
		Severity:    SeverityWarning,
		Outcome:     OutcomeSuccess,
		Actor:       actor,
		Target:      &Target{ID: targetID, Type: "actor"},
		Source:      source,
		Action:      "ban",
		Description: "Temporary ban issued for " + targetID,
		Metadata:    mustJSON(map[string]interface{}{"duration_seconds": d.Seconds()}),
		RequestID:   getRequestID(ctx),
	})
}

// LogBanEscalated records a ban issued automatically by the violation
// threshold rule.
func (l *Logger) LogBanEscalated(targetID string, d time.Duration) {
	l.Log(&Event{
		Type:        EventTypeBanAdded,
		Severity:    SeverityWarning,
		Outcome:     OutcomeSuccess,
		Actor:       SystemActor(),
		Target:      &Target{ID: targetID, Type: "actor"},
		Action:      "escalate",
		Description: "Violation threshold exceeded, temporary ban issued for " + targetID,
		Metadata: mustJSON(map[string]interface{}{
			"duration_seconds": d.Seconds(),
			"trigger":          "violation-threshold",
		}),
	})
}

// LogBanRemoved records an operator lifting a ban.
func (l *Logger) LogBanRemoved(ctx context.Context, actor Actor, source Source, targetID string) {
	l.Log(&Event{
		Type:        EventTypeBanRemoved,
		Severity:    SeverityWarning,
		Outcome:     OutcomeSuccess,
		Actor:       actor,
		Target:      &Target{ID: targetID, Type: "actor"},
		Source:      source,
		Action:      "unban",
		Description: "Ban lifted for " + targetID,
		RequestID:   getRequestID(ctx),
	})
}

// LogBanExpired records a ban lapsing on its own.
func (l *Logger) LogBanExpired(targetID string, expiredAt time.Time) {
	l.Log(&Event{
		Type:        EventTypeBanExpired,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       SystemActor(),
		Target:      &Target{ID: targetID, Type: "actor"},
		Action:      "expire",
		Description: "Ban expired for " + targetID,
		Metadata:    mustJSON(map[string]string{"expired_at": expiredAt.Format(time.RFC3339)}),
	})
}

// LogViolationRecorded records a violation reported through the API.
func (l *Logger) LogViolationRecorded(ctx context.Context, actor Actor, source Source, targetID string, count int) {
	l.Log(&Event{
		Type:        EventTypeViolationRecorded,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       actor,
		Target:      &Target{ID: targetID, Type: "actor"},
		Source:      source,
		Action:      "record",
		Description: "Violation recorded for " + targetID,
		Metadata:    mustJSON(map[string]int{"violation_count": count}),
		RequestID:   getRequestID(ctx),
	})
}

// LogViolationsCleared records an operator resetting an actor's violations.
func (l *Logger) LogViolationsCleared(ctx context.Context, actor Actor, source Source, targetID string) {
	l.Log(&Event{
		Type:        EventTypeViolationsCleared,
		Severity:    SeverityWarning,
		Outcome:     OutcomeSuccess,
		Actor:       actor,
		Target:      &Target{ID: targetID, Type: "actor"},
		Source:      source,
		Action:      "clear",
		Description: "Violation counters cleared for " + targetID,
		RequestID:   getRequestID(ctx),
	})
}

// LogSessionInvalidated records a session being invalidated through the API.
func (l *Logger) LogSessionInvalidated(ctx context.Context, actor Actor, source Source, token string) {
	l.Log(&Event{
		Type:        EventTypeSessionInvalidated,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       actor,
		Target:      &Target{ID: token, Type: "session"},
		Source:      source,
		Action:      "invalidate",
		Description: "Session invalidated",
		RequestID:   getRequestID(ctx),
	})
}

// LogPipelineStarted records pipeline startup.
func (l *Logger) LogPipelineStarted() {
	l.Log(&Event{
		Type:        EventTypePipelineStarted,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       SystemActor(),
		Action:      "start",
		Description: "Pipeline started",
	})
}

// LogPipelineStopped records pipeline shutdown.
func (l *Logger) LogPipelineStopped() {
	l.Log(&Event{
		Type:        EventTypePipelineStopped,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       SystemActor(),
		Action:      "stop",
		Description: "Pipeline stopped",
	})
}

// mustJSON converts a value to JSON, returning an empty object on error.
func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

type contextKey string

// RequestIDKey is the context key under which the API layer stores the
// request ID.
const RequestIDKey contextKey = "request_id"

// getRequestID extracts the request ID from ctx, if present.
func getRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		return reqID
	}
	return ""
}

// SourceFromRequest builds a Source from an HTTP request, honoring proxy
// headers when present.
func SourceFromRequest(r *http.Request) Source {
	ip := r.RemoteAddr
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip = xff
	} else if xri := r.Header.Get("X-Real-IP"); xri != "" {
		ip = xri
	}

	return Source{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}

// ActorFromSubject builds an Actor from an authenticated token subject.
func ActorFromSubject(subject string, roles []string) Actor {
	return Actor{
		ID:    subject,
		Type:  "user",
		Roles: roles,
	}
}

// SystemActor returns the Actor used for actions Vigil takes on its own.
func SystemActor() Actor {
	return Actor{
		ID:   "system",
		Type: "system",
	}
}
