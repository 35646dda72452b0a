// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package alerting delivers critical findings to external sinks with
// client-side throttling. Identical (level, title) alerts inside the
// cooldown window are suppressed so a hot detector cannot turn into a
// notification storm. Delivery is at-most-once: a sink failure is logged
// and reported, never retried.
package alerting

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/vigil/internal/event"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// Level grades an alert for routing and display.
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelCritical Level = "CRITICAL"
)

// LevelForSeverity maps event severities onto alert levels.
func LevelForSeverity(sev event.Severity) Level {
	switch sev {
	case event.SeverityCritical:
		return LevelCritical
	case event.SeverityHigh:
		return LevelWarning
	default:
		return LevelInfo
	}
}

// Alert is one outbound notification.
type Alert struct {
	Level     Level             `json:"level"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Notifier delivers alerts to one external sink.
type Notifier interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Send delivers one alert. Errors are reported to the caller but never
	// retried.
	Send(ctx context.Context, alert Alert) error
}

// DefaultCooldown is the suppression window for identical alerts.
const DefaultCooldown = time.Minute

// suppressionLimit bounds the throttle map; beyond it, expired entries are
// pruned inline.
const suppressionLimit = 256

type suppressKey struct {
	level Level
	title string
}

// Dispatcher fans alerts out to the registered sinks. With no sinks it
// degrades to logging alerts locally and reporting success. All methods
// are safe for concurrent use.
type Dispatcher struct {
	mu        sync.Mutex
	lastSent  map[suppressKey]time.Time
	notifiers []Notifier

	cooldown time.Duration
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. Zero cooldown falls back to
// DefaultCooldown.
func NewDispatcher(cooldown time.Duration, notifiers ...Notifier) *Dispatcher {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Dispatcher{
		lastSent:  make(map[suppressKey]time.Time),
		notifiers: notifiers,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// RegisterNotifier adds a sink.
func (d *Dispatcher) RegisterNotifier(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers = append(d.notifiers, n)
}

// Dispatch sends the alert to every sink. A repeat of the same (level,
// title) inside the cooldown window is suppressed and reported as success.
// Sink errors are joined and returned; partial delivery is not retried.
func (d *Dispatcher) Dispatch(ctx context.Context, alert Alert) error {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = d.now()
	}
	key := suppressKey{level: alert.Level, title: alert.Title}
	now := d.now()

	d.mu.Lock()
	if last, ok := d.lastSent[key]; ok && now.Sub(last) < d.cooldown {
		d.mu.Unlock()
		metrics.AlertsThrottled.Inc()
		logging.Debug().
			Str("level", string(alert.Level)).
			Str("title", alert.Title).
			Msg("Alert throttled")
		return nil
	}
	d.lastSent[key] = now
	if len(d.lastSent) > suppressionLimit {
		d.pruneLocked(now)
	}
	notifiers := make([]Notifier, len(d.notifiers))
	copy(notifiers, d.notifiers)
	d.mu.Unlock()

	if len(notifiers) == 0 {
		logging.Warn().
			Str("level", string(alert.Level)).
			Str("title", alert.Title).
			Str("message", alert.Message).
			Msg("Alert raised (no sink configured)")
		metrics.AlertsDispatched.WithLabelValues(string(alert.Level)).Inc()
		return nil
	}

	var errs []error
	for _, n := range notifiers {
		start := time.Now()
		err := n.Send(ctx, alert)
		metrics.RecordAlertDispatch(string(alert.Level), time.Since(start), err)
		if err != nil {
			errs = append(errs, err)
			logging.Error().
				Err(err).
				Str("sink", n.Name()).
				Str("title", alert.Title).
				Msg("Alert delivery failed")
		}
	}
	return errors.Join(errs...)
}

// pruneLocked drops suppression entries older than the cooldown. Caller
// holds d.mu.
func (d *Dispatcher) pruneLocked(now time.Time) {
	for key, last := range d.lastSent {
		if now.Sub(last) >= d.cooldown {
			delete(d.lastSent, key)
		}
	}
}
