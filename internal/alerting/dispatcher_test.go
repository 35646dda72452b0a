// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/vigil/internal/event"
)

// mockNotifier implements Notifier for testing.
type mockNotifier struct {
	mu     sync.Mutex
	name   string
	alerts []Alert
	err    error
}

func (m *mockNotifier) Name() string { return m.name }

func (m *mockNotifier) Send(_ context.Context, alert Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
	return m.err
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

func testAlert(level Level, title string) Alert {
	return Alert{
		Level:   level,
		Title:   title,
		Message: "suspicious activity detected",
	}
}

func TestDispatcher_DeliversToAllSinks(t *testing.T) {
	first := &mockNotifier{name: "first"}
	second := &mockNotifier{name: "second"}
	d := NewDispatcher(time.Minute, first, second)

	if err := d.Dispatch(context.Background(), testAlert(LevelWarning, "pattern alert")); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if got := first.count(); got != 1 {
		t.Errorf("first sink got %d alerts, want 1", got)
	}
	if got := second.count(); got != 1 {
		t.Errorf("second sink got %d alerts, want 1", got)
	}
}

func TestDispatcher_ThrottlesIdenticalWithinCooldown(t *testing.T) {
	now := time.Now()
	sink := &mockNotifier{name: "sink"}
	d := NewDispatcher(time.Minute, sink)
	d.now = func() time.Time { return now }

	alert := testAlert(LevelWarning, "pattern alert")
	if err := d.Dispatch(context.Background(), alert); err != nil {
		t.Fatalf("first Dispatch failed: %v", err)
	}

	// Identical (level, title) inside the cooldown: suppressed, success.
	now = now.Add(30 * time.Second)
	if err := d.Dispatch(context.Background(), alert); err != nil {
		t.Fatalf("throttled Dispatch failed: %v", err)
	}
	if got := sink.count(); got != 1 {
		t.Fatalf("got %d deliveries, want 1 (second was throttled)", got)
	}

	// Past the cooldown it goes out again.
	now = now.Add(31 * time.Second)
	if err := d.Dispatch(context.Background(), alert); err != nil {
		t.Fatalf("post-cooldown Dispatch failed: %v", err)
	}
	if got := sink.count(); got != 2 {
		t.Errorf("got %d deliveries, want 2", got)
	}
}

func TestDispatcher_DifferentKeysNotThrottled(t *testing.T) {
	sink := &mockNotifier{name: "sink"}
	d := NewDispatcher(time.Minute, sink)

	ctx := context.Background()
	d.Dispatch(ctx, testAlert(LevelWarning, "pattern alert"))
	d.Dispatch(ctx, testAlert(LevelWarning, "anomaly alert"))
	d.Dispatch(ctx, testAlert(LevelCritical, "pattern alert"))

	if got := sink.count(); got != 3 {
		t.Errorf("got %d deliveries, want 3 (distinct keys are independent)", got)
	}
}

func TestDispatcher_NoSinkReportsSuccess(t *testing.T) {
	d := NewDispatcher(time.Minute)

	if err := d.Dispatch(context.Background(), testAlert(LevelCritical, "anomaly alert")); err != nil {
		t.Errorf("Dispatch with no sink: got %v, want nil", err)
	}
}

func TestDispatcher_SinkErrorReportedButSiblingsStillRun(t *testing.T) {
	broken := &mockNotifier{name: "broken", err: errors.New("endpoint down")}
	healthy := &mockNotifier{name: "healthy"}
	d := NewDispatcher(time.Minute, broken, healthy)

	err := d.Dispatch(context.Background(), testAlert(LevelCritical, "anomaly alert"))
	if err == nil {
		t.Error("got nil, want sink error surfaced")
	}
	if got := healthy.count(); got != 1 {
		t.Errorf("healthy sink got %d alerts, want 1", got)
	}
}

func TestDispatcher_StampsTimestamp(t *testing.T) {
	sink := &mockNotifier{name: "sink"}
	d := NewDispatcher(time.Minute, sink)

	d.Dispatch(context.Background(), testAlert(LevelInfo, "stats"))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.alerts[0].Timestamp.IsZero() {
		t.Error("alert timestamp was not stamped")
	}
}

func TestLevelForSeverity(t *testing.T) {
	tests := []struct {
		sev  event.Severity
		want Level
	}{
		{event.SeverityLow, LevelInfo},
		{event.SeverityMedium, LevelInfo},
		{event.SeverityHigh, LevelWarning},
		{event.SeverityCritical, LevelCritical},
	}
	for _, tt := range tests {
		if got := LevelForSeverity(tt.sev); got != tt.want {
			t.Errorf("LevelForSeverity(%q): got %q, want %q", tt.sev, got, tt.want)
		}
	}
}
