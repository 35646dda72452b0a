// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package alerting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/vigil/internal/metrics"
)

// WebhookConfig holds webhook sink settings.
type WebhookConfig struct {
	// URL is the endpoint alerts are POSTed to.
	URL string

	// Headers are added to every request (e.g. Authorization).
	Headers map[string]string

	// Timeout bounds one delivery attempt.
	Timeout time.Duration

	// MinInterval paces outbound requests; bursts up to Burst are allowed.
	MinInterval time.Duration
	Burst       int

	// FailureThreshold is the number of consecutive failures that opens
	// the circuit breaker.
	FailureThreshold uint32

	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// DefaultWebhookConfig returns the default webhook settings.
func DefaultWebhookConfig(url string) WebhookConfig {
	return WebhookConfig{
		URL:              url,
		Timeout:          10 * time.Second,
		MinInterval:      time.Second,
		Burst:            3,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// WebhookNotifier POSTs alerts as JSON to a configured endpoint, paced by a
// client-side rate limiter and protected by a circuit breaker so a dead
// endpoint fails fast instead of tying up dispatch.
type WebhookNotifier struct {
	cfg     WebhookConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewWebhookNotifier creates a webhook sink for the given config. Zero
// values fall back to defaults.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	def := DefaultWebhookConfig(cfg.URL)
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = def.MinInterval
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}

	settings := gobreaker.Settings{
		Name:    "alert-webhook",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetCircuitBreakerState(name, int(to))
		},
	}

	return &WebhookNotifier{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(cfg.MinInterval), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// Name implements Notifier.
func (w *WebhookNotifier) Name() string { return "webhook" }

// Send implements Notifier. It waits for the pacing limiter (respecting ctx
// cancellation), then POSTs through the circuit breaker. An open breaker
// counts as a sink failure.
func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	if w.cfg.URL == "" {
		return fmt.Errorf("webhook url not configured")
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook pacing interrupted: %w", err)
	}

	_, err := w.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, w.post(ctx, alert)
	})
	result := "success"
	if err != nil {
		result = "failure"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "rejected"
		}
	}
	metrics.CircuitBreakerRequests.WithLabelValues("alert-webhook", result).Inc()
	if err != nil {
		return fmt.Errorf("webhook delivery: %w", err)
	}
	return nil
}

func (w *WebhookNotifier) post(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range w.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
