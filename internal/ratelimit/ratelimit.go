// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package ratelimit implements fixed-window request counting keyed by
// (actor, action class). Buckets reset lazily on first access past their
// window, so the periodic sweep exists only to reclaim memory, never for
// correctness.
package ratelimit

import (
	"sync"
	"time"

	"github.com/tomtom215/vigil/internal/metrics"
)

// ClassLimit is the budget for one action class.
type ClassLimit struct {
	// MaxRequests is the number of requests permitted per window.
	MaxRequests int

	// Window is the fixed counting window.
	Window time.Duration
}

// Config maps action classes to limits. Unknown classes fall back to
// Default.
type Config struct {
	Classes map[string]ClassLimit
	Default ClassLimit
}

// DefaultConfig returns the built-in class table. Class names follow the
// gameplay actions the pipeline protects: chat floods, trade spam, loot
// rolls, and authentication attempts.
func DefaultConfig() Config {
	return Config{
		Classes: map[string]ClassLimit{
			"chat":  {MaxRequests: 20, Window: 10 * time.Second},
			"trade": {MaxRequests: 10, Window: time.Minute},
			"loot":  {MaxRequests: 30, Window: 10 * time.Second},
			"auth":  {MaxRequests: 10, Window: time.Minute},
		},
		Default: ClassLimit{MaxRequests: 60, Window: time.Minute},
	}
}

// Result is the outcome of one rate-limit check.
type Result struct {
	// Allowed reports whether the request fits the window budget.
	Allowed bool

	// Remaining is how many more requests fit in the current window.
	Remaining int

	// ResetAt is when the current window ends.
	ResetAt time.Time
}

type bucket struct {
	count   int
	resetAt time.Time
}

// Limiter counts requests per (actor, action class) in fixed windows.
// All methods are safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	cfg     Config
	now     func() time.Time
}

// New creates a limiter with the given configuration. A nil class map or
// zero default falls back to DefaultConfig values.
func New(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.Classes == nil {
		cfg.Classes = def.Classes
	}
	if cfg.Default.MaxRequests <= 0 || cfg.Default.Window <= 0 {
		cfg.Default = def.Default
	}

	return &Limiter{
		buckets: make(map[string]*bucket),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Check counts one request for (actorID, actionClass) and reports whether
// it fits the class budget. A missing or elapsed bucket is replaced with a
// fresh window before counting.
func (l *Limiter) Check(actorID, actionClass string) Result {
	limit := l.limitFor(actionClass)
	key := actorID + ":" + actionClass
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(limit.Window)}
		l.buckets[key] = b
	}
	b.count++
	count := b.count
	resetAt := b.resetAt
	size := len(l.buckets)
	l.mu.Unlock()

	metrics.RateLimitBuckets.Set(float64(size))

	remaining := limit.MaxRequests - count
	if remaining < 0 {
		remaining = 0
	}

	allowed := count <= limit.MaxRequests
	if !allowed {
		metrics.RateLimitRejections.WithLabelValues(actionClass).Inc()
	}

	return Result{Allowed: allowed, Remaining: remaining, ResetAt: resetAt}
}

// Sweep removes buckets whose window has elapsed and returns how many were
// removed. Expired buckets are already treated as absent on access, so this
// only bounds memory.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	removed := 0
	for key, b := range l.buckets {
		if !now.Before(b.resetAt) {
			delete(l.buckets, key)
			removed++
		}
	}
	size := len(l.buckets)
	l.mu.Unlock()

	metrics.RateLimitBuckets.Set(float64(size))
	return removed
}

// Size returns the current number of tracked buckets.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) limitFor(actionClass string) ClassLimit {
	if limit, ok := l.cfg.Classes[actionClass]; ok {
		return limit
	}
	return l.cfg.Default
}
