// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package session maps opaque session tokens to actor identities with a
// sliding TTL. A record older than the TTL is treated as absent even before
// the periodic sweep removes it.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/vigil/internal/metrics"
)

// DefaultTTL is the sliding session lifetime used when none is configured.
const DefaultTTL = 30 * time.Minute

var (
	// ErrNotFound indicates no record exists for the token.
	ErrNotFound = errors.New("session not found")

	// ErrExpired indicates the record existed but its TTL had elapsed. The
	// record is evicted as a side effect.
	ErrExpired = errors.New("session expired")
)

type record struct {
	actorID    string
	lastSeenAt time.Time
}

// Registry is the in-memory token store. All methods are safe for
// concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*record
	ttl      time.Duration
	now      func() time.Time
}

// NewRegistry creates a registry with the given TTL. Zero or negative TTL
// falls back to DefaultTTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		sessions: make(map[string]*record),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Register creates or overwrites the record for token, stamping it with the
// current time.
func (r *Registry) Register(token, actorID string) {
	r.mu.Lock()
	r.sessions[token] = &record{actorID: actorID, lastSeenAt: r.now()}
	size := len(r.sessions)
	r.mu.Unlock()

	metrics.SessionsActive.Set(float64(size))
}

// Validate resolves token to its actor. A hit refreshes lastSeenAt, sliding
// the expiration forward. A stale record is evicted and reported as
// ErrExpired; an unknown token is ErrNotFound.
func (r *Registry) Validate(token string) (string, error) {
	now := r.now()

	r.mu.Lock()
	rec, ok := r.sessions[token]
	if !ok {
		r.mu.Unlock()
		metrics.RecordSessionValidation("not_found")
		return "", ErrNotFound
	}
	if now.Sub(rec.lastSeenAt) > r.ttl {
		delete(r.sessions, token)
		size := len(r.sessions)
		r.mu.Unlock()

		metrics.SessionsActive.Set(float64(size))
		metrics.RecordSessionValidation("expired")
		return "", ErrExpired
	}
	rec.lastSeenAt = now
	actorID := rec.actorID
	r.mu.Unlock()

	metrics.RecordSessionValidation("valid")
	return actorID, nil
}

// Invalidate removes the record for token if present.
func (r *Registry) Invalidate(token string) {
	r.mu.Lock()
	delete(r.sessions, token)
	size := len(r.sessions)
	r.mu.Unlock()

	metrics.SessionsActive.Set(float64(size))
}

// SweepExpired removes every stale record in one pass and returns how many
// were removed. Intended for the scheduler, not the request path.
func (r *Registry) SweepExpired() int {
	now := r.now()

	r.mu.Lock()
	removed := 0
	for token, rec := range r.sessions {
		if now.Sub(rec.lastSeenAt) > r.ttl {
			delete(r.sessions, token)
			removed++
		}
	}
	size := len(r.sessions)
	r.mu.Unlock()

	metrics.SessionsActive.Set(float64(size))
	if removed > 0 {
		metrics.SessionsSwept.Add(float64(removed))
	}
	return removed
}

// Count returns the number of records currently held, including any that
// are stale but not yet swept.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
