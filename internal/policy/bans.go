// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package policy

import (
	"sync"
	"time"

	"github.com/tomtom215/vigil/internal/metrics"
)

// Ban describes one active ban for the operations surface.
type Ban struct {
	ActorID   string    `json:"actor_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BanList tracks temporary bans by actor. A ban is active iff its expiry is
// in the future; expired entries are cleared lazily on read. The list is a
// standalone primitive so the inline-check layer and the policy engine can
// consult the same state.
type BanList struct {
	mu   sync.Mutex
	bans map[string]time.Time
	now  func() time.Time

	// onExpire, when set, is invoked after an expired entry is cleared on
	// read. It runs outside the lock.
	onExpire func(actorID string, expiredAt time.Time)
}

// NewBanList creates an empty ban list.
func NewBanList() *BanList {
	return &BanList{
		bans: make(map[string]time.Time),
		now:  time.Now,
	}
}

// SetExpiryHook registers fn to be called whenever an expired entry is
// cleared on read. fn must not block and must not call back into the list.
func (b *BanList) SetExpiryHook(fn func(actorID string, expiredAt time.Time)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onExpire = fn
}

// Add bans the actor until now+d, overwriting any existing expiry.
func (b *BanList) Add(actorID string, d time.Duration) {
	b.mu.Lock()
	b.bans[actorID] = b.now().Add(d)
	size := len(b.bans)
	b.mu.Unlock()

	metrics.TempBansIssued.Inc()
	metrics.ActiveBans.Set(float64(size))
}

// Remove lifts the actor's ban and reports whether one existed.
func (b *BanList) Remove(actorID string) bool {
	b.mu.Lock()
	_, ok := b.bans[actorID]
	delete(b.bans, actorID)
	size := len(b.bans)
	b.mu.Unlock()

	metrics.ActiveBans.Set(float64(size))
	return ok
}

// IsBanned reports whether the actor has an active ban. An expired entry is
// removed as a side effect of the read.
func (b *BanList) IsBanned(actorID string) bool {
	b.mu.Lock()
	expiresAt, ok := b.bans[actorID]
	if !ok {
		b.mu.Unlock()
		return false
	}
	if !b.now().Before(expiresAt) {
		delete(b.bans, actorID)
		size := len(b.bans)
		hook := b.onExpire
		b.mu.Unlock()

		metrics.ActiveBans.Set(float64(size))
		if hook != nil {
			hook(actorID, expiresAt)
		}
		return false
	}
	b.mu.Unlock()
	return true
}

// Active returns a snapshot of the currently active bans, clearing expired
// entries as it goes.
func (b *BanList) Active() []Ban {
	now := b.now()

	b.mu.Lock()
	active := make([]Ban, 0, len(b.bans))
	var expired []Ban
	for actorID, expiresAt := range b.bans {
		if !now.Before(expiresAt) {
			delete(b.bans, actorID)
			expired = append(expired, Ban{ActorID: actorID, ExpiresAt: expiresAt})
			continue
		}
		active = append(active, Ban{ActorID: actorID, ExpiresAt: expiresAt})
	}
	size := len(b.bans)
	hook := b.onExpire
	b.mu.Unlock()

	metrics.ActiveBans.Set(float64(size))
	if hook != nil {
		for _, ban := range expired {
			hook(ban.ActorID, ban.ExpiresAt)
		}
	}
	return active
}

// Count returns the number of entries currently held, including any that
// expired but have not been read since.
func (b *BanList) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bans)
}
