// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package audit provides the enforcement ledger: a durable record of every
// enforcement action Vigil takes or is asked to take.
//
// # Event Types
//
// Ban lifecycle:
//   - ban.added: a temporary ban issued by an operator or by the violation
//     threshold rule
//   - ban.removed: a ban lifted by an operator
//   - ban.expired: a ban lapsing on its own
//
// Violations:
//   - violation.recorded: a violation reported through the API
//   - violations.cleared: an operator resetting an actor's counters
//
// Sessions and lifecycle:
//   - session.invalidated: a session token revoked through the API
//   - pipeline.started, pipeline.stopped: process lifecycle
//
// # Architecture
//
// The ledger uses a producer-consumer pattern:
//
//	Logger.Log() -> Event Buffer (chan) -> Async Writer -> Store
//
// Events are buffered in a channel so enforcement paths never block on
// storage. A background goroutine drains the buffer; when the buffer is full
// the entry is dropped with a warning.
//
// # Stores
//
// Two Store implementations exist. MemoryStore holds a bounded window of
// recent entries and is the default. A BadgerDB-backed store provides
// durability across restarts and is compiled in with the 'ledger' build tag;
// without the tag, OpenBadgerStore falls back to memory.
//
// # Usage
//
//	store := audit.NewMemoryStore(0)
//	logger := audit.NewLogger(store, audit.DefaultConfig())
//	defer logger.Close()
//
//	logger.LogBanAdded(ctx, audit.ActorFromSubject(claims.Subject, claims.Roles),
//	    audit.SourceFromRequest(r), "player-7", 5*time.Minute)
//
// Querying:
//
//	filter := audit.DefaultQueryFilter()
//	filter.Types = []audit.EventType{audit.EventTypeBanAdded}
//	events, err := logger.Query(ctx, filter)
//
// Retention cleanup runs inside Run, which is supervised alongside the other
// long-lived services. With no retention configured entries are kept until
// the store evicts them.
package audit
