// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package services

import (
	"context"
)

// Ledger interface matches *audit.Logger's Run method.
//
// Run executes the retention sweeper until the context is canceled. The
// logger's async writer is NOT part of this service: it starts at
// construction and is stopped by Close, because restarting it would drop
// the buffered tail it exists to preserve.
//
// Satisfied by *audit.Logger from internal/audit/logger.go:
//   - Run(ctx context.Context) error
type Ledger interface {
	Run(ctx context.Context) error
}

// LedgerService wraps the ledger retention sweeper as a supervised service.
//
// The sweeper is stateless between ticks, so a supervisor restart after a
// crash costs nothing.
//
// Example usage:
//
//	ledger := audit.NewLogger(store, auditCfg)
//	svc := services.NewLedgerService(ledger)
//	tree.AddPipelineService(svc)
type LedgerService struct {
	ledger Ledger
	name   string
}

// NewLedgerService creates a new ledger service wrapper.
func NewLedgerService(ledger Ledger) *LedgerService {
	return &LedgerService{
		ledger: ledger,
		name:   "ledger-retention",
	}
}

// Serve implements suture.Service.
//
// This method delegates to ledger.Run which:
//  1. Ticks on the configured cleanup interval
//  2. Deletes entries older than the retention window
//  3. Returns when the context is canceled
//
// With no retention configured, Run only waits for shutdown.
func (l *LedgerService) Serve(ctx context.Context) error {
	return l.ledger.Run(ctx)
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (l *LedgerService) String() string {
	return l.name
}
