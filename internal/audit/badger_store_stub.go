// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

//go:build !ledger

package audit

import (
	"github.com/tomtom215/vigil/internal/logging"
)

// OpenBadgerStore falls back to an in-memory store when the binary was built
// without the 'ledger' tag. Entries are not durable across restarts.
func OpenBadgerStore(path string) (*MemoryStore, error) {
	logging.Warn().
		Str("path", path).
		Msg("Durable ledger requires a build with -tags ledger. Entries are held in memory only.")
	return NewMemoryStore(0), nil
}
