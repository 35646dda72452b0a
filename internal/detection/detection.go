// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package detection holds the bus consumers that turn raw event streams
// into suspicion: a sequence-matching pattern detector and a sampled
// frequency anomaly analyzer. Both keep bounded per-actor state and emit
// alert events back onto the bus when scores cross their thresholds.
package detection

import (
	"github.com/tomtom215/vigil/internal/event"
)

// Emitter publishes detector findings back onto the pipeline. *bus.Bus
// satisfies it.
type Emitter interface {
	Publish(ev *event.SecurityEvent)
}
