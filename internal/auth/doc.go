// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package auth provides bearer-token authentication for the Vigil API.
//
// Game servers and operators authenticate with HMAC-signed JWTs carrying a
// subject and a roles claim. The Manager issues and validates tokens; the
// Middleware wraps handlers, rejects missing or invalid tokens, and exposes
// the validated claims through the request context for the authz layer.
//
// Auth mode "none" is a development switch: requests pass with a synthetic
// admin subject. Config validation refuses it in production.
package auth
