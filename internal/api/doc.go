// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package api is the HTTP surface of the pipeline, routed with Chi.
//
// # Surfaces
//
// Three role-scoped surfaces share /api/v1:
//
//   - Collaborator (role "server"): game backends submit inline checks,
//     events, session lifecycle calls, and violation reports.
//   - Operator (role "operator"): read-only visibility — stats, bans, the
//     enforcement ledger, and the live alert stream.
//   - Admin (role "admin"): ban and violation management.
//
// Authentication is a JWT bearer token; authorization is Casbin RBAC with
// the role hierarchy admin > operator > server. /healthz, /readyz, and
// /metrics are unauthenticated so probes and scrapers work without tokens.
//
// # Middleware
//
// Every request gets a request ID, structured request logging, and security
// headers. API groups add CORS, per-IP rate limiting, Prometheus metrics,
// authentication, and authorization. Handlers decode and encode JSON with
// goccy/go-json and validate request bodies with go-playground/validator.
package api
