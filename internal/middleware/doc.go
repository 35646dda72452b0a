// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package middleware provides transport-agnostic HTTP middleware.

The package holds the middleware that does not depend on the router: the
Prometheus request instrumentation and a latency monitor for the stats
surface. Router-specific middleware (CORS, rate limiting, request IDs,
security headers) lives in internal/api next to the Chi wiring.

Middleware Stack:

A typical API group runs:

	request ID → security headers → CORS → rate limit →
	    middleware.PrometheusMetrics → authenticate → authorize → handler

Usage Example - Prometheus Metrics:

	r.Use(chiMiddleware(middleware.PrometheusMetrics))

Usage Example - Performance Monitoring:

	perfMon := middleware.NewPerformanceMonitor(1000)
	r.Use(chiMiddleware(perfMon.Middleware))
	stats := perfMon.Stats() // p50/p95/p99 for the stats endpoint

Thread Safety:

All components are safe for concurrent use: the Prometheus collectors are
atomic, and the performance monitor guards its sample ring with a mutex.
*/
package middleware
