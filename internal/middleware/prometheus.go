// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/vigil/internal/metrics"
)

// PrometheusMetrics instruments a handler with request count, duration, and
// in-flight gauges.
func PrometheusMetrics(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		start := time.Now()

		wrapper := &statusWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next(wrapper, r)

		metrics.RecordAPIRequest(
			r.Method,
			NormalizeEndpoint(r.URL.Path),
			strconv.Itoa(wrapper.statusCode),
			time.Since(start),
		)
	}
}

// parameterized lists the route prefixes whose final segment is a path
// parameter. Collapsing it keeps the endpoint label cardinality bounded.
var parameterized = []string{
	"/api/v1/sessions/",
	"/api/v1/violations/",
	"/api/v1/bans/",
}

// NormalizeEndpoint collapses path parameters so tokens and actor IDs never
// become metric label values.
func NormalizeEndpoint(path string) string {
	if path == "/api/v1/sessions/validate" {
		return path
	}
	for _, prefix := range parameterized {
		if rest, ok := strings.CutPrefix(path, prefix); ok && rest != "" && !strings.Contains(rest, "/") {
			return prefix + ":id"
		}
	}
	return path
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.statusCode = code
	sw.ResponseWriter.WriteHeader(code)
}
