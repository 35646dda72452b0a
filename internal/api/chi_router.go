// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/vigil/internal/auth"
	"github.com/tomtom215/vigil/internal/authz"
	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/middleware"
)

// chiMiddleware adapts http.HandlerFunc middleware to Chi's func(http.Handler) http.Handler.
// This allows the auth and metrics middleware to work with Chi's r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// chiPathValue middleware injects Chi URL params into the request so handlers
// using r.PathValue() continue to work. This bridges Chi's chi.URLParam()
// with Go 1.22+'s r.PathValue().
func chiPathValue(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		if rctx != nil {
			for i, key := range rctx.URLParams.Keys {
				if i < len(rctx.URLParams.Values) {
					r.SetPathValue(key, rctx.URLParams.Values[i])
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Router sets up HTTP routes using Chi router.
type Router struct {
	handler         *Handler
	authMiddleware  *auth.Middleware
	authzMiddleware *authz.Middleware
	chiMiddleware   *ChiMiddleware
}

// NewRouter creates a router over the handler and the auth stack. The Chi
// middleware factory (CORS, rate limits) is derived from the security
// configuration section.
func NewRouter(handler *Handler, authMW *auth.Middleware, authzMW *authz.Middleware, cfg *config.Config) *Router {
	var sec *config.SecurityConfig
	if cfg != nil {
		sec = &cfg.Security
	}

	return &Router{
		handler:         handler,
		authMiddleware:  authMW,
		authzMiddleware: authzMW,
		chiMiddleware:   NewChiMiddlewareFromSecurity(sec),
	}
}

// SetupChi configures all HTTP routes using Chi router.
//
// Route surfaces by role (enforced by the casbin policy, not by the router):
//   - server: check, events, sessions, violations (collaborator ingest)
//   - operator: stats, bans (read), audit, alert stream
//   - admin: ban and violation management
//
// Health probes and Prometheus metrics are unauthenticated: probes and
// scrapers cannot carry bearer tokens.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	// Applied to ALL routes in order
	r.Use(RequestIDWithLogging())      // Add X-Request-ID header with logging context
	r.Use(HTTPDebugLogging())          // Diagnostic logging (enabled via VIGIL_HTTP_DEBUG=true)
	r.Use(chimiddleware.RealIP)        // Extract real IP from X-Forwarded-For
	r.Use(chimiddleware.Recoverer)     // Recover from panics
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight

	// ========================
	// Health Endpoints
	// ========================
	// Permissive rate limiting (1000/min): allows frequent monitoring while
	// preventing abuse.
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/healthz", router.handler.Healthz)
		r.Get("/readyz", router.handler.Readyz)
	})

	// ========================
	// Ingest Endpoints (server role)
	// ========================
	// The hot path: game servers call check inline and emit events at match
	// rate. Permissive HTTP throttle; real backpressure is the event bus.
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitIngest())
			r.Use(APISecurityHeaders())
			r.Use(chiMiddleware(middleware.PrometheusMetrics))
			r.Use(router.handler.perfMon.Middleware)
			r.Use(chiMiddleware(router.authMiddleware.Authenticate))
			r.Use(chiMiddleware(router.authzMiddleware.AuthorizeRequest))

			r.Post("/check", router.handler.Check)
			r.Post("/events", router.handler.EmitEvent)
			r.Post("/sessions", router.handler.RegisterSession)
			r.Post("/sessions/validate", router.handler.ValidateSession)
			r.With(chiPathValue).Delete("/sessions/{token}", router.handler.InvalidateSession)
			r.With(chiPathValue).Post("/violations/{actorID}", router.handler.RecordViolation)
		})

		// ========================
		// Operations Endpoints (operator role)
		// ========================
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Use(APISecurityHeaders())
			r.Use(chiMiddleware(middleware.PrometheusMetrics))
			r.Use(router.handler.perfMon.Middleware)
			r.Use(chiMiddleware(router.authMiddleware.Authenticate))
			r.Use(chiMiddleware(router.authzMiddleware.AuthorizeRequest))

			r.Get("/stats", router.handler.Stats)
			r.Get("/bans", router.handler.ListBans)
			r.Get("/audit", router.handler.AuditQuery)
		})

		// ========================
		// Alert Stream (operator role)
		// ========================
		// Rate limit bounds the upgrade rate, not streamed messages. No
		// status-capturing middleware here: wrappers hide http.Hijacker
		// from the upgrader, and connection-lifetime durations would
		// poison the latency percentiles anyway. The hub keeps its own
		// websocket metrics.
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitStream())
			r.Use(APISecurityHeaders())
			r.Use(chiMiddleware(router.authMiddleware.Authenticate))
			r.Use(chiMiddleware(router.authzMiddleware.AuthorizeRequest))

			r.Get("/alerts/stream", router.handler.AlertStream)
		})

		// ========================
		// Admin Endpoints (admin role)
		// ========================
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitWrite())
			r.Use(APISecurityHeaders())
			r.Use(chiMiddleware(middleware.PrometheusMetrics))
			r.Use(router.handler.perfMon.Middleware)
			r.Use(chiMiddleware(router.authMiddleware.Authenticate))
			r.Use(chiMiddleware(router.authzMiddleware.AuthorizeRequest))

			r.Post("/bans", router.handler.AddBan)
			r.With(chiPathValue).Delete("/bans/{actorID}", router.handler.RemoveBan)
			r.With(chiPathValue).Delete("/violations/{actorID}", router.handler.ClearViolations)
		})
	})

	// ========================
	// Observability
	// ========================
	r.Handle("/metrics", promhttp.Handler())

	return r
}
