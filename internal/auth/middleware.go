// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tomtom215/vigil/internal/logging"
)

type contextKey string

// ClaimsContextKey is where Authenticate stores the caller's claims.
const ClaimsContextKey contextKey = "claims"

// ModeNone disables authentication; ModeJWT requires a bearer token.
const (
	ModeNone = "none"
	ModeJWT  = "jwt"
)

// anonymousClaims is injected in none mode so downstream authorization stays
// inert; the synthetic subject carries the admin role.
var anonymousClaims = &Claims{
	Roles:            []string{"admin"},
	RegisteredClaims: jwt.RegisteredClaims{Subject: "anonymous"},
}

// Middleware enforces bearer authentication on API handlers.
type Middleware struct {
	manager *Manager
	mode    string
}

// NewMiddleware creates authentication middleware. In ModeNone every request
// passes with a synthetic admin subject; manager may be nil in that mode.
func NewMiddleware(manager *Manager, mode string) *Middleware {
	return &Middleware{
		manager: manager,
		mode:    mode,
	}
}

// Authenticate validates the bearer token and stores the claims in the
// request context.
func (m *Middleware) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.mode == ModeNone {
			ctx := context.WithValue(r.Context(), ClaimsContextKey, anonymousClaims)
			next(w, r.WithContext(ctx))
			return
		}

		token, err := extractBearerToken(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		claims, err := m.manager.ValidateToken(token)
		if err != nil {
			logging.Error().Err(err).Msg("Token validation failed")
			http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// FromContext returns the authenticated claims, or nil when the request was
// not authenticated.
func FromContext(ctx context.Context) *Claims {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// extractBearerToken pulls the token from the Authorization header or the
// token cookie.
func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		cookie, err := r.Cookie("token")
		if err != nil {
			return "", fmt.Errorf("unauthorized: missing token")
		}
		return cookie.Value, nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("unauthorized: invalid authorization header")
	}

	return parts[1], nil
}
