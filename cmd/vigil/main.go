// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package main is the entry point for the Vigil server application.
//
// Vigil is a real-time security event pipeline for multiplayer game backends.
// Game servers call the inline check API before admitting gameplay actions
// (allow/deny with a reason), emit telemetry events into a bounded in-memory
// bus, and let the detection consumers escalate suspicious actors into
// temporary bans and operator alerts.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: load settings from environment variables and config files (Koanf v2)
//  2. Enforcement ledger: open the store (memory or BadgerDB) and start the async writer
//  3. Authentication: configure JWT or no-auth mode, plus Casbin RBAC
//  4. Pipeline: assemble bus, rate limiter, sessions, policy engine, detectors, scheduler
//  5. Alert sinks: WebSocket hub fan-out plus optional outbound webhook
//  6. HTTP server: REST API with Prometheus metrics and the operator alert stream
//  7. Supervisor tree: pipeline, ledger sweeper, hub, and HTTP server under suture v4
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (VIGIL_* prefix)
//   - Config file (config.yaml, or VIGIL_CONFIG_PATH)
//   - Built-in defaults
//
// For JWT authentication (default):
//   - VIGIL_JWT_SECRET: secret for token signing (32+ characters in production)
//   - VIGIL_TOKEN_TTL: issued token lifetime (default 24h)
//
// For a durable enforcement ledger:
//   - VIGIL_LEDGER_STORE=badger
//   - VIGIL_LEDGER_PATH=/data/ledger
//
// # Build Tags
//
// Optional build tags enable additional functionality:
//
//	go build -tags "ledger" ./cmd/vigil  # Enable the BadgerDB ledger store
//
// Without the tag, VIGIL_LEDGER_STORE=badger degrades to the in-memory store
// with a startup warning.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Halts the bus drain and detection timers (queued events are dropped)
//   - Flushes the enforcement ledger before closing its store
//
// # Example Usage
//
// Local development (no authentication):
//
//	export VIGIL_AUTH_MODE=none
//	./vigil
//
// Production with JWT and a durable ledger:
//
//	export VIGIL_ENVIRONMENT=production
//	export VIGIL_JWT_SECRET=$(openssl rand -base64 32)
//	export VIGIL_LEDGER_STORE=badger
//	export VIGIL_LEDGER_PATH=/data/ledger
//	export VIGIL_WEBHOOK_URL=https://ops.example.com/hooks/vigil
//	./vigil
//
// Docker:
//
//	docker run -d \
//	  -e VIGIL_JWT_SECRET=your-signing-secret \
//	  -e VIGIL_WEBHOOK_URL=https://ops.example.com/hooks/vigil \
//	  -p 8464:8464 \
//	  ghcr.io/tomtom215/vigil
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/vigil/internal/alerting"
	"github.com/tomtom215/vigil/internal/api"
	"github.com/tomtom215/vigil/internal/audit"
	"github.com/tomtom215/vigil/internal/auth"
	"github.com/tomtom215/vigil/internal/authz"
	"github.com/tomtom215/vigil/internal/config"
	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/pipeline"
	"github.com/tomtom215/vigil/internal/ratelimit"
	"github.com/tomtom215/vigil/internal/supervisor"
	"github.com/tomtom215/vigil/internal/supervisor/services"
	ws "github.com/tomtom215/vigil/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Vigil with supervisor tree")
	logging.Info().
		Str("auth_mode", cfg.Security.AuthMode).
		Str("ledger_store", cfg.Ledger.Store).
		Int("queue_capacity", cfg.Bus.QueueCapacity).
		Msg("Configuration loaded")

	// Open the enforcement ledger store and start the async writer
	store, closeStore, err := openLedgerStore(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open ledger store")
	}
	defer func() {
		if err := closeStore(); err != nil {
			logging.Error().Err(err).Msg("Error closing ledger store")
		}
	}()

	auditCfg := audit.DefaultConfig()
	auditCfg.BufferSize = cfg.Ledger.Buffer
	auditCfg.Retention = cfg.Ledger.Retention
	ledger := audit.NewLogger(store, auditCfg)
	defer func() {
		if err := ledger.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing ledger")
		}
	}()

	// Authentication
	var jwtManager *auth.Manager
	switch cfg.Security.AuthMode {
	case "jwt":
		jwtManager, err = auth.NewManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
		}
		logging.Info().Msg("JWT authentication enabled")
	case "none":
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: Authentication is DISABLED (VIGIL_AUTH_MODE=none)")
		logging.Warn().Msg("  ")
		logging.Warn().Msg("  All endpoints are publicly accessible without authentication!")
		logging.Warn().Msg("  This mode should ONLY be used for local development and")
		logging.Warn().Msg("  completely isolated private networks.")
		logging.Warn().Msg("============================================================")
	}

	authMiddleware := auth.NewMiddleware(jwtManager, cfg.Security.AuthMode)

	// Casbin RBAC: server < operator < admin
	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization enforcer")
	}
	authzMiddleware := authz.NewMiddleware(enforcer)

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("API rate limiting is DISABLED (VIGIL_RATE_LIMIT_DISABLED=true)")
	}

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: CORS allows any origin (VIGIL_CORS_ORIGINS=*)")
		logging.Warn().Msg("  ")
		logging.Warn().Msg("  With authentication enabled, any website can drive")
		logging.Warn().Msg("  authenticated cross-origin requests against this API.")
		logging.Warn().Msg("  Set specific origins in production:")
		logging.Warn().Msg("    VIGIL_CORS_ORIGINS=https://ops.example.com")
		logging.Warn().Msg("============================================================")
	}

	// WebSocket hub for the operator alert stream (created before the
	// pipeline so it can serve as an alert sink)
	hub := ws.NewHub()

	// Alert sinks: hub fan-out always, webhook when configured
	sinks := []alerting.Notifier{ws.NewAlertSink(hub)}
	if cfg.Alerting.Webhook.URL != "" {
		sinks = append(sinks, alerting.NewWebhookNotifier(alerting.WebhookConfig{
			URL:              cfg.Alerting.Webhook.URL,
			Headers:          cfg.Alerting.Webhook.Headers,
			Timeout:          cfg.Alerting.Webhook.Timeout,
			MinInterval:      cfg.Alerting.Webhook.MinInterval,
			Burst:            cfg.Alerting.Webhook.Burst,
			FailureThreshold: cfg.Alerting.Webhook.FailureThreshold,
			OpenTimeout:      cfg.Alerting.Webhook.OpenTimeout,
		}))
		logging.Info().Str("url", cfg.Alerting.Webhook.URL).Msg("Webhook alert sink registered")
	}

	// Assemble the pipeline (not started here - the supervisor starts it)
	pipe := pipeline.New(buildPipelineConfig(cfg), sinks...)

	// Enforcement hooks feed the ledger. Registered before the tree starts
	// so the first escalation is never missed.
	pipe.Engine().SetEscalationHook(ledger.LogBanEscalated)
	pipe.Engine().Bans().SetExpiryHook(ledger.LogBanExpired)

	handler := api.NewHandler(pipe, ledger, cfg, hub)
	router := api.NewRouter(handler, authMiddleware, authzMiddleware, cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create structured logger for supervisor using our slog adapter
	// This bridges zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Pipeline layer services
	tree.AddPipelineService(services.NewPipelineService(pipe))
	tree.AddPipelineService(services.NewLedgerService(ledger))

	// Messaging layer services
	tree.AddMessagingService(services.NewAlertHubService(hub))

	// API layer services
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)
	ledger.LogPipelineStarted()

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	// Recorded before the deferred Close flushes the writer, so the
	// shutdown itself is in the ledger
	ledger.LogPipelineStopped()

	logging.Info().Msg("Application stopped gracefully")
}

// openLedgerStore opens the configured ledger store. The badger store needs
// a build with -tags ledger; without the tag OpenBadgerStore degrades to the
// in-memory store with a warning.
func openLedgerStore(cfg *config.Config) (audit.Store, func() error, error) {
	if cfg.Ledger.Store == "badger" {
		s, err := audit.OpenBadgerStore(cfg.Ledger.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}

	s := audit.NewMemoryStore(0)
	return s, s.Close, nil
}

// buildPipelineConfig maps the application configuration onto the pipeline's
// component configs. It starts from the pipeline defaults so code-level
// settings (pattern sequences, anomaly frequency rules) stay intact; only
// the scalar knobs are overridden.
func buildPipelineConfig(cfg *config.Config) pipeline.Config {
	pc := pipeline.DefaultConfig()

	pc.Bus.Capacity = cfg.Bus.QueueCapacity
	pc.Bus.BatchSize = cfg.Bus.BatchSize
	pc.Bus.DrainInterval = cfg.Bus.DrainInterval

	if len(cfg.RateLimit.Classes) > 0 {
		classes := make(map[string]ratelimit.ClassLimit, len(cfg.RateLimit.Classes))
		for name, limit := range cfg.RateLimit.Classes {
			classes[name] = ratelimit.ClassLimit{
				MaxRequests: limit.MaxRequests,
				Window:      limit.Window,
			}
		}
		pc.RateLimit.Classes = classes
	}
	pc.RateLimit.Default = ratelimit.ClassLimit{
		MaxRequests: cfg.RateLimit.Default.MaxRequests,
		Window:      cfg.RateLimit.Default.Window,
	}

	pc.SessionTTL = cfg.Sessions.TTL

	pc.Policy.ViolationThreshold = cfg.Policy.ViolationThreshold
	pc.Policy.TempBanDuration = cfg.Policy.TempBanDuration
	pc.Policy.DecayInterval = cfg.Policy.DecayInterval

	pc.Pattern.RingCapacity = cfg.Detection.Pattern.RingCapacity
	pc.Pattern.AnalysisCooldown = cfg.Detection.Pattern.AnalysisCooldown
	pc.Pattern.ScoreThreshold = cfg.Detection.Pattern.ScoreThreshold
	pc.Pattern.ScoreDecay = cfg.Detection.Pattern.ScoreDecay
	pc.Pattern.Staleness = cfg.Detection.Pattern.Staleness

	pc.Anomaly.SampleRate = cfg.Detection.Anomaly.SampleRate
	pc.Anomaly.SmallBatchSize = cfg.Detection.Anomaly.SmallBatchSize
	pc.Anomaly.Window = cfg.Detection.Anomaly.Window
	pc.Anomaly.ScoreThreshold = cfg.Detection.Anomaly.ScoreThreshold
	pc.Anomaly.ScoreDecay = cfg.Detection.Anomaly.ScoreDecay
	pc.Anomaly.Staleness = cfg.Detection.Anomaly.Staleness

	pc.Aggregator.FlushThreshold = cfg.Aggregator.FlushThreshold
	pc.Aggregator.ActorSampleCap = cfg.Aggregator.ActorSampleCap

	pc.Scheduler.CompactionInterval = cfg.Scheduler.CompactionInterval
	pc.Scheduler.FlushInterval = cfg.Scheduler.FlushInterval

	pc.AlertCooldown = cfg.Alerting.Cooldown

	return pc
}
