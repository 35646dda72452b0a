// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/vigil/config.yaml",
	"/etc/vigil/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "VIGIL_CONFIG_PATH"

// envPrefix namespaces Vigil's environment variables.
const envPrefix = "VIGIL_"

// Load builds the configuration from layered sources:
//  1. Defaults: built-in values mirroring the pipeline package defaults
//  2. Config file: optional YAML file (VIGIL_CONFIG_PATH or DefaultConfigPaths)
//  3. Environment variables: VIGIL_* overrides (highest priority)
//
// The loaded config is validated before it is returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables
	// VIGIL_HTTP_PORT -> server.port, VIGIL_JWT_SECRET -> security.jwt_secret
	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file. Returns the first path found,
// or empty string if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated
// slices when they arrive as strings from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.trusted_proxies",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings; the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults) - skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps VIGIL_* environment variable names to koanf config
// paths. Unmapped variables return empty string and are skipped, so stray
// environment variables never pollute the config.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	envMappings := map[string]string{
		// Server
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// Security
		"auth_mode":           "security.auth_mode",
		"jwt_secret":          "security.jwt_secret",
		"token_ttl":           "security.token_ttl",
		"rate_limit_requests": "security.rate_limit_requests",
		"rate_limit_window":   "security.rate_limit_window",
		"rate_limit_disabled": "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",
		"trusted_proxies":     "security.trusted_proxies",

		// Bus
		"bus_queue_capacity": "bus.queue_capacity",
		"bus_batch_size":     "bus.batch_size",
		"bus_drain_interval": "bus.drain_interval",

		// Per-actor rate limiter (default class only; classes are file-only)
		"rate_limit_default_max":    "rate_limit.default.max_requests",
		"rate_limit_default_window": "rate_limit.default.window",

		// Sessions
		"session_ttl": "sessions.ttl",

		// Policy
		"violation_threshold": "policy.violation_threshold",
		"temp_ban_duration":   "policy.temp_ban_duration",
		"violation_decay":     "policy.decay_interval",

		// Detection
		"pattern_ring_capacity":    "detection.pattern.ring_capacity",
		"pattern_cooldown":         "detection.pattern.analysis_cooldown",
		"pattern_score_threshold":  "detection.pattern.score_threshold",
		"pattern_score_decay":      "detection.pattern.score_decay",
		"pattern_staleness":        "detection.pattern.staleness",
		"anomaly_sample_rate":      "detection.anomaly.sample_rate",
		"anomaly_small_batch_size": "detection.anomaly.small_batch_size",
		"anomaly_window":           "detection.anomaly.window",
		"anomaly_score_threshold":  "detection.anomaly.score_threshold",
		"anomaly_score_decay":      "detection.anomaly.score_decay",
		"anomaly_staleness":        "detection.anomaly.staleness",

		// Aggregator
		"aggregator_flush_threshold":  "aggregator.flush_threshold",
		"aggregator_actor_sample_cap": "aggregator.actor_sample_cap",

		// Scheduler
		"compaction_interval": "scheduler.compaction_interval",
		"flush_interval":      "scheduler.flush_interval",

		// Alerting
		"alert_cooldown":            "alerting.cooldown",
		"webhook_url":               "alerting.webhook.url",
		"webhook_timeout":           "alerting.webhook.timeout",
		"webhook_min_interval":      "alerting.webhook.min_interval",
		"webhook_burst":             "alerting.webhook.burst",
		"webhook_failure_threshold": "alerting.webhook.failure_threshold",
		"webhook_open_timeout":      "alerting.webhook.open_timeout",

		// Ledger
		"ledger_buffer":    "ledger.buffer",
		"ledger_store":     "ledger.store",
		"ledger_path":      "ledger.path",
		"ledger_retention": "ledger.retention",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}

// WatchConfigFile sets up a file watcher for hot-reload. The caller owns
// mutex protection around any config swap performed in the callback.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
