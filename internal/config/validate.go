// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package config

import (
	"fmt"

	"github.com/tomtom215/vigil/internal/validation"
)

// minJWTSecretLen is enforced in production. 32 bytes matches the HMAC-SHA256
// key size.
const minJWTSecretLen = 32

// Validate checks the configuration for errors. Range and enum checks run
// through the struct validate tags; cross-field rules are checked by hand so
// messages can name the environment variable an operator has to fix.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %s", err.Error())
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateBus(); err != nil {
		return err
	}
	if err := c.validateDurations(); err != nil {
		return err
	}
	if err := c.validateLedger(); err != nil {
		return err
	}

	return nil
}

// validateSecurity checks authentication settings against the environment.
func (c *Config) validateSecurity() error {
	if c.Security.AuthMode == "jwt" {
		if c.Security.JWTSecret == "" {
			return fmt.Errorf("VIGIL_JWT_SECRET is required when auth mode is jwt")
		}
		if c.Server.Environment == "production" && len(c.Security.JWTSecret) < minJWTSecretLen {
			return fmt.Errorf("VIGIL_JWT_SECRET must be at least %d characters in production", minJWTSecretLen)
		}
	}

	if c.Security.AuthMode == "none" && c.Server.Environment == "production" {
		return fmt.Errorf("VIGIL_AUTH_MODE=none is not allowed in production")
	}

	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs <= 0 {
			return fmt.Errorf("VIGIL_RATE_LIMIT_REQUESTS must be positive")
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("VIGIL_RATE_LIMIT_WINDOW must be positive")
		}
	}

	return nil
}

// validateBus checks queue geometry.
func (c *Config) validateBus() error {
	if c.Bus.BatchSize > c.Bus.QueueCapacity {
		return fmt.Errorf("VIGIL_BUS_BATCH_SIZE (%d) must not exceed VIGIL_BUS_QUEUE_CAPACITY (%d)",
			c.Bus.BatchSize, c.Bus.QueueCapacity)
	}
	if c.Bus.DrainInterval <= 0 {
		return fmt.Errorf("VIGIL_BUS_DRAIN_INTERVAL must be positive")
	}
	return nil
}

// validateDurations checks that every interval the pipeline tickers run on
// is positive. Zero values are caught here rather than silently falling back
// so a typo in a config file is loud.
func (c *Config) validateDurations() error {
	checks := []struct {
		name string
		d    int64
	}{
		{"VIGIL_HTTP_TIMEOUT", int64(c.Server.Timeout)},
		{"VIGIL_SESSION_TTL", int64(c.Sessions.TTL)},
		{"VIGIL_TEMP_BAN_DURATION", int64(c.Policy.TempBanDuration)},
		{"VIGIL_VIOLATION_DECAY", int64(c.Policy.DecayInterval)},
		{"VIGIL_PATTERN_COOLDOWN", int64(c.Detection.Pattern.AnalysisCooldown)},
		{"VIGIL_PATTERN_STALENESS", int64(c.Detection.Pattern.Staleness)},
		{"VIGIL_ANOMALY_WINDOW", int64(c.Detection.Anomaly.Window)},
		{"VIGIL_ANOMALY_STALENESS", int64(c.Detection.Anomaly.Staleness)},
		{"VIGIL_COMPACTION_INTERVAL", int64(c.Scheduler.CompactionInterval)},
		{"VIGIL_FLUSH_INTERVAL", int64(c.Scheduler.FlushInterval)},
		{"VIGIL_ALERT_COOLDOWN", int64(c.Alerting.Cooldown)},
	}

	for _, check := range checks {
		if check.d <= 0 {
			return fmt.Errorf("%s must be positive", check.name)
		}
	}

	if c.RateLimit.Default.Window <= 0 {
		return fmt.Errorf("VIGIL_RATE_LIMIT_DEFAULT_WINDOW must be positive")
	}
	for class, limit := range c.RateLimit.Classes {
		if limit.Window <= 0 {
			return fmt.Errorf("rate_limit.classes.%s.window must be positive", class)
		}
	}

	return nil
}

// validateLedger checks store selection.
func (c *Config) validateLedger() error {
	if c.Ledger.Store == "badger" && c.Ledger.Path == "" {
		return fmt.Errorf("VIGIL_LEDGER_PATH is required when ledger store is badger")
	}
	if c.Ledger.Retention < 0 {
		return fmt.Errorf("VIGIL_LEDGER_RETENTION must not be negative")
	}
	return nil
}

// hasWildcardCORS reports whether any configured origin is "*".
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS reports whether the combination of enabled
// authentication and wildcard CORS deserves a startup warning: any site can
// then drive authenticated cross-origin requests against the API.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.Security.AuthMode != "none" && c.hasWildcardCORS()
}
