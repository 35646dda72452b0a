// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package config

import "time"

// Config is the root configuration for the Vigil server. Fields carry koanf
// tags for layered loading and validate tags for range checks; cross-field
// rules live in Validate.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Security   SecurityConfig   `koanf:"security"`
	Bus        BusConfig        `koanf:"bus"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
	Sessions   SessionsConfig   `koanf:"sessions"`
	Policy     PolicyConfig     `koanf:"policy"`
	Detection  DetectionConfig  `koanf:"detection"`
	Aggregator AggregatorConfig `koanf:"aggregator"`
	Scheduler  SchedulerConfig  `koanf:"scheduler"`
	Alerting   AlertingConfig   `koanf:"alerting"`
	Ledger     LedgerConfig     `koanf:"ledger"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"gte=1,lte=65535"`

	// Timeout applies to both reads and writes.
	Timeout time.Duration `koanf:"timeout"`

	// Environment toggles production-only validation ("development" or
	// "production").
	Environment string `koanf:"environment" validate:"oneof=development production"`
}

// SecurityConfig holds API authentication and transport protection settings.
type SecurityConfig struct {
	// AuthMode selects API authentication: "jwt" or "none".
	AuthMode string `koanf:"auth_mode" validate:"oneof=jwt none"`

	// JWTSecret signs and verifies bearer tokens (HMAC).
	JWTSecret string `koanf:"jwt_secret"`

	// TokenTTL bounds issued token lifetime.
	TokenTTL time.Duration `koanf:"token_ttl"`

	// RateLimitReqs/RateLimitWindow throttle API clients per IP. This is
	// transport protection, separate from the per-actor limiter.
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins    []string `koanf:"cors_origins"`
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// BusConfig holds event bus queue settings.
type BusConfig struct {
	QueueCapacity int           `koanf:"queue_capacity" validate:"gte=1"`
	BatchSize     int           `koanf:"batch_size" validate:"gte=1"`
	DrainInterval time.Duration `koanf:"drain_interval"`
}

// ClassLimitConfig is one action class budget for the per-actor limiter.
type ClassLimitConfig struct {
	MaxRequests int           `koanf:"max_requests" validate:"gte=1"`
	Window      time.Duration `koanf:"window"`
}

// RateLimitConfig holds per-actor action budgets. Classes is keyed by action
// class name; unknown classes fall back to Default. Classes is file-only
// configuration; environment variables cannot express the map.
type RateLimitConfig struct {
	Classes map[string]ClassLimitConfig `koanf:"classes" validate:"dive"`
	Default ClassLimitConfig            `koanf:"default"`
}

// SessionsConfig holds session registry settings.
type SessionsConfig struct {
	// TTL is the sliding session lifetime.
	TTL time.Duration `koanf:"ttl"`
}

// PolicyConfig holds policy engine escalation settings.
type PolicyConfig struct {
	ViolationThreshold int           `koanf:"violation_threshold" validate:"gte=1"`
	TempBanDuration    time.Duration `koanf:"temp_ban_duration"`
	DecayInterval      time.Duration `koanf:"decay_interval"`
}

// PatternConfig holds pattern detector tuning. Sequence definitions are code
// level; only the scalar knobs are configurable.
type PatternConfig struct {
	RingCapacity     int           `koanf:"ring_capacity" validate:"gte=1"`
	AnalysisCooldown time.Duration `koanf:"analysis_cooldown"`
	ScoreThreshold   int           `koanf:"score_threshold" validate:"gte=1"`
	ScoreDecay       int           `koanf:"score_decay" validate:"gte=0"`
	Staleness        time.Duration `koanf:"staleness"`
}

// AnomalyConfig holds anomaly analyzer tuning. Frequency rules are code
// level; only the scalar knobs are configurable.
type AnomalyConfig struct {
	SampleRate     float64       `koanf:"sample_rate" validate:"gt=0,lte=1"`
	SmallBatchSize int           `koanf:"small_batch_size" validate:"gte=0"`
	Window         time.Duration `koanf:"window"`
	ScoreThreshold int           `koanf:"score_threshold" validate:"gte=1"`
	ScoreDecay     int           `koanf:"score_decay" validate:"gte=0"`
	Staleness      time.Duration `koanf:"staleness"`
}

// DetectionConfig groups the two detection consumers.
type DetectionConfig struct {
	Pattern PatternConfig `koanf:"pattern"`
	Anomaly AnomalyConfig `koanf:"anomaly"`
}

// AggregatorConfig holds log aggregator settings.
type AggregatorConfig struct {
	FlushThreshold int `koanf:"flush_threshold" validate:"gte=1"`
	ActorSampleCap int `koanf:"actor_sample_cap" validate:"gte=1"`
}

// SchedulerConfig holds background maintenance cadences.
type SchedulerConfig struct {
	CompactionInterval time.Duration `koanf:"compaction_interval"`
	FlushInterval      time.Duration `koanf:"flush_interval"`
}

// WebhookConfig holds outbound alert webhook settings. Headers is file-only
// configuration.
type WebhookConfig struct {
	URL              string            `koanf:"url" validate:"omitempty,url"`
	Headers          map[string]string `koanf:"headers"`
	Timeout          time.Duration     `koanf:"timeout"`
	MinInterval      time.Duration     `koanf:"min_interval"`
	Burst            int               `koanf:"burst" validate:"gte=1"`
	FailureThreshold uint32            `koanf:"failure_threshold" validate:"gte=1"`
	OpenTimeout      time.Duration     `koanf:"open_timeout"`
}

// AlertingConfig holds alert dispatch settings.
type AlertingConfig struct {
	// Cooldown suppresses identical (level, title) alerts.
	Cooldown time.Duration `koanf:"cooldown"`

	Webhook WebhookConfig `koanf:"webhook"`
}

// LedgerConfig holds enforcement ledger settings.
type LedgerConfig struct {
	// Buffer is the async writer queue size.
	Buffer int `koanf:"buffer" validate:"gte=1"`

	// Store selects the backing store: "memory" or "badger".
	Store string `koanf:"store" validate:"oneof=memory badger"`

	// Path is the badger directory. Required when Store is "badger".
	Path string `koanf:"path"`

	// Retention is how long ledger records are kept; zero disables cleanup.
	Retention time.Duration `koanf:"retention"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. Component
// defaults mirror the pipeline packages so a zero config file runs the same
// pipeline as the embedded library defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8464,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Security: SecurityConfig{
			AuthMode:          "jwt",
			JWTSecret:         "",
			TokenTTL:          24 * time.Hour,
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
			TrustedProxies:    []string{},
		},
		Bus: BusConfig{
			QueueCapacity: 1000,
			BatchSize:     50,
			DrainInterval: 500 * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			Classes: map[string]ClassLimitConfig{
				"chat":  {MaxRequests: 20, Window: 10 * time.Second},
				"trade": {MaxRequests: 10, Window: time.Minute},
				"loot":  {MaxRequests: 30, Window: 10 * time.Second},
				"auth":  {MaxRequests: 10, Window: time.Minute},
			},
			Default: ClassLimitConfig{MaxRequests: 60, Window: time.Minute},
		},
		Sessions: SessionsConfig{
			TTL: 30 * time.Minute,
		},
		Policy: PolicyConfig{
			ViolationThreshold: 10,
			TempBanDuration:    5 * time.Minute,
			DecayInterval:      time.Minute,
		},
		Detection: DetectionConfig{
			Pattern: PatternConfig{
				RingCapacity:     100,
				AnalysisCooldown: 5 * time.Second,
				ScoreThreshold:   50,
				ScoreDecay:       1,
				Staleness:        5 * time.Minute,
			},
			Anomaly: AnomalyConfig{
				SampleRate:     0.10,
				SmallBatchSize: 10,
				Window:         time.Minute,
				ScoreThreshold: 30,
				ScoreDecay:     5,
				Staleness:      5 * time.Minute,
			},
		},
		Aggregator: AggregatorConfig{
			FlushThreshold: 100,
			ActorSampleCap: 5,
		},
		Scheduler: SchedulerConfig{
			CompactionInterval: time.Minute,
			FlushInterval:      30 * time.Second,
		},
		Alerting: AlertingConfig{
			Cooldown: time.Minute,
			Webhook: WebhookConfig{
				URL:              "",
				Timeout:          10 * time.Second,
				MinInterval:      time.Second,
				Burst:            3,
				FailureThreshold: 5,
				OpenTimeout:      30 * time.Second,
			},
		},
		Ledger: LedgerConfig{
			Buffer:    256,
			Store:     "memory",
			Path:      "",
			Retention: 0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
