// Vigil - Real-Time Security Event Pipeline for Multiplayer Game Backends
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("VIGIL_JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8464 {
		t.Errorf("Server.Port = %d, want 8464", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Bus.QueueCapacity != 1000 {
		t.Errorf("Bus.QueueCapacity = %d, want 1000", cfg.Bus.QueueCapacity)
	}
	if cfg.Bus.DrainInterval != 500*time.Millisecond {
		t.Errorf("Bus.DrainInterval = %v, want 500ms", cfg.Bus.DrainInterval)
	}
	if cfg.Sessions.TTL != 30*time.Minute {
		t.Errorf("Sessions.TTL = %v, want 30m", cfg.Sessions.TTL)
	}
	if cfg.Policy.ViolationThreshold != 10 {
		t.Errorf("Policy.ViolationThreshold = %d, want 10", cfg.Policy.ViolationThreshold)
	}
	if cfg.Detection.Anomaly.SampleRate != 0.10 {
		t.Errorf("Detection.Anomaly.SampleRate = %v, want 0.10", cfg.Detection.Anomaly.SampleRate)
	}
	if cfg.Ledger.Store != "memory" {
		t.Errorf("Ledger.Store = %q, want memory", cfg.Ledger.Store)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}

	chat, ok := cfg.RateLimit.Classes["chat"]
	if !ok {
		t.Fatal("RateLimit.Classes missing chat")
	}
	if chat.MaxRequests != 20 || chat.Window != 10*time.Second {
		t.Errorf("chat class = %+v, want {20 10s}", chat)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("VIGIL_JWT_SECRET", "test-secret")
	t.Setenv("VIGIL_HTTP_PORT", "9200")
	t.Setenv("VIGIL_LOG_LEVEL", "debug")
	t.Setenv("VIGIL_BUS_QUEUE_CAPACITY", "2000")
	t.Setenv("VIGIL_ANOMALY_SAMPLE_RATE", "0.5")
	t.Setenv("VIGIL_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("VIGIL_LEDGER_STORE", "badger")
	t.Setenv("VIGIL_LEDGER_PATH", "/tmp/vigil-ledger")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9200 {
		t.Errorf("Server.Port = %d, want 9200", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Bus.QueueCapacity != 2000 {
		t.Errorf("Bus.QueueCapacity = %d, want 2000", cfg.Bus.QueueCapacity)
	}
	if cfg.Detection.Anomaly.SampleRate != 0.5 {
		t.Errorf("Anomaly.SampleRate = %v, want 0.5", cfg.Detection.Anomaly.SampleRate)
	}
	if cfg.Ledger.Store != "badger" {
		t.Errorf("Ledger.Store = %q, want badger", cfg.Ledger.Store)
	}

	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Security.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.Security.CORSOrigins, want)
	}
	for i, origin := range want {
		if cfg.Security.CORSOrigins[i] != origin {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.Security.CORSOrigins[i], origin)
		}
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9100
security:
  auth_mode: none
bus:
  queue_capacity: 500
  drain_interval: 250ms
rate_limit:
  classes:
    chat:
      max_requests: 5
      window: 10s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("VIGIL_CONFIG_PATH", path)
	// Env still beats the file.
	t.Setenv("VIGIL_HTTP_PORT", "9300")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9300 {
		t.Errorf("Server.Port = %d, want env override 9300", cfg.Server.Port)
	}
	if cfg.Bus.QueueCapacity != 500 {
		t.Errorf("Bus.QueueCapacity = %d, want 500", cfg.Bus.QueueCapacity)
	}
	if cfg.Bus.DrainInterval != 250*time.Millisecond {
		t.Errorf("Bus.DrainInterval = %v, want 250ms", cfg.Bus.DrainInterval)
	}
	if cfg.Bus.BatchSize != 50 {
		t.Errorf("Bus.BatchSize = %d, want default 50", cfg.Bus.BatchSize)
	}

	chat := cfg.RateLimit.Classes["chat"]
	if chat.MaxRequests != 5 || chat.Window != 10*time.Second {
		t.Errorf("chat class = %+v, want {5 10s}", chat)
	}
	// Other default classes survive the merge.
	if _, ok := cfg.RateLimit.Classes["trade"]; !ok {
		t.Error("RateLimit.Classes lost default trade class")
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("VIGIL_JWT_SECRET", "")
	t.Setenv("VIGIL_AUTH_MODE", "jwt")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() = nil error, want failure without VIGIL_JWT_SECRET")
	}
	if !strings.Contains(err.Error(), "VIGIL_JWT_SECRET") {
		t.Errorf("error = %v, want mention of VIGIL_JWT_SECRET", err)
	}
}

func TestValidate_CrossFieldRules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "auth none in production",
			mutate:  func(c *Config) { c.Server.Environment = "production"; c.Security.AuthMode = "none" },
			wantSub: "VIGIL_AUTH_MODE",
		},
		{
			name: "short secret in production",
			mutate: func(c *Config) {
				c.Server.Environment = "production"
				c.Security.JWTSecret = "short"
			},
			wantSub: "at least 32",
		},
		{
			name:    "batch exceeds capacity",
			mutate:  func(c *Config) { c.Bus.BatchSize = 5000 },
			wantSub: "VIGIL_BUS_BATCH_SIZE",
		},
		{
			name:    "badger without path",
			mutate:  func(c *Config) { c.Ledger.Store = "badger"; c.Ledger.Path = "" },
			wantSub: "VIGIL_LEDGER_PATH",
		},
		{
			name:    "zero anomaly window",
			mutate:  func(c *Config) { c.Detection.Anomaly.Window = 0 },
			wantSub: "VIGIL_ANOMALY_WINDOW",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantSub: "Level",
		},
		{
			name:    "sample rate above one",
			mutate:  func(c *Config) { c.Detection.Anomaly.SampleRate = 1.5 },
			wantSub: "SampleRate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.JWTSecret = "0123456789abcdef0123456789abcdef"
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %v, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidate_DefaultsWithSecret(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = "test-secret"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v, want nil", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"VIGIL_HTTP_PORT", "server.port"},
		{"VIGIL_JWT_SECRET", "security.jwt_secret"},
		{"VIGIL_WEBHOOK_URL", "alerting.webhook.url"},
		{"VIGIL_PATTERN_SCORE_THRESHOLD", "detection.pattern.score_threshold"},
		{"VIGIL_LOG_FORMAT", "logging.format"},
		{"VIGIL_UNKNOWN_KNOB", ""},
		{"VIGIL_PATH", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestFindConfigFile_EnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vigil.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 1234\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("VIGIL_CONFIG_PATH", path)
	if got := findConfigFile(); got != path {
		t.Errorf("findConfigFile() = %q, want %q", got, path)
	}

	t.Setenv("VIGIL_CONFIG_PATH", filepath.Join(dir, "missing.yaml"))
	if got := findConfigFile(); got == filepath.Join(dir, "missing.yaml") {
		t.Error("findConfigFile() returned a path that does not exist")
	}
}
