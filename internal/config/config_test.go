// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package config

import (
	"strings"
	"testing"
	"time"
)

// testSecret satisfies the minimum JWT secret length.
const testSecret = "0123456789abcdef0123456789abcdef"

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = testSecret
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()

	if cfg.Server.Port != 8440 {
		t.Errorf("expected default port 8440, got %d", cfg.Server.Port)
	}
	if cfg.Server.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %v", cfg.Server.Timeout)
	}
	if cfg.Security.SessionTimeout != 24*time.Hour {
		t.Errorf("expected default session timeout 24h, got %v", cfg.Security.SessionTimeout)
	}
	if cfg.Bot.Enabled {
		t.Error("expected bot disabled by default")
	}
	if len(cfg.Channels.Definitions) != 0 {
		t.Error("expected empty channel definitions by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestListenAddr(t *testing.T) {
	t.Parallel()

	s := ServerConfig{Host: "127.0.0.1", Port: 8440}
	if got := s.ListenAddr(); got != "127.0.0.1:8440" {
		t.Errorf("expected 127.0.0.1:8440, got %s", got)
	}
}

func TestValidateSecurity(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}

	cfg.Security.JWTSecret = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing JWT secret")
	}

	cfg.Security.JWTSecret = "short"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for short JWT secret")
	}

	cfg = validConfig()
	cfg.Security.SessionTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero session timeout")
	}
}

func TestValidateServer(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for port 0")
	}

	cfg = validConfig()
	cfg.Server.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for port above range")
	}

	cfg = validConfig()
	cfg.Server.RateLimitReqs = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero rate limit requests")
	}

	cfg = validConfig()
	cfg.Server.RateLimitReqs = 0
	cfg.Server.RateLimitDisabled = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("rate limit settings should be ignored when disabled: %v", err)
	}
}

func TestValidateChannels(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Channels.Definitions = []ChannelDefinition{
		{Name: "dispatch", Roles: []string{"DISPATCH", "ADMIN"}},
		{Name: "radio:fire", Roles: []string{"FIRE", "DISPATCH", "ADMIN"}},
		{Name: "events", Roles: nil},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid channel table, got: %v", err)
	}

	cfg.Channels.Definitions = []ChannelDefinition{
		{Name: "dispatch", Roles: []string{"DISPATCH"}},
		{Name: "dispatch", Roles: []string{"ADMIN"}},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for duplicate channel name")
	} else if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate error, got: %v", err)
	}

	cfg.Channels.Definitions = []ChannelDefinition{
		{Name: "radio:leo", Roles: []string{"SHERIFF"}},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown role in channel table")
	}

	cfg.Channels.Definitions = []ChannelDefinition{
		{Name: "  ", Roles: nil},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for blank channel name")
	}
}

func TestValidateBot(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Bot.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected bot defaults valid when enabled, got: %v", err)
	}

	cfg.Bot.NATSURL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing NATS URL")
	}

	cfg = validConfig()
	cfg.Bot.Enabled = true
	cfg.Bot.CommandRate = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero command rate")
	}

	cfg = validConfig()
	cfg.Bot.Enabled = true
	cfg.Bot.Channel = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing bot channel")
	}

	// Disabled bot skips validation entirely
	cfg = validConfig()
	cfg.Bot.NATSURL = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled bot should not be validated: %v", err)
	}
}

func TestValidateLogging(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid log level")
	}

	cfg = validConfig()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid log format")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env      string
		expected string
	}{
		{"HTTP_PORT", "server.port"},
		{"HTTP_HOST", "server.host"},
		{"JWT_SECRET", "security.jwt_secret"},
		{"SESSION_TIMEOUT", "security.session_timeout"},
		{"BOT_ENABLED", "bot.enabled"},
		{"NATS_URL", "bot.nats_url"},
		{"CORS_ORIGINS", "server.cors_origins"},
		{"LOG_LEVEL", "logging.level"},
		{"PATH", ""},
		{"RANDOM_UNRELATED_VAR", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.expected {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.expected)
		}
	}
}

func TestLoadWithKoanfEnvOverride(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "https://cad.example.gov, https://backup.example.gov")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000 from env, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug from env, got %s", cfg.Logging.Level)
	}
	if len(cfg.Server.CORSOrigins) != 2 {
		t.Fatalf("expected 2 CORS origins, got %v", cfg.Server.CORSOrigins)
	}
	if cfg.Server.CORSOrigins[1] != "https://backup.example.gov" {
		t.Errorf("expected trimmed origin, got %q", cfg.Server.CORSOrigins[1])
	}
}

func TestLoadWithKoanfMissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := LoadWithKoanf(); err == nil {
		t.Error("expected error when JWT_SECRET is unset")
	}
}
