// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

// Package config provides centralized configuration for CADRelay.
//
// Configuration is loaded in three layers with clear precedence:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (config.yaml)
//  3. Environment variables: override any setting
//
// Config is immutable after LoadWithKoanf() and safe for concurrent
// read access from multiple goroutines.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Channels ChannelsConfig `koanf:"channels"`
	Bot      BotConfig      `koanf:"bot"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_HOST: bind address (default: 0.0.0.0)
//   - HTTP_PORT: listen port (default: 8440)
//   - HTTP_TIMEOUT: read/write timeout (default: 30s)
//   - CORS_ORIGINS: comma-separated allowed origins (default: *)
//   - RATE_LIMIT_REQUESTS / RATE_LIMIT_WINDOW / DISABLE_RATE_LIMIT
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	Timeout           time.Duration `koanf:"timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// ListenAddr returns the host:port address the server binds to.
func (s ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig holds token verification settings.
//
// Environment Variables:
//   - JWT_SECRET: HMAC signing secret, minimum 32 characters (required)
//   - SESSION_TIMEOUT: token lifetime for issued tokens (default: 24h)
type SecurityConfig struct {
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`
}

// ChannelDefinition declares one channel and the roles permitted to join
// it. An empty role list makes the channel open to any authenticated
// identity.
type ChannelDefinition struct {
	Name  string   `koanf:"name"`
	Roles []string `koanf:"roles"`
}

// ChannelsConfig holds the channel table. When Definitions is empty the
// built-in dispatch table is used.
type ChannelsConfig struct {
	Definitions []ChannelDefinition `koanf:"definitions"`
}

// BotConfig holds the chat bot bridge settings. The bridge is optional
// and disabled by default; when enabled it connects to NATS and relays
// bot commands into the event stream.
//
// Environment Variables:
//   - BOT_ENABLED, NATS_URL, BOT_INBOUND_SUBJECT, BOT_OUTBOUND_SUBJECT
//   - BOT_COMMAND_RATE / BOT_COMMAND_BURST: per-sender rate limit
//   - BOT_CHANNEL: channel the bridge mirrors outward to chat
type BotConfig struct {
	Enabled         bool          `koanf:"enabled"`
	NATSURL         string        `koanf:"nats_url"`
	InboundSubject  string        `koanf:"inbound_subject"`
	OutboundSubject string        `koanf:"outbound_subject"`
	CommandRate     float64       `koanf:"command_rate"`
	CommandBurst    int           `koanf:"command_burst"`
	Channel         string        `koanf:"channel"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
