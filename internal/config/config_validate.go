// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package config

import (
	"fmt"
	"strings"

	"github.com/cadrelay/cadrelay/internal/models"
)

// minJWTSecretLength is the minimum length for the HMAC signing secret.
// HS256 secrets shorter than the hash output weaken the MAC.
const minJWTSecretLength = 32

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	if err := c.validateChannels(); err != nil {
		return err
	}

	if err := c.validateBot(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateServer validates HTTP server settings.
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", c.Server.Timeout)
	}
	if !c.Server.RateLimitDisabled {
		if c.Server.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Server.RateLimitReqs)
		}
		if c.Server.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %v", c.Server.RateLimitWindow)
		}
	}
	return nil
}

// validateSecurity validates token verification settings.
func (c *Config) validateSecurity() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters, got %d",
			minJWTSecretLength, len(c.Security.JWTSecret))
	}
	if c.Security.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive, got %v", c.Security.SessionTimeout)
	}
	return nil
}

// validateChannels validates the channel table. Every declared role must
// be in the known role enumeration and channel names must be unique; a
// misconfigured table is a startup failure, not a runtime surprise.
func (c *Config) validateChannels() error {
	seen := make(map[string]struct{}, len(c.Channels.Definitions))
	for _, def := range c.Channels.Definitions {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			return fmt.Errorf("channel definition with empty name")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate channel definition %q", name)
		}
		seen[name] = struct{}{}

		if _, err := models.RoleSetFromStrings(def.Roles); err != nil {
			return fmt.Errorf("channel %q: %w", name, err)
		}
	}
	return nil
}

// validateBot validates the bot bridge settings (only if enabled).
func (c *Config) validateBot() error {
	if !c.Bot.Enabled {
		return nil
	}

	if c.Bot.NATSURL == "" {
		return fmt.Errorf("NATS_URL is required when BOT_ENABLED=true")
	}
	if c.Bot.InboundSubject == "" || c.Bot.OutboundSubject == "" {
		return fmt.Errorf("BOT_INBOUND_SUBJECT and BOT_OUTBOUND_SUBJECT are required when BOT_ENABLED=true")
	}
	if c.Bot.CommandRate <= 0 {
		return fmt.Errorf("BOT_COMMAND_RATE must be positive, got %v", c.Bot.CommandRate)
	}
	if c.Bot.CommandBurst < 1 {
		return fmt.Errorf("BOT_COMMAND_BURST must be at least 1, got %d", c.Bot.CommandBurst)
	}
	if c.Bot.Channel == "" {
		return fmt.Errorf("BOT_CHANNEL is required when BOT_ENABLED=true")
	}
	if c.Bot.ConnectTimeout <= 0 {
		return fmt.Errorf("BOT_CONNECT_TIMEOUT must be positive, got %v", c.Bot.ConnectTimeout)
	}
	return nil
}

// validateLogging validates log output settings.
func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, got %q", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}

	return nil
}
