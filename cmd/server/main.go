// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

// Package main is the entry point for the CADRelay server.
//
// CADRelay routes realtime dispatch traffic between computer-aided
// dispatch (CAD) infrastructure and field clients: role-gated radio
// channels over WebSocket, trusted incident event broadcasting, and an
// optional chat bot bridge over NATS.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered settings from defaults, config file, and
//     environment variables (Koanf v2)
//  2. Channel table and registry: the static channel/role table and
//     membership index
//  3. WebSocket hub: connection lifecycle for realtime clients
//  4. Event broadcaster and incident store
//  5. Bot bridge (optional): NATS-backed chat command bridge
//  6. Authentication: JWT session token verification
//  7. HTTP server: REST API plus the WebSocket upgrade endpoint
//
// All long-running services run under a suture supervision tree, so a
// crash in one layer restarts that layer without tearing down the rest.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (JWT_SECRET, HTTP_PORT, NATS_URL, ...)
//   - Config file (/etc/cadrelay/config.yaml or CONFIG_PATH)
//   - Built-in defaults
//
// JWT_SECRET is the only setting without a usable default; it must be
// at least 32 characters.
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the HTTP
// listener stops accepting connections, in-flight requests drain, and
// the hub closes every realtime session.
//
// # Example Usage
//
//	export JWT_SECRET=$(openssl rand -base64 32)
//	./cadrelay
//
// With the bot bridge:
//
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export BOT_ENABLED=true
//	export NATS_URL=nats://nats:4222
//	./cadrelay
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cadrelay/cadrelay/internal/api"
	"github.com/cadrelay/cadrelay/internal/auth"
	"github.com/cadrelay/cadrelay/internal/bot"
	"github.com/cadrelay/cadrelay/internal/channel"
	"github.com/cadrelay/cadrelay/internal/config"
	"github.com/cadrelay/cadrelay/internal/event"
	"github.com/cadrelay/cadrelay/internal/logging"
	"github.com/cadrelay/cadrelay/internal/store"
	"github.com/cadrelay/cadrelay/internal/supervisor"
	ws "github.com/cadrelay/cadrelay/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("listen_addr", cfg.Server.ListenAddr()).
		Bool("bot_enabled", cfg.Bot.Enabled).
		Msg("Starting CADRelay")

	// Channel table: configured definitions, or the built-in dispatch
	// table when none are given.
	table := channel.DefaultTable()
	if len(cfg.Channels.Definitions) > 0 {
		table, err = channel.NewTable(cfg.Channels.Definitions)
		if err != nil {
			logging.Fatal().Err(err).Msg("Invalid channel table configuration")
		}
	}
	logging.Info().
		Strs("channels", table.Names()).
		Msg("Channel table loaded")

	registry := channel.NewRegistry(table)
	hub := ws.NewHub(registry)
	broadcaster := event.NewBroadcaster(registry)
	incidents := store.NewMemoryStore()

	jwtManager, err := auth.NewJWTManager(cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}
	logging.Info().Msg("JWT session authentication enabled")

	// Context for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The supervisor logs through slog; the adapter bridges to zerolog.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddMessagingService(supervisor.NewChannelHubService(hub))

	// Bot bridge is optional; a missing NATS server at startup is not
	// fatal because the connection retries in the background.
	if cfg.Bot.Enabled {
		transport, err := bot.NewNATSTransport(cfg.Bot.NATSURL, cfg.Bot.ConnectTimeout)
		if err != nil {
			logging.Fatal().Err(err).Str("url", cfg.Bot.NATSURL).Msg("Failed to set up NATS transport")
		}
		defer transport.Close()

		bridge := bot.NewBridge(cfg.Bot, transport, broadcaster, incidents)
		broadcaster.AddMirror(bridge)
		tree.AddMessagingService(supervisor.NewBotBridgeService(bridge))

		logging.Info().
			Str("url", cfg.Bot.NATSURL).
			Str("channel", cfg.Bot.Channel).
			Msg("Bot bridge enabled")
	}

	handler := api.NewHandler(registry, hub, broadcaster, incidents, cfg.Server.CORSOrigins)
	router := api.NewRouter(
		handler,
		api.NewAuthMiddleware(jwtManager),
		api.NewChiMiddlewareFromConfig(
			cfg.Server.CORSOrigins,
			cfg.Server.RateLimitReqs,
			cfg.Server.RateLimitWindow,
			cfg.Server.RateLimitDisabled,
		),
	)

	if cfg.Server.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	server := &http.Server{
		Addr:         cfg.Server.ListenAddr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}
	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Signal handling drives the shutdown context.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain the error channel; it closes when the supervisor finishes.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Relay stopped gracefully")
}
