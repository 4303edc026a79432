// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ContextRunner matches components whose run loop takes a context and
// returns when it is canceled. Satisfied by *websocket.Hub and
// *bot.Bridge.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// ChannelHubService wraps the channel hub as a supervised service. The
// hub's RunWithContext already follows the suture.Service pattern, so
// the wrapper only adds a name for logging.
type ChannelHubService struct {
	hub  ContextRunner
	name string
}

// NewChannelHubService creates a hub service wrapper.
func NewChannelHubService(hub ContextRunner) *ChannelHubService {
	return &ChannelHubService{
		hub:  hub,
		name: "channel-hub",
	}
}

// Serve implements suture.Service.
func (s *ChannelHubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String implements fmt.Stringer for supervisor logging.
func (s *ChannelHubService) String() string {
	return s.name
}

// BridgeRunner matches the bot bridge's blocking run loop.
type BridgeRunner interface {
	Run(ctx context.Context) error
}

// BotBridgeService wraps the bot bridge as a supervised service, so a
// transport failure restarts the bridge without touching the hub.
type BotBridgeService struct {
	bridge BridgeRunner
	name   string
}

// NewBotBridgeService creates a bot bridge service wrapper.
func NewBotBridgeService(bridge BridgeRunner) *BotBridgeService {
	return &BotBridgeService{
		bridge: bridge,
		name:   "bot-bridge",
	}
}

// Serve implements suture.Service.
func (s *BotBridgeService) Serve(ctx context.Context) error {
	return s.bridge.Run(ctx)
}

// String implements fmt.Stringer for supervisor logging.
func (s *BotBridgeService) String() string {
	return s.name
}

// HTTPServer matches *http.Server's lifecycle methods, enabling tests
// with fakes.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService wraps an HTTP server as a supervised service,
// translating the blocking ListenAndServe pattern into suture's
// context-aware Serve.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	name            string
}

// NewHTTPServerService creates an HTTP server service wrapper. The
// shutdownTimeout bounds how long active connections get to drain on
// graceful shutdown.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "http-server",
	}
}

// Serve implements suture.Service. It starts the listener in a
// goroutine, then waits for either a server error or context
// cancellation; on cancellation it shuts the server down gracefully.
// http.ErrServerClosed is expected on shutdown and converted to nil.
func (s *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// The original context is already canceled; shutdown needs
		// its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}

		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *HTTPServerService) String() string {
	return s.name
}
