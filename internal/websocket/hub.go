// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

// Package websocket carries CADRelay's realtime transport: the hub that
// tracks connected clients and the per-connection read/write pumps that
// move envelopes between the wire and the channel registry.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/cadrelay/cadrelay/internal/channel"
	"github.com/cadrelay/cadrelay/internal/logging"
	"github.com/cadrelay/cadrelay/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was
	// canceled. This is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was
	// exceeded. This may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Hub maintains the set of connected clients. Channel membership lives
// in the registry; the hub owns connection lifecycle: registering new
// clients, auto-subscribing them, and tearing them down on disconnect.
type Hub struct {
	registry *channel.Registry

	Register   chan *Client
	Unregister chan *Client

	// done closes when the run loop exits, so lifecycle sends racing
	// shutdown bail out instead of blocking forever.
	done     chan struct{}
	doneOnce sync.Once

	mu      sync.RWMutex
	clients map[uint64]*Client
}

// NewHub creates a hub over the given registry.
func NewHub(registry *channel.Registry) *Hub {
	return &Hub{
		registry:   registry,
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[uint64]*Client),
	}
}

// Done reports hub shutdown: the channel closes once the run loop has
// exited and no receiver remains on Register/Unregister.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// RunWithContext runs the hub until the context is canceled. Designed
// for suture supervision: on cancellation all clients are closed and
// ctx.Err() is returned.
//
// DETERMINISM: Uses priority-based selection so behavior is predictable
// when multiple channels are ready simultaneously:
//   - Priority 1: Context cancellation (shutdown)
//   - Priority 2: Client lifecycle events (Register/Unregister)
func (h *Hub) RunWithContext(ctx context.Context) error {
	defer h.doneOnce.Do(func() { close(h.done) })

	for {
		// Priority 1: Check for shutdown (non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: Handle lifecycle events or wait (blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.register(client)

		case client := <-h.Unregister:
			h.unregister(client)
		}
	}
}

// register adds a client, auto-subscribes it to the channels its roles
// grant, and acknowledges each subscription with a joined envelope.
func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	total := len(h.clients)
	h.mu.Unlock()

	metrics.RecordWSConnection(true)

	joined := h.registry.AutoSubscribe(client)
	for _, name := range joined {
		client.Deliver(channel.Envelope{
			Type:    channel.MessageTypeJoined,
			Channel: name,
		})
	}

	logging.Info().
		Str("identity", client.Identity().ID).
		Strs("auto_subscribed", joined).
		Int("total_clients", total).
		Msg("websocket client connected")
}

// unregister removes a client from the registry and the hub, closing
// its send channel. Safe against duplicate unregister of one client.
func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client.id]
	if ok {
		delete(h.clients, client.id)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}

	h.registry.Disconnect(client)
	client.closeSend()
	metrics.RecordWSConnection(false)

	logging.Info().
		Str("identity", client.Identity().ID).
		Int("total_clients", total).
		Msg("websocket client disconnected")
}

// logGracefulShutdown closes all clients and logs structured shutdown
// information. Context cancellation is expected behavior, so no error
// field is logged.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	closed := h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", closed).
		Msg("websocket hub stopped")
}

// getShutdownReason determines the shutdown reason from the context error.
func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// closeAllClients tears down every connected client in ID order and
// returns how many were closed.
func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[uint64]*Client)
	h.mu.Unlock()

	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, client := range clients {
		h.registry.Disconnect(client)
		client.closeSend()
		metrics.RecordWSConnection(false)
	}

	return len(clients)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
