// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cadrelay/cadrelay/internal/logging"
	ws "github.com/cadrelay/cadrelay/internal/websocket"
)

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout against slow clients.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins.
//
// Requests without an Origin header are allowed: dispatch consoles,
// mobile terminals, and the bot bridge are native clients that never
// send one, and they already carry a verified bearer token by the time
// the upgrade runs. Browser requests always send Origin and are checked
// against the configured list.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range h.corsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().
		Str("origin", origin).
		Msg("websocket connection rejected: origin not allowed")
	return false
}

// WebSocket upgrades an authenticated request to a realtime session.
// Token verification happens in middleware before the upgrade, so a
// bad token is refused as plain HTTP 401 rather than after the
// handshake.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		NewResponseWriter(w, r).Unauthorized("authentication required")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logging.Error().Err(err).Str("identity", identity.ID).Msg("websocket upgrade error")
		return
	}

	client := ws.NewClient(h.hub, conn, identity)
	select {
	case h.hub.Register <- client:
		client.Start()
	case <-h.hub.Done():
		// Upgrade raced hub shutdown; drop the connection.
		_ = conn.Close()
	}
}
