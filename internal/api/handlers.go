// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package api

import (
	"net/http"
	"time"

	"github.com/cadrelay/cadrelay/internal/channel"
	"github.com/cadrelay/cadrelay/internal/event"
	"github.com/cadrelay/cadrelay/internal/store"
	ws "github.com/cadrelay/cadrelay/internal/websocket"
)

// DefaultEventChannel is the channel incident events publish to when no
// other channel is configured. It is open, so any authenticated
// identity can subscribe to the incident feed.
const DefaultEventChannel = "events"

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	registry    *channel.Registry
	hub         *ws.Hub
	broadcaster *event.Broadcaster
	incidents   store.IncidentStore

	// eventChannel is where incident events are published.
	eventChannel string

	// corsOrigins feeds WebSocket origin checking.
	corsOrigins []string

	startTime time.Time
}

// NewHandler creates an API handler over the relay's core components.
func NewHandler(registry *channel.Registry, hub *ws.Hub, broadcaster *event.Broadcaster, incidents store.IncidentStore, corsOrigins []string) *Handler {
	return &Handler{
		registry:     registry,
		hub:          hub,
		broadcaster:  broadcaster,
		incidents:    incidents,
		eventChannel: DefaultEventChannel,
		corsOrigins:  corsOrigins,
		startTime:    time.Now(),
	}
}

// HealthResponse is the payload for the health endpoint.
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Clients       int    `json:"clients"`
	Channels      int    `json:"channels"`
}

// Health reports liveness plus basic relay gauges.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Clients:       h.hub.ClientCount(),
		Channels:      h.registry.Table().Len(),
	})
}

// ChannelInfo describes one channel in the table for the listing
// endpoint.
type ChannelInfo struct {
	Name    string   `json:"name"`
	Roles   []string `json:"roles"`
	Open    bool     `json:"open"`
	Members int      `json:"members"`
}

// Channels lists the channel table with current member counts.
func (h *Handler) Channels(w http.ResponseWriter, r *http.Request) {
	table := h.registry.Table()
	names := table.Names()

	out := make([]ChannelInfo, 0, len(names))
	for _, name := range names {
		def, _ := table.Lookup(name)

		permitted := def.Roles.Slice()
		roles := make([]string, 0, len(permitted))
		for _, role := range permitted {
			roles = append(roles, string(role))
		}

		out = append(out, ChannelInfo{
			Name:    name,
			Roles:   roles,
			Open:    def.Open(),
			Members: h.registry.MemberCount(name),
		})
	}

	WriteSuccess(w, r, out)
}
