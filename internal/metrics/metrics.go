// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

// Package metrics provides Prometheus instrumentation for CADRelay:
// WebSocket connections, channel membership, relay and event delivery,
// authentication failures, and bot bridge activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocket Connection Metrics
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadrelay_ws_connections_active",
			Help: "Current number of connected WebSocket clients",
		},
	)

	WSConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadrelay_ws_connections_total",
			Help: "Total number of WebSocket connections accepted",
		},
	)

	// Channel Metrics
	ChannelMembers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cadrelay_channel_members",
			Help: "Current number of members subscribed to each channel",
		},
		[]string{"channel"},
	)

	RelayMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadrelay_relay_messages_total",
			Help: "Total number of signal messages relayed",
		},
		[]string{"channel"},
	)

	RelayRecipientsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadrelay_relay_recipients_total",
			Help: "Total number of signal deliveries to channel members",
		},
		[]string{"channel"},
	)

	DeliveryDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadrelay_delivery_dropped_total",
			Help: "Total number of envelopes dropped due to full member buffers",
		},
		[]string{"channel"},
	)

	// Event Metrics
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadrelay_events_published_total",
			Help: "Total number of dispatch events published",
		},
		[]string{"type"},
	)

	// Authentication Metrics
	AuthFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadrelay_auth_failures_total",
			Help: "Total number of rejected credentials",
		},
		[]string{"reason"}, // missing, invalid, expired
	)

	AuthzDeniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadrelay_authz_denied_total",
			Help: "Total number of denied channel operations",
		},
		[]string{"reason"}, // role_not_permitted, not_subscribed, unknown_channel
	)

	// Bot Bridge Metrics
	BotCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadrelay_bot_commands_total",
			Help: "Total number of bot commands processed",
		},
		[]string{"verb", "outcome"}, // accepted, rejected, rate_limited
	)

	BotOutboundTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadrelay_bot_outbound_total",
			Help: "Total number of events mirrored outward to chat",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadrelay_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cadrelay_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordWSConnection tracks a WebSocket connection opening or closing.
func RecordWSConnection(connected bool) {
	if connected {
		WSConnectionsActive.Inc()
		WSConnectionsTotal.Inc()
		return
	}
	WSConnectionsActive.Dec()
}

// SetChannelMembers updates the membership gauge for a channel.
func SetChannelMembers(channelName string, count int) {
	ChannelMembers.WithLabelValues(channelName).Set(float64(count))
}

// RecordRelayMessage tracks one relayed signal and its recipient count.
func RecordRelayMessage(channelName string, recipients int) {
	RelayMessagesTotal.WithLabelValues(channelName).Inc()
	RelayRecipientsTotal.WithLabelValues(channelName).Add(float64(recipients))
}

// RecordDeliveryDropped tracks an envelope dropped by a full member buffer.
func RecordDeliveryDropped(channelName string) {
	DeliveryDroppedTotal.WithLabelValues(channelName).Inc()
}

// RecordEventPublished tracks a published dispatch event.
func RecordEventPublished(eventType string) {
	EventsPublishedTotal.WithLabelValues(eventType).Inc()
}

// RecordAuthFailure tracks a rejected credential by reason.
func RecordAuthFailure(reason string) {
	AuthFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordAuthzDenied tracks a denied channel operation by reason.
func RecordAuthzDenied(reason string) {
	AuthzDeniedTotal.WithLabelValues(reason).Inc()
}

// RecordBotCommand tracks a bot command by verb and outcome.
func RecordBotCommand(verb, outcome string) {
	BotCommandsTotal.WithLabelValues(verb, outcome).Inc()
}

// RecordBotOutbound tracks an event mirrored outward to chat.
func RecordBotOutbound() {
	BotOutboundTotal.Inc()
}

// RecordAPIRequest tracks an API request with its latency.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
