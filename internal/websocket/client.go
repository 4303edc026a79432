// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package websocket

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/cadrelay/cadrelay/internal/channel"
	"github.com/cadrelay/cadrelay/internal/logging"
	"github.com/cadrelay/cadrelay/internal/metrics"
	"github.com/cadrelay/cadrelay/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
	sendBuffer     = 256
)

// Error codes carried by error envelopes.
const (
	ErrCodeRoleNotPermitted = "ROLE_NOT_PERMITTED"
	ErrCodeNotSubscribed    = "NOT_SUBSCRIBED"
	ErrCodeUnknownChannel   = "UNKNOWN_CHANNEL"
	ErrCodeBadMessage       = "BAD_MESSAGE"
)

// Inbound message types accepted from clients.
const (
	inboundTypeJoin   = "join"
	inboundTypeLeave  = "leave"
	inboundTypeSignal = "signal"
	inboundTypePing   = "ping"
)

// clientIDCounter generates unique, monotonically increasing client
// IDs. IDs start at 1; zero is reserved by the registry to mean "no
// member".
var clientIDCounter atomic.Uint64

// inboundMessage is the frame clients send.
type inboundMessage struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client is one authenticated WebSocket connection. It implements
// channel.Member: the registry delivers envelopes into its buffered
// send channel and the write pump drains them to the wire.
type Client struct {
	id       uint64
	hub      *Hub
	conn     *websocket.Conn
	identity models.Identity

	send      chan channel.Envelope
	closeOnce sync.Once
	closed    atomic.Bool
}

// NewClient creates a client for an upgraded connection with its
// verified identity.
func NewClient(hub *Hub, conn *websocket.Conn, identity models.Identity) *Client {
	return &Client{
		id:       clientIDCounter.Add(1),
		hub:      hub,
		conn:     conn,
		identity: identity,
		send:     make(chan channel.Envelope, sendBuffer),
	}
}

// ID implements channel.Member.
func (c *Client) ID() uint64 { return c.id }

// Identity implements channel.Member.
func (c *Client) Identity() models.Identity { return c.identity }

// Deliver implements channel.Member with a non-blocking enqueue.
// Returns false when the client is closed or its buffer is full.
func (c *Client) Deliver(env channel.Envelope) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// closeSend marks the client closed and closes the send channel,
// terminating the write pump. Idempotent.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.send)
	})
}

// signalDisconnect hands the client to the hub for teardown. When the
// hub has already stopped, nobody receives on Unregister and shutdown
// has closed the client anyway, so the pump just exits.
func (c *Client) signalDisconnect() {
	select {
	case c.hub.Unregister <- c:
	case <-c.hub.done:
	}
}

// Start begins the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readPump reads inbound frames and dispatches them against the
// registry. Dispatch is synchronous so a client's own operations keep
// their order: a join followed by a signal cannot overtake itself.
func (c *Client) readPump() {
	defer func() {
		c.signalDisconnect()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Str("identity", c.identity.ID).Msg("unexpected websocket close error")
			}
			break
		}
		c.handleInbound(msg)
	}
}

// handleInbound applies one inbound frame.
func (c *Client) handleInbound(msg inboundMessage) {
	switch msg.Type {
	case inboundTypeJoin:
		if err := c.hub.registry.Join(c, msg.Channel); err != nil {
			c.deliverError(msg.Channel, err)
			return
		}
		c.Deliver(channel.Envelope{
			Type:    channel.MessageTypeJoined,
			Channel: msg.Channel,
		})

	case inboundTypeLeave:
		if err := c.hub.registry.Leave(c, msg.Channel); err != nil {
			c.deliverError(msg.Channel, err)
			return
		}
		c.Deliver(channel.Envelope{
			Type:    channel.MessageTypeLeft,
			Channel: msg.Channel,
		})

	case inboundTypeSignal:
		if _, err := c.hub.registry.Relay(c, msg.Channel, msg.Payload); err != nil {
			c.deliverError(msg.Channel, err)
		}

	case inboundTypePing:
		c.Deliver(channel.Envelope{Type: channel.MessageTypePong})

	default:
		c.Deliver(channel.Envelope{
			Type: channel.MessageTypeError,
			Data: channel.ErrorData{
				Code:    ErrCodeBadMessage,
				Message: "unrecognized message type",
			},
		})
	}
}

// deliverError maps a registry error to an error envelope.
func (c *Client) deliverError(channelName string, err error) {
	var code string
	switch {
	case errors.Is(err, channel.ErrRoleNotPermitted):
		code = ErrCodeRoleNotPermitted
		metrics.RecordAuthzDenied("role_not_permitted")
	case errors.Is(err, channel.ErrNotSubscribed):
		code = ErrCodeNotSubscribed
		metrics.RecordAuthzDenied("not_subscribed")
	case errors.Is(err, channel.ErrUnknownChannel):
		code = ErrCodeUnknownChannel
		metrics.RecordAuthzDenied("unknown_channel")
	default:
		code = ErrCodeBadMessage
	}

	logging.Debug().
		Str("identity", c.identity.ID).
		Str("channel", channelName).
		Str("code", code).
		Msg("channel operation rejected")

	c.Deliver(channel.Envelope{
		Type:    channel.MessageTypeError,
		Channel: channelName,
		Data: channel.ErrorData{
			Code:    code,
			Message: err.Error(),
		},
	})
}

// writePump drains the send channel to the connection and keeps the
// connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Debug().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := c.conn.WriteJSON(env); err != nil {
				logging.Error().Err(err).Msg("failed to write envelope")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
