// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package channel

import "github.com/goccy/go-json"

// Message types sent to channel members.
const (
	// MessageTypeSignal carries an opaque payload relayed between
	// members of a channel.
	MessageTypeSignal = "signal"

	// MessageTypeJoined acknowledges a join.
	MessageTypeJoined = "joined"

	// MessageTypeLeft acknowledges a leave.
	MessageTypeLeft = "left"

	// MessageTypeError reports a rejected inbound message.
	MessageTypeError = "error"

	// MessageTypePong answers an application-level ping.
	MessageTypePong = "pong"
)

// Envelope is the wire frame delivered to channel members. Payload is
// opaque relay content passed through without inspection; Data carries
// structured server-originated content such as dispatch events and
// acknowledgments. Exactly one of the two is set.
type Envelope struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	From    string          `json:"from,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Data    interface{}     `json:"data,omitempty"`
}

// ErrorData is the Data carried by error envelopes.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
