// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package event

import (
	"sync"

	"github.com/cadrelay/cadrelay/internal/channel"
	"github.com/cadrelay/cadrelay/internal/logging"
	"github.com/cadrelay/cadrelay/internal/metrics"
)

// Mirror receives a copy of every published event for delivery outside
// the channel layer, such as the chat bot bridge. Mirrors are named so
// an event originating from a mirror is not echoed back to it.
//
// OnEvent must not block; mirrors buffer or drop internally.
type Mirror interface {
	// Name identifies the mirror for echo suppression.
	Name() string

	// OnEvent receives a published event and the channel it went to.
	OnEvent(ev Event, channelName string)
}

// Broadcaster publishes dispatch events to channel members and mirrors.
// It is the single trusted ingress for events: REST handlers and the
// bot bridge both publish through it.
type Broadcaster struct {
	registry *channel.Registry

	mu      sync.RWMutex
	mirrors []Mirror
}

// NewBroadcaster creates a broadcaster over the given registry.
func NewBroadcaster(registry *channel.Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// AddMirror registers a mirror. Mirrors registered after publishing has
// begun see only subsequent events.
func (b *Broadcaster) AddMirror(m Mirror) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mirrors = append(b.mirrors, m)
}

// Publish delivers an event to every member of the named channel and to
// every mirror.
//
// Returns the number of channel members delivered to. Zero recipients
// is a quiet room, not a failure; the only error is an unknown channel.
func (b *Broadcaster) Publish(ev Event, channelName string) (int, error) {
	return b.PublishFrom(ev, channelName, "")
}

// PublishFrom is Publish with an origin: the named mirror the event
// came from, which is skipped during mirror fan-out so a bridge does
// not see its own event come back.
func (b *Broadcaster) PublishFrom(ev Event, channelName, origin string) (int, error) {
	env := channel.Envelope{
		Type:    ev.MessageType(),
		Channel: channelName,
		Data:    ev,
	}

	delivered, err := b.registry.Broadcast(channelName, env)
	if err != nil {
		return 0, err
	}

	metrics.RecordEventPublished(ev.MessageType())
	logging.Debug().
		Str("type", ev.MessageType()).
		Str("channel", channelName).
		Int("delivered", delivered).
		Msg("event published")

	b.mu.RLock()
	mirrors := make([]Mirror, len(b.mirrors))
	copy(mirrors, b.mirrors)
	b.mu.RUnlock()

	for _, m := range mirrors {
		if origin != "" && m.Name() == origin {
			continue
		}
		m.OnEvent(ev, channelName)
	}

	return delivered, nil
}
