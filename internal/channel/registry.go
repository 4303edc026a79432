// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package channel

import (
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/cadrelay/cadrelay/internal/logging"
	"github.com/cadrelay/cadrelay/internal/metrics"
	"github.com/cadrelay/cadrelay/internal/models"
)

// Member is a connected participant that can receive envelopes. It is
// implemented by websocket clients and stubbed in tests.
//
// Deliver must not block: it reports false when the member's send
// buffer is full and the envelope was dropped.
type Member interface {
	// ID returns a unique nonzero identifier used for deterministic
	// ordering. Zero is reserved to mean "no member".
	ID() uint64

	// Identity returns the immutable authenticated identity.
	Identity() models.Identity

	// Deliver enqueues an envelope for the member. Returns false if
	// the envelope was dropped.
	Deliver(env Envelope) bool
}

// memberState tracks one connected member and its subscriptions.
type memberState struct {
	member   Member
	channels map[string]struct{}
}

// Registry is the live membership index: which members are subscribed
// to which channels. Both directions of the index are updated under one
// mutex so they can never disagree.
//
// The registry enforces role-gated joins against the static table and
// routes signal relays and event broadcasts to subscribed members.
type Registry struct {
	table *Table

	mu       sync.RWMutex
	members  map[uint64]*memberState
	channels map[string]map[uint64]Member
}

// NewRegistry creates a registry over the given channel table.
func NewRegistry(table *Table) *Registry {
	return &Registry{
		table:    table,
		members:  make(map[uint64]*memberState),
		channels: make(map[string]map[uint64]Member),
	}
}

// Table returns the static channel table the registry enforces.
func (r *Registry) Table() *Table {
	return r.table
}

// Join subscribes a member to a channel after checking the channel's
// role requirement. Joining a channel the member is already subscribed
// to is a no-op.
//
// Returns ErrUnknownChannel if the channel is not in the table and
// ErrRoleNotPermitted if the member holds none of the required roles.
func (r *Registry) Join(m Member, name string) error {
	def, ok := r.table.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, name)
	}
	if !def.Permits(m.Identity().Roles) {
		return fmt.Errorf("%w: %s", ErrRoleNotPermitted, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.joinLocked(m, name)
	return nil
}

// joinLocked adds the member to both directions of the index.
// Must be called with mu held.
func (r *Registry) joinLocked(m Member, name string) {
	state, ok := r.members[m.ID()]
	if !ok {
		state = &memberState{
			member:   m,
			channels: make(map[string]struct{}),
		}
		r.members[m.ID()] = state
	}

	if _, already := state.channels[name]; already {
		return
	}
	state.channels[name] = struct{}{}

	subs, ok := r.channels[name]
	if !ok {
		subs = make(map[uint64]Member)
		r.channels[name] = subs
	}
	subs[m.ID()] = m

	metrics.SetChannelMembers(name, len(subs))
	logging.Debug().
		Str("channel", name).
		Str("identity", m.Identity().ID).
		Int("members", len(subs)).
		Msg("member joined channel")
}

// Leave removes a member's subscription to a channel.
//
// Returns ErrUnknownChannel if the channel is not in the table and
// ErrNotSubscribed if the member had not joined it.
func (r *Registry) Leave(m Member, name string) error {
	if _, ok := r.table.Lookup(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.members[m.ID()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotSubscribed, name)
	}
	if _, subscribed := state.channels[name]; !subscribed {
		return fmt.Errorf("%w: %s", ErrNotSubscribed, name)
	}

	delete(state.channels, name)
	r.removeFromChannelLocked(m.ID(), name)

	logging.Debug().
		Str("channel", name).
		Str("identity", m.Identity().ID).
		Msg("member left channel")
	return nil
}

// removeFromChannelLocked drops a member from a channel's subscriber
// set, deleting the set when it empties. Must be called with mu held.
func (r *Registry) removeFromChannelLocked(id uint64, name string) {
	subs, ok := r.channels[name]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(r.channels, name)
	}
	metrics.SetChannelMembers(name, len(subs))
}

// AutoSubscribe joins the member to every role-gated channel its roles
// permit. Open channels are not auto-subscribed: a channel anyone may
// join is an opt-in surface, not a default firehose.
//
// Returns the sorted names of the channels joined.
func (r *Registry) AutoSubscribe(m Member) []string {
	roles := m.Identity().Roles

	r.mu.Lock()
	defer r.mu.Unlock()

	var joined []string
	for _, name := range r.table.names {
		def := r.table.defs[name]
		if def.Open() {
			continue
		}
		if !def.Roles.Intersects(roles) {
			continue
		}
		r.joinLocked(m, name)
		joined = append(joined, name)
	}

	return joined
}

// Disconnect removes a member from every channel and forgets it. Safe
// to call for members that never joined anything, and safe to call
// more than once.
func (r *Registry) Disconnect(m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.members[m.ID()]
	if !ok {
		return
	}

	for name := range state.channels {
		r.removeFromChannelLocked(m.ID(), name)
	}
	delete(r.members, m.ID())

	logging.Debug().
		Str("identity", m.Identity().ID).
		Int("channels_left", len(state.channels)).
		Msg("member disconnected")
}

// Channels returns the sorted channel names the member is subscribed to.
func (r *Registry) Channels(m Member) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.members[m.ID()]
	if !ok {
		return nil
	}

	names := make([]string, 0, len(state.channels))
	for name := range state.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MemberCount returns the number of members subscribed to a channel.
// Unknown and empty channels both report zero.
func (r *Registry) MemberCount(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[name])
}

// Relay fans a signal payload out to every other member of a channel.
// The payload is opaque: it is delivered byte for byte, never parsed.
// The sender never receives its own signal.
//
// Returns the number of members the signal was delivered to. A relay
// into a channel where the sender is the only member delivers to zero
// recipients and is not an error.
//
// Returns ErrUnknownChannel if the channel is not in the table and
// ErrNotSubscribed if the sender has not joined it.
func (r *Registry) Relay(sender Member, name string, payload json.RawMessage) (int, error) {
	if _, ok := r.table.Lookup(name); !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownChannel, name)
	}

	env := Envelope{
		Type:    MessageTypeSignal,
		Channel: name,
		From:    sender.Identity().ID,
		Payload: payload,
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.members[sender.ID()]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotSubscribed, name)
	}
	if _, subscribed := state.channels[name]; !subscribed {
		return 0, fmt.Errorf("%w: %s", ErrNotSubscribed, name)
	}

	delivered := r.deliverLocked(name, env, sender.ID())
	metrics.RecordRelayMessage(name, delivered)
	return delivered, nil
}

// Broadcast delivers an envelope to every member of a channel. It is
// the trusted producer path: no membership or role check is applied to
// the caller.
//
// Returns the number of members delivered to; zero recipients is not
// an error. Returns ErrUnknownChannel if the channel is not in the
// table.
func (r *Registry) Broadcast(name string, env Envelope) (int, error) {
	if _, ok := r.table.Lookup(name); !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownChannel, name)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.deliverLocked(name, env, 0), nil
}

// deliverLocked fans an envelope out to a channel's members in ID
// order, skipping the excluded sender. Delivery is non-blocking: a
// member with a full buffer has the envelope dropped rather than
// stalling the fan-out for everyone else. Must be called with mu held.
func (r *Registry) deliverLocked(name string, env Envelope, exclude uint64) int {
	subs := r.channels[name]
	if len(subs) == 0 {
		return 0
	}

	ids := make([]uint64, 0, len(subs))
	for id := range subs {
		if id == exclude {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	delivered := 0
	for _, id := range ids {
		if subs[id].Deliver(env) {
			delivered++
			continue
		}
		metrics.RecordDeliveryDropped(name)
		logging.Warn().
			Str("channel", name).
			Str("type", env.Type).
			Uint64("member", id).
			Msg("member buffer full, dropping envelope")
	}

	return delivered
}
