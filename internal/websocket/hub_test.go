// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/cadrelay/cadrelay/internal/channel"
	"github.com/cadrelay/cadrelay/internal/models"
)

// newTestClient builds a client without a live connection. Tests drive
// Deliver and the hub lifecycle directly; the pumps are not started.
func newTestClient(hub *Hub, id string, roles ...models.Role) *Client {
	return NewClient(hub, nil, models.Identity{ID: id, Roles: roles})
}

// drain empties the client's pending envelopes.
func drain(c *Client) []channel.Envelope {
	var out []channel.Envelope
	for {
		select {
		case env, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func newTestHub() *Hub {
	return NewHub(channel.NewRegistry(channel.DefaultTable()))
}

func TestRegisterAutoSubscribesAndAcks(t *testing.T) {
	t.Parallel()

	hub := newTestHub()
	client := newTestClient(hub, "unit-7", models.RoleLEO)

	hub.register(client)

	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}
	if got := hub.registry.MemberCount("radio:leo"); got != 1 {
		t.Errorf("expected auto-subscription to radio:leo, got %d members", got)
	}

	acks := drain(client)
	if len(acks) != 1 {
		t.Fatalf("expected 1 joined ack, got %d", len(acks))
	}
	if acks[0].Type != channel.MessageTypeJoined || acks[0].Channel != "radio:leo" {
		t.Errorf("unexpected ack: %+v", acks[0])
	}
}

func TestUnregisterCleansUp(t *testing.T) {
	t.Parallel()

	hub := newTestHub()
	client := newTestClient(hub, "unit-7", models.RoleLEO)

	hub.register(client)
	hub.unregister(client)

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
	if got := hub.registry.MemberCount("radio:leo"); got != 0 {
		t.Errorf("expected empty channel after unregister, got %d", got)
	}
	if client.Deliver(channel.Envelope{Type: channel.MessageTypePong}) {
		t.Error("closed client must reject deliveries")
	}

	// Duplicate unregister is a no-op.
	hub.unregister(client)
}

func TestHandleInboundJoinLeave(t *testing.T) {
	t.Parallel()

	hub := newTestHub()
	client := newTestClient(hub, "observer-1")
	hub.register(client)
	drain(client)

	client.handleInbound(inboundMessage{Type: inboundTypeJoin, Channel: "events"})
	acks := drain(client)
	if len(acks) != 1 || acks[0].Type != channel.MessageTypeJoined {
		t.Fatalf("expected joined ack, got %+v", acks)
	}

	client.handleInbound(inboundMessage{Type: inboundTypeLeave, Channel: "events"})
	acks = drain(client)
	if len(acks) != 1 || acks[0].Type != channel.MessageTypeLeft {
		t.Fatalf("expected left ack, got %+v", acks)
	}
}

func TestHandleInboundJoinDenied(t *testing.T) {
	t.Parallel()

	hub := newTestHub()
	client := newTestClient(hub, "unit-7", models.RoleLEO)
	hub.register(client)
	drain(client)

	client.handleInbound(inboundMessage{Type: inboundTypeJoin, Channel: "radio:fire"})

	envs := drain(client)
	if len(envs) != 1 || envs[0].Type != channel.MessageTypeError {
		t.Fatalf("expected error envelope, got %+v", envs)
	}
	data, ok := envs[0].Data.(channel.ErrorData)
	if !ok {
		t.Fatalf("expected ErrorData, got %T", envs[0].Data)
	}
	if data.Code != ErrCodeRoleNotPermitted {
		t.Errorf("expected ROLE_NOT_PERMITTED, got %s", data.Code)
	}
}

func TestHandleInboundSignal(t *testing.T) {
	t.Parallel()

	hub := newTestHub()
	sender := newTestClient(hub, "unit-7", models.RoleLEO)
	peer := newTestClient(hub, "unit-8", models.RoleLEO)
	hub.register(sender)
	hub.register(peer)
	drain(sender)
	drain(peer)

	sender.handleInbound(inboundMessage{
		Type:    inboundTypeSignal,
		Channel: "radio:leo",
		Payload: []byte(`{"transmission":"10-8 in service"}`),
	})

	if envs := drain(sender); len(envs) != 0 {
		t.Errorf("sender must not receive its own signal, got %+v", envs)
	}

	envs := drain(peer)
	if len(envs) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(envs))
	}
	if envs[0].Type != channel.MessageTypeSignal || envs[0].From != "unit-7" {
		t.Errorf("unexpected signal envelope: %+v", envs[0])
	}
	if string(envs[0].Payload) != `{"transmission":"10-8 in service"}` {
		t.Errorf("payload altered: %s", envs[0].Payload)
	}
}

func TestHandleInboundSignalErrors(t *testing.T) {
	t.Parallel()

	hub := newTestHub()
	client := newTestClient(hub, "observer-1")
	hub.register(client)
	drain(client)

	// Not subscribed to events.
	client.handleInbound(inboundMessage{Type: inboundTypeSignal, Channel: "events", Payload: []byte(`{}`)})
	envs := drain(client)
	if len(envs) != 1 {
		t.Fatalf("expected error envelope, got %d", len(envs))
	}
	if data := envs[0].Data.(channel.ErrorData); data.Code != ErrCodeNotSubscribed {
		t.Errorf("expected NOT_SUBSCRIBED, got %s", data.Code)
	}

	// Unknown channel.
	client.handleInbound(inboundMessage{Type: inboundTypeSignal, Channel: "radio:coastguard", Payload: []byte(`{}`)})
	envs = drain(client)
	if data := envs[0].Data.(channel.ErrorData); data.Code != ErrCodeUnknownChannel {
		t.Errorf("expected UNKNOWN_CHANNEL, got %s", data.Code)
	}
}

func TestHandleInboundPingAndUnknown(t *testing.T) {
	t.Parallel()

	hub := newTestHub()
	client := newTestClient(hub, "unit-7", models.RoleLEO)
	hub.register(client)
	drain(client)

	client.handleInbound(inboundMessage{Type: inboundTypePing})
	envs := drain(client)
	if len(envs) != 1 || envs[0].Type != channel.MessageTypePong {
		t.Fatalf("expected pong, got %+v", envs)
	}

	client.handleInbound(inboundMessage{Type: "teleport"})
	envs = drain(client)
	if len(envs) != 1 || envs[0].Type != channel.MessageTypeError {
		t.Fatalf("expected error envelope, got %+v", envs)
	}
	if data := envs[0].Data.(channel.ErrorData); data.Code != ErrCodeBadMessage {
		t.Errorf("expected BAD_MESSAGE, got %s", data.Code)
	}
}

func TestDeliverFullBuffer(t *testing.T) {
	t.Parallel()

	hub := newTestHub()
	client := newTestClient(hub, "unit-7", models.RoleLEO)

	for i := 0; i < sendBuffer; i++ {
		if !client.Deliver(channel.Envelope{Type: channel.MessageTypePong}) {
			t.Fatalf("delivery %d should fit in buffer", i)
		}
	}
	if client.Deliver(channel.Envelope{Type: channel.MessageTypePong}) {
		t.Error("delivery past buffer capacity must report a drop")
	}
}

func TestRunWithContextLifecycle(t *testing.T) {
	t.Parallel()

	hub := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()

	client := newTestClient(hub, "unit-7", models.RoleLEO)
	hub.Register <- client

	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.Unregister <- client
	waitFor(t, func() bool { return hub.ClientCount() == 0 })

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop after cancel")
	}
}

func TestRunWithContextClosesClientsOnShutdown(t *testing.T) {
	t.Parallel()

	hub := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()

	a := newTestClient(hub, "unit-7", models.RoleLEO)
	b := newTestClient(hub, "hq-1", models.RoleDispatch)
	hub.Register <- a
	hub.Register <- b
	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop after cancel")
	}

	if hub.ClientCount() != 0 {
		t.Errorf("expected all clients closed, got %d", hub.ClientCount())
	}
	if hub.registry.MemberCount("radio:leo") != 0 || hub.registry.MemberCount("dispatch") != 0 {
		t.Error("expected registry cleaned on shutdown")
	}
}

func TestLifecycleSendsAfterShutdownDoNotBlock(t *testing.T) {
	t.Parallel()

	hub := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()

	client := newTestClient(hub, "unit-7", models.RoleLEO)
	hub.Register <- client
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop after cancel")
	}

	select {
	case <-hub.Done():
	default:
		t.Fatal("Done must be closed once the run loop exits")
	}

	// A read pump noticing its connection die after shutdown must not
	// hang on the unregister handoff.
	returned := make(chan struct{})
	go func() {
		client.signalDisconnect()
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect handoff blocked after hub shutdown")
	}
}

// waitFor polls a condition with a deadline.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
