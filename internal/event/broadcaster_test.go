// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package event

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cadrelay/cadrelay/internal/channel"
	"github.com/cadrelay/cadrelay/internal/models"
)

var stubIDCounter atomic.Uint64

type stubMember struct {
	id       uint64
	identity models.Identity

	mu    sync.Mutex
	inbox []channel.Envelope
}

func newStubMember(id string, roles ...models.Role) *stubMember {
	return &stubMember{
		id:       stubIDCounter.Add(1),
		identity: models.Identity{ID: id, Roles: roles},
	}
}

func (s *stubMember) ID() uint64                { return s.id }
func (s *stubMember) Identity() models.Identity { return s.identity }

func (s *stubMember) Deliver(env channel.Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbox = append(s.inbox, env)
	return true
}

func (s *stubMember) received() []channel.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]channel.Envelope, len(s.inbox))
	copy(out, s.inbox)
	return out
}

type recordingMirror struct {
	name string

	mu     sync.Mutex
	events []Event
}

func (m *recordingMirror) Name() string { return m.name }

func (m *recordingMirror) OnEvent(ev Event, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *recordingMirror) seen() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

func TestMessageTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ev       Event
		expected string
	}{
		{IncidentCreated{}, "incident:new"},
		{UnitAssigned{}, "unit:assigned"},
		{StatusChanged{}, "status:changed"},
	}

	for _, tt := range tests {
		if got := tt.ev.MessageType(); got != tt.expected {
			t.Errorf("MessageType() = %q, want %q", got, tt.expected)
		}
	}
}

func TestPublishFansOutToMembers(t *testing.T) {
	t.Parallel()

	reg := channel.NewRegistry(channel.DefaultTable())
	b := NewBroadcaster(reg)

	hq := newStubMember("hq-1", models.RoleDispatch)
	hq2 := newStubMember("hq-2", models.RoleDispatch)
	for _, m := range []*stubMember{hq, hq2} {
		if err := reg.Join(m, "dispatch"); err != nil {
			t.Fatalf("join failed: %v", err)
		}
	}

	ev := IncidentCreated{
		IncidentID: "INC-100",
		Type:       "fire",
		Summary:    "structure fire, 400 block of Oak",
		CreatedAt:  time.Now().UTC(),
	}

	n, err := b.Publish(ev, "dispatch")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 recipients, got %d", n)
	}

	for _, m := range []*stubMember{hq, hq2} {
		got := m.received()
		if len(got) != 1 {
			t.Fatalf("expected 1 envelope, got %d", len(got))
		}
		if got[0].Type != TypeIncidentCreated {
			t.Errorf("expected incident:new envelope, got %s", got[0].Type)
		}
		if got[0].Channel != "dispatch" {
			t.Errorf("expected dispatch channel, got %s", got[0].Channel)
		}
		data, ok := got[0].Data.(IncidentCreated)
		if !ok {
			t.Fatalf("expected IncidentCreated data, got %T", got[0].Data)
		}
		if data.IncidentID != "INC-100" {
			t.Errorf("expected INC-100, got %s", data.IncidentID)
		}
		if data.Type != "fire" {
			t.Errorf("expected fire type, got %q", data.Type)
		}
	}
}

func TestPublishZeroRecipients(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(channel.NewRegistry(channel.DefaultTable()))

	n, err := b.Publish(StatusChanged{IncidentID: "INC-1", Status: "closed"}, "dispatch")
	if err != nil {
		t.Fatalf("expected no error for empty channel, got %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 recipients, got %d", n)
	}
}

func TestPublishUnknownChannel(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(channel.NewRegistry(channel.DefaultTable()))
	mirror := &recordingMirror{name: "bot"}
	b.AddMirror(mirror)

	_, err := b.Publish(UnitAssigned{IncidentID: "INC-1"}, "radio:coastguard")
	if !errors.Is(err, channel.ErrUnknownChannel) {
		t.Errorf("expected ErrUnknownChannel, got %v", err)
	}
	if len(mirror.seen()) != 0 {
		t.Error("mirrors must not see events that failed to publish")
	}
}

func TestMirrorsReceiveEvents(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(channel.NewRegistry(channel.DefaultTable()))
	bot := &recordingMirror{name: "bot"}
	audit := &recordingMirror{name: "audit"}
	b.AddMirror(bot)
	b.AddMirror(audit)

	if _, err := b.Publish(IncidentCreated{IncidentID: "INC-200"}, "dispatch"); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if len(bot.seen()) != 1 || len(audit.seen()) != 1 {
		t.Errorf("expected both mirrors to see 1 event, got %d and %d",
			len(bot.seen()), len(audit.seen()))
	}
}

func TestPublishFromSkipsOriginMirror(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(channel.NewRegistry(channel.DefaultTable()))
	bot := &recordingMirror{name: "bot"}
	audit := &recordingMirror{name: "audit"}
	b.AddMirror(bot)
	b.AddMirror(audit)

	if _, err := b.PublishFrom(IncidentCreated{IncidentID: "INC-300"}, "dispatch", "bot"); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if len(bot.seen()) != 0 {
		t.Error("origin mirror must not see its own event")
	}
	if len(audit.seen()) != 1 {
		t.Error("other mirrors must still see the event")
	}
}

func TestPublishOrderingPerMember(t *testing.T) {
	t.Parallel()

	reg := channel.NewRegistry(channel.DefaultTable())
	b := NewBroadcaster(reg)

	hq := newStubMember("hq-1", models.RoleDispatch)
	if err := reg.Join(hq, "dispatch"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	evs := []Event{
		IncidentCreated{IncidentID: "INC-1"},
		UnitAssigned{IncidentID: "INC-1", Units: []string{"unit-7"}},
		StatusChanged{IncidentID: "INC-1", Status: "on-scene"},
	}
	for _, ev := range evs {
		if _, err := b.Publish(ev, "dispatch"); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
	}

	got := hq.received()
	if len(got) != 3 {
		t.Fatalf("expected 3 envelopes, got %d", len(got))
	}
	for i, ev := range evs {
		if got[i].Type != ev.MessageType() {
			t.Errorf("envelope %d type %q, want %q", i, got[i].Type, ev.MessageType())
		}
	}
}
