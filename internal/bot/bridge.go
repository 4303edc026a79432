// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/cadrelay/cadrelay/internal/config"
	"github.com/cadrelay/cadrelay/internal/event"
	"github.com/cadrelay/cadrelay/internal/logging"
	"github.com/cadrelay/cadrelay/internal/metrics"
	"github.com/cadrelay/cadrelay/internal/store"
)

// MirrorName identifies the bridge in event fan-out. Events published
// by the bridge carry this origin so they are not echoed back to chat.
const MirrorName = "bot"

// Transport carries raw messages between the bridge and the chat
// system. Implemented over NATS; stubbed in tests.
type Transport interface {
	// Subscribe starts delivering messages on the subject until ctx is
	// canceled.
	Subscribe(ctx context.Context, subject string) (<-chan []byte, error)

	// Publish sends a message on the subject.
	Publish(subject string, data []byte) error

	// Close releases the transport.
	Close() error
}

// InboundMessage is a chat message arriving at the bridge.
type InboundMessage struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// OutboundMessage is a chat message the bridge posts back.
type OutboundMessage struct {
	Text string `json:"text"`
}

// Bridge relays validated chat commands into the event stream and
// mirrors published events back out to chat. Each sender is rate
// limited independently so one noisy user cannot starve the rest.
type Bridge struct {
	cfg         config.BotConfig
	transport   Transport
	broadcaster *event.Broadcaster
	incidents   store.IncidentStore

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewBridge creates a bridge. The caller registers it as a mirror on
// the broadcaster and runs it under supervision.
func NewBridge(cfg config.BotConfig, transport Transport, broadcaster *event.Broadcaster, incidents store.IncidentStore) *Bridge {
	return &Bridge{
		cfg:         cfg,
		transport:   transport,
		broadcaster: broadcaster,
		incidents:   incidents,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// Name implements event.Mirror.
func (b *Bridge) Name() string { return MirrorName }

// OnEvent implements event.Mirror: published events are posted outward
// to chat as formatted text. Publish failures are logged and dropped;
// chat is a mirror, not a system of record.
func (b *Bridge) OnEvent(ev event.Event, channelName string) {
	text := formatEvent(ev)
	if text == "" {
		return
	}

	if err := b.reply(text); err != nil {
		logging.Warn().Err(err).
			Str("channel", channelName).
			Str("type", ev.MessageType()).
			Msg("failed to mirror event to chat")
		return
	}
	metrics.RecordBotOutbound()
}

// Run subscribes to inbound chat messages and processes commands until
// the context is canceled. Designed for suture supervision: transport
// failures return an error and the supervisor restarts the bridge.
func (b *Bridge) Run(ctx context.Context) error {
	inbound, err := b.transport.Subscribe(ctx, b.cfg.InboundSubject)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.cfg.InboundSubject, err)
	}

	logging.Info().
		Str("subject", b.cfg.InboundSubject).
		Str("channel", b.cfg.Channel).
		Msg("bot bridge listening")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "bot-bridge").Msg("bot bridge stopped")
			return ctx.Err()

		case data, ok := <-inbound:
			if !ok {
				return fmt.Errorf("inbound subscription closed")
			}
			b.handleInbound(ctx, data)
		}
	}
}

// handleInbound processes one raw chat message.
func (b *Bridge) handleInbound(ctx context.Context, data []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logging.Warn().Err(err).Msg("malformed inbound chat message")
		return
	}
	if msg.From == "" {
		logging.Warn().Msg("inbound chat message without sender")
		return
	}

	cmd, err := ParseCommand(msg.Text)
	if errors.Is(err, ErrNotCommand) {
		return
	}
	if err != nil {
		// Recognized verb, malformed arguments: echo the usage line.
		metrics.RecordBotCommand(verbOf(msg.Text), "rejected")
		_ = b.reply(err.Error())
		return
	}

	if !b.allow(msg.From) {
		metrics.RecordBotCommand(cmd.Verb, "rate_limited")
		logging.Warn().Str("from", msg.From).Str("verb", cmd.Verb).Msg("bot command rate limited")
		_ = b.reply(fmt.Sprintf("%s: slow down, command dropped", msg.From))
		return
	}

	if err := b.execute(ctx, msg.From, cmd); err != nil {
		metrics.RecordBotCommand(cmd.Verb, "rejected")
		logging.Warn().Err(err).Str("from", msg.From).Str("verb", cmd.Verb).Msg("bot command failed")
		_ = b.reply(fmt.Sprintf("%s: %v", msg.From, err))
		return
	}

	metrics.RecordBotCommand(cmd.Verb, "accepted")
}

// execute runs a validated command: mutate the incident store first,
// publish the event only after the change has committed.
func (b *Bridge) execute(ctx context.Context, from string, cmd Command) error {
	switch cmd.Verb {
	case VerbIncident:
		inc, err := b.incidents.CreateIncident(ctx, cmd.Text, "", "", 0, from)
		if err != nil {
			return err
		}
		_, err = b.broadcaster.PublishFrom(event.IncidentCreated{
			IncidentID: inc.ID,
			Type:       inc.Type,
			Summary:    inc.Summary,
			CreatedBy:  from,
			CreatedAt:  inc.CreatedAt,
		}, b.cfg.Channel, MirrorName)
		if err != nil {
			return err
		}
		return b.reply(fmt.Sprintf("incident %s created: %s", inc.ID, inc.Summary))

	case VerbAssign:
		id, units := cmd.Args[0], cmd.Args[1:]
		inc, err := b.incidents.AssignUnits(ctx, id, units)
		if err != nil {
			return err
		}
		_, err = b.broadcaster.PublishFrom(event.UnitAssigned{
			IncidentID: inc.ID,
			Units:      units,
			AssignedBy: from,
			AssignedAt: inc.UpdatedAt,
		}, b.cfg.Channel, MirrorName)
		if err != nil {
			return err
		}
		return b.reply(fmt.Sprintf("assigned %s to %s", strings.Join(units, ", "), inc.ID))

	case VerbStatus:
		id, status := cmd.Args[0], cmd.Args[1]
		inc, err := b.incidents.SetStatus(ctx, id, status)
		if err != nil {
			return err
		}
		_, err = b.broadcaster.PublishFrom(event.StatusChanged{
			IncidentID: inc.ID,
			Status:     inc.Status,
			ChangedBy:  from,
			ChangedAt:  inc.UpdatedAt,
		}, b.cfg.Channel, MirrorName)
		if err != nil {
			return err
		}
		return b.reply(fmt.Sprintf("%s status: %s", inc.ID, inc.Status))

	default:
		return fmt.Errorf("unhandled verb %q", cmd.Verb)
	}
}

// allow checks the per-sender rate limit, creating a limiter on first
// sight of a sender.
func (b *Bridge) allow(from string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	lim, ok := b.limiters[from]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(b.cfg.CommandRate), b.cfg.CommandBurst)
		b.limiters[from] = lim
	}
	return lim.Allow()
}

// reply posts a message outward to chat.
func (b *Bridge) reply(text string) error {
	data, err := json.Marshal(OutboundMessage{Text: text})
	if err != nil {
		return err
	}
	return b.transport.Publish(b.cfg.OutboundSubject, data)
}

// formatEvent renders an event as chat text.
func formatEvent(ev event.Event) string {
	switch e := ev.(type) {
	case event.IncidentCreated:
		return fmt.Sprintf("[%s] new incident %s: %s", timestamp(e.CreatedAt), e.IncidentID, e.Summary)
	case event.UnitAssigned:
		return fmt.Sprintf("[%s] %s assigned to %s", timestamp(e.AssignedAt), strings.Join(e.Units, ", "), e.IncidentID)
	case event.StatusChanged:
		return fmt.Sprintf("[%s] %s is now %s", timestamp(e.ChangedAt), e.IncidentID, e.Status)
	default:
		return ""
	}
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.UTC().Format("15:04:05")
}

// verbOf extracts the verb from raw text for metrics labeling when the
// command failed to parse.
func verbOf(text string) string {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(text), "!"))
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}
