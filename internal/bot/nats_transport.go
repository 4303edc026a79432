// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/cadrelay/cadrelay/internal/logging"
)

// inboundBuffer bounds how many chat messages queue before drops.
const inboundBuffer = 256

// inboundQueue carries subscription messages to the bridge. The mutex
// covers both the send and the close: Unsubscribe does not join an
// in-flight delivery callback, so without it a callback could send on
// the channel after the ctx watcher has closed it.
type inboundQueue struct {
	mu     sync.Mutex
	closed bool
	ch     chan []byte
}

func newInboundQueue() *inboundQueue {
	return &inboundQueue{ch: make(chan []byte, inboundBuffer)}
}

// push enqueues one message. Reports false when the queue is stopped
// or the buffer is full; a full buffer drops the new message rather
// than blocking the delivery callback.
func (q *inboundQueue) push(data []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- data:
		return true
	default:
		return false
	}
}

// stop closes the channel so the consumer drains and exits. Idempotent,
// and mutually exclusive with push.
func (q *inboundQueue) stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// NATSTransport implements Transport over a core NATS connection.
type NATSTransport struct {
	nc *nats.Conn
}

// NewNATSTransport connects to NATS with retry and reconnect handling.
func NewNATSTransport(url string, connectTimeout time.Duration) (*NATSTransport, error) {
	nc, err := nats.Connect(url,
		nats.Timeout(connectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logging.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &NATSTransport{nc: nc}, nil
}

// Subscribe delivers messages on the subject into a buffered channel
// until ctx is canceled. A full buffer drops the new message rather
// than blocking the NATS callback.
func (t *NATSTransport) Subscribe(ctx context.Context, subject string) (<-chan []byte, error) {
	queue := newInboundQueue()

	sub, err := t.nc.Subscribe(subject, func(msg *nats.Msg) {
		if !queue.push(msg.Data) {
			logging.Warn().Str("subject", subject).Msg("dropping chat message: buffer full or subscription stopped")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			logging.Warn().Err(err).Str("subject", subject).Msg("failed to unsubscribe")
		}
		queue.stop()
	}()

	return queue.ch, nil
}

// Publish sends a message on the subject.
func (t *NATSTransport) Publish(subject string, data []byte) error {
	return t.nc.Publish(subject, data)
}

// Close drains and closes the connection.
func (t *NATSTransport) Close() error {
	if err := t.nc.Drain(); err != nil {
		t.nc.Close()
		return err
	}
	return nil
}
