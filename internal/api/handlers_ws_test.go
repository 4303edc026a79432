// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cadrelay/cadrelay/internal/auth"
	"github.com/cadrelay/cadrelay/internal/channel"
	"github.com/cadrelay/cadrelay/internal/config"
	"github.com/cadrelay/cadrelay/internal/event"
	"github.com/cadrelay/cadrelay/internal/models"
	"github.com/cadrelay/cadrelay/internal/store"
	ws "github.com/cadrelay/cadrelay/internal/websocket"
)

// wsTestServer runs the hub alongside the HTTP server so upgrades
// complete end to end.
type wsTestServer struct {
	srv     *httptest.Server
	manager *auth.JWTManager
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()

	registry := channel.NewRegistry(channel.DefaultTable())
	hub := ws.NewHub(registry)
	broadcaster := event.NewBroadcaster(registry)
	incidents := store.NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.RunWithContext(ctx) }()

	manager, err := auth.NewJWTManager(config.SecurityConfig{
		JWTSecret:      testSecret,
		SessionTimeout: time.Hour,
	})
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}

	handler := NewHandler(registry, hub, broadcaster, incidents, []string{"*"})
	router := NewRouter(
		handler,
		NewAuthMiddleware(manager),
		NewChiMiddlewareFromConfig([]string{"*"}, 1000, time.Minute, false),
	)

	srv := httptest.NewServer(router.Setup())
	t.Cleanup(srv.Close)

	return &wsTestServer{srv: srv, manager: manager}
}

// dial opens an authenticated realtime session.
func (ts *wsTestServer) dial(t *testing.T, id string, roles ...models.Role) *websocket.Conn {
	t.Helper()

	token, err := ts.manager.GenerateToken(id, roles)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/v1/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v (resp %+v)", err, resp)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

// readEnvelope reads one envelope with a deadline.
func readEnvelope(t *testing.T, conn *websocket.Conn) channel.Envelope {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	var env channel.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return env
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	t.Parallel()

	ts := newWSTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/v1/ws?token=garbage"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		conn.Close()
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %+v", resp)
	}
	resp.Body.Close()
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	t.Parallel()

	ts := newWSTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/v1/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		conn.Close()
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %+v", resp)
	}
	resp.Body.Close()
}

func TestWebSocketAutoSubscribeAck(t *testing.T) {
	t.Parallel()

	ts := newWSTestServer(t)
	conn := ts.dial(t, "unit-7", models.RoleLEO)

	env := readEnvelope(t, conn)
	if env.Type != channel.MessageTypeJoined || env.Channel != "radio:leo" {
		t.Errorf("unexpected ack: %+v", env)
	}
}

func TestWebSocketJoinAndSignal(t *testing.T) {
	t.Parallel()

	ts := newWSTestServer(t)

	sender := ts.dial(t, "unit-7", models.RoleLEO)
	peer := ts.dial(t, "unit-8", models.RoleLEO)

	// Consume the radio:leo auto-subscribe acks.
	readEnvelope(t, sender)
	readEnvelope(t, peer)

	payload := map[string]interface{}{
		"type":    "signal",
		"channel": "radio:leo",
		"payload": map[string]string{"transmission": "10-97 on scene"},
	}
	if err := sender.WriteJSON(payload); err != nil {
		t.Fatalf("write signal: %v", err)
	}

	env := readEnvelope(t, peer)
	if env.Type != channel.MessageTypeSignal || env.From != "unit-7" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if !strings.Contains(string(env.Payload), "10-97 on scene") {
		t.Errorf("payload altered: %s", env.Payload)
	}
}

func TestWebSocketRoleDenied(t *testing.T) {
	t.Parallel()

	ts := newWSTestServer(t)
	conn := ts.dial(t, "clerk-1", models.RoleDMV)

	// DMV auto-subscribes to radio:dmv only.
	env := readEnvelope(t, conn)
	if env.Channel != "radio:dmv" {
		t.Fatalf("unexpected ack: %+v", env)
	}

	join := map[string]string{"type": "join", "channel": "dispatch"}
	if err := conn.WriteJSON(join); err != nil {
		t.Fatalf("write join: %v", err)
	}

	env = readEnvelope(t, conn)
	if env.Type != channel.MessageTypeError {
		t.Fatalf("expected error envelope, got %+v", env)
	}
}
