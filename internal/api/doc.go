// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

// Package api provides the HTTP surface of the relay: the Chi router,
// bearer-token authentication middleware, the WebSocket upgrade
// endpoint that hands connections to the hub, and the incident
// producer endpoints that feed the event broadcaster.
package api
