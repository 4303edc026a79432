// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

// Package event defines the dispatch event variants and the broadcaster
// that fans them out to channel members and registered mirrors.
package event

import "time"

// Message types carried by event envelopes.
const (
	TypeIncidentCreated = "incident:new"
	TypeUnitAssigned    = "unit:assigned"
	TypeStatusChanged   = "status:changed"
)

// Event is a dispatch occurrence produced by a trusted source. The
// producer is trusted infrastructure, so events carry no sender
// authorization; the channel they are published to governs who sees
// them.
type Event interface {
	// MessageType returns the wire type of the envelope carrying the
	// event.
	MessageType() string
}

// IncidentCreated announces a new incident entering the system.
type IncidentCreated struct {
	IncidentID string    `json:"incident_id"`
	Type       string    `json:"type,omitempty"`
	Summary    string    `json:"summary"`
	Location   string    `json:"location,omitempty"`
	Priority   int       `json:"priority,omitempty"`
	CreatedBy  string    `json:"created_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// MessageType implements Event.
func (IncidentCreated) MessageType() string { return TypeIncidentCreated }

// UnitAssigned announces units attached to an incident.
type UnitAssigned struct {
	IncidentID string    `json:"incident_id"`
	Units      []string  `json:"units"`
	AssignedBy string    `json:"assigned_by,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
}

// MessageType implements Event.
func (UnitAssigned) MessageType() string { return TypeUnitAssigned }

// StatusChanged announces an incident status transition.
type StatusChanged struct {
	IncidentID string    `json:"incident_id"`
	Status     string    `json:"status"`
	ChangedBy  string    `json:"changed_by,omitempty"`
	ChangedAt  time.Time `json:"changed_at"`
}

// MessageType implements Event.
func (StatusChanged) MessageType() string { return TypeStatusChanged }
