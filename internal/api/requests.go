// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package api

// CreateIncidentRequest is the validated body for POST /incidents.
//
// Fields:
//   - Summary: Required short description of the incident
//   - Type: Optional incident category (e.g. fire, medical, traffic)
//   - Location: Optional address or cross-street
//   - Priority: Optional priority, 1 (highest) to 5
type CreateIncidentRequest struct {
	Summary  string `json:"summary" validate:"required,max=500"`
	Type     string `json:"type" validate:"omitempty,max=64"`
	Location string `json:"location" validate:"omitempty,max=500"`
	Priority int    `json:"priority" validate:"omitempty,min=1,max=5"`
}

// AssignUnitsRequest is the validated body for POST /incidents/{id}/units.
//
// Fields:
//   - Units: Required list of unit call signs, each non-empty
type AssignUnitsRequest struct {
	Units []string `json:"units" validate:"required,min=1,dive,required,max=64"`
}

// SetIncidentStatusRequest is the validated body for POST /incidents/{id}/status.
//
// Fields:
//   - Status: Required new status value
type SetIncidentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open dispatched on-scene closed"`
}
