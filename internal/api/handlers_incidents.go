// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/cadrelay/cadrelay/internal/event"
	"github.com/cadrelay/cadrelay/internal/logging"
	"github.com/cadrelay/cadrelay/internal/store"
	"github.com/cadrelay/cadrelay/internal/validation"
)

// CreateIncident records a new incident and announces it on the event
// channel. The announcement goes out only after the record is
// committed; a publish with zero recipients is still a success.
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req CreateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr.Error(), verr.Details())
		return
	}

	identity, _ := IdentityFromContext(r.Context())

	inc, err := h.incidents.CreateIncident(r.Context(), req.Summary, req.Type, req.Location, req.Priority, identity.ID)
	if err != nil {
		logging.Error().Err(err).Msg("incident create failed")
		rw.InternalError("failed to create incident")
		return
	}

	h.publish(event.IncidentCreated{
		IncidentID: inc.ID,
		Type:       inc.Type,
		Summary:    inc.Summary,
		Location:   inc.Location,
		Priority:   inc.Priority,
		CreatedBy:  inc.CreatedBy,
		CreatedAt:  inc.CreatedAt,
	})

	rw.Created(inc)
}

// AssignUnits attaches units to an incident and announces the
// assignment.
func (h *Handler) AssignUnits(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	var req AssignUnitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr.Error(), verr.Details())
		return
	}

	identity, _ := IdentityFromContext(r.Context())

	inc, err := h.incidents.AssignUnits(r.Context(), id, req.Units)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			rw.NotFound("incident not found")
			return
		}
		logging.Error().Err(err).Str("incident_id", id).Msg("unit assignment failed")
		rw.InternalError("failed to assign units")
		return
	}

	h.publish(event.UnitAssigned{
		IncidentID: inc.ID,
		Units:      req.Units,
		AssignedBy: identity.ID,
		AssignedAt: inc.UpdatedAt,
	})

	WriteSuccess(w, r, inc)
}

// SetIncidentStatus updates an incident's status and announces the
// transition.
func (h *Handler) SetIncidentStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	var req SetIncidentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr.Error(), verr.Details())
		return
	}

	identity, _ := IdentityFromContext(r.Context())

	inc, err := h.incidents.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			rw.NotFound("incident not found")
			return
		}
		logging.Error().Err(err).Str("incident_id", id).Msg("status update failed")
		rw.InternalError("failed to update status")
		return
	}

	h.publish(event.StatusChanged{
		IncidentID: inc.ID,
		Status:     inc.Status,
		ChangedBy:  identity.ID,
		ChangedAt:  inc.UpdatedAt,
	})

	WriteSuccess(w, r, inc)
}

// GetIncident returns a single incident record.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "id")

	inc, err := h.incidents.GetIncident(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			rw.NotFound("incident not found")
			return
		}
		logging.Error().Err(err).Str("incident_id", id).Msg("incident lookup failed")
		rw.InternalError("failed to load incident")
		return
	}

	rw.Success(inc)
}

// ListIncidents returns all incident records, newest first.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	incidents, err := h.incidents.ListIncidents(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("incident listing failed")
		rw.InternalError("failed to list incidents")
		return
	}

	rw.Success(incidents)
}

// publish sends an event to the configured event channel. Delivery is
// best effort after the store commit; an empty channel is not a
// failure, and an unknown channel is a wiring bug worth logging but
// never a reason to fail the request.
func (h *Handler) publish(ev event.Event) {
	if _, err := h.broadcaster.Publish(ev, h.eventChannel); err != nil {
		logging.Error().
			Err(err).
			Str("channel", h.eventChannel).
			Str("type", ev.MessageType()).
			Msg("event publish failed")
	}
}
