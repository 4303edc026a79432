// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

// Package store holds incident records behind the event producer
// surface. The relay publishes an event only after the record change
// has committed, so a failed write never announces phantom state.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the incident does not exist.
var ErrNotFound = errors.New("incident not found")

// Incident statuses follow CAD convention; the relay does not validate
// transitions, it records and announces them.
const (
	StatusOpen       = "open"
	StatusDispatched = "dispatched"
	StatusOnScene    = "on-scene"
	StatusClosed     = "closed"
)

// Incident is one CAD incident record.
type Incident struct {
	ID        string    `json:"id"`
	Type      string    `json:"type,omitempty"`
	Summary   string    `json:"summary"`
	Location  string    `json:"location,omitempty"`
	Priority  int       `json:"priority,omitempty"`
	Status    string    `json:"status"`
	Units     []string  `json:"units"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IncidentStore persists incident records. Implemented by the in-memory
// store; a database-backed implementation satisfies the same interface.
type IncidentStore interface {
	CreateIncident(ctx context.Context, summary, incidentType, location string, priority int, createdBy string) (*Incident, error)
	AssignUnits(ctx context.Context, id string, units []string) (*Incident, error)
	SetStatus(ctx context.Context, id, status string) (*Incident, error)
	GetIncident(ctx context.Context, id string) (*Incident, error)
	ListIncidents(ctx context.Context) ([]*Incident, error)
}

// MemoryStore is an in-memory IncidentStore. Records do not survive a
// restart; the authoritative CAD system of record lives elsewhere.
type MemoryStore struct {
	mu        sync.RWMutex
	incidents map[string]*Incident
}

// NewMemoryStore creates an empty in-memory incident store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{incidents: make(map[string]*Incident)}
}

// CreateIncident records a new incident with a generated ID and status
// open.
func (s *MemoryStore) CreateIncident(_ context.Context, summary, incidentType, location string, priority int, createdBy string) (*Incident, error) {
	if summary == "" {
		return nil, fmt.Errorf("incident summary is required")
	}

	now := time.Now().UTC()
	inc := &Incident{
		ID:        "INC-" + uuid.New().String()[:8],
		Type:      incidentType,
		Summary:   summary,
		Location:  location,
		Priority:  priority,
		Status:    StatusOpen,
		Units:     []string{},
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.incidents[inc.ID] = inc
	s.mu.Unlock()

	return inc.clone(), nil
}

// AssignUnits attaches units to an incident, deduplicating against
// units already assigned.
func (s *MemoryStore) AssignUnits(_ context.Context, id string, units []string) (*Incident, error) {
	if len(units) == 0 {
		return nil, fmt.Errorf("at least one unit is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	have := make(map[string]struct{}, len(inc.Units))
	for _, u := range inc.Units {
		have[u] = struct{}{}
	}
	for _, u := range units {
		if _, dup := have[u]; dup {
			continue
		}
		inc.Units = append(inc.Units, u)
		have[u] = struct{}{}
	}
	inc.UpdatedAt = time.Now().UTC()

	return inc.clone(), nil
}

// SetStatus updates an incident's status.
func (s *MemoryStore) SetStatus(_ context.Context, id, status string) (*Incident, error) {
	if status == "" {
		return nil, fmt.Errorf("status is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	inc.Status = status
	inc.UpdatedAt = time.Now().UTC()

	return inc.clone(), nil
}

// GetIncident returns a copy of the incident record.
func (s *MemoryStore) GetIncident(_ context.Context, id string) (*Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inc, ok := s.incidents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return inc.clone(), nil
}

// ListIncidents returns copies of all incidents, newest first.
func (s *MemoryStore) ListIncidents(_ context.Context) ([]*Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Incident, 0, len(s.incidents))
	for _, inc := range s.incidents {
		out = append(out, inc.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// clone returns a deep copy so callers cannot mutate stored state.
func (i *Incident) clone() *Incident {
	cp := *i
	cp.Units = make([]string, len(i.Units))
	copy(cp.Units, i.Units)
	return &cp
}
