// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package channel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cadrelay/cadrelay/internal/config"
	"github.com/cadrelay/cadrelay/internal/models"
)

// Definition is one channel in the table: its name and the roles
// permitted to join it. An empty role set makes the channel open to any
// authenticated identity.
type Definition struct {
	Name  string
	Roles models.RoleSet
}

// Open reports whether any authenticated identity may join the channel.
func (d Definition) Open() bool {
	return d.Roles.Empty()
}

// Permits reports whether an identity holding the given roles may join.
func (d Definition) Permits(roles []models.Role) bool {
	if d.Open() {
		return true
	}
	return d.Roles.Intersects(roles)
}

// Table is the static channel table. It is built once at startup and
// never mutated afterward, so lookups need no locking.
type Table struct {
	defs  map[string]Definition
	names []string
}

// NewTable builds a table from config definitions. Role strings are
// validated strictly; a bad table is a startup failure.
func NewTable(definitions []config.ChannelDefinition) (*Table, error) {
	t := &Table{defs: make(map[string]Definition, len(definitions))}

	for _, def := range definitions {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			return nil, fmt.Errorf("channel definition with empty name")
		}
		if _, dup := t.defs[name]; dup {
			return nil, fmt.Errorf("duplicate channel definition %q", name)
		}

		roles, err := models.RoleSetFromStrings(def.Roles)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", name, err)
		}

		t.defs[name] = Definition{Name: name, Roles: roles}
		t.names = append(t.names, name)
	}

	sort.Strings(t.names)
	return t, nil
}

// DefaultTable returns the built-in dispatch channel table, used when
// no definitions are configured.
func DefaultTable() *Table {
	t, err := NewTable([]config.ChannelDefinition{
		{Name: "dispatch", Roles: []string{"DISPATCH", "ADMIN"}},
		{Name: "radio:leo", Roles: []string{"LEO", "DISPATCH", "ADMIN"}},
		{Name: "radio:fire", Roles: []string{"FIRE", "DISPATCH", "ADMIN"}},
		{Name: "radio:ems", Roles: []string{"EMS", "DISPATCH", "ADMIN"}},
		{Name: "radio:dmv", Roles: []string{"DMV", "DISPATCH", "ADMIN"}},
		{Name: "events", Roles: nil},
	})
	if err != nil {
		// The built-in table is a compile-time constant in all but
		// syntax; a failure here is a programming error.
		panic(fmt.Sprintf("built-in channel table invalid: %v", err))
	}
	return t
}

// Lookup returns the definition for a channel name.
func (t *Table) Lookup(name string) (Definition, bool) {
	def, ok := t.defs[name]
	return def, ok
}

// Names returns all channel names in sorted order.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Len returns the number of channels in the table.
func (t *Table) Len() int {
	return len(t.defs)
}
