// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package models

import (
	"fmt"
	"sort"
	"strings"
)

// Role is a named capability grant used to authorize channel membership.
// The set of roles is fixed; channel eligibility is decided purely by
// intersection with a channel's required role set.
type Role string

// Department and administrative roles.
const (
	RoleLEO      Role = "LEO"
	RoleFire     Role = "FIRE"
	RoleEMS      Role = "EMS"
	RoleDispatch Role = "DISPATCH"
	RoleAdmin    Role = "ADMIN"
	RoleDMV      Role = "DMV"
)

// ValidRoles returns the fixed role enumeration in stable order.
func ValidRoles() []Role {
	return []Role{RoleLEO, RoleFire, RoleEMS, RoleDispatch, RoleAdmin, RoleDMV}
}

// ParseRole converts a string to a Role. Matching is case-insensitive
// because config files and tokens disagree about casing in the wild.
func ParseRole(s string) (Role, error) {
	upper := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, r := range ValidRoles() {
		if upper == r {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// RoleSet is an unordered set of roles.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// RoleSetFromStrings builds a RoleSet from string names, failing on any
// name outside the fixed enumeration. Used for startup validation of the
// channel table; token claims are NOT run through this (see Identity).
func RoleSetFromStrings(names []string) (RoleSet, error) {
	s := make(RoleSet, len(names))
	for _, name := range names {
		r, err := ParseRole(name)
		if err != nil {
			return nil, err
		}
		s[r] = struct{}{}
	}
	return s, nil
}

// Contains reports whether the set holds the given role.
func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

// Intersects reports whether any of the given roles is in the set.
func (s RoleSet) Intersects(roles []Role) bool {
	for _, r := range roles {
		if s.Contains(r) {
			return true
		}
	}
	return false
}

// Empty reports whether the set has no roles. An empty required-role set
// means a channel is open to any authenticated identity.
func (s RoleSet) Empty() bool {
	return len(s) == 0
}

// Slice returns the set's roles in sorted order for deterministic output.
func (s RoleSet) Slice() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
