// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package models

import (
	"testing"
)

func TestParseRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected Role
		wantErr  bool
	}{
		{"LEO", RoleLEO, false},
		{"leo", RoleLEO, false},
		{"Fire", RoleFire, false},
		{"EMS", RoleEMS, false},
		{"DISPATCH", RoleDispatch, false},
		{"ADMIN", RoleAdmin, false},
		{"DMV", RoleDMV, false},
		{" LEO ", RoleLEO, false},
		{"SHERIFF", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		role, err := ParseRole(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRole(%q) expected error, got %v", tt.input, role)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRole(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if role != tt.expected {
			t.Errorf("ParseRole(%q) = %v, want %v", tt.input, role, tt.expected)
		}
	}
}

func TestRoleSetFromStrings(t *testing.T) {
	t.Parallel()

	set, err := RoleSetFromStrings([]string{"LEO", "DISPATCH"})
	if err != nil {
		t.Fatalf("RoleSetFromStrings failed: %v", err)
	}
	if !set.Contains(RoleLEO) || !set.Contains(RoleDispatch) {
		t.Errorf("expected LEO and DISPATCH in set, got %v", set.Slice())
	}
	if set.Contains(RoleFire) {
		t.Error("FIRE should not be in set")
	}

	if _, err := RoleSetFromStrings([]string{"LEO", "BOGUS"}); err == nil {
		t.Error("expected error for unknown role string")
	}
}

func TestRoleSetIntersects(t *testing.T) {
	t.Parallel()

	set := NewRoleSet(RoleFire, RoleDispatch, RoleAdmin)

	if !set.Intersects([]Role{RoleFire}) {
		t.Error("expected FIRE to intersect")
	}
	if !set.Intersects([]Role{RoleLEO, RoleAdmin}) {
		t.Error("expected ADMIN to intersect")
	}
	if set.Intersects([]Role{RoleLEO, RoleEMS}) {
		t.Error("expected no intersection for LEO/EMS")
	}
	if set.Intersects(nil) {
		t.Error("expected no intersection for empty roles")
	}
}

func TestRoleSetSliceSorted(t *testing.T) {
	t.Parallel()

	set := NewRoleSet(RoleLEO, RoleAdmin, RoleFire)
	slice := set.Slice()

	if len(slice) != 3 {
		t.Fatalf("expected 3 roles, got %d", len(slice))
	}
	for i := 1; i < len(slice); i++ {
		if slice[i-1] >= slice[i] {
			t.Errorf("slice not sorted: %v", slice)
		}
	}
}

func TestIdentityHasRole(t *testing.T) {
	t.Parallel()

	id := Identity{ID: "unit-12", Roles: []Role{RoleEMS}}

	if !id.HasRole(RoleEMS) {
		t.Error("expected EMS role")
	}
	if id.HasRole(RoleAdmin) {
		t.Error("did not expect ADMIN role")
	}
	if !id.HasAnyRole(RoleDispatch, RoleEMS) {
		t.Error("expected HasAnyRole to match EMS")
	}
	if id.HasAnyRole(RoleDispatch, RoleAdmin) {
		t.Error("expected HasAnyRole to find nothing")
	}
}
