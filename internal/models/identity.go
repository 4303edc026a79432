// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package models

// Identity is the authenticated principal bound to a connection for its
// lifetime. It is created by the session authenticator from verified token
// claims and never mutated afterward.
//
// Roles are carried verbatim from the verified credential. They are not
// validated against the fixed enumeration: a role outside the enumeration
// simply intersects no channel's required-role set and therefore grants
// nothing. Re-deriving roles here would open a privilege drift between
// token issuance and use.
type Identity struct {
	// ID is the opaque identifier of the principal (subject claim).
	ID string `json:"id"`

	// Roles is the verbatim role set from the verified credential.
	Roles []Role `json:"roles"`
}

// HasRole reports whether the identity carries the given role.
func (i Identity) HasRole(r Role) bool {
	for _, have := range i.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity carries at least one of the
// given roles.
func (i Identity) HasAnyRole(roles ...Role) bool {
	for _, r := range roles {
		if i.HasRole(r) {
			return true
		}
	}
	return false
}
