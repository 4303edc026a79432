// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

// Package channel implements the channel registry: the static table of
// channels and their role requirements, plus the live membership index
// that routes messages between subscribed members.
package channel

import "errors"

// Sentinel errors for registry operations. A delivery that reaches zero
// recipients is not an error and is reported through recipient counts.
var (
	// ErrUnknownChannel indicates the named channel is not in the table.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrRoleNotPermitted indicates the identity holds none of the
	// roles the channel requires.
	ErrRoleNotPermitted = errors.New("role not permitted")

	// ErrNotSubscribed indicates the member attempted an operation on a
	// channel it has not joined.
	ErrNotSubscribed = errors.New("not subscribed")
)
