// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

// Package auth verifies bearer credentials and produces the immutable
// identity bound to a connection. Tokens are HMAC-SHA256 signed JWTs;
// the roles claim is carried verbatim into the identity without
// validation against the role enumeration.
package auth

import "errors"

// Sentinel errors for credential verification. Callers distinguish them
// with errors.Is to choose the response code and log detail; the reason
// for a rejection is never echoed back to the requester beyond these
// categories.
var (
	// ErrMissingCredentials indicates no token was presented.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrInvalidCredentials indicates the token failed verification:
	// bad signature, malformed structure, or wrong signing algorithm.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrExpiredCredentials indicates a well-formed token past its
	// expiry. Kept distinct from ErrInvalidCredentials so clients can
	// refresh instead of re-authenticating from scratch.
	ErrExpiredCredentials = errors.New("expired credentials")
)
