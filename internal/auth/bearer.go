// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package auth

import (
	"net/http"
	"strings"
)

// sessionCookieName is the cookie checked as a fallback credential
// source for browser clients.
const sessionCookieName = "cadrelay_session"

// ExtractBearerToken pulls the session token from an HTTP request.
//
// Sources are checked in order:
//  1. Authorization header ("Bearer <token>")
//  2. "token" query parameter (WebSocket clients cannot set headers
//     from browsers, so the upgrade request carries it in the URL)
//  3. Session cookie
//
// Returns the raw token string, or empty string if no source holds one.
func ExtractBearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return ""
}
