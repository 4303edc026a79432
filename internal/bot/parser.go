// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

// Package bot bridges a chat system to the dispatch event stream. Chat
// users issue bang-prefixed commands that become incident events, and
// published events are mirrored back outward as chat messages.
package bot

import (
	"errors"
	"fmt"
	"strings"
)

// Command verbs recognized by the bridge.
const (
	VerbIncident = "incident"
	VerbAssign   = "assign"
	VerbStatus   = "status"
)

// ErrNotCommand indicates the text is not a recognized bot command.
// Such messages are ordinary chat and are ignored without reply.
var ErrNotCommand = errors.New("not a command")

// Command is one parsed bot command.
//
//	!incident <free text>        -> Verb=incident, Text=<free text>
//	!assign <id> <unit> [...]    -> Verb=assign, Args=[id unit ...]
//	!status <id> <status>        -> Verb=status, Args=[id status]
type Command struct {
	Verb string
	Args []string
	Text string
}

// ParseCommand parses a chat message into a Command.
//
// Messages without the "!" prefix and messages with an unrecognized
// verb return ErrNotCommand. A recognized verb with malformed
// arguments returns a usage error suitable for echoing back to the
// sender.
func ParseCommand(input string) (Command, error) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "!") {
		return Command{}, ErrNotCommand
	}

	fields := strings.Fields(input[1:])
	if len(fields) == 0 {
		return Command{}, ErrNotCommand
	}

	verb := strings.ToLower(fields[0])
	rest := fields[1:]

	switch verb {
	case VerbIncident:
		if len(rest) == 0 {
			return Command{}, fmt.Errorf("usage: !incident <description>")
		}
		// Preserve the description verbatim, including internal spacing
		// collapsed to single spaces by Fields.
		return Command{Verb: VerbIncident, Text: strings.Join(rest, " ")}, nil

	case VerbAssign:
		if len(rest) < 2 {
			return Command{}, fmt.Errorf("usage: !assign <incident-id> <unit> [unit ...]")
		}
		return Command{Verb: VerbAssign, Args: rest}, nil

	case VerbStatus:
		if len(rest) != 2 {
			return Command{}, fmt.Errorf("usage: !status <incident-id> <status>")
		}
		return Command{Verb: VerbStatus, Args: rest}, nil

	default:
		return Command{}, ErrNotCommand
	}
}
