// SPDX-FileCopyrightText: 2024 The commlink Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package message

import (
	"fmt"
	"strings"
)

// Type identifies the kind of a Response and thus the Listener it is dispatched to.
type Type uint64

const (
	_ Type = iota

	// AuthSuccess acknowledges a successful login. No Payload.
	AuthSuccess

	// AuthError reports rejected credentials. The Payload is a text message. Receiving this Type
	// disposes the connection.
	AuthError

	// CreateSuccess acknowledges a created account. No Payload.
	CreateSuccess

	// User carries a serialized user.
	User

	// UsersLoggedIn lists the currently logged in users.
	UsersLoggedIn

	// Time carries the server's start time in nanoseconds as a float. This Type is consumed by the
	// communication module itself and does not require a Listener.
	Time

	// GameState announces a new game phase.
	GameState

	// WorldData carries a serialized world snapshot.
	WorldData

	// Score carries a numeric score.
	Score

	// VoteBallot carries the cards to vote on.
	VoteBallot

	// Drafted carries the drafted policy cards.
	Drafted

	// Chat carries a chat message.
	Chat

	// Broadcast carries a server wide announcement.
	Broadcast

	// Error reports a generic, non-fatal server error.
	Error

	typeSentinel
)

var typeNames = map[Type]string{
	AuthSuccess:   "AUTH_SUCCESS",
	AuthError:     "AUTH_ERROR",
	CreateSuccess: "CREATE_SUCCESS",
	User:          "USER",
	UsersLoggedIn: "USERS_LOGGED_IN",
	Time:          "TIME",
	GameState:     "GAME_STATE",
	WorldData:     "WORLD_DATA",
	Score:         "SCORE",
	VoteBallot:    "VOTE_BALLOT",
	Drafted:       "DRAFTED",
	Chat:          "CHAT",
	Broadcast:     "BROADCAST",
	Error:         "ERROR",
}

// Types returns all known Types in ascending order.
func Types() []Type {
	ts := make([]Type, 0, len(typeNames))
	for t := AuthSuccess; t < typeSentinel; t++ {
		ts = append(ts, t)
	}
	return ts
}

// Valid checks if this Type is part of the enumeration.
func (t Type) Valid() bool {
	return t > 0 && t < typeSentinel
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint64(t))
}

// ParseType looks up a Type by its name, e.g., "SCORE". The comparison is case insensitive.
func ParseType(name string) (Type, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown response type %q", name)
}
