// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package core contains the event journal, identifiers and simulation clock
// shared by the enlistment packages.
package core

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType identifies the kind of event.
type EventType string

const (
	EventTypeEnlisted     EventType = "enlisted"
	EventTypeDischarged   EventType = "discharged"
	EventTypeServiceEnded EventType = "service_ended"
	EventTypePromoted     EventType = "promoted"
	EventTypeWagePaid     EventType = "wage_paid"
	EventTypeXPAwarded    EventType = "xp_awarded"
)

// ActorKind identifies what type of entity caused an event.
type ActorKind uint8

const (
	ActorPlayer ActorKind = iota
	ActorSystem
	ActorScript
)

func (a ActorKind) String() string {
	switch a {
	case ActorPlayer:
		return "player"
	case ActorSystem:
		return "system"
	case ActorScript:
		return "script"
	default:
		return "unknown"
	}
}

// Actor represents who or what caused an event.
type Actor struct {
	Kind ActorKind
	ID   string // Player ID, script name, or "system"
}

// Event is one entry in an enlistment journal.
type Event struct {
	ID        ulid.ULID
	Stream    string // e.g., "enlistment:01ABC"
	Type      EventType
	Timestamp time.Time
	Actor     Actor
	Payload   []byte // JSON
}

// EnlistmentStream returns the journal stream for a player.
func EnlistmentStream(player ulid.ULID) string {
	return "enlistment:" + player.String()
}
