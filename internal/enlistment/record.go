// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package enlistment

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// State is the lifecycle state derived from a Record.
type State uint8

// Lifecycle states.
const (
	StateIdle State = iota
	StateEnlisted
	StateDetaching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEnlisted:
		return "enlisted"
	case StateDetaching:
		return "detaching"
	default:
		return "unknown"
	}
}

// Commander is a directory entry for an NPC party leader.
type Commander struct {
	ID      ulid.ULID
	Name    string
	Dead    bool
	PartyID *ulid.ULID // nil while captured or without a party
}

// CommanderDirectory looks commanders up by ID. Lookups have no side effects.
type CommanderDirectory interface {
	Lookup(ctx context.Context, id ulid.ULID) (Commander, bool)
}

// Record is the persisted enlistment state.
type Record struct {
	Enlisted              bool
	Commander             *ulid.ULID // weak reference; resolved through CommanderDirectory
	PendingDetach         bool
	PlayerPartyWasVisible bool
	WaitingInReserve      bool // reserved; persisted but not driven by any transition
}

// State derives the lifecycle state.
func (r Record) State() State {
	switch {
	case r.Enlisted:
		return StateEnlisted
	case r.PendingDetach:
		return StateDetaching
	default:
		return StateIdle
	}
}

// Progression is the persisted rank state. It outlives individual enlistments.
type Progression struct {
	Tier       int
	CurrentXP  int
	NextTierXP int // lazily computed when non-positive
}

// Promotion reports the outcome of one XP award.
type Promotion struct {
	Awarded  int
	FromTier int
	ToTier   int
}

// Promoted reports whether the award crossed at least one tier.
func (p Promotion) Promoted() bool {
	return p.ToTier > p.FromTier
}

// Snapshot is the serializable field set handed to save/load.
type Snapshot struct {
	Enlisted              bool       `json:"is_enlisted"`
	Commander             *ulid.ULID `json:"commander,omitempty"`
	PendingDetach         bool       `json:"pending_detach"`
	PlayerPartyWasVisible bool       `json:"player_party_was_visible"`
	WaitingInReserve      bool       `json:"waiting_in_reserve"`
	Tier                  int        `json:"tier"`
	CurrentXP             int        `json:"current_xp"`
	NextTierXP            int        `json:"next_tier_xp"`
}

// State derives the lifecycle state the snapshot restores to.
func (s Snapshot) State() State {
	return Record{Enlisted: s.Enlisted, PendingDetach: s.PendingDetach}.State()
}
