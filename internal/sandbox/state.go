// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sandbox

import (
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// CodeInvalidState marks a world state that cannot be restored.
const CodeInvalidState = "WORLD_STATE_INVALID"

// CommanderState is the saved form of one commander.
type CommanderState struct {
	ID       ulid.ULID  `json:"id"`
	Name     string     `json:"name"`
	Dead     bool       `json:"dead,omitempty"`
	Captured bool       `json:"captured,omitempty"`
	Party    *ulid.ULID `json:"party,omitempty"`
}

// State is everything a World holds apart from test toggles. It travels
// with the save slot so a resumed session finds the same commanders.
type State struct {
	Commanders    []CommanderState `json:"commanders"`
	PartyVisible  bool             `json:"party_visible"`
	Camera        *ulid.ULID       `json:"camera,omitempty"`
	Escort        *ulid.ULID       `json:"escort,omitempty"`
	IndependentAI bool             `json:"independent_ai"`
	Wallet        int              `json:"wallet"`
}

// State captures the world. Commanders are ordered by ID.
func (w *World) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := State{
		Commanders:    make([]CommanderState, 0, len(w.commanders)),
		PartyVisible:  w.partyVisible,
		Camera:        copyID(w.camera),
		Escort:        copyID(w.escort),
		IndependentAI: w.independentAI,
		Wallet:        w.wallet,
	}
	for _, c := range w.commanders {
		s.Commanders = append(s.Commanders, CommanderState{
			ID:       c.id,
			Name:     c.name,
			Dead:     c.dead,
			Captured: c.captured,
			Party:    copyID(c.party),
		})
	}
	sortCommanders(s.Commanders)
	return s
}

// Restore replaces the world with s. The world is left untouched when s is
// invalid.
func (w *World) Restore(s State) error {
	commanders := make(map[ulid.ULID]*commander, len(s.Commanders))
	for i, cs := range s.Commanders {
		switch {
		case cs.ID.IsZero():
			return oops.Code(CodeInvalidState).With("index", i).Errorf("commander id is required")
		case cs.Name == "":
			return oops.Code(CodeInvalidState).With("commander_id", cs.ID.String()).Errorf("commander name is required")
		case (cs.Dead || cs.Captured) && cs.Party != nil:
			return oops.Code(CodeInvalidState).With("commander_id", cs.ID.String()).Errorf("a dead or captured commander cannot lead a party")
		}
		if _, dup := commanders[cs.ID]; dup {
			return oops.Code(CodeInvalidState).With("commander_id", cs.ID.String()).Errorf("duplicate commander")
		}
		commanders[cs.ID] = &commander{
			id:       cs.ID,
			name:     cs.Name,
			dead:     cs.Dead,
			captured: cs.Captured,
			party:    copyID(cs.Party),
		}
	}
	if s.Escort != nil {
		c, ok := commanders[*s.Escort]
		if !ok || !c.usable() {
			return oops.Code(CodeInvalidState).With("commander_id", s.Escort.String()).Errorf("escorting a commander who cannot lead an army")
		}
	}
	if s.Wallet < 0 {
		return oops.Code(CodeInvalidState).With("wallet", s.Wallet).Errorf("wallet cannot be negative")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.commanders = commanders
	w.partyVisible = s.PartyVisible
	w.camera = copyID(s.Camera)
	w.escort = copyID(s.Escort)
	w.independentAI = s.IndependentAI
	w.wallet = s.Wallet
	w.logger.Debug("world restored", "commanders", len(commanders))
	return nil
}

func copyID(id *ulid.ULID) *ulid.ULID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
