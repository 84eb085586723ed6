// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package sandbox is an in-memory host world: commanders with parties, the
// player's party visibility and camera, army membership and a wallet. It
// implements every host interface the enlistment packages depend on.
package sandbox

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/muster/internal/enlistment"
)

// World is safe for concurrent use.
type World struct {
	logger *slog.Logger

	mu            sync.Mutex
	commanders    map[ulid.ULID]*commander
	partyVisible  bool
	camera        *ulid.ULID
	escort        *ulid.ULID
	independentAI bool
	failJoin      bool
	wallet        int
}

// Option configures a World.
type Option func(*World)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(w *World) {
		w.logger = logger
	}
}

// NewWorld creates an empty world with a visible, independent player party.
func NewWorld(opts ...Option) *World {
	w := &World{
		logger:        slog.Default(),
		commanders:    make(map[ulid.ULID]*commander),
		partyVisible:  true,
		independentAI: true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AddCommander creates a living commander leading a fresh party.
func (w *World) AddCommander(name string) (ulid.ULID, error) {
	c, err := newCommander(name)
	if err != nil {
		return ulid.ULID{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.commanders[c.id] = c
	w.logger.Debug("commander added", "commander_id", c.id.String(), "name", name)
	return c.id, nil
}

// Commanders lists every commander, ordered by ID.
func (w *World) Commanders() []enlistment.Commander {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]enlistment.Commander, 0, len(w.commanders))
	for _, c := range w.commanders {
		out = append(out, c.entry())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Compare(out[j].ID) < 0 })
	return out
}

func sortCommanders(cs []CommanderState) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].ID.Compare(cs[j].ID) < 0 })
}

// Lookup implements enlistment.CommanderDirectory.
func (w *World) Lookup(_ context.Context, id ulid.ULID) (enlistment.Commander, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.commanders[id]
	if !ok {
		return enlistment.Commander{}, false
	}
	return c.entry(), true
}

// Kill marks the commander dead. An army led by a dead commander dissolves.
func (w *World) Kill(id ulid.ULID) error {
	return w.mutate(id, "kill", func(c *commander) {
		c.dead = true
		c.party = nil
	})
}

// Capture takes the commander prisoner, leaving them without a party.
func (w *World) Capture(id ulid.ULID) error {
	return w.mutate(id, "capture", func(c *commander) {
		c.captured = true
		c.party = nil
	})
}

// Disband dissolves the commander's party.
func (w *World) Disband(id ulid.ULID) error {
	return w.mutate(id, "disband", func(c *commander) {
		c.party = nil
	})
}

// Release frees a captured commander with a new party.
func (w *World) Release(id ulid.ULID) error {
	return w.mutate(id, "release", func(c *commander) {
		if c.dead || !c.captured {
			return
		}
		party := ulid.Make()
		c.captured = false
		c.party = &party
	})
}

func (w *World) mutate(id ulid.ULID, operation string, fn func(*commander)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.commanders[id]
	if !ok {
		return oops.Code(CodeUnknownCommander).
			With("commander_id", id.String()).
			With("operation", operation).
			Errorf("no such commander")
	}
	fn(c)
	if !c.usable() && w.escort != nil && *w.escort == id {
		w.escort = nil
	}
	w.logger.Debug("commander changed", "commander_id", id.String(), "operation", operation)
	return nil
}

// PartyVisible implements presentation.PartyHost.
func (w *World) PartyVisible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.partyVisible
}

// SetPartyVisible implements presentation.PartyHost.
func (w *World) SetPartyVisible(visible bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.partyVisible = visible
}

// FollowCamera implements presentation.PartyHost.
func (w *World) FollowCamera(target ulid.ULID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.camera = &target
}

// ReleaseCamera implements presentation.PartyHost.
func (w *World) ReleaseCamera() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.camera = nil
}

// Camera returns the followed party leader, if any.
func (w *World) Camera() (ulid.ULID, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.camera == nil {
		return ulid.ULID{}, false
	}
	return *w.camera, true
}

// SetFailJoin makes subsequent AttachEscort calls fail.
func (w *World) SetFailJoin(fail bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failJoin = fail
}

// AttachEscort implements presentation.ArmyHost. The commander must be alive
// and leading a party.
func (w *World) AttachEscort(_ context.Context, commanderID ulid.ULID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failJoin {
		return oops.Code(CodeJoinRefused).With("commander_id", commanderID.String()).Errorf("army refused to take the player")
	}
	c, ok := w.commanders[commanderID]
	if !ok {
		return oops.Code(CodeUnknownCommander).With("commander_id", commanderID.String()).Errorf("no such commander")
	}
	if !c.usable() {
		return oops.Code(CodeJoinRefused).With("commander_id", commanderID.String()).Errorf("commander cannot lead an army")
	}
	w.escort = &commanderID
	w.independentAI = false
	return nil
}

// DetachEscort implements presentation.ArmyHost. Detaching while not
// attached is a no-op.
func (w *World) DetachEscort(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.escort = nil
	return nil
}

// RestoreIndependentAI implements presentation.ArmyHost.
func (w *World) RestoreIndependentAI(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.independentAI = true
	return nil
}

// Escorting implements presentation.ArmyHost.
func (w *World) Escorting(context.Context) (ulid.ULID, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.escort == nil {
		return ulid.ULID{}, false
	}
	return *w.escort, true
}

// IndependentAI reports whether the player party moves on its own.
func (w *World) IndependentAI() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.independentAI
}

// Credit implements service.WageSink.
func (w *World) Credit(_ context.Context, amount int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.wallet += amount
}

// Wallet returns the player's currency.
func (w *World) Wallet() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.wallet
}
