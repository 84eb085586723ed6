// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package enlistment owns the enlistment state machine and the rank
// progression attached to it. Lifecycle is the only writer of the persisted
// Record and Progression; every other component goes through its methods.
package enlistment

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/muster/internal/progression"
)

// Lifecycle drives Idle -> Enlisted -> Detaching -> Idle.
//
// Transitions run on the simulation goroutine. The mutex only makes reads
// from status and metrics goroutines safe.
type Lifecycle struct {
	mu        sync.RWMutex
	directory CommanderDirectory
	engine    *progression.Engine
	logger    *slog.Logger
	record    Record
	progress  Progression
}

// Option configures a Lifecycle during construction.
type Option func(*Lifecycle)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Lifecycle) {
		l.logger = logger
	}
}

// New creates an Idle lifecycle with a visible player party and tier 0.
func New(directory CommanderDirectory, engine *progression.Engine, opts ...Option) (*Lifecycle, error) {
	if directory == nil {
		return nil, oops.Code(CodeMissingDependency).Errorf("commander directory is required")
	}
	if engine == nil {
		return nil, oops.Code(CodeMissingDependency).Errorf("progression engine is required")
	}
	l := &Lifecycle{
		directory: directory,
		engine:    engine,
		logger:    slog.Default(),
		record:    Record{PlayerPartyWasVisible: true},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.record.State()
}

// IsEnlisted reports whether the player is currently serving.
func (l *Lifecycle) IsEnlisted() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.record.Enlisted
}

// Commander returns the current commander, if any.
func (l *Lifecycle) Commander() (ulid.ULID, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.record.Commander == nil {
		return ulid.ULID{}, false
	}
	return *l.record.Commander, true
}

// Record returns a copy of the enlistment record.
func (l *Lifecycle) Record() Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r := l.record
	if r.Commander != nil {
		id := *r.Commander
		r.Commander = &id
	}
	return r
}

// Progression returns a copy of the progression record.
func (l *Lifecycle) Progression() Progression {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.progress
}

// IsCommanderValid reports whether the current commander exists, is alive
// and belongs to a party. It must be re-checked every tick: commanders die
// and get captured without notifying the lifecycle.
func (l *Lifecycle) IsCommanderValid(ctx context.Context) bool {
	id, ok := l.Commander()
	if !ok {
		return false
	}
	return l.commanderUsable(ctx, id)
}

func (l *Lifecycle) commanderUsable(ctx context.Context, id ulid.ULID) bool {
	c, found := l.directory.Lookup(ctx, id)
	return found && !c.Dead && c.PartyID != nil
}

// Enlist starts service under commander. It is allowed from Idle and from a
// Detaching record whose cleanup never completed.
func (l *Lifecycle) Enlist(ctx context.Context, commander ulid.ULID) error {
	if commander.IsZero() {
		return ErrNoCommander()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.record.Enlisted {
		return ErrAlreadyEnlisted(*l.record.Commander)
	}
	if !l.commanderUsable(ctx, commander) {
		return ErrInvalidCommander(commander)
	}

	id := commander
	l.record.Enlisted = true
	l.record.Commander = &id
	l.record.PendingDetach = false
	l.record.WaitingInReserve = false

	l.logger.InfoContext(ctx, "enlisted", "commander_id", commander.String())
	return nil
}

// Leave ends service voluntarily. It only records intent; the caller owns
// the cleanup side effects and must call CompletePendingDetach afterwards.
func (l *Lifecycle) Leave() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.detach()
}

// ForceEndService ends service after a failed commander check or an
// unrecoverable maintenance error. Safe in any state.
func (l *Lifecycle) ForceEndService(ctx context.Context, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.record.Enlisted {
		l.logger.WarnContext(ctx, "service ended", "reason", reason, "commander_id", l.record.Commander.String())
	}
	l.detach()
}

func (l *Lifecycle) detach() {
	l.record.Enlisted = false
	l.record.Commander = nil
	l.record.PendingDetach = true
}

// CompletePendingDetach finishes a detach once cleanup succeeded or was
// abandoned.
func (l *Lifecycle) CompletePendingDetach() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record.PendingDetach = false
}

// PartyWasVisible returns the visibility snapshot taken before suppression.
func (l *Lifecycle) PartyWasVisible() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.record.PlayerPartyWasVisible
}

// CaptureVisibility stores the visibility snapshot.
func (l *Lifecycle) CaptureVisibility(visible bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record.PlayerPartyWasVisible = visible
}

// AwardXP adds amount and advances as many tiers as it pays for.
//
// At the ceiling tier XP keeps accumulating (saturating at math.MaxInt) and
// NextTierXP stays at progression.NoFurtherProgression.
func (l *Lifecycle) AwardXP(amount int) Promotion {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := Promotion{FromTier: l.progress.Tier, ToTier: l.progress.Tier}
	if amount <= 0 {
		return p
	}
	p.Awarded = amount

	if l.progress.NextTierXP <= 0 {
		l.progress.NextTierXP = l.engine.RequiredXPForTier(l.progress.Tier)
	}

	if l.progress.CurrentXP > math.MaxInt-amount {
		l.progress.CurrentXP = math.MaxInt
	} else {
		l.progress.CurrentXP += amount
	}

	for l.progress.Tier < l.engine.MaxTier() &&
		l.progress.NextTierXP > 0 &&
		l.progress.CurrentXP >= l.progress.NextTierXP {
		l.progress.CurrentXP -= l.progress.NextTierXP
		l.progress.Tier++
		l.progress.NextTierXP = l.engine.RequiredXPForTier(l.progress.Tier)
	}

	p.ToTier = l.progress.Tier
	return p
}

// Snapshot returns every persisted field.
func (l *Lifecycle) Snapshot() Snapshot {
	r := l.Record()
	p := l.Progression()
	return Snapshot{
		Enlisted:              r.Enlisted,
		Commander:             r.Commander,
		PendingDetach:         r.PendingDetach,
		PlayerPartyWasVisible: r.PlayerPartyWasVisible,
		WaitingInReserve:      r.WaitingInReserve,
		Tier:                  p.Tier,
		CurrentXP:             p.CurrentXP,
		NextTierXP:            p.NextTierXP,
	}
}

// Restore replaces the lifecycle state with a saved snapshot. Snapshots that
// break the record invariants are rejected; a tier above the current
// table's ceiling is clamped to it.
func (l *Lifecycle) Restore(s Snapshot) error {
	if err := validateSnapshot(s); err != nil {
		return err
	}

	if s.Tier > l.engine.MaxTier() {
		l.logger.Warn("saved tier above table ceiling, clamping",
			"saved_tier", s.Tier, "max_tier", l.engine.MaxTier())
		s.Tier = l.engine.MaxTier()
		s.NextTierXP = progression.NoFurtherProgression
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.record = Record{
		Enlisted:              s.Enlisted,
		PendingDetach:         s.PendingDetach,
		PlayerPartyWasVisible: s.PlayerPartyWasVisible,
		WaitingInReserve:      s.WaitingInReserve,
	}
	if s.Commander != nil {
		id := *s.Commander
		l.record.Commander = &id
	}
	l.progress = Progression{
		Tier:       s.Tier,
		CurrentXP:  s.CurrentXP,
		NextTierXP: s.NextTierXP,
	}
	return nil
}

func validateSnapshot(s Snapshot) error {
	switch {
	case s.Enlisted && (s.Commander == nil || s.Commander.IsZero()):
		return oops.Code(CodeSnapshotInvalid).Errorf("enlisted snapshot has no commander")
	case s.Enlisted && s.PendingDetach:
		return oops.Code(CodeSnapshotInvalid).Errorf("snapshot is both enlisted and pending detach")
	case s.Tier < 0:
		return oops.Code(CodeSnapshotInvalid).With("tier", s.Tier).Errorf("negative tier")
	case s.CurrentXP < 0:
		return oops.Code(CodeSnapshotInvalid).With("current_xp", s.CurrentXP).Errorf("negative xp")
	}
	return nil
}
