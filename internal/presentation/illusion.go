// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package presentation applies and reverts the host-side effects of
// enlistment: hiding the player's party behind the commander's and keeping
// the player's escort attached to the commander's army. Every operation is
// idempotent and contains host failures so it can run every tick and on
// cleanup paths.
package presentation

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
)

// PartyHost is the host's view of the player party's map presence.
type PartyHost interface {
	PartyVisible() bool
	SetPartyVisible(visible bool)
	FollowCamera(target ulid.ULID)
	ReleaseCamera()
}

// VisibilitySnapshot stores the player party's pre-suppression visibility.
// The enlistment lifecycle implements it so the value persists with the save.
type VisibilitySnapshot interface {
	PartyWasVisible() bool
	CaptureVisibility(visible bool)
}

// Illusion hides the player party and points the camera at the commander.
type Illusion struct {
	host     PartyHost
	snapshot VisibilitySnapshot
	logger   *slog.Logger

	mu         sync.Mutex
	suppressed bool
	target     ulid.ULID
}

// IllusionOption configures an Illusion.
type IllusionOption func(*Illusion)

// WithIllusionLogger sets the logger. Defaults to slog.Default().
func WithIllusionLogger(logger *slog.Logger) IllusionOption {
	return func(i *Illusion) {
		i.logger = logger
	}
}

// WithSuppressed marks the party as already suppressed, for resuming a save
// taken while enlisted or mid-detach. Hide then keeps the saved snapshot.
func WithSuppressed(suppressed bool) IllusionOption {
	return func(i *Illusion) {
		i.suppressed = suppressed
	}
}

// NewIllusion creates an Illusion over host, persisting the snapshot through snapshot.
func NewIllusion(host PartyHost, snapshot VisibilitySnapshot, opts ...IllusionOption) *Illusion {
	i := &Illusion{
		host:     host,
		snapshot: snapshot,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Suppressed reports whether the player party is currently hidden by the illusion.
func (i *Illusion) Suppressed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.suppressed
}

// Target returns the commander the camera follows, if suppressed.
func (i *Illusion) Target() (ulid.ULID, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.target, i.suppressed && !i.target.IsZero()
}

// Hide snapshots the party's visibility (only when not already suppressed),
// hides it, and attaches the camera to commander.
func (i *Illusion) Hide(commander ulid.ULID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.hide(commander)
}

func (i *Illusion) hide(commander ulid.ULID) error {
	err := contain("hide", func() error {
		if !i.suppressed {
			i.snapshot.CaptureVisibility(i.host.PartyVisible())
			i.suppressed = true
		}
		i.host.SetPartyVisible(false)
		i.host.FollowCamera(commander)
		i.target = commander
		return nil
	})
	if err != nil {
		i.logger.Warn("hiding player party failed", "commander_id", commander.String(), "error", err)
	}
	return err
}

// Restore reapplies the snapshot visibility, releases the camera and resets
// the snapshot. It is a no-op when nothing is suppressed, so repeated calls
// cannot corrupt the snapshot. On failure the illusion stays suppressed and
// the restore can be retried.
func (i *Illusion) Restore() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.suppressed {
		return nil
	}

	err := contain("restore", func() error {
		i.host.SetPartyVisible(i.snapshot.PartyWasVisible())
		i.host.ReleaseCamera()
		return nil
	})
	if err != nil {
		i.logger.Warn("restoring player party failed", "error", err)
		return err
	}

	i.snapshot.CaptureVisibility(true)
	i.suppressed = false
	i.target = ulid.ULID{}
	return nil
}

// Maintain re-asserts the follow target without touching the snapshot.
// Safe to call every tick. If nothing is suppressed yet it performs the
// initial Hide.
func (i *Illusion) Maintain(commander ulid.ULID) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.suppressed {
		return i.hide(commander)
	}

	err := contain("maintain", func() error {
		if i.host.PartyVisible() {
			i.host.SetPartyVisible(false)
		}
		i.host.FollowCamera(commander)
		i.target = commander
		return nil
	})
	if err != nil {
		i.logger.Debug("maintaining illusion failed", "commander_id", commander.String(), "error", err)
	}
	return err
}
