// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package presentation

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ArmyHost attaches the player party's escort behaviour to a commander.
type ArmyHost interface {
	AttachEscort(ctx context.Context, commander ulid.ULID) error
	DetachEscort(ctx context.Context) error
	RestoreIndependentAI(ctx context.Context) error
	// Escorting reports the commander the player is attached to. The host
	// may drop the attachment on its own, for example when the army breaks up.
	Escorting(ctx context.Context) (ulid.ULID, bool)
}

// Escort tracks the player's membership in the commander's party or army.
type Escort struct {
	host   ArmyHost
	logger *slog.Logger

	mu        sync.Mutex
	joined    bool
	commander ulid.ULID
}

// EscortOption configures an Escort.
type EscortOption func(*Escort)

// WithEscortLogger sets the logger. Defaults to slog.Default().
func WithEscortLogger(logger *slog.Logger) EscortOption {
	return func(e *Escort) {
		e.logger = logger
	}
}

// NewEscort creates an Escort over host.
func NewEscort(host ArmyHost, opts ...EscortOption) *Escort {
	e := &Escort{
		host:   host,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Joined reports whether the player is still attached to the commander it
// last joined. An attachment the host dropped, or moved to someone else,
// counts as not joined so the next TryJoin restores it.
func (e *Escort) Joined(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.joined {
		return false
	}

	var (
		current  ulid.ULID
		attached bool
	)
	err := contain("escorting", func() error {
		current, attached = e.host.Escorting(ctx)
		return nil
	})
	if err != nil {
		e.logger.WarnContext(ctx, "querying escort failed", "error", err)
		return false
	}
	if !attached || current != e.commander {
		e.logger.InfoContext(ctx, "escort dropped by host",
			"commander_id", e.commander.String(),
			"attached", attached,
		)
		e.joined = false
		return false
	}
	return true
}

// TryJoin attaches the escort to commander. Failures are logged and
// reported as false; nothing is retried here.
func (e *Escort) TryJoin(ctx context.Context, commander ulid.ULID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := contain("attach_escort", func() error {
		return e.host.AttachEscort(ctx, commander)
	})
	if err != nil {
		e.logger.WarnContext(ctx, "joining commander failed",
			"commander_id", commander.String(),
			"error", err,
		)
		e.joined = false
		return false
	}

	e.joined = true
	e.commander = commander
	return true
}

// Leave detaches from the commander and hands the party back to its own AI.
// Both steps always run; their errors are combined.
func (e *Escort) Leave(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leave(ctx)
}

func (e *Escort) leave(ctx context.Context) error {
	detachErr := contain("detach_escort", func() error {
		return e.host.DetachEscort(ctx)
	})
	aiErr := contain("restore_ai", func() error {
		return e.host.RestoreIndependentAI(ctx)
	})

	e.joined = false
	e.commander = ulid.ULID{}

	if err := errors.Join(detachErr, aiErr); err != nil {
		return oops.With("operation", "leave escort").Wrap(err)
	}
	return nil
}

// SafeDetach is Leave for emergency cleanup: it never propagates a failure.
// The result reports whether detaching was clean and may be ignored.
func (e *Escort) SafeDetach(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.leave(ctx); err != nil {
		e.logger.WarnContext(ctx, "safe detach suppressed failure", "error", err)
		return false
	}
	return true
}
