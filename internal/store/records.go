// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/muster/internal/enlistment"
)

// Slot is one player's saved enlistment state plus the simulation position
// it was taken at.
type Slot struct {
	Player      ulid.ULID
	Snapshot    enlistment.Snapshot
	ClockTick   uint64
	LastWageDay *uint64
	// World is the host world the slot was taken in, as JSON. Nil for
	// slots saved before worlds were kept.
	World     json.RawMessage
	UpdatedAt time.Time
}

// RecordStore saves and loads enlistment slots.
type RecordStore interface {
	Save(ctx context.Context, slot Slot) error
	// Load returns the slot for player; found is false when none was saved.
	Load(ctx context.Context, player ulid.ULID) (slot Slot, found bool, err error)
}

// PostgresRecordStore implements RecordStore on the enlistment_slots table.
type PostgresRecordStore struct {
	pool poolIface
}

// NewPostgresRecordStore creates a record store over pool.
func NewPostgresRecordStore(pool poolIface) *PostgresRecordStore {
	return &PostgresRecordStore{pool: pool}
}

// Save upserts the slot. Fields are written verbatim.
func (r *PostgresRecordStore) Save(ctx context.Context, slot Slot) error {
	s := slot.Snapshot
	var commander *string
	if s.Commander != nil {
		id := s.Commander.String()
		commander = &id
	}
	var wageDay *int64
	if slot.LastWageDay != nil {
		d := int64(*slot.LastWageDay) //nolint:gosec // day counters stay far below MaxInt64
		wageDay = &d
	}
	var world []byte
	if len(slot.World) > 0 {
		world = slot.World
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO enlistment_slots (player_id, is_enlisted, commander_id, pending_detach,
		     party_was_visible, waiting_in_reserve, tier, current_xp, next_tier_xp,
		     clock_tick, last_wage_day, world, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
		 ON CONFLICT (player_id) DO UPDATE SET
		     is_enlisted = $2, commander_id = $3, pending_detach = $4,
		     party_was_visible = $5, waiting_in_reserve = $6, tier = $7,
		     current_xp = $8, next_tier_xp = $9, clock_tick = $10,
		     last_wage_day = $11, world = $12, updated_at = now()`,
		slot.Player.String(),
		s.Enlisted,
		commander,
		s.PendingDetach,
		s.PlayerPartyWasVisible,
		s.WaitingInReserve,
		s.Tier,
		int64(s.CurrentXP),
		int64(s.NextTierXP),
		int64(slot.ClockTick), //nolint:gosec // tick counters stay far below MaxInt64
		wageDay,
		world,
	)
	if err != nil {
		return oops.With("player_id", slot.Player.String()).Wrap(classify(err, "SAVE_FAILED", "save enlistment slot"))
	}
	return nil
}

// Load reads the slot for player.
func (r *PostgresRecordStore) Load(ctx context.Context, player ulid.ULID) (Slot, bool, error) {
	var (
		commander *string
		s         enlistment.Snapshot
		xp, next  int64
		tick      int64
		wageDay   *int64
		world     []byte
		updatedAt time.Time
	)
	err := r.pool.QueryRow(ctx,
		`SELECT is_enlisted, commander_id, pending_detach, party_was_visible,
		        waiting_in_reserve, tier, current_xp, next_tier_xp, clock_tick,
		        last_wage_day, world, updated_at
		 FROM enlistment_slots WHERE player_id = $1`,
		player.String()).Scan(
		&s.Enlisted, &commander, &s.PendingDetach, &s.PlayerPartyWasVisible,
		&s.WaitingInReserve, &s.Tier, &xp, &next, &tick, &wageDay, &world, &updatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Slot{}, false, nil
	}
	if err != nil {
		return Slot{}, false, oops.With("player_id", player.String()).Wrap(classify(err, "LOAD_FAILED", "load enlistment slot"))
	}

	if commander != nil {
		id, err := ulid.Parse(*commander)
		if err != nil {
			return Slot{}, false, oops.Code("LOAD_FAILED").
				With("player_id", player.String()).
				With("commander_id", *commander).
				Wrapf(err, "corrupt commander id")
		}
		s.Commander = &id
	}
	s.CurrentXP = int(xp)
	s.NextTierXP = int(next)

	slot := Slot{
		Player:    player,
		Snapshot:  s,
		ClockTick: uint64(tick), //nolint:gosec // written from a uint64
		UpdatedAt: updatedAt,
	}
	if len(world) > 0 {
		slot.World = json.RawMessage(world)
	}
	if wageDay != nil {
		d := uint64(*wageDay) //nolint:gosec // written from a uint64
		slot.LastWageDay = &d
	}
	return slot, true, nil
}
