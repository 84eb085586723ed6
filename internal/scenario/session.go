// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/muster/internal/core"
	"github.com/holomush/muster/internal/enlistment"
	"github.com/holomush/muster/internal/presentation"
	"github.com/holomush/muster/internal/progression"
	"github.com/holomush/muster/internal/sandbox"
	"github.com/holomush/muster/internal/service"
	"github.com/holomush/muster/internal/store"
)

// maxReportEvents bounds the journal replay included in a Report.
const maxReportEvents = 10000

// SessionConfig describes one simulated player.
type SessionConfig struct {
	// Player identifies the save slot. Zero generates a new player.
	Player      ulid.ULID
	Service     service.Config
	Engine      *progression.Engine
	TicksPerDay uint64
	// Events defaults to an in-memory store.
	Events core.EventStore
	// Resume restores a saved slot before the first tick.
	Resume *store.Slot
	Logger *slog.Logger
}

// Session wires a sandbox world to the enlistment packages and drives them
// from a simulation clock.
type Session struct {
	Player      ulid.ULID
	World       *sandbox.World
	Lifecycle   *enlistment.Lifecycle
	Coordinator *service.Coordinator
	Journal     *core.Journal
	Clock       *core.Clock

	logger  *slog.Logger
	startID ulid.ULID

	mu          sync.Mutex
	lastWageDay *uint64
}

// NewSession assembles a session. With Resume set, the world, lifecycle,
// clock and wage cycle continue from the slot. A slot saved without a world
// starts from an empty one.
func NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	engine := cfg.Engine
	if engine == nil {
		engine = progression.DefaultEngine()
	}
	events := cfg.Events
	if events == nil {
		events = core.NewMemoryEventStore()
	}
	player := cfg.Player
	if cfg.Resume != nil {
		player = cfg.Resume.Player
	}
	if player.IsZero() {
		player = core.NewULID()
	}
	logger = logger.With("player_id", player.String())

	world := sandbox.NewWorld(sandbox.WithLogger(logger))
	lifecycle, err := enlistment.New(world, engine, enlistment.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	s := &Session{
		Player:    player,
		World:     world,
		Lifecycle: lifecycle,
		Clock:     core.NewClock(cfg.TicksPerDay),
		logger:    logger,
	}

	if cfg.Resume != nil {
		if err := restoreWorld(world, cfg.Resume.World); err != nil {
			return nil, oops.With("player_id", player.String()).Wrapf(err, "resume world state")
		}
		if err := lifecycle.Restore(cfg.Resume.Snapshot); err != nil {
			return nil, oops.With("player_id", player.String()).Wrapf(err, "resume save slot")
		}
		s.Clock.Resume(cfg.Resume.ClockTick)
		if cfg.Resume.LastWageDay != nil {
			day := *cfg.Resume.LastWageDay
			s.lastWageDay = &day
		}
	}

	stream := core.EnlistmentStream(player)
	last, err := events.LastEventID(ctx, stream)
	switch {
	case err == nil:
		s.startID = last
	case errors.Is(err, core.ErrStreamEmpty):
	default:
		return nil, oops.With("stream", stream).Wrapf(err, "read journal position")
	}
	s.Journal = core.NewJournal(events, core.NewBroadcaster())

	state := lifecycle.State()
	illusion := presentation.NewIllusion(world, lifecycle,
		presentation.WithIllusionLogger(logger),
		presentation.WithSuppressed(state != enlistment.StateIdle),
	)
	escort := presentation.NewEscort(world, presentation.WithEscortLogger(logger))

	s.Coordinator, err = service.NewCoordinator(cfg.Service, service.Deps{
		Player:       player,
		Lifecycle:    lifecycle,
		Engine:       engine,
		Presentation: illusion,
		Army:         escort,
		Wages:        world,
		Events:       s.Journal,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	if s.lastWageDay != nil {
		s.Coordinator.ResumeWageCycle(*s.lastWageDay)
	}

	s.Clock.OnTick = func(ctx context.Context, _ uint64) {
		s.Coordinator.Tick(ctx)
	}
	s.Clock.OnDay = func(ctx context.Context, day uint64) {
		if s.Coordinator.DailyTick(ctx, day) > 0 {
			s.mu.Lock()
			s.lastWageDay = &day
			s.mu.Unlock()
		}
	}
	return s, nil
}

func restoreWorld(world *sandbox.World, raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var state sandbox.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return oops.Code(sandbox.CodeInvalidState).Wrapf(err, "decode world state")
	}
	return world.Restore(state)
}

// Advance runs n ticks of maintenance and the day boundaries they cross.
func (s *Session) Advance(ctx context.Context, n uint64) error {
	return s.Clock.Advance(ctx, n)
}

// Slot captures the session and its world as a save slot.
func (s *Session) Slot() store.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := store.Slot{
		Player:    s.Player,
		Snapshot:  s.Lifecycle.Snapshot(),
		ClockTick: s.Clock.Tick(),
	}
	if world, err := json.Marshal(s.World.State()); err == nil {
		slot.World = world
	} else {
		s.logger.Warn("world state not captured", "error", err)
	}
	if s.lastWageDay != nil {
		day := *s.lastWageDay
		slot.LastWageDay = &day
	}
	return slot
}

// Save writes the current slot to records.
func (s *Session) Save(ctx context.Context, records store.RecordStore) error {
	slot := s.Slot()
	if err := records.Save(ctx, slot); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "save slot written", "tick", slot.ClockTick)
	return nil
}

// Events returns the journal entries written since the session started.
func (s *Session) Events(ctx context.Context) ([]core.Event, error) {
	return s.Journal.Replay(ctx, core.EnlistmentStream(s.Player), s.startID, maxReportEvents)
}
