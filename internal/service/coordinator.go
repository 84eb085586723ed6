// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package service coordinates enlistment: it reacts to ticks, day
// boundaries, battles and player confirmations, drives the lifecycle, and
// applies the matching presentation, escort and wage side effects.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/muster/internal/core"
	"github.com/holomush/muster/internal/enlistment"
	"github.com/holomush/muster/internal/progression"
	"github.com/holomush/muster/pkg/errutil"
)

var tracer = otel.Tracer("muster/service")

// Presentation hides and restores the player party. Implemented by
// presentation.Illusion.
type Presentation interface {
	Hide(commander ulid.ULID) error
	Restore() error
	Maintain(commander ulid.ULID) error
	Suppressed() bool
}

// Army attaches the player to the commander's army. Implemented by
// presentation.Escort.
type Army interface {
	TryJoin(ctx context.Context, commander ulid.ULID) bool
	Leave(ctx context.Context) error
	SafeDetach(ctx context.Context) bool
	// Joined reports whether the host still has the player in the army.
	Joined(ctx context.Context) bool
}

// WageSink credits currency to the player. Fire and forget.
type WageSink interface {
	Credit(ctx context.Context, amount int)
}

// EventPublisher records enlistment events. Implemented by core.Journal.
type EventPublisher interface {
	Publish(ctx context.Context, stream string, eventType core.EventType, actor core.Actor, payload any) (core.Event, error)
}

// Deps are the coordinator's collaborators. Events and Logger are optional.
type Deps struct {
	Player       ulid.ULID
	Lifecycle    *enlistment.Lifecycle
	Engine       *progression.Engine
	Presentation Presentation
	Army         Army
	Wages        WageSink
	Events       EventPublisher
	Logger       *slog.Logger
}

// Coordinator serializes every enlistment operation for one player.
type Coordinator struct {
	cfg          Config
	player       ulid.ULID
	lifecycle    *enlistment.Lifecycle
	engine       *progression.Engine
	presentation Presentation
	army         Army
	wages        WageSink
	events       EventPublisher
	logger       *slog.Logger

	mu          sync.Mutex
	wagePaid    bool
	lastWageDay uint64
}

// NewCoordinator validates cfg and wires the coordinator.
func NewCoordinator(cfg Config, deps Deps) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Lifecycle == nil:
		return nil, oops.Code(CodeMissingDependency).Errorf("lifecycle is required")
	case deps.Engine == nil:
		return nil, oops.Code(CodeMissingDependency).Errorf("progression engine is required")
	case deps.Presentation == nil:
		return nil, oops.Code(CodeMissingDependency).Errorf("presentation is required")
	case deps.Army == nil:
		return nil, oops.Code(CodeMissingDependency).Errorf("army is required")
	case deps.Wages == nil:
		return nil, oops.Code(CodeMissingDependency).Errorf("wage sink is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Coordinator{
		cfg:          cfg,
		player:       deps.Player,
		lifecycle:    deps.Lifecycle,
		engine:       deps.Engine,
		presentation: deps.Presentation,
		army:         deps.Army,
		wages:        deps.Wages,
		events:       deps.Events,
		logger:       logger.With("player_id", deps.Player.String()),
	}
	CurrentTier.Set(float64(c.lifecycle.Progression().Tier))
	return c, nil
}

// ResumeWageCycle marks day as already paid, for a session resumed from a
// save taken after that day's wage.
func (c *Coordinator) ResumeWageCycle(day uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wagePaid = true
	c.lastWageDay = day
}

// Tick runs one maintenance pass. It never fails: an invalid commander ends
// service, an escort the host dropped is rejoined, and left-over cleanup
// from a detach or a leave is retried.
func (c *Coordinator) Tick(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, span := tracer.Start(ctx, "service.tick")
	defer span.End()
	defer observeDuration("tick", time.Now())

	switch c.lifecycle.State() {
	case enlistment.StateEnlisted:
		if !c.lifecycle.IsCommanderValid(ctx) {
			span.SetAttributes(attribute.String("service.forced_reason", ReasonCommanderInvalid))
			c.forceEndService(ctx, ReasonCommanderInvalid)
			return
		}
		commander, _ := c.lifecycle.Commander()
		if !c.army.Joined(ctx) && c.army.TryJoin(ctx, commander) {
			c.logger.InfoContext(ctx, "escort reconciled", "commander_id", commander.String())
		}
		_ = c.presentation.Maintain(commander) // logged by the adapter, re-run next tick

	case enlistment.StateDetaching:
		c.army.SafeDetach(ctx)
		if c.restoreAndComplete(ctx) {
			c.logger.InfoContext(ctx, "pending detach completed")
		}

	case enlistment.StateIdle:
		if c.presentation.Suppressed() && c.presentation.Restore() == nil {
			c.logger.InfoContext(ctx, "left-over party suppression restored")
		}
	}
}

// forceEndService transitions first, then cleans up. Cleanup failures leave
// the record Detaching for the next tick to retry.
func (c *Coordinator) forceEndService(ctx context.Context, reason string) {
	commander, _ := c.lifecycle.Commander()

	c.lifecycle.ForceEndService(ctx, reason)
	recordTransition(TransitionForceEnd)
	recordForcedDischarge(reason)

	c.army.SafeDetach(ctx)
	restored := c.restoreAndComplete(ctx)

	c.publish(ctx, core.EventTypeServiceEnded, c.systemActor(), core.DischargedPayload{
		CommanderID: commander.String(),
		Reason:      reason,
		Restored:    restored,
	})
}

func (c *Coordinator) restoreAndComplete(ctx context.Context) bool {
	if err := c.presentation.Restore(); err != nil {
		c.logger.WarnContext(ctx, "restore failed, detach stays pending", "error", err)
		return false
	}
	c.lifecycle.CompletePendingDetach()
	recordTransition(TransitionCompleteDetach)
	return true
}

// DailyTick pays the wage for day at most once, and awards drill XP with it.
// It returns the wage credited.
func (c *Coordinator) DailyTick(ctx context.Context, day uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, span := tracer.Start(ctx, "service.daily_tick",
		trace.WithAttributes(attribute.Int64("service.day", int64(day))), //nolint:gosec // day counts stay far below MaxInt64
	)
	defer span.End()
	defer observeDuration("daily_tick", time.Now())

	if !c.lifecycle.IsEnlisted() || !c.lifecycle.IsCommanderValid(ctx) {
		return 0
	}
	if c.wagePaid && c.lastWageDay == day {
		c.logger.DebugContext(ctx, "wage already paid", "day", day)
		return 0
	}
	c.wagePaid = true
	c.lastWageDay = day

	tier := c.lifecycle.Progression().Tier
	wage := c.cfg.WageFor(tier)
	if wage > 0 {
		c.wages.Credit(ctx, wage)
		recordWage(wage)
		span.SetAttributes(attribute.Int("service.wage", wage))
		c.publish(ctx, core.EventTypeWagePaid, c.systemActor(), core.WagePaidPayload{
			Day:    day,
			Amount: wage,
			Tier:   tier,
		})
	}

	if c.cfg.DailyXP > 0 {
		c.awardXP(ctx, c.cfg.DailyXP, SourceDrill, c.systemActor())
	}
	return wage
}

// BattleResolved awards battle XP. Only enlisted players earn it.
func (c *Coordinator) BattleResolved(ctx context.Context, outcome progression.BattleOutcome) (_ enlistment.Promotion, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, span := tracer.Start(ctx, "service.battle_resolved",
		trace.WithAttributes(
			attribute.Bool("battle.victory", outcome.Victory),
			attribute.Int("battle.kills", outcome.Kills),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	defer observeDuration("battle_resolved", time.Now())

	if !c.lifecycle.IsEnlisted() {
		return enlistment.Promotion{}, enlistment.ErrNotEnlisted()
	}

	xp := c.engine.ComputeBattleXP(outcome)
	span.SetAttributes(attribute.Int("battle.xp", xp))
	return c.awardXP(ctx, xp, SourceBattle, c.systemActor()), nil
}

// AwardXP awards XP from a non-battle source. Progression persists across
// service, so this works in every state.
func (c *Coordinator) AwardXP(ctx context.Context, amount int, source string) enlistment.Promotion {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, span := tracer.Start(ctx, "service.award_xp",
		trace.WithAttributes(attribute.Int("xp.amount", amount), attribute.String("xp.source", source)),
	)
	defer span.End()

	return c.awardXP(ctx, amount, source, c.systemActor())
}

func (c *Coordinator) awardXP(ctx context.Context, amount int, source string, actor core.Actor) enlistment.Promotion {
	p := c.lifecycle.AwardXP(amount)
	if p.Awarded == 0 {
		return p
	}

	progress := c.lifecycle.Progression()
	recordXP(source, p.Awarded, p.ToTier-p.FromTier, progress.Tier)
	c.publish(ctx, core.EventTypeXPAwarded, actor, core.XPAwardedPayload{
		Amount: p.Awarded,
		Source: source,
		Tier:   progress.Tier,
		XP:     progress.CurrentXP,
	})

	if p.Promoted() {
		rank := c.engine.TierName(p.ToTier)
		c.logger.InfoContext(ctx, "promoted",
			"from_tier", p.FromTier,
			"to_tier", p.ToTier,
			"rank", rank,
		)
		c.publish(ctx, core.EventTypePromoted, actor, core.PromotedPayload{
			FromTier: p.FromTier,
			ToTier:   p.ToTier,
			Rank:     rank,
		})
	}
	return p
}

// ConfirmEnlist enlists under commander, then joins its army and hides the
// player party. A failed join is not rolled back; Tick retries it.
func (c *Coordinator) ConfirmEnlist(ctx context.Context, commander ulid.ULID) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, span := tracer.Start(ctx, "service.confirm_enlist",
		trace.WithAttributes(attribute.String("commander.id", commander.String())),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	defer observeDuration("confirm_enlist", time.Now())

	if err = c.lifecycle.Enlist(ctx, commander); err != nil {
		errutil.Log(ctx, c.logger, slog.LevelWarn, "enlist rejected", err)
		return err
	}
	recordTransition(TransitionEnlist)

	joined := c.army.TryJoin(ctx, commander)
	if !joined {
		c.logger.WarnContext(ctx, "enlisted without escort, maintenance will retry",
			"commander_id", commander.String())
	}
	_ = c.presentation.Hide(commander) // Maintain re-applies it every tick

	span.SetAttributes(attribute.Bool("escort.joined", joined))
	c.publish(ctx, core.EventTypeEnlisted, c.playerActor(), core.EnlistedPayload{
		CommanderID: commander.String(),
		Joined:      joined,
	})
	return nil
}

// ConfirmLeave ends service at the player's request. The record always ends
// Idle; a restore that failed here is retried by the next Tick.
func (c *Coordinator) ConfirmLeave(ctx context.Context) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, span := tracer.Start(ctx, "service.confirm_leave")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	defer observeDuration("confirm_leave", time.Now())

	if !c.lifecycle.IsEnlisted() {
		return enlistment.ErrNotEnlisted()
	}
	commander, _ := c.lifecycle.Commander()

	c.lifecycle.Leave()
	recordTransition(TransitionLeave)

	if leaveErr := c.army.Leave(ctx); leaveErr != nil {
		errutil.Log(ctx, c.logger, slog.LevelWarn, "leaving army failed", leaveErr)
	}
	restoreErr := c.presentation.Restore()
	if restoreErr != nil {
		errutil.Log(ctx, c.logger, slog.LevelWarn, "restoring party failed, maintenance will retry", restoreErr)
	}
	c.lifecycle.CompletePendingDetach()
	recordTransition(TransitionCompleteDetach)

	c.publish(ctx, core.EventTypeDischarged, c.playerActor(), core.DischargedPayload{
		CommanderID: commander.String(),
		Reason:      ReasonPlayerLeft,
		Restored:    restoreErr == nil,
	})
	return nil
}

// Status summarizes the player's service for display.
type Status struct {
	State      string `json:"state"`
	Commander  string `json:"commander,omitempty"`
	Tier       int    `json:"tier"`
	Rank       string `json:"rank"`
	CurrentXP  int    `json:"current_xp"`
	NextTierXP int    `json:"next_tier_xp"`
	Escorting  bool   `json:"escorting"`
	Suppressed bool   `json:"suppressed"`
}

// Status returns the current service summary.
func (c *Coordinator) Status(ctx context.Context) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.lifecycle.Progression()
	s := Status{
		State:      c.lifecycle.State().String(),
		Tier:       p.Tier,
		Rank:       c.engine.TierName(p.Tier),
		CurrentXP:  p.CurrentXP,
		NextTierXP: p.NextTierXP,
		Escorting:  c.army.Joined(ctx),
		Suppressed: c.presentation.Suppressed(),
	}
	if s.NextTierXP <= 0 {
		s.NextTierXP = c.engine.RequiredXPForTier(p.Tier)
	}
	if id, ok := c.lifecycle.Commander(); ok {
		s.Commander = id.String()
	}
	return s
}

func (c *Coordinator) publish(ctx context.Context, eventType core.EventType, actor core.Actor, payload any) {
	if c.events == nil {
		return
	}
	if _, err := c.events.Publish(ctx, core.EnlistmentStream(c.player), eventType, actor, payload); err != nil {
		errutil.LogError(ctx, c.logger, "publishing enlistment event failed", err)
	}
}

func (c *Coordinator) playerActor() core.Actor {
	return core.Actor{Kind: core.ActorPlayer, ID: c.player.String()}
}

func (c *Coordinator) systemActor() core.Actor {
	return core.Actor{Kind: core.ActorSystem, ID: "system"}
}
