// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package scenario runs Lua scripts that drive an enlistment session against
// the sandbox world.
//
// Scripts see these globals:
//
//	commander(name)      -> id
//	enlist(id)           -> true | nil, err
//	leave()              -> true | nil, err
//	advance(ticks)
//	battle{victory=, kills=, assists=, enemies=, friends=, knocked_out=}
//	                     -> {xp=, from_tier=, to_tier=} | nil, err
//	award(amount)        -> {xp=, from_tier=, to_tier=}
//	kill(id), capture(id), release(id), disband(id) -> true | nil, err
//	fail_join(bool)
//	status()             -> table
//	log(level, message)
package scenario

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/muster/internal/core"
	"github.com/holomush/muster/internal/enlistment"
	"github.com/holomush/muster/internal/progression"
	"github.com/holomush/muster/internal/service"
)

// Error codes.
const (
	CodeScenarioFailed = "SCENARIO_FAILED"
	CodeScriptRead     = "SCRIPT_READ_FAILED"
)

// SourceScript labels XP granted by award().
const SourceScript = "script"

// Report is the session state after a script finished.
type Report struct {
	Script string         `json:"script"`
	Status service.Status `json:"status"`
	Wallet int            `json:"wallet"`
	Tick   uint64         `json:"tick"`
	Day    uint64         `json:"day"`
	Events []core.Event   `json:"-"`
}

// Runner executes scenario scripts against one session.
type Runner struct {
	session *Session
	logger  *slog.Logger
}

// NewRunner creates a runner for session.
func NewRunner(session *Session, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{session: session, logger: logger}
}

// RunFile reads and runs the script at path.
func (r *Runner) RunFile(ctx context.Context, path string) (Report, error) {
	code, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Report{}, oops.Code(CodeScriptRead).With("path", path).Wrap(err)
	}
	return r.Run(ctx, filepath.Base(path), string(code))
}

// Run executes code in a fresh sandboxed state. The report is filled in
// even when the script fails part way.
func (r *Runner) Run(ctx context.Context, name, code string) (Report, error) {
	L, err := newState(ctx)
	if err != nil {
		return Report{}, err
	}
	defer L.Close()

	r.register(L, name)

	runErr := L.DoString(code)
	report, reportErr := r.report(ctx, name)
	if runErr != nil {
		return report, oops.Code(CodeScenarioFailed).
			With("script", name).
			Hint("the script raised an error; see the message for the failing line").
			Wrap(runErr)
	}
	return report, reportErr
}

func (r *Runner) report(ctx context.Context, name string) (Report, error) {
	s := r.session
	events, err := s.Events(ctx)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Script: name,
		Status: s.Coordinator.Status(ctx),
		Wallet: s.World.Wallet(),
		Tick:   s.Clock.Tick(),
		Day:    s.Clock.Day(),
		Events: events,
	}, nil
}

func (r *Runner) register(L *lua.LState, script string) {
	fns := map[string]lua.LGFunction{
		"commander": r.commanderFn,
		"enlist":    r.enlistFn,
		"leave":     r.leaveFn,
		"advance":   r.advanceFn,
		"battle":    r.battleFn,
		"award":     r.awardFn,
		"kill":      r.worldFn(r.session.World.Kill),
		"capture":   r.worldFn(r.session.World.Capture),
		"release":   r.worldFn(r.session.World.Release),
		"disband":   r.worldFn(r.session.World.Disband),
		"fail_join": r.failJoinFn,
		"status":    r.statusFn,
		"log":       r.logFn(script),
	}
	for name, fn := range fns {
		L.SetGlobal(name, L.NewFunction(fn))
	}
}

// pushError returns nil, message to the script.
func pushError(L *lua.LState, err error) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(err.Error()))
	return 2
}

func checkID(L *lua.LState, n int) ulid.ULID {
	raw := L.CheckString(n)
	id, err := core.ParseULID(raw)
	if err != nil {
		L.ArgError(n, "invalid id "+raw)
	}
	return id
}

func (r *Runner) commanderFn(L *lua.LState) int {
	id, err := r.session.World.AddCommander(L.CheckString(1))
	if err != nil {
		return pushError(L, err)
	}
	L.Push(lua.LString(id.String()))
	return 1
}

func (r *Runner) enlistFn(L *lua.LState) int {
	id := checkID(L, 1)
	if err := r.session.Coordinator.ConfirmEnlist(L.Context(), id); err != nil {
		return pushError(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}

func (r *Runner) leaveFn(L *lua.LState) int {
	if err := r.session.Coordinator.ConfirmLeave(L.Context()); err != nil {
		return pushError(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}

func (r *Runner) advanceFn(L *lua.LState) int {
	n := L.CheckInt(1)
	if n < 0 {
		L.ArgError(1, "ticks must be non-negative")
	}
	if err := r.session.Advance(L.Context(), uint64(n)); err != nil {
		L.RaiseError("advance interrupted: %v", err)
	}
	return 0
}

func (r *Runner) battleFn(L *lua.LState) int {
	t := L.CheckTable(1)
	outcome := progression.BattleOutcome{
		Victory:       lua.LVAsBool(t.RawGetString("victory")),
		Kills:         intField(t, "kills"),
		Assists:       intField(t, "assists"),
		EnemyCount:    intField(t, "enemies"),
		FriendlyCount: intField(t, "friends"),
		KnockedOut:    lua.LVAsBool(t.RawGetString("knocked_out")),
	}
	p, err := r.session.Coordinator.BattleResolved(L.Context(), outcome)
	if err != nil {
		return pushError(L, err)
	}
	L.Push(promotionTable(L, p))
	return 1
}

func (r *Runner) awardFn(L *lua.LState) int {
	p := r.session.Coordinator.AwardXP(L.Context(), L.CheckInt(1), SourceScript)
	L.Push(promotionTable(L, p))
	return 1
}

func (r *Runner) worldFn(op func(ulid.ULID) error) lua.LGFunction {
	return func(L *lua.LState) int {
		if err := op(checkID(L, 1)); err != nil {
			return pushError(L, err)
		}
		L.Push(lua.LTrue)
		return 1
	}
}

func (r *Runner) failJoinFn(L *lua.LState) int {
	r.session.World.SetFailJoin(L.CheckBool(1))
	return 0
}

func (r *Runner) statusFn(L *lua.LState) int {
	s := r.session
	st := s.Coordinator.Status(L.Context())

	t := L.NewTable()
	L.SetField(t, "state", lua.LString(st.State))
	L.SetField(t, "enlisted", lua.LBool(st.State == enlistment.StateEnlisted.String()))
	if st.Commander != "" {
		L.SetField(t, "commander", lua.LString(st.Commander))
	}
	L.SetField(t, "tier", lua.LNumber(st.Tier))
	L.SetField(t, "rank", lua.LString(st.Rank))
	L.SetField(t, "xp", lua.LNumber(st.CurrentXP))
	L.SetField(t, "next_xp", lua.LNumber(st.NextTierXP))
	L.SetField(t, "escorting", lua.LBool(st.Escorting))
	L.SetField(t, "suppressed", lua.LBool(st.Suppressed))
	L.SetField(t, "party_visible", lua.LBool(s.World.PartyVisible()))
	L.SetField(t, "independent", lua.LBool(s.World.IndependentAI()))
	L.SetField(t, "wallet", lua.LNumber(s.World.Wallet()))
	L.SetField(t, "tick", lua.LNumber(s.Clock.Tick()))
	L.SetField(t, "day", lua.LNumber(s.Clock.Day()))
	L.Push(t)
	return 1
}

func (r *Runner) logFn(script string) lua.LGFunction {
	return func(L *lua.LState) int {
		level := L.CheckString(1)
		message := L.CheckString(2)

		logger := r.logger.With("script", script)
		switch level {
		case "debug":
			logger.Debug(message)
		case "warn":
			logger.Warn(message)
		case "error":
			logger.Error(message)
		default:
			logger.Info(message)
		}
		return 0
	}
}

func intField(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}

func promotionTable(L *lua.LState, p enlistment.Promotion) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "xp", lua.LNumber(p.Awarded))
	L.SetField(t, "from_tier", lua.LNumber(p.FromTier))
	L.SetField(t, "to_tier", lua.LNumber(p.ToTier))
	return t
}
