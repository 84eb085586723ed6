// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package progression

import "github.com/samber/oops"

// NoFurtherProgression is returned by RequiredXPForTier for any tier that
// cannot advance: negative tiers and tiers at or above the ceiling.
const NoFurtherProgression = 0

// BattleOutcome is the player's view of a resolved battle.
type BattleOutcome struct {
	Victory       bool
	Kills         int
	Assists       int
	EnemyCount    int
	FriendlyCount int
	KnockedOut    bool
}

// Engine answers tier and XP questions against one immutable table.
type Engine struct {
	table *Table
}

// NewEngine creates an engine over table, validating it first.
func NewEngine(table *Table) (*Engine, error) {
	if table == nil {
		return nil, oops.Code(CodeTableInvalid).Errorf("progression table is nil")
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &Engine{table: table}, nil
}

// DefaultEngine returns an engine over the embedded default table.
func DefaultEngine() *Engine {
	return &Engine{table: DefaultTable()}
}

// MaxTier returns the ceiling tier index.
func (e *Engine) MaxTier() int {
	return len(e.table.Tiers) - 1
}

// RequiredXPForTier returns the XP needed to advance from tier to tier+1,
// or NoFurtherProgression when tier is out of range or already the ceiling.
func (e *Engine) RequiredXPForTier(tier int) int {
	if tier < 0 || tier >= e.MaxTier() {
		return NoFurtherProgression
	}
	return e.table.Tiers[tier].XPToNext
}

// TierName returns the display name for tier, clamped into the table.
func (e *Engine) TierName(tier int) string {
	tier = clamp(tier, 0, e.MaxTier())
	return e.table.Tiers[tier].Name
}

// ComputeBattleXP returns the XP award for a battle. It is pure and total:
// out-of-range counts are clamped and the result is never negative.
func (e *Engine) ComputeBattleXP(o BattleOutcome) int {
	r := e.table.Battle

	base := r.DefeatXP
	if o.Victory {
		base = r.VictoryXP
	}

	kills := clamp(o.Kills, 0, r.MaxCountedActions)
	assists := clamp(o.Assists, 0, r.MaxCountedActions)
	xp := base + oddsBonus(base, o.EnemyCount, o.FriendlyCount) + kills*r.KillXP + assists*r.AssistXP

	if o.KnockedOut {
		xp = xp * r.KnockedOutPercent / 100
	}
	return max(xp, 0)
}

// oddsBonus rewards fighting outnumbered: base scaled by how far the enemy
// outnumbers the friendly side, capped at base.
func oddsBonus(base, enemy, friendly int) int {
	if friendly <= 0 || enemy <= friendly {
		return 0
	}
	excess := enemy - friendly
	if excess >= friendly {
		return base
	}
	// Float math keeps huge troop counts from overflowing base*excess.
	return int(float64(base) * float64(excess) / float64(friendly))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
