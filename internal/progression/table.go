// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package progression computes XP awards and tier thresholds from a
// progression table. Everything here is pure: a loaded Table is immutable
// and an Engine holds no state beyond it.
package progression

import (
	_ "embed"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

//go:embed tiers.yaml
var defaultTableYAML []byte

// SupportedVersions is the semver constraint a table's version must satisfy.
const SupportedVersions = "^1"

// Table is a progression table: ordered tiers plus the battle award rules.
type Table struct {
	Version string      `yaml:"version" json:"version" jsonschema:"required,description=Semantic version of the table format"`
	Tiers   []TierSpec  `yaml:"tiers" json:"tiers" jsonschema:"required,minItems=1"`
	Battle  BattleRules `yaml:"battle" json:"battle" jsonschema:"required"`
}

// TierSpec describes one rank. XPToNext is the XP needed to advance from
// this tier to the next one; the ceiling tier carries 0.
type TierSpec struct {
	Name     string `yaml:"name" json:"name" jsonschema:"required,minLength=1"`
	XPToNext int    `yaml:"xp_to_next" json:"xp_to_next" jsonschema:"minimum=0"`
}

// BattleRules parameterize ComputeBattleXP.
type BattleRules struct {
	VictoryXP         int `yaml:"victory_xp" json:"victory_xp" jsonschema:"minimum=0"`
	DefeatXP          int `yaml:"defeat_xp" json:"defeat_xp" jsonschema:"minimum=0"`
	KillXP            int `yaml:"kill_xp" json:"kill_xp" jsonschema:"minimum=0"`
	AssistXP          int `yaml:"assist_xp" json:"assist_xp" jsonschema:"minimum=0"`
	KnockedOutPercent int `yaml:"knocked_out_percent" json:"knocked_out_percent" jsonschema:"minimum=0,maximum=100"`
	MaxCountedActions int `yaml:"max_counted_actions" json:"max_counted_actions" jsonschema:"minimum=0"`
}

// maxAwardComponent bounds every configured XP amount so that no
// combination of inputs can overflow the award arithmetic.
const maxAwardComponent = 1_000_000

// DefaultTable returns the embedded default table.
func DefaultTable() *Table {
	t, err := ParseTable(defaultTableYAML)
	if err != nil {
		// The embedded table is covered by tests; reaching this is a build defect.
		panic(oops.Wrapf(err, "embedded progression table"))
	}
	return t
}

// LoadTable reads a table from path. An empty path yields DefaultTable.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
	if err != nil {
		return nil, oops.Code(CodeTableInvalid).With("path", path).Wrap(err)
	}
	t, err := ParseTable(data)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	return t, nil
}

// ParseTable parses YAML, validates it against the table JSON Schema, checks
// the format version, and applies the semantic rules in Validate.
func ParseTable(data []byte) (*Table, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, oops.Code(CodeTableInvalid).Wrap(err)
	}

	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, oops.Code(CodeTableInvalid).Wrapf(err, "invalid YAML")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks the table's version and tier rules.
func (t *Table) Validate() error {
	if err := checkVersion(t.Version); err != nil {
		return err
	}
	if len(t.Tiers) == 0 {
		return oops.Code(CodeTableInvalid).Errorf("at least one tier is required")
	}

	last := len(t.Tiers) - 1
	for i, tier := range t.Tiers {
		if tier.Name == "" {
			return oops.Code(CodeTableInvalid).With("tier", i).Errorf("tier %d has no name", i)
		}
		switch {
		case i == last && tier.XPToNext != 0:
			return oops.Code(CodeTableInvalid).With("tier", i).
				Errorf("ceiling tier %q must have xp_to_next 0, got %d", tier.Name, tier.XPToNext)
		case i < last && tier.XPToNext <= 0:
			return oops.Code(CodeTableInvalid).With("tier", i).
				Errorf("tier %q must require positive xp_to_next, got %d", tier.Name, tier.XPToNext)
		case tier.XPToNext > maxAwardComponent:
			return oops.Code(CodeTableInvalid).With("tier", i).
				Errorf("tier %q xp_to_next %d exceeds %d", tier.Name, tier.XPToNext, maxAwardComponent)
		}
	}

	return t.Battle.validate()
}

func (r BattleRules) validate() error {
	fields := map[string]int{
		"victory_xp":          r.VictoryXP,
		"defeat_xp":           r.DefeatXP,
		"kill_xp":             r.KillXP,
		"assist_xp":           r.AssistXP,
		"max_counted_actions": r.MaxCountedActions,
	}
	for name, v := range fields {
		if v < 0 || v > maxAwardComponent {
			return oops.Code(CodeTableInvalid).With("field", name).
				Errorf("battle.%s must be between 0 and %d, got %d", name, maxAwardComponent, v)
		}
	}
	if r.KnockedOutPercent < 0 || r.KnockedOutPercent > 100 {
		return oops.Code(CodeTableInvalid).With("field", "knocked_out_percent").
			Errorf("battle.knocked_out_percent must be between 0 and 100, got %d", r.KnockedOutPercent)
	}
	if r.VictoryXP < r.DefeatXP {
		return oops.Code(CodeTableInvalid).
			Errorf("battle.victory_xp (%d) must not be below battle.defeat_xp (%d)", r.VictoryXP, r.DefeatXP)
	}
	return nil
}

func checkVersion(raw string) error {
	v, err := semver.NewVersion(raw)
	if err != nil {
		return oops.Code(CodeTableVersionUnsupported).With("version", raw).Wrapf(err, "invalid table version")
	}
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return oops.Code(CodeTableVersionUnsupported).Wrap(err)
	}
	if !c.Check(v) {
		return oops.Code(CodeTableVersionUnsupported).
			With("version", raw).
			With("supported", SupportedVersions).
			Errorf("table version %s is not supported (want %s)", raw, SupportedVersions)
	}
	return nil
}
