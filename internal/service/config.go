// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package service

import (
	"github.com/samber/oops"
)

// maxConfigAmount bounds every configured amount so wage arithmetic cannot overflow.
const maxConfigAmount = 1_000_000

// Config holds the coordinator's economy settings. Validate once at load.
type Config struct {
	// DailyWage is paid every day while enlisted with a valid commander.
	DailyWage int `koanf:"daily_wage" yaml:"daily_wage"`
	// WagePerTier is added to the wage for every tier above the lowest.
	WagePerTier int `koanf:"wage_per_tier" yaml:"wage_per_tier"`
	// DailyXP is drill XP awarded alongside the daily wage.
	DailyXP int `koanf:"daily_xp" yaml:"daily_xp"`
}

// DefaultConfig returns the default economy settings.
func DefaultConfig() Config {
	return Config{
		DailyWage:   10,
		WagePerTier: 0,
		DailyXP:     0,
	}
}

// Validate checks every amount is within [0, 1000000].
func (c Config) Validate() error {
	fields := []struct {
		name  string
		value int
	}{
		{"daily_wage", c.DailyWage},
		{"wage_per_tier", c.WagePerTier},
		{"daily_xp", c.DailyXP},
	}
	for _, f := range fields {
		if f.value < 0 || f.value > maxConfigAmount {
			return oops.Code(CodeConfigInvalid).
				With("field", f.name).
				With("value", f.value).
				Errorf("%s must be between 0 and %d", f.name, maxConfigAmount)
		}
	}
	return nil
}

// WageFor returns the daily wage at tier.
func (c Config) WageFor(tier int) int {
	return c.DailyWage + max(tier, 0)*c.WagePerTier
}
