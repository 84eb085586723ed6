// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/muster/pkg/errutil"
)

// isolate points XDG lookups and DATABASE_URL away from the developer's
// environment.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv(DatabaseURLEnv, "")
	return dir
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	fs.Bool("verbose", false, "not configuration")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("", nil)

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 10, cfg.Service.DailyWage)
	assert.Equal(t, uint64(24), cfg.Clock.TicksPerDay)
}

func TestLoad_FlagDefaultsMatchDefault(t *testing.T) {
	isolate(t)

	cfg, err := Load("", newFlags(t))

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "muster.yaml", `
service:
  daily_wage: 25
  wage_per_tier: 5
clock:
  ticks_per_day: 4
  interval: 250ms
log:
  format: text
  level: debug
database:
  url: postgres://muster@localhost/muster
  connect_retries: 2
`)

	cfg, err := Load(path, nil)

	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Service.DailyWage)
	assert.Equal(t, 5, cfg.Service.WagePerTier)
	assert.Equal(t, 0, cfg.Service.DailyXP, "unset keys keep their defaults")
	assert.Equal(t, uint64(4), cfg.Clock.TicksPerDay)
	assert.Equal(t, 250*time.Millisecond, cfg.Clock.Interval)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "postgres://muster@localhost/muster", cfg.Database.URL)
	assert.Equal(t, uint64(2), cfg.Database.ConnectRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.Database.ConnectBackoff)
}

func TestLoad_ChangedFlagsOverrideFile(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "muster.yaml", `
service:
  daily_wage: 25
log:
  format: text
`)

	cfg, err := Load(path, newFlags(t, "--daily-wage=40", "--ticks-per-day=12", "--verbose"))

	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Service.DailyWage)
	assert.Equal(t, uint64(12), cfg.Clock.TicksPerDay)
	assert.Equal(t, "text", cfg.Log.Format, "an unchanged flag must not clobber the file")
}

func TestLoad_XDGDefaultFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "muster"), 0o700))
	writeFile(t, filepath.Join(dir, "muster"), "config.yaml", "metrics:\n  addr: 127.0.0.1:9100\n")

	cfg, err := Load("", nil)

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Addr)
}

func TestLoad_DatabaseURLFromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv(DatabaseURLEnv, "postgres://env@localhost/muster")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env@localhost/muster", cfg.Database.URL)

	cfg, err = Load("", newFlags(t, "--database-url=postgres://flag@localhost/muster"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://flag@localhost/muster", cfg.Database.URL)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		args     []string
		wantCode string
	}{
		{name: "negative wage", args: []string{"--daily-wage=-1"}, wantCode: "CONFIG_INVALID"},
		{name: "zero ticks per day", file: "clock:\n  ticks_per_day: 0\n", wantCode: "CONFIG_INVALID"},
		{name: "negative interval", args: []string{"--tick-interval=-1s"}, wantCode: "CONFIG_INVALID"},
		{name: "bad log format", args: []string{"--log-format=xml"}, wantCode: "CONFIG_INVALID"},
		{name: "bad log level", args: []string{"--log-level=loud"}, wantCode: "INVALID_LOG_LEVEL"},
		{name: "too many retries", file: "database:\n  connect_retries: 99\n", wantCode: "CONFIG_INVALID"},
		{name: "malformed yaml", file: "service: [", wantCode: "CONFIG_READ_FAILED"},
		{name: "wrong type", file: "service:\n  daily_wage: lots\n", wantCode: "CONFIG_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			path := ""
			if tt.file != "" {
				path = writeFile(t, dir, "muster.yaml", tt.file)
			}

			_, err := Load(path, newFlags(t, tt.args...))

			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "absent.yaml"), nil)

	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_NOT_FOUND")
}

func TestConfig_LogOptions(t *testing.T) {
	cfg := Default()
	cfg.Log = Log{Format: "text", Level: "warn"}

	opts := cfg.LogOptions("muster", "1.2.3")

	assert.Equal(t, "muster", opts.Service)
	assert.Equal(t, "1.2.3", opts.Version)
	assert.Equal(t, "text", opts.Format)
	assert.Equal(t, slog.LevelWarn, opts.Level)
}

func TestConfig_ConnectOptions(t *testing.T) {
	cfg := Default()
	cfg.Database.ConnectRetries = 3
	cfg.Database.ConnectBackoff = time.Second

	opts := cfg.ConnectOptions()

	assert.Equal(t, uint64(3), opts.Retries)
	assert.Equal(t, time.Second, opts.Backoff)
}

func TestConfig_Engine(t *testing.T) {
	t.Run("built-in table", func(t *testing.T) {
		engine, err := Default().Engine()
		require.NoError(t, err)
		assert.Equal(t, "Captain", engine.TierName(engine.MaxTier()))
	})

	t.Run("custom table", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "tiers.yaml", `
version: 1.0.0
tiers:
  - name: Levy
    xp_to_next: 100
  - name: Guard
    xp_to_next: 0
battle:
  victory_xp: 10
  defeat_xp: 5
  kill_xp: 1
  assist_xp: 1
  knocked_out_percent: 50
  max_counted_actions: 10
`)
		cfg := Default()
		cfg.Progression.Table = path

		engine, err := cfg.Engine()

		require.NoError(t, err)
		assert.Equal(t, 1, engine.MaxTier())
		assert.Equal(t, "Levy", engine.TierName(0))
	})

	t.Run("missing table", func(t *testing.T) {
		cfg := Default()
		cfg.Progression.Table = filepath.Join(t.TempDir(), "absent.yaml")

		_, err := cfg.Engine()

		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "TABLE_INVALID")
	})
}
