// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads muster's settings from defaults, an optional YAML
// file and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/muster/internal/core"
	"github.com/holomush/muster/internal/logging"
	"github.com/holomush/muster/internal/progression"
	"github.com/holomush/muster/internal/service"
	"github.com/holomush/muster/internal/store"
	"github.com/holomush/muster/internal/xdg"
)

// Error codes returned by Load.
const (
	CodeConfigInvalid  = "CONFIG_INVALID"
	CodeConfigNotFound = "CONFIG_NOT_FOUND"
	CodeConfigRead     = "CONFIG_READ_FAILED"
)

// DatabaseURLEnv is consulted when no database URL is configured.
const DatabaseURLEnv = "DATABASE_URL"

const maxConnectRetries = 20

// Config is the complete muster configuration.
type Config struct {
	Service     service.Config `koanf:"service"`
	Progression Progression    `koanf:"progression"`
	Clock       Clock          `koanf:"clock"`
	Log         Log            `koanf:"log"`
	Metrics     Metrics        `koanf:"metrics"`
	Database    Database       `koanf:"database"`
}

// Progression selects the tier table. An empty Table uses the built-in one.
type Progression struct {
	Table string `koanf:"table"`
}

// Clock sets the simulation cadence.
type Clock struct {
	TicksPerDay uint64 `koanf:"ticks_per_day"`
	// Interval is the real-time tick length for long-running simulations.
	Interval time.Duration `koanf:"interval"`
}

// Log configures the slog handler.
type Log struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Metrics configures the observability server. An empty Addr disables it.
type Metrics struct {
	Addr string `koanf:"addr"`
}

// Database configures PostgreSQL persistence. An empty URL keeps
// everything in memory.
type Database struct {
	URL            string        `koanf:"url"`
	ConnectRetries uint64        `koanf:"connect_retries"`
	ConnectBackoff time.Duration `koanf:"connect_backoff"`
}

// Default returns the built-in configuration.
func Default() Config {
	connect := store.DefaultConnectOptions()
	return Config{
		Service: service.DefaultConfig(),
		Clock: Clock{
			TicksPerDay: core.DefaultTicksPerDay,
			Interval:    time.Second,
		},
		Log: Log{Format: "json", Level: "info"},
		Database: Database{
			ConnectRetries: connect.Retries,
			ConnectBackoff: connect.Backoff,
		},
	}
}

// flagKeys maps command-line flag names onto config keys. Flags missing
// from the map are not configuration.
var flagKeys = map[string]string{
	"daily-wage":    "service.daily_wage",
	"wage-per-tier": "service.wage_per_tier",
	"daily-xp":      "service.daily_xp",
	"tiers":         "progression.table",
	"ticks-per-day": "clock.ticks_per_day",
	"tick-interval": "clock.interval",
	"log-format":    "log.format",
	"log-level":     "log.level",
	"metrics-addr":  "metrics.addr",
	"database-url":  "database.url",
}

// RegisterFlags adds the configuration flags to fs with defaults from Default.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.Int("daily-wage", d.Service.DailyWage, "wage paid each day while enlisted")
	fs.Int("wage-per-tier", d.Service.WagePerTier, "extra daily wage per tier")
	fs.Int("daily-xp", d.Service.DailyXP, "drill XP awarded each day while enlisted")
	fs.String("tiers", d.Progression.Table, "tier table YAML file (default: built-in table)")
	fs.Uint64("ticks-per-day", d.Clock.TicksPerDay, "simulation ticks per day")
	fs.Duration("tick-interval", d.Clock.Interval, "real-time length of one tick")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String("database-url", d.Database.URL, "PostgreSQL URL (default: $"+DatabaseURLEnv+")")
}

// Load builds the configuration. path names a YAML file; an empty path
// tries the XDG default and skips it when absent. flags may be nil. The
// result is validated before it is returned.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if err := loadFile(k, path); err != nil {
		return Config{}, err
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code(CodeConfigRead).With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code(CodeConfigInvalid).With("operation", "decode config").Wrap(err)
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv(DatabaseURLEnv)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	explicit := path != ""
	if !explicit {
		path = xdg.ConfigFile()
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return oops.Code(CodeConfigNotFound).With("path", path).Wrap(err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code(CodeConfigRead).With("path", path).Wrap(err)
	}
	return nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Service.Validate(); err != nil {
		return oops.With("section", "service").Wrap(err)
	}

	switch {
	case c.Clock.TicksPerDay == 0:
		return invalid("clock.ticks_per_day", c.Clock.TicksPerDay, "ticks_per_day must be at least 1")
	case c.Clock.Interval < 0:
		return invalid("clock.interval", c.Clock.Interval, "interval must not be negative")
	case c.Log.Format != "json" && c.Log.Format != "text":
		return invalid("log.format", c.Log.Format, "log format must be 'json' or 'text'")
	case c.Database.ConnectRetries > maxConnectRetries:
		return invalid("database.connect_retries", c.Database.ConnectRetries, "connect_retries must be at most 20")
	case c.Database.ConnectBackoff < 0:
		return invalid("database.connect_backoff", c.Database.ConnectBackoff, "connect_backoff must not be negative")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code(CodeConfigInvalid).With("field", "log.level").Wrap(err)
	}
	return nil
}

func invalid(field string, value any, msg string) error {
	return oops.Code(CodeConfigInvalid).With("field", field).With("value", value).Errorf("%s", msg)
}

// LogOptions returns the logging setup for service and version.
func (c Config) LogOptions(serviceName, version string) logging.Options {
	level, _ := logging.ParseLevel(c.Log.Level) // validated in Load
	return logging.Options{
		Service: serviceName,
		Version: version,
		Format:  c.Log.Format,
		Level:   level,
	}
}

// ConnectOptions returns the store retry policy.
func (c Config) ConnectOptions() store.ConnectOptions {
	return store.ConnectOptions{
		Retries: c.Database.ConnectRetries,
		Backoff: c.Database.ConnectBackoff,
	}
}

// Engine loads the configured tier table, or the built-in one.
func (c Config) Engine() (*progression.Engine, error) {
	table, err := progression.LoadTable(c.Progression.Table)
	if err != nil {
		return nil, err
	}
	return progression.NewEngine(table)
}
