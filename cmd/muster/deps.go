// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"

	"github.com/samber/oops"

	"github.com/holomush/muster/internal/config"
	"github.com/holomush/muster/internal/core"
	"github.com/holomush/muster/internal/observability"
	"github.com/holomush/muster/internal/store"
)

// Stores are the persistence backends a command runs against.
type Stores struct {
	Events  core.EventStore
	Records store.RecordStore
	Close   func()
}

// Migrator is the subset of store.Migrator the migrate command drives.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.MigrationStatus, error)
	Close() error
}

// ObservabilityServer is the metrics/health server a simulation exposes.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// Deps contains injectable dependencies for the CLI commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// OpenStores connects the configured database.
	// Default: openPostgres
	OpenStores func(ctx context.Context, cfg config.Config) (*Stores, error)

	// MigratorFactory opens a migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, registrars ...observability.Registrar) ObservabilityServer
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.OpenStores == nil {
		out.OpenStores = openPostgres
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, registrars ...observability.Registrar) ObservabilityServer {
			return observability.NewServer(addr, ready, registrars...)
		}
	}
	return &out
}

// openPostgres connects the pool and builds both repositories on it.
func openPostgres(ctx context.Context, cfg config.Config) (*Stores, error) {
	pool, err := store.Connect(ctx, cfg.Database.URL, cfg.ConnectOptions())
	if err != nil {
		return nil, err
	}
	return &Stores{
		Events:  store.NewPostgresEventStore(pool),
		Records: store.NewPostgresRecordStore(pool),
		Close:   pool.Close,
	}, nil
}

// requireDatabaseURL fails unless a database is configured.
func requireDatabaseURL(cfg config.Config) error {
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			Hint("pass --database-url or set " + config.DatabaseURLEnv).
			Errorf("a database URL is required")
	}
	return nil
}
