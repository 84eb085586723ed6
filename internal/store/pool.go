// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store persists enlistment save slots and the event journal in
// PostgreSQL.
package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// CodeSchemaNotMigrated marks queries against tables that do not exist yet.
const CodeSchemaNotMigrated = "SCHEMA_NOT_MIGRATED"

// poolIface is the subset of pgxpool.Pool the repositories use. pgxmock
// implements it for unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ConnectOptions controls how Connect retries an unreachable database.
type ConnectOptions struct {
	// Retries is the number of retries after the first attempt.
	Retries uint64
	// Backoff is the base delay, doubled after every attempt.
	Backoff time.Duration
}

// DefaultConnectOptions returns five retries starting at 200ms.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{Retries: 5, Backoff: 200 * time.Millisecond}
}

// Connect opens a pool and pings it, retrying with exponential backoff while
// the server is unreachable.
func Connect(ctx context.Context, databaseURL string, opts ConnectOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DATABASE_URL_INVALID").Wrap(err)
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultConnectOptions().Backoff
	}

	var pool *pgxpool.Pool
	attempt := 0
	backoff := retry.WithMaxRetries(opts.Retries, retry.NewExponential(opts.Backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return retry.RetryableError(err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			slog.WarnContext(ctx, "database not reachable", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, oops.Code("DATABASE_CONNECT_FAILED").With("attempts", attempt).Wrap(err)
	}
	return pool, nil
}

// isUndefinedTable reports whether err is PostgreSQL's undefined_table error.
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable
}

// classify wraps a query error, flagging a missing schema so callers can
// suggest running migrations.
func classify(err error, code, operation string) error {
	if isUndefinedTable(err) {
		return oops.Code(CodeSchemaNotMigrated).
			With("operation", operation).
			Hint("run `muster migrate up`").
			Wrap(err)
	}
	return oops.Code(code).With("operation", operation).Wrap(err)
}
