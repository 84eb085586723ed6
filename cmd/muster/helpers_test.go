// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/holomush/muster/internal/config"
	"github.com/holomush/muster/internal/core"
	"github.com/holomush/muster/internal/store"
)

// result captures one CLI invocation.
type result struct {
	stdout string
	stderr string
	err    error
}

// isolateEnv keeps config, state and DATABASE_URL lookups inside the test.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv(config.DatabaseURLEnv, "")

	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })
	return dir
}

func execute(t *testing.T, deps *Deps, args ...string) result {
	t.Helper()
	return executeContext(context.Background(), t, deps, args...)
}

func executeContext(ctx context.Context, t *testing.T, deps *Deps, args ...string) result {
	t.Helper()
	configFile = ""

	cmd := newRootCmdWithDeps(deps)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// fakeRecords is an in-memory store.RecordStore.
type fakeRecords struct {
	mu      sync.Mutex
	slots   map[ulid.ULID]store.Slot
	saveErr error
	loadErr error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{slots: make(map[ulid.ULID]store.Slot)}
}

func (f *fakeRecords) Save(_ context.Context, slot store.Slot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.slots[slot.Player] = slot
	return nil
}

func (f *fakeRecords) Load(_ context.Context, player ulid.ULID) (store.Slot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return store.Slot{}, false, f.loadErr
	}
	slot, ok := f.slots[player]
	return slot, ok, nil
}

// memoryDeps backs every database-needing command with in-memory stores.
// The events store is shared so journal positions survive between runs.
func memoryDeps(records *fakeRecords) (*Deps, *int) {
	events := core.NewMemoryEventStore()
	opened := 0
	return &Deps{
		OpenStores: func(_ context.Context, _ config.Config) (*Stores, error) {
			opened++
			return &Stores{Events: events, Records: records, Close: func() {}}, nil
		},
	}, &opened
}

func failingStores(err error) *Deps {
	return &Deps{
		OpenStores: func(context.Context, config.Config) (*Stores, error) {
			return nil, err
		},
	}
}

var errDatabaseDown = errors.New("database down")
