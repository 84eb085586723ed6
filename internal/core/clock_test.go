// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package core

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestNewClock_DefaultTicksPerDay(t *testing.T) {
	assert.Equal(t, uint64(DefaultTicksPerDay), NewClock(0).TicksPerDay)
	assert.Equal(t, uint64(6), NewClock(6).TicksPerDay)
}

func TestClock_Advance(t *testing.T) {
	tests := []struct {
		name        string
		ticksPerDay uint64
		advance     uint64
		wantTicks   int
		wantDays    []uint64
	}{
		{name: "less than a day", ticksPerDay: 4, advance: 3, wantTicks: 3},
		{name: "exactly one day", ticksPerDay: 4, advance: 4, wantTicks: 4, wantDays: []uint64{1}},
		{name: "several days", ticksPerDay: 4, advance: 13, wantTicks: 13, wantDays: []uint64{1, 2, 3}},
		{name: "one tick per day", ticksPerDay: 1, advance: 3, wantTicks: 3, wantDays: []uint64{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := NewClock(tt.ticksPerDay)
			var ticks int
			var days []uint64
			clock.OnTick = func(context.Context, uint64) { ticks++ }
			clock.OnDay = func(_ context.Context, day uint64) { days = append(days, day) }

			require.NoError(t, clock.Advance(context.Background(), tt.advance))

			assert.Equal(t, tt.wantTicks, ticks)
			assert.Equal(t, tt.wantDays, days)
			assert.Equal(t, tt.advance, clock.Tick())
			assert.Equal(t, tt.advance/tt.ticksPerDay, clock.Day())
		})
	}
}

func TestClock_ResumeContinuesFromSavedTick(t *testing.T) {
	clock := NewClock(4)
	var days []uint64
	clock.OnDay = func(_ context.Context, day uint64) { days = append(days, day) }

	clock.Resume(7)
	require.NoError(t, clock.Advance(context.Background(), 1))

	assert.Equal(t, uint64(8), clock.Tick())
	assert.Equal(t, []uint64{2}, days)
}

func TestClock_DayRunsAfterTick(t *testing.T) {
	clock := NewClock(2)
	var order []string
	clock.OnTick = func(context.Context, uint64) { order = append(order, "tick") }
	clock.OnDay = func(context.Context, uint64) { order = append(order, "day") }

	require.NoError(t, clock.Advance(context.Background(), 2))

	assert.Equal(t, []string{"tick", "tick", "day"}, order)
}

func TestClock_AdvanceStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	clock := NewClock(10)
	clock.OnTick = func(_ context.Context, tick uint64) {
		if tick == 3 {
			cancel()
		}
	}

	err := clock.Advance(ctx, 10)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(3), clock.Tick())
}

func TestClock_RunStopsWithoutLeaking(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	clock := NewClock(2)
	var ticks atomic.Int64
	clock.OnTick = func(context.Context, uint64) {
		if ticks.Add(1) == 5 {
			cancel()
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- clock.Run(ctx, time.Millisecond)
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("clock did not stop")
	}
	assert.GreaterOrEqual(t, ticks.Load(), int64(5))
}
