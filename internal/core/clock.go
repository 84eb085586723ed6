// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package core

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultTicksPerDay is the number of ticks in a simulated day.
const DefaultTicksPerDay = 24

// Clock drives the simulation forward in fixed steps. OnTick runs every
// tick; OnDay runs when a tick crosses a day boundary, after OnTick.
type Clock struct {
	TicksPerDay uint64
	OnTick      func(ctx context.Context, tick uint64)
	OnDay       func(ctx context.Context, day uint64)

	mu   sync.Mutex
	tick uint64
}

// NewClock creates a clock at tick 0. ticksPerDay of 0 uses DefaultTicksPerDay.
func NewClock(ticksPerDay uint64) *Clock {
	if ticksPerDay == 0 {
		ticksPerDay = DefaultTicksPerDay
	}
	return &Clock{TicksPerDay: ticksPerDay}
}

// Tick returns the number of ticks elapsed.
func (c *Clock) Tick() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

// Day returns the current day number, starting at 0.
func (c *Clock) Day() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick / c.TicksPerDay
}

// Resume moves the clock to tick without firing callbacks, for sessions
// loaded from a save.
func (c *Clock) Resume(tick uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick = tick
}

// Advance steps the clock n ticks synchronously. It stops early if ctx is done.
func (c *Clock) Advance(ctx context.Context, n uint64) error {
	for range n {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.step(ctx)
	}
	return nil
}

// Run steps the clock every interval until ctx is cancelled.
func (c *Clock) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "simulation clock started", "tick", c.Tick(), "interval", interval)
	defer func() {
		slog.Info("simulation clock stopped", "tick", c.Tick())
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.step(ctx)
		}
	}
}

func (c *Clock) step(ctx context.Context) {
	c.mu.Lock()
	c.tick++
	tick := c.tick
	perDay := c.TicksPerDay
	c.mu.Unlock()

	if c.OnTick != nil {
		c.OnTick(ctx, tick)
	}
	if tick%perDay == 0 && c.OnDay != nil {
		c.OnDay(ctx, tick/perDay)
	}
}
