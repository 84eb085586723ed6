// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/muster/internal/progression"
	"github.com/holomush/muster/internal/store"
)

// SlotStatus is the printable view of a save slot.
type SlotStatus struct {
	Player      string    `json:"player"`
	State       string    `json:"state"`
	Commander   string    `json:"commander,omitempty"`
	Tier        int       `json:"tier"`
	Rank        string    `json:"rank"`
	CurrentXP   int       `json:"current_xp"`
	NextTierXP  int       `json:"next_tier_xp"`
	ClockTick   uint64    `json:"clock_tick"`
	LastWageDay *uint64   `json:"last_wage_day,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	player     string
	jsonOutput bool
}

// newStatusCmd creates the status subcommand with all flags configured.
func newStatusCmd(deps *Deps) *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a player's saved enlistment",
		Long:  `Show the save slot a simulation wrote for a player.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg, deps)
		},
	}

	cmd.Flags().StringVar(&cfg.player, "player", "", "player ULID")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	_ = cmd.MarkFlagRequired("player")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, flags *statusConfig, deps *Deps) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireDatabaseURL(cfg); err != nil {
		return err
	}
	player, err := parsePlayer(flags.player)
	if err != nil {
		return err
	}
	engine, err := cfg.Engine()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	stores, err := deps.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	if stores.Close != nil {
		defer stores.Close()
	}

	slot, found, err := stores.Records.Load(ctx, player)
	if err != nil {
		return err
	}
	if !found {
		return oops.Code("SLOT_NOT_FOUND").
			With("player_id", player.String()).
			Errorf("no save slot for player %s", player)
	}

	status := slotStatus(slot, engine)
	if flags.jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return oops.With("operation", "marshal status").Wrap(err)
		}
		cmd.Println(string(data))
		return nil
	}
	cmd.Print(formatSlotStatus(status))
	return nil
}

func slotStatus(slot store.Slot, engine *progression.Engine) SlotStatus {
	s := slot.Snapshot
	status := SlotStatus{
		Player:      slot.Player.String(),
		State:       s.State().String(),
		Tier:        s.Tier,
		Rank:        engine.TierName(s.Tier),
		CurrentXP:   s.CurrentXP,
		NextTierXP:  s.NextTierXP,
		ClockTick:   slot.ClockTick,
		LastWageDay: slot.LastWageDay,
		UpdatedAt:   slot.UpdatedAt,
	}
	if s.Commander != nil {
		status.Commander = s.Commander.String()
	}
	return status
}

// formatSlotStatus formats the status as a two-column table.
func formatSlotStatus(s SlotStatus) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	row := func(k, v string) { _, _ = fmt.Fprintf(w, "%s\t%s\n", k, v) }
	row("PLAYER", s.Player)
	row("STATE", s.State)
	if s.Commander != "" {
		row("COMMANDER", s.Commander)
	}
	row("RANK", fmt.Sprintf("%s (tier %d)", s.Rank, s.Tier))
	if s.NextTierXP > 0 {
		row("XP", fmt.Sprintf("%d / %d", s.CurrentXP, s.NextTierXP))
	} else {
		row("XP", fmt.Sprintf("%d (max rank)", s.CurrentXP))
	}
	row("CLOCK TICK", fmt.Sprint(s.ClockTick))
	if s.LastWageDay != nil {
		row("LAST WAGE DAY", fmt.Sprint(*s.LastWageDay))
	} else {
		row("LAST WAGE DAY", "-")
	}
	if !s.UpdatedAt.IsZero() {
		row("UPDATED", s.UpdatedAt.UTC().Format(time.RFC3339))
	}

	_ = w.Flush()
	return buf.String()
}
