// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/muster/internal/progression"
)

func newTiersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tiers",
		Short: "Inspect and validate progression tables",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a tier table (default: the configured table)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := tablePath(cmd, args)
			if err != nil {
				return err
			}
			table, err := progression.LoadTable(path)
			if err != nil {
				return err
			}
			if path == "" {
				path = "built-in table"
			}
			cmd.Printf("%s: ok (version %s, %d tiers, ceiling %s)\n",
				path, table.Version, len(table.Tiers), table.Tiers[len(table.Tiers)-1].Name)
			return nil
		},
	})

	var jsonOutput bool
	show := &cobra.Command{
		Use:   "show [file]",
		Short: "Print the tier ladder and battle rules",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := tablePath(cmd, args)
			if err != nil {
				return err
			}
			table, err := progression.LoadTable(path)
			if err != nil {
				return err
			}
			if jsonOutput {
				data, err := json.MarshalIndent(table, "", "  ")
				if err != nil {
					return oops.With("operation", "marshal table").Wrap(err)
				}
				cmd.Println(string(data))
				return nil
			}
			cmd.Print(formatTable(table))
			return nil
		},
	}
	show.Flags().BoolVar(&jsonOutput, "json", false, "output the table as JSON")
	cmd.AddCommand(show)

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for tier tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := progression.GenerateSchema()
			if err != nil {
				return err
			}
			cmd.Println(string(schema))
			return nil
		},
	})

	return cmd
}

// tablePath prefers an explicit argument over the configured table.
func tablePath(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	return cfg.Progression.Table, nil
}

func formatTable(t *progression.Table) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "TIER\tRANK\tXP TO NEXT\tTOTAL XP")
	_, _ = fmt.Fprintln(w, "----\t----\t----------\t--------")

	total := 0
	for i, tier := range t.Tiers {
		next := fmt.Sprint(tier.XPToNext)
		if i == len(t.Tiers)-1 {
			next = "-"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", i, tier.Name, next, total)
		total += tier.XPToNext
	}
	_ = w.Flush()

	b := t.Battle
	fmt.Fprintf(&buf, "\nbattle: victory %d, defeat %d, kill %d, assist %d, knocked out %d%%, counted actions %d\n",
		b.VictoryXP, b.DefeatXP, b.KillXP, b.AssistXP, b.KnockedOutPercent, b.MaxCountedActions)
	return buf.String()
}
