// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/muster/internal/store"
)

// newMigrateCmd creates the migrate command. Without a subcommand it applies
// every pending migration.
func newMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
		Long:  `Apply, inspect and repair the journal and save-slot schema.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, migrateUp)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, migrateUp)
		},
	})

	var confirm bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration, dropping all saved data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return oops.Code("CONFIRMATION_REQUIRED").
					Hint("rerun with --yes").
					Errorf("migrate down drops the journal and every save slot")
			}
			return withMigrator(cmd, deps, func(cmd *cobra.Command, m Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("All migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&confirm, "yes", false, "confirm dropping all data")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(cmd *cobra.Command, m Migrator) error {
				status, err := m.Status()
				if err != nil {
					return err
				}
				cmd.Print(formatMigrationStatus(status))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "steps <n>",
		Short: "Migrate n versions up, or down when n is negative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseSteps(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(cmd *cobra.Command, m Migrator) error {
				if err := m.Steps(n); err != nil {
					return err
				}
				cmd.Printf("Migrated %d step(s)\n", n)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Mark a version as applied without running it",
		Long: `Mark a version as applied without running it. Use this to clear the
dirty flag after fixing a migration that failed halfway.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(cmd *cobra.Command, m Migrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				cmd.Printf("Forced version %d\n", v)
				return nil
			})
		},
	})

	return cmd
}

func migrateUp(cmd *cobra.Command, m Migrator) error {
	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return err
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

// withMigrator loads the config, opens a migrator and always closes it.
func withMigrator(cmd *cobra.Command, deps *Deps, run func(*cobra.Command, Migrator) error) (err error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requireDatabaseURL(cfg); err != nil {
		return err
	}

	m, err := deps.MigratorFactory(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return run(cmd, m)
}

// parseForceVersion reads a leading integer, stopping at the first
// non-digit.
func parseForceVersion(s string) (int, error) {
	var v int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &v); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return v, nil
}

func parseSteps(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n); err != nil || n == 0 {
		return 0, oops.Code("INVALID_STEPS").With("input", s).Errorf("steps must be a non-zero integer")
	}
	return n, nil
}

func formatMigrationStatus(s store.MigrationStatus) string {
	var b strings.Builder
	switch {
	case s.Version == 0:
		b.WriteString("Current version: none\n")
	case s.Name == "":
		fmt.Fprintf(&b, "Current version: %06d (not embedded in this build)\n", s.Version)
	default:
		fmt.Fprintf(&b, "Current version: %s\n", s.Name)
	}
	if s.Dirty {
		b.WriteString("State: DIRTY (fix the failed migration, then run `muster migrate force <version>`)\n")
	}
	fmt.Fprintf(&b, "Applied: %d\n", len(s.Applied))
	if len(s.Pending) == 0 {
		b.WriteString("Pending: none\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Pending: %d\n", len(s.Pending))
	for _, v := range s.Pending {
		name, err := store.MigrationName(v)
		if err != nil || name == "" {
			name = fmt.Sprintf("%06d", v)
		}
		fmt.Fprintf(&b, "  %s\n", name)
	}
	return b.String()
}
