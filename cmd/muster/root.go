// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/holomush/muster/internal/config"
	"github.com/holomush/muster/internal/logging"
)

// serviceName is stamped on every log record.
const serviceName = "muster"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the muster CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmdWithDeps(nil)
}

func newRootCmdWithDeps(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "muster",
		Short: "muster - enlistment and promotion simulator",
		Long: `muster simulates a player serving under an AI commander: enlisting,
earning battle XP and wages, climbing the rank table, and being discharged
when the commander falls.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/muster/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newSimulateCmd(deps))
	cmd.AddCommand(newMigrateCmd(deps))
	cmd.AddCommand(newTiersCmd())
	cmd.AddCommand(newStatusCmd(deps))

	return cmd
}

// loadConfig resolves the configuration for cmd and installs the default
// logger it describes.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := logging.SetDefault(cfg.LogOptions(serviceName, version), cmd.ErrOrStderr())
	return cfg, logger, nil
}
