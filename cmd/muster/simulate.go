// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/muster/internal/config"
	"github.com/holomush/muster/internal/core"
	"github.com/holomush/muster/internal/scenario"
	"github.com/holomush/muster/internal/service"
	"github.com/holomush/muster/internal/store"
	"github.com/holomush/muster/internal/xdg"
	"github.com/holomush/muster/pkg/errutil"
)

// simulateConfig holds flags for the simulate command.
type simulateConfig struct {
	player      string
	resume      bool
	noSave      bool
	jsonOutput  bool
	writeReport bool
	follow      bool
}

// simulateReport is the JSON document simulate prints and writes.
type simulateReport struct {
	scenario.Report
	Player string        `json:"player"`
	Saved  bool          `json:"saved"`
	Error  string        `json:"error,omitempty"`
	Events []eventRecord `json:"events"`
}

type eventRecord struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func newSimulateCmd(deps *Deps) *cobra.Command {
	cfg := &simulateConfig{}

	cmd := &cobra.Command{
		Use:   "simulate <script.lua>",
		Short: "Run a Lua scenario against a sandbox world",
		Long: `Run a Lua scenario script against an in-memory world. With a database
configured, the journal and the player's save slot are kept in PostgreSQL
and --resume continues from the saved slot.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, cfg, deps, args[0])
		},
	}

	cmd.Flags().StringVar(&cfg.player, "player", "", "player ULID (default: a new player)")
	cmd.Flags().BoolVar(&cfg.resume, "resume", false, "continue from the player's save slot")
	cmd.Flags().BoolVar(&cfg.noSave, "no-save", false, "do not write the save slot afterwards")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&cfg.writeReport, "write-report", false, "also write the JSON report under XDG_STATE_HOME/muster/reports")
	cmd.Flags().BoolVar(&cfg.follow, "follow", false, "keep the clock running in real time after the script until interrupted")

	return cmd
}

func runSimulate(cmd *cobra.Command, flags *simulateConfig, deps *Deps, script string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if flags.resume && cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("--resume needs a database")
	}

	player, err := parsePlayer(flags.player)
	if err != nil {
		return err
	}
	engine, err := cfg.Engine()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ready atomic.Bool
	var obs ObservabilityServer
	if cfg.Metrics.Addr != "" {
		obs = deps.ObservabilityServerFactory(cfg.Metrics.Addr, ready.Load, service.RegisterMetrics)
		obsErrCh, err := obs.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		obs.Metrics().BuildInfo.WithLabelValues(version).Set(1)
		defer stopServer(obs)

		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	sessionCfg := scenario.SessionConfig{
		Player:      player,
		Service:     cfg.Service,
		Engine:      engine,
		TicksPerDay: cfg.Clock.TicksPerDay,
		Logger:      logger,
	}

	var stores *Stores
	if cfg.Database.URL != "" {
		stores, err = deps.OpenStores(ctx, cfg)
		if err != nil {
			return err
		}
		if stores.Close != nil {
			defer stores.Close()
		}
		sessionCfg.Events = stores.Events
		if flags.resume {
			slot, err := resumeSlot(ctx, stores.Records, player)
			if err != nil {
				return err
			}
			sessionCfg.Resume = slot
		}
	}

	session, err := scenario.NewSession(ctx, sessionCfg)
	if err != nil {
		return err
	}
	ready.Store(true)

	report, runErr := scenario.NewRunner(session, logger).RunFile(ctx, script)
	recordRun(obs, runErr)

	if runErr == nil && flags.follow {
		runErr = follow(ctx, session, cfg)
		if runErr == nil {
			report, runErr = refreshReport(ctx, session, report)
		}
	}

	out := simulateReport{Report: report, Player: session.Player.String()}
	if runErr != nil {
		out.Error = runErr.Error()
		errutil.LogError(ctx, logger, "scenario failed", runErr)
	}

	if stores != nil && stores.Records != nil && !flags.noSave {
		// Save on a fresh context so an interrupt still persists the slot.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		err := session.Save(saveCtx, stores.Records)
		cancel()
		if err != nil {
			return errors.Join(runErr, err)
		}
		out.Saved = true
	}
	out.Events = eventRecords(report.Events)

	if err := printReport(cmd.OutOrStdout(), out, flags.jsonOutput); err != nil {
		return err
	}
	if flags.writeReport {
		path, err := writeReportFile(out)
		if err != nil {
			return err
		}
		cmd.PrintErrln("report written to", path)
	}
	return runErr
}

func parsePlayer(raw string) (ulid.ULID, error) {
	if raw == "" {
		return ulid.ULID{}, nil
	}
	id, err := core.ParseULID(raw)
	if err != nil {
		return ulid.ULID{}, oops.Code("INVALID_PLAYER").With("player", raw).Wrap(err)
	}
	return id, nil
}

func resumeSlot(ctx context.Context, records store.RecordStore, player ulid.ULID) (*store.Slot, error) {
	if player.IsZero() {
		return nil, oops.Code("INVALID_PLAYER").Errorf("--resume needs --player")
	}
	slot, found, err := records.Load(ctx, player)
	if err != nil {
		return nil, err
	}
	if !found {
		slog.InfoContext(ctx, "no save slot, starting fresh", "player_id", player.String())
		return nil, nil
	}
	return &slot, nil
}

// follow runs the clock in real time until ctx ends. An interrupt is a
// normal way to stop.
func follow(ctx context.Context, session *scenario.Session, cfg config.Config) error {
	err := session.Clock.Run(ctx, cfg.Clock.Interval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// refreshReport rebuilds the report after the clock ran on past the script.
func refreshReport(ctx context.Context, session *scenario.Session, report scenario.Report) (scenario.Report, error) {
	events, err := session.Events(context.WithoutCancel(ctx))
	if err != nil {
		return report, err
	}
	report.Status = session.Coordinator.Status(ctx)
	report.Wallet = session.World.Wallet()
	report.Tick = session.Clock.Tick()
	report.Day = session.Clock.Day()
	report.Events = events
	return report, nil
}

func recordRun(obs ObservabilityServer, err error) {
	if obs == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	obs.Metrics().ScenarioRuns.WithLabelValues(result).Inc()
}

func eventRecords(events []core.Event) []eventRecord {
	out := make([]eventRecord, 0, len(events))
	for _, e := range events {
		rec := eventRecord{
			ID:        e.ID.String(),
			Type:      string(e.Type),
			Timestamp: e.Timestamp,
			Actor:     e.Actor.Kind.String(),
		}
		if e.Actor.ID != "" {
			rec.Actor += ":" + e.Actor.ID
		}
		if json.Valid(e.Payload) {
			rec.Payload = e.Payload
		}
		out = append(out, rec)
	}
	return out
}

func printReport(w io.Writer, r simulateReport, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return oops.With("operation", "marshal report").Wrap(err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	_, err := io.WriteString(w, formatReport(r))
	return err
}

func formatReport(r simulateReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", r.Script)
	fmt.Fprintf(&b, "player:   %s\n", r.Player)
	fmt.Fprintf(&b, "state:    %s\n", r.Status.State)
	if r.Status.Commander != "" {
		fmt.Fprintf(&b, "commander: %s\n", r.Status.Commander)
	}
	fmt.Fprintf(&b, "rank:     %s (tier %d)\n", r.Status.Rank, r.Status.Tier)
	if r.Status.NextTierXP > 0 {
		fmt.Fprintf(&b, "xp:       %d / %d\n", r.Status.CurrentXP, r.Status.NextTierXP)
	} else {
		fmt.Fprintf(&b, "xp:       %d (max rank)\n", r.Status.CurrentXP)
	}
	fmt.Fprintf(&b, "wallet:   %d\n", r.Wallet)
	fmt.Fprintf(&b, "clock:    day %d, tick %d\n", r.Day, r.Tick)
	if r.Saved {
		b.WriteString("save slot written\n")
	}
	fmt.Fprintf(&b, "events:   %d\n", len(r.Events))
	for _, e := range r.Events {
		fmt.Fprintf(&b, "  %s  %s\n", e.Type, e.Actor)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "error:    %s\n", r.Error)
	}
	return b.String()
}

func writeReportFile(r simulateReport) (string, error) {
	dir := xdg.ReportsDir()
	if err := xdg.EnsureDir(dir); err != nil {
		return "", err
	}
	base := strings.TrimSuffix(filepath.Base(r.Script), filepath.Ext(r.Script))
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.json", base, r.Player))

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", oops.With("operation", "marshal report").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", oops.Code("REPORT_WRITE_FAILED").With("path", path).Wrap(err)
	}
	return path, nil
}

func stopServer(obs ObservabilityServer) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := obs.Stop(ctx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels the simulation when a server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
