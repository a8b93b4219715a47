// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/gatecheck/pkg/logging"
	"github.com/AleutianAI/gatecheck/services/gate"
	"github.com/AleutianAI/gatecheck/services/gate/cache"
	"github.com/AleutianAI/gatecheck/services/gate/inventory"
	"github.com/AleutianAI/gatecheck/services/gate/orchestrator"
	"github.com/AleutianAI/gatecheck/services/gate/telemetry"
)

// version is stamped at build time with -ldflags.
var version = "dev"

var (
	gatesPath     string
	jsonOutput    bool
	verbose       bool
	quiet         bool
	logDir        string
	metricsListen string
	failOnWarn    bool
	watchDebounce time.Duration

	rootCmd = &cobra.Command{
		Use:   "gatecheck",
		Short: "Score source trees against compliance gates",
		Long: `Gatecheck walks a source tree, scans it for regex evidence, and scores
each configured compliance gate from 0 to 100.`,
	}

	evaluateCmd = &cobra.Command{
		Use:   "evaluate [path]",
		Short: "Run all gates against a source tree once",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEvaluate,
	}

	watchCmd = &cobra.Command{
		Use:   "watch [path]",
		Short: "Re-run the gates whenever the tree changes",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWatch,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the gatecheck version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("gatecheck", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&gatesPath, "gates", "g", "gates.yaml", "Path to the gate definitions file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Force JSON output even on a terminal")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Disable stderr logging")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Write JSON logs to this directory")
	rootCmd.PersistentFlags().StringVar(&metricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address (e.g. :9464)")

	evaluateCmd.Flags().BoolVar(&failOnWarn, "fail-on-warn", false, "Exit nonzero when any gate is WARNING")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", inventory.DefaultDebounce, "Settle time before re-running after a change")

	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := setupMetrics()
	if err != nil {
		return err
	}
	defer shutdown()

	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	defs, err := gate.LoadDefinitions(gatesPath)
	if err != nil {
		return err
	}

	report, err := runOnce(ctx, root, defs)
	if err != nil {
		return err
	}

	if err := render(os.Stdout, report, jsonOutput); err != nil {
		return err
	}
	return exitStatus(report)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := setupMetrics()
	if err != nil {
		return err
	}
	defer shutdown()

	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	defs, err := gate.LoadDefinitions(gatesPath)
	if err != nil {
		return err
	}

	watcher, err := inventory.Watch(root, watchDebounce)
	if err != nil {
		return err
	}
	defer watcher.Close()

	// First run happens immediately; later runs wait for changes.
	if report, err := runOnce(ctx, root, defs); err != nil {
		logging.Error("evaluation failed", "error", err)
	} else if err := render(os.Stdout, report, jsonOutput); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-watcher.Stale():
			report, err := runOnce(ctx, root, defs)
			if err != nil {
				logging.Error("evaluation failed", "error", err)
				continue
			}
			if err := render(os.Stdout, report, jsonOutput); err != nil {
				return err
			}
		}
	}
}

// runOnce collects the inventory and evaluates every gate against it.
// A fresh pattern cache per run keeps watch-mode memory bounded by the
// current gate set rather than its history.
func runOnce(ctx context.Context, root string, defs []gate.Definition) (*orchestrator.Report, error) {
	inv, err := inventory.Collect(ctx, root)
	if err != nil {
		return nil, err
	}

	orch := orchestrator.New(cache.New())
	return orch.EvaluateAll(ctx, inv, cloneDefs(defs), nil)
}

// cloneDefs copies the definitions so Normalize in one run never mutates
// the loaded set a later watch-mode run starts from.
func cloneDefs(defs []gate.Definition) []gate.Definition {
	out := make([]gate.Definition, len(defs))
	copy(out, defs)
	return out
}

// setupMetrics starts the optional Prometheus endpoint. The returned
// function shuts the pipeline down.
func setupMetrics() (func(), error) {
	if metricsListen == "" {
		return func() {}, nil
	}

	reg := prometheus.NewRegistry()
	provider, err := telemetry.Setup(reg)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: metricsListen, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("metrics server failed", "error", err)
		}
	}()
	logging.Info("serving metrics", "addr", metricsListen)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = provider.Shutdown(ctx)
	}, nil
}

// exitStatus maps a report to the process exit code: failed gates (or
// warnings with --fail-on-warn) are a nonzero exit.
func exitStatus(report *orchestrator.Report) error {
	if report.GatesFailed > 0 {
		return fmt.Errorf("%d gate(s) failed", report.GatesFailed)
	}
	if failOnWarn && report.GatesWarning > 0 {
		return fmt.Errorf("%d gate(s) warned", report.GatesWarning)
	}
	return nil
}
