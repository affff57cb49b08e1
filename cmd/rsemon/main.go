/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// rsemon runs a headless inspection session: connect to the hub, start the
// system check, aggregate snapshots until interrupted, then stop and write
// per-device CSV reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/carverauto/rsemon/pkg/clock"
	"github.com/carverauto/rsemon/pkg/config"
	"github.com/carverauto/rsemon/pkg/health"
	"github.com/carverauto/rsemon/pkg/inspection"
	"github.com/carverauto/rsemon/pkg/logger"
	"github.com/carverauto/rsemon/pkg/recorder"
	"github.com/carverauto/rsemon/pkg/registry"
	"github.com/carverauto/rsemon/pkg/state"
	"github.com/carverauto/rsemon/pkg/transport"
)

func main() {
	configPath := flag.String("config", "/etc/rsemon/rsemon.json", "Path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "rsemon: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	var cfg Config
	if err := config.LoadFile(configPath, &cfg); err != nil {
		return err
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	clk := clock.New()

	hub := transport.NewHubSession(cfg.MQTT, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := hub.Connect(ctx); err != nil {
		return err
	}
	defer hub.Disconnect()

	gate := registry.NewGate(newStaticStore(cfg.Devices), cfg.Registry, clk, log)
	store := state.NewLiveStore(cfg.State, clk, log)
	rec := recorder.New(cfg.Recorder, clk, log)
	builder := recorder.NewReportBuilder(cfg.Recorder)

	controller := inspection.NewController(cfg.Inspection, health.DefaultThresholds(), inspection.Deps{
		Session:  hub,
		Gate:     gate,
		Store:    store,
		Recorder: rec,
		Builder:  builder,
		Clock:    clk,
		Logger:   log,
	})

	if err := controller.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	log.Info().Msg("Shutting down, stopping inspection")

	stopCtx := context.Background()
	if err := controller.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Inspection stop failed")
	}

	stats := store.Statistics()
	log.Info().
		Int("devices", stats.Total).
		Int("unregistered", stats.Unregistered).
		Int("packets", rec.Len()).
		Msg("Session finished")

	return writeReports(controller, cfg.ReportDir, log)
}

func writeReports(controller *inspection.Controller, dir string, log logger.Logger) error {
	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	for serial, report := range controller.ReportsBySerial() {
		path := filepath.Join(dir, fmt.Sprintf("inspection_%s.csv", serial))

		if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
			return fmt.Errorf("failed to write report for %s: %w", serial, err)
		}

		log.Info().Str("path", path).Msg("Report written")
	}

	return nil
}
