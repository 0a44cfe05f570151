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
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/typegraph/services/typegraph/graph"
	"github.com/AleutianAI/typegraph/services/typegraph/server"
	"github.com/AleutianAI/typegraph/services/typegraph/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr       string
		snapshotDB string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis API over HTTP",
		Long: `Serve exposes analysis and snapshot endpoints under /v1/typegraph and
Prometheus metrics at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd, "")
			if err != nil {
				return err
			}
			logger := a.logger.Slog()
			if !debug {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			telCfg := telemetry.DefaultConfig()
			telCfg.ServiceVersion = version
			telCfg.MetricExporter = telemetry.ExporterPrometheus
			tel, err := telemetry.Init(ctx, telCfg)
			if err != nil {
				return err
			}
			defer tel.Shutdown(context.Background())

			if snapshotDB == "" {
				snapshotDB = cfg.SnapshotDB
			}
			var snapshots *graph.SnapshotManager
			if snapshotDB != "" {
				db, mgr, err := openSnapshots(snapshotDB, logger)
				if err != nil {
					logger.Warn("snapshot store unavailable, snapshot endpoints disabled",
						slog.String("path", snapshotDB),
						slog.String("error", err.Error()),
					)
				} else {
					defer db.Close()
					snapshots = mgr
				}
			}

			handlers, err := server.NewHandlers(cfg, snapshots, version)
			if err != nil {
				return err
			}
			router := server.NewRouter(handlers, tel.MetricsHandler())
			if debug {
				router.Use(gin.Logger())
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting typegraph server", slog.String("address", addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("Shutting down typegraph server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&snapshotDB, "snapshot-db", "", "BadgerDB directory for snapshots (default from config)")
	cmd.Flags().BoolVar(&debug, "debug", false, "gin debug mode and request logging")
	return cmd
}
