package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/reactor-sim/internal/config"
	"github.com/MRamiBalles/reactor-sim/internal/infra/storage"
	"github.com/MRamiBalles/reactor-sim/internal/network"
	"github.com/MRamiBalles/reactor-sim/internal/platform/logger"
	"github.com/MRamiBalles/reactor-sim/internal/platform/metrics"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation with the HTTP and WebSocket API",
		Long: `Run the reactor in real time and serve the control panel API:

  GET  /api/state           current state frame
  POST /api/action          operator command {"type": "...", "value": N}
  GET  /api/history         telemetry samples for the live graph
  GET  /api/journal         journaled commands and alerts (?since=, ?type=, ?view=recap)
  GET  /metrics             JSON metrics
  GET  /metrics/prometheus  Prometheus metrics
  GET  /ws                  live frames and operator actions`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}
			log := logger.New(cfg.Logging.Level, os.Stdout)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	return cmd
}

// serve runs the server until ctx is cancelled, then shuts down
// gracefully and stores a final snapshot.
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	rt, err := newRuntime(cfg, log, metrics.Get())
	if err != nil {
		return err
	}
	defer rt.close()
	rt.resume(ctx)

	rt.recorder.Start(ctx)
	rt.driver.Start(ctx)
	go rt.maintain(ctx, maintainInterval)

	hub := network.NewHub(rt.driver, cfg.Buffers, log)
	go hub.Run(ctx)
	api := network.NewServer(hub, storage.NewRecap(rt.eventRepo), log)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP API and WebSocket server listening", "addr", cfg.Server.Addr, "reactor_id", cfg.Server.ReactorID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	rt.driver.Stop()
	if err := rt.saveSnapshot(shutdownCtx); err != nil {
		log.Warn("failed to save final snapshot", "error", err)
	}
	for _, note := range rt.recommendations().Notes {
		log.Info("tuning recommendation", "note", note)
	}
	return nil
}
