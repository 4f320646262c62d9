package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/maltedev/spa-slots/internal/api"
	"github.com/maltedev/spa-slots/internal/events"
	"github.com/maltedev/spa-slots/internal/jobs"
	"github.com/maltedev/spa-slots/internal/metrics"
	"github.com/maltedev/spa-slots/internal/settings"
	"github.com/maltedev/spa-slots/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var servePort *int

func init() {
	servePort = serveCmd.Flags().Int("port", 0, "The port to listen on. Defaults to SERVER_PORT.")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [--port <port>]",
	Short: "Runs the refresh scheduler and the HTTP API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if *servePort != 0 {
			cfg.Server.Port = *servePort
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := metrics.New(reg, "spa_slots")

		a, err := newApp(ctx, cfg, log, m)
		if err != nil {
			return err
		}
		defer a.Close()

		store, err := storage.NewSnapshotStore(cfg.Storage.SnapshotPath)
		if err != nil {
			return fmt.Errorf("failed to open snapshot store: %w", err)
		}
		if snap, err := store.Current(); err == nil {
			log.Info("loaded stored snapshot", "appointments", snap.Count, "last_updated", snap.LastUpdated)
		}

		settingsStore := settings.NewStore(cfg.Storage.SettingsPath, log)

		publisher := events.NewDisabledPublisher(log)
		if cfg.Events.Enabled {
			publisher = events.NewPublisher(a.redis, cfg.Events.Stream, log)
		}

		jobManager := jobs.NewManager(a.scraper, store, publisher, log)
		go jobManager.StartScheduler(ctx, cfg.Refresh.Interval)

		handlers := api.NewHandlers(store, a.scraper, jobManager, settingsStore, nil, log)
		server := &http.Server{
			Addr: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: api.NewRouter(handlers, api.RouterOptions{
				AllowedOrigins: cfg.Server.AllowedOrigins,
				RequestTimeout: cfg.Server.WriteTimeout,
				Gatherer:       reg,
			}),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("server starting", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
		case <-ctx.Done():
		}

		log.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		if err := jobManager.Shutdown(shutdownCtx); err != nil {
			log.Error("refresh job did not stop in time", "error", err)
		}

		log.Info("server stopped")
		return nil
	},
}
