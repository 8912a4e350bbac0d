package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/albapepper/scoracle-alerts/internal/api"
	"github.com/albapepper/scoracle-alerts/internal/listener"
	"github.com/albapepper/scoracle-alerts/internal/maintenance"
	"github.com/albapepper/scoracle-alerts/internal/scheduler"

	_ "github.com/albapepper/scoracle-alerts/docs" // swagger docs
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the alert scheduler, listener and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(serve)
		},
	}
}

func serve(ctx context.Context, svc *services) error {
	cfg := svc.cfg
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Alarm runner: claims due game days and runs their cycles
	runner := scheduler.NewRunner(svc.host, svc.scheduler, cfg.SchedulerTick, cfg.SchedulerLease, logger)
	go runner.Start(ctx)

	// LISTEN/NOTIFY consumer for refresh requests
	go listener.Start(ctx, cfg.DatabaseURL, svc.scheduler, logger)

	// Arm today and tomorrow now, then keep them armed on a ticker
	go maintenance.RefreshUpcoming(ctx, svc.scheduler, cfg.Leagues, time.Now(), logger)
	mcfg := maintenance.DefaultConfig(cfg.Leagues)
	mcfg.RefreshInterval = cfg.DailyRefreshInterval
	go maintenance.Start(ctx, svc.scheduler, svc.host, mcfg, logger)

	router := api.NewRouter(api.Deps{
		Refresher: svc.scheduler,
		DB:        svc.pool,
		Store:     svc.store,
		Metrics:   svc.metrics,
		Logger:    logger,
	}, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting Scoracle Alerts",
			"addr", addr,
			"environment", cfg.Environment,
			"leagues", cfg.Leagues,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}

	// In-flight cycles finish their poll; queued deliveries finish sending.
	runner.Wait()
	svc.dispatcher.Wait()
	logger.Info("Server stopped")
	return nil
}
