package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/gc"
	"github.com/marmos91/dittofiles/pkg/metrics"
)

func runGC(ctx context.Context, e *env, args []string) error {
	dryRun := e.flags.Bool("dry-run", e.cfg.GC.DryRun, "Report orphans without deleting them")
	grace := e.flags.Duration("grace", e.cfg.GC.GracePeriod, "Keep orphans younger than this")
	if err := e.flags.Parse(args); err != nil {
		return err
	}

	collector := gc.NewCollector(e.rt.Store, e.rt.Bytes, e.rt.Resolver, gc.Config{
		DryRun:           *dryRun,
		GracePeriod:      *grace,
		DeletesPerSecond: e.cfg.GC.DeletesPerSecond,
	})
	stats, err := collector.RunNow(ctx)
	if err != nil {
		return err
	}

	for _, url := range stats.Orphans {
		if *dryRun {
			fmt.Printf("would delete\t%s\n", url)
		} else {
			fmt.Printf("deleted\t%s\n", url)
		}
	}
	for _, id := range stats.Missing {
		fmt.Printf("missing\t%s\n", id)
	}
	fmt.Println(stats.Summary())
	return nil
}

// runServe runs the background collector and, when enabled, the metrics
// endpoint until the process is signalled.
func runServe(ctx context.Context, e *env, args []string) error {
	if err := e.flags.Parse(args); err != nil {
		return err
	}

	// ========================================================================
	// Step 1: Metrics endpoint
	// ========================================================================

	serverDone := make(chan error, 1)
	var srv *http.Server
	if e.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if err := e.rt.Store.Healthcheck(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		})

		srv = &http.Server{
			Addr:              e.cfg.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("Metrics endpoint listening on %s", e.cfg.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverDone <- err
			}
		}()
	}

	// ========================================================================
	// Step 2: Garbage collector
	// ========================================================================

	e.rt.Collector.Start()
	logger.Info("dittofiles is running on %s. Press Ctrl+C to stop.", e.rt.Resolver.Root())

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case runErr = <-serverDone:
		logger.Error("Metrics server error: %v", runErr)
	}

	// ========================================================================
	// Step 3: Graceful shutdown
	// ========================================================================

	shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.rt.Collector.Stop(shutdownCtx); err != nil {
		logger.Warn("Garbage collector did not stop cleanly: %v", err)
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown error: %v", err)
		}
	}
	logger.Info("Server stopped")
	return runErr
}
