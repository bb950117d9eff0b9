package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/StevenVC-P/autographreader/internal/attribution"
	"github.com/StevenVC-P/autographreader/internal/config"
	"github.com/StevenVC-P/autographreader/internal/pipeline"
	"github.com/StevenVC-P/autographreader/internal/pkg/dedup"
	"github.com/StevenVC-P/autographreader/internal/pkg/logger"
	"github.com/StevenVC-P/autographreader/internal/pkg/notify"
	"github.com/StevenVC-P/autographreader/internal/pkg/retry"
	"github.com/StevenVC-P/autographreader/internal/scraper"
	"github.com/StevenVC-P/autographreader/internal/store"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// main is the entry point for a single scrape run.
//
// It is responsible for:
// 1. loading configuration
// 2. initializing the logger, catalog store and attribution stack
// 3. running the pipeline over every configured category
// 4. serving Prometheus metrics for the lifetime of the run
// 5. graceful shutdown on SIGINT/SIGTERM
func main() {
	// .env is optional; real deployments pass environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger := logger.NewDefault(cfg.App.LogLevel)

	catalog, err := store.Open(cfg.SQLite.Path, appLogger)
	if err != nil {
		appLogger.Error("open catalog store failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := catalog.Close(); err != nil {
			appLogger.Warn("close catalog store", slog.String("error", err.Error()))
		}
	}()

	registry := attribution.LoadRegistry(cfg.Registry.SignersFile, appLogger)
	cache := attribution.LoadCache(cfg.Registry.CacheFile, appLogger)
	lookup := attribution.NewLookupClient(cfg.Lookup)
	resolver := attribution.NewResolver(registry, cache, lookup, appLogger)

	fetcher := scraper.NewFetcher(cfg.Browser, retry.Policy{
		MaxAttempts: cfg.App.MaxAttempts,
		Backoff:     cfg.App.RetryBackoff,
	}, resolver, appLogger)

	gate := dedup.NewGate(catalog)
	notifier := notify.NewEmailNotifier(&cfg.Email, appLogger)

	metricsServer := &http.Server{
		Addr:    cfg.App.MetricsAddr,
		Handler: promhttp.Handler(),
	}
	go func() {
		appLogger.Info("metrics server started", slog.String("addr", cfg.App.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("metrics server stopped with error", slog.String("error", err.Error()))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(cfg, fetcher, catalog, gate, resolver, notifier, appLogger)
	summary, err := p.Run(ctx)
	if err != nil {
		appLogger.Error("scrape run failed", slog.String("error", err.Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("metrics shutdown error", slog.String("error", err.Error()))
	}

	appLogger.Info("scraper finished",
		slog.Uint64("run_id", uint64(summary.RunID)),
		slog.Int("new_listings", summary.NewListings),
		slog.Int("updated_listings", summary.UpdatedListings))
	if err != nil {
		os.Exit(1)
	}
}
