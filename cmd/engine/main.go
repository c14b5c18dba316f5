// Command engine runs the park conditions service: it consumes condition
// reports from Kafka, maintains per-site aggregations and the reporter
// reputation ledger, refreshes weather and dry-out estimates, sweeps aged
// reports, and serves the read-only conditions API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/parkcheck/conditions-engine/internal/adapter/http"
	kafkaadapter "github.com/parkcheck/conditions-engine/internal/adapter/kafka"
	"github.com/parkcheck/conditions-engine/internal/adapter/weather"
	"github.com/parkcheck/conditions-engine/internal/config"
	"github.com/parkcheck/conditions-engine/internal/domain"
	"github.com/parkcheck/conditions-engine/internal/engine"
	"github.com/parkcheck/conditions-engine/internal/observability"
	"github.com/parkcheck/conditions-engine/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer st.Close()

	if err := seedSites(st, cfg.SitesFile, logger); err != nil {
		logger.Error("failed to seed site catalog", "error", err)
		os.Exit(1)
	}

	// Weather refresh is feature-flagged on the API key.
	var fetcher engine.WeatherFetcher
	if cfg.WeatherEnabled() {
		fetcher = weather.NewClient(cfg, logger)
		logger.Info("weather refresh enabled", "lat", cfg.WeatherLat, "lon", cfg.WeatherLon, "interval", cfg.WeatherRefreshInterval)
	} else {
		logger.Info("weather refresh disabled, no API key")
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	eng := engine.New(st, writer, fetcher, logger, metrics, clock, cfg.MaxReportsPerDay)

	srv := httpadapter.NewServer(cfg.HTTPAddr, eng, st, logger, clock)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := eng.RunScheduler(ctx, cfg.WeatherRefreshInterval, cfg.SweepInterval); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	go func() {
		if err := eng.Run(ctx, reader); err != nil {
			logger.Error("engine error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// seedSites upserts the static site catalog from a JSON file. A missing file
// is not an error; the catalog may already live in the store.
func seedSites(st *store.Store, path string, logger *slog.Logger) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("no site catalog file, skipping seed", "path", path)
		return nil
	}
	if err != nil {
		return err
	}

	var sites []domain.Site
	if err := json.Unmarshal(data, &sites); err != nil {
		return err
	}
	ctx := context.Background()
	for _, site := range sites {
		if err := st.PutSite(ctx, site); err != nil {
			return err
		}
	}
	logger.Info("site catalog seeded", "sites", len(sites), "path", path)
	return nil
}
