package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/krwave/ratefeed/api"
	"github.com/krwave/ratefeed/internal/collector"
	"github.com/krwave/ratefeed/internal/config"
	"github.com/krwave/ratefeed/internal/currency"
	"github.com/krwave/ratefeed/internal/database"
	"github.com/krwave/ratefeed/internal/processor"
	"github.com/krwave/ratefeed/internal/rates"
	"github.com/krwave/ratefeed/internal/reader"
	"github.com/krwave/ratefeed/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := database.NewPostgresDB(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		zapLogger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}

	redisClient, err := database.NewRedisClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	store := rates.NewGormHistoryStore(db, zapLogger, cfg.Pipeline.BatchSize)
	if err := store.Migrate(); err != nil {
		zapLogger.Fatal("Failed to migrate schema", zap.Error(err))
	}

	cache := rates.NewRedisRateCache(redisClient, zapLogger)

	registry := collector.NewRegistry(
		collector.NewBOKSource(cfg.Sources.BOK),
		collector.NewExchangeRateAPISource(cfg.Sources.ExchangeRateAPI),
		collector.NewFixerSource(cfg.Sources.Fixer),
	)
	rateCollector := collector.NewCollector(registry, currency.KnownCodes(), zapLogger)

	var sink processor.EventSink = processor.NoopSink{}
	if cfg.Kafka.Enabled {
		kafkaSink := processor.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, zapLogger)
		defer kafkaSink.Close()
		sink = kafkaSink
	}

	pipeline := processor.NewProcessor(
		processor.NewCleaner(cfg.Pipeline.SpreadRate, cfg.Pipeline.MaxSaneRate, zapLogger),
		processor.NewDeduplicator(store, cfg.Pipeline.DedupWindow, cfg.Pipeline.DedupEpsilon, zapLogger),
		store,
		cache,
		processor.NewNotifier(sink, zapLogger),
		cfg.Cache.IngestTTL,
		zapLogger,
	)

	rateReader := reader.NewReader(cache, store, cfg.Cache.FillTTL, zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	probe := rateCollector.ProbeConnectivity(ctx)
	for sourceID, reachable := range probe {
		zapLogger.Info("source connectivity",
			zap.String("source", sourceID),
			zap.Bool("reachable", reachable))
	}

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: api.NewRouter(rateReader, zapLogger),
	}
	go func() {
		zapLogger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Error("http server stopped", zap.Error(err))
		}
	}()

	go runCollectionLoop(ctx, cfg.Collector.Interval, rateCollector, pipeline, zapLogger)
	go runCleanupLoop(ctx, store, cfg.Pipeline.RetentionDays, zapLogger)

	<-ctx.Done()
	zapLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("http server shutdown failed", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	zapLogger.Info("shutdown complete")
	_ = os.Stdout.Sync()
}

// runCollectionLoop collects and processes on a fixed cadence. Runs never
// overlap: each tick finishes before the next collection starts, which keeps
// the dedup window assumption safe.
func runCollectionLoop(ctx context.Context, interval time.Duration, c *collector.Collector, p *processor.Processor, zapLogger *zap.Logger) {
	runOnce := func() {
		outcomes := c.CollectAll(ctx)
		for _, outcome := range outcomes {
			if err := p.ProcessCollectionResult(ctx, outcome); err != nil {
				zapLogger.Error("pipeline run failed for source",
					zap.String("source", outcome.SourceID),
					zap.Error(err))
			}
		}
	}

	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			runOnce()
		case <-ctx.Done():
			return
		}
	}
}

// runCleanupLoop prunes history past the retention horizon once a day.
func runCleanupLoop(ctx context.Context, store rates.HistoryStore, retentionDays int, zapLogger *zap.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
			deleted, err := store.CleanupOldRates(ctx, cutoff)
			if err != nil {
				zapLogger.Error("history cleanup failed", zap.Error(err))
				continue
			}
			zapLogger.Info("history cleanup completed",
				zap.Time("cutoff", cutoff),
				zap.Int64("deleted_records", deleted))
		case <-ctx.Done():
			return
		}
	}
}
