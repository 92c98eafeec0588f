package processor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/krwave/ratefeed/internal/rates"
)

// Processor runs clean → dedup → persist for one source's output, then the
// post-commit side effects (cache refresh, event publish), each independently
// caught. Only store unavailability propagates: persistence is the one
// dependency without a degrade path.
type Processor struct {
	cleaner   *Cleaner
	dedup     *Deduplicator
	store     rates.HistoryStore
	cache     rates.RateCache
	notifier  *Notifier
	ingestTTL time.Duration
	logger    *zap.Logger
}

func NewProcessor(
	cleaner *Cleaner,
	dedup *Deduplicator,
	store rates.HistoryStore,
	cache rates.RateCache,
	notifier *Notifier,
	ingestTTL time.Duration,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		cleaner:   cleaner,
		dedup:     dedup,
		store:     store,
		cache:     cache,
		notifier:  notifier,
		ingestTTL: ingestTTL,
		logger:    logger,
	}
}

// ProcessCollectionResult drives the full pipeline for one collection outcome.
func (p *Processor) ProcessCollectionResult(ctx context.Context, outcome rates.CollectionOutcome) error {
	if !outcome.Succeeded || len(outcome.Records) == 0 {
		p.logger.Warn("no data to process", zap.String("source", outcome.SourceID))
		return nil
	}

	p.logger.Info("processing exchange rate data",
		zap.String("source", outcome.SourceID),
		zap.Int("record_count", len(outcome.Records)))

	cleaned := p.cleaner.Clean(outcome.Records)
	if len(cleaned) == 0 {
		p.logger.Warn("no valid data after cleaning", zap.String("source", outcome.SourceID))
		return nil
	}

	accepted := p.dedup.FilterDuplicates(ctx, cleaned)
	if len(accepted) == 0 {
		p.logger.Info("all records suppressed as duplicates", zap.String("source", outcome.SourceID))
		return nil
	}

	saved, err := p.store.SaveAll(ctx, accepted)
	if err != nil {
		return fmt.Errorf("failed to persist rates from %s: %w", outcome.SourceID, err)
	}

	p.refreshCache(ctx, accepted)
	p.notifier.Notify(ctx, accepted)

	p.logger.Info("data processing completed",
		zap.String("source", outcome.SourceID),
		zap.Int("processed_count", len(accepted)),
		zap.Int("saved_count", saved))

	return nil
}

// refreshCache upserts one cache entry per record. Cache errors are logged
// and swallowed; the cache is an optimization, never a correctness
// dependency of the write path.
func (p *Processor) refreshCache(ctx context.Context, records []rates.CanonicalRate) {
	updated := 0
	for i := range records {
		entry := rates.CachedRateFromCanonical(&records[i])
		if err := p.cache.Put(ctx, entry, p.ingestTTL); err != nil {
			p.logger.Warn("failed to update cache for currency",
				zap.String("currency", entry.CurrencyCode),
				zap.Error(err))
			continue
		}
		updated++
	}
	p.logger.Debug("cache update completed",
		zap.Int("total_records", len(records)),
		zap.Int("cache_updates", updated))
}
