package processor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/krwave/ratefeed/internal/rates"
	"github.com/krwave/ratefeed/pkg/metrics"
)

// Deduplicator suppresses candidates that repeat a recent observation for the
// same (currency, source) with a near-identical base rate.
type Deduplicator struct {
	store   rates.HistoryStore
	window  time.Duration
	epsilon decimal.Decimal
	logger  *zap.Logger
	now     func() time.Time
}

// NewDeduplicator builds a deduplicator over the given history window
// (default 1h) and absolute rate epsilon (default 0.01).
func NewDeduplicator(store rates.HistoryStore, window time.Duration, epsilon float64, logger *zap.Logger) *Deduplicator {
	return &Deduplicator{
		store:   store,
		window:  window,
		epsilon: decimal.NewFromFloat(epsilon),
		logger:  logger,
		now:     time.Now,
	}
}

// FilterDuplicates keeps candidates with no near-duplicate in the window.
// When the store lookup fails, all candidates pass through: duplication is
// preferable to data loss.
func (d *Deduplicator) FilterDuplicates(ctx context.Context, candidates []rates.CanonicalRate) []rates.CanonicalRate {
	if len(candidates) == 0 {
		return candidates
	}

	since := d.now().UTC().Add(-d.window)
	kept := make([]rates.CanonicalRate, 0, len(candidates))

	for _, candidate := range candidates {
		recent, err := d.store.RecentBySource(ctx, candidate.CurrencyCode, candidate.SourceID, since)
		if err != nil {
			d.logger.Warn("duplicate lookup failed, keeping candidate",
				zap.String("currency", candidate.CurrencyCode),
				zap.String("source", candidate.SourceID),
				zap.Error(err))
			kept = append(kept, candidate)
			continue
		}

		if d.hasNearDuplicate(candidate, recent) {
			metrics.RecordsDeduplicated.Inc()
			d.logger.Debug("duplicate rate suppressed",
				zap.String("currency", candidate.CurrencyCode),
				zap.String("source", candidate.SourceID),
				zap.String("rate", candidate.BaseRate.String()))
			continue
		}

		kept = append(kept, candidate)
	}

	d.logger.Debug("duplicate filtering completed",
		zap.Int("original_count", len(candidates)),
		zap.Int("filtered_count", len(kept)))

	return kept
}

func (d *Deduplicator) hasNearDuplicate(candidate rates.CanonicalRate, recent []rates.CanonicalRate) bool {
	for _, row := range recent {
		if row.BaseRate.Sub(candidate.BaseRate).Abs().LessThan(d.epsilon) {
			return true
		}
	}
	return false
}
