// Package reader is the serving-path lookup: cache-first, DB fallback on a
// miss, cache refill on a fallback hit.
package reader

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/krwave/ratefeed/internal/currency"
	"github.com/krwave/ratefeed/internal/rates"
	"github.com/krwave/ratefeed/pkg/metrics"
)

// Reader resolves latest rates per currency independently: a cache error, a
// store error or an absent currency never fails the rest of the request.
type Reader struct {
	cache   rates.RateCache
	store   rates.HistoryStore
	fillTTL time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

func NewReader(cache rates.RateCache, store rates.HistoryStore, fillTTL time.Duration, logger *zap.Logger) *Reader {
	return &Reader{
		cache:   cache,
		store:   store,
		fillTTL: fillTTL,
		logger:  logger,
		now:     time.Now,
	}
}

// GetLatestRates resolves each requested currency and returns the snapshot of
// everything that resolved. Currencies with no cached or stored rate are
// listed in Missing, not surfaced as an error.
func (r *Reader) GetLatestRates(ctx context.Context, currencies []string, base string) *rates.RatesSnapshot {
	if len(currencies) == 0 {
		currencies = currency.DefaultCodes()
	}
	if base == "" {
		base = "KRW"
	}

	snapshot := &rates.RatesSnapshot{
		Base:      base,
		Timestamp: r.now().UTC().Unix(),
		Rates:     make(map[string]float64, len(currencies)),
	}

	for _, code := range currencies {
		rate, fromCache := r.resolve(ctx, code)
		if rate == nil {
			snapshot.Missing = append(snapshot.Missing, code)
			continue
		}
		snapshot.Rates[code] = rate.BaseRate.InexactFloat64()
		if fromCache {
			snapshot.CacheHits++
		} else {
			snapshot.CacheMisses++
		}
	}

	if snapshot.CacheHits > 0 {
		snapshot.Source = rates.SnapshotSourceCache
	} else {
		snapshot.Source = rates.SnapshotSourceDatabase
	}

	return snapshot
}

// resolve looks one currency up, cache first, and reports whether the value
// came from the cache. A nil result means no data for this currency.
func (r *Reader) resolve(ctx context.Context, code string) (*rates.CachedRate, bool) {
	cached, err := r.cache.Get(ctx, code)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		r.logger.Warn("cache lookup failed", zap.String("currency", code), zap.Error(err))
	} else if cached != nil {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return cached, true
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	stored, err := r.store.LatestByCurrency(ctx, code)
	if err != nil {
		if errors.Is(err, rates.ErrRateNotFound) {
			r.logger.Warn("no rate found for currency", zap.String("currency", code))
		} else {
			r.logger.Error("store lookup failed", zap.String("currency", code), zap.Error(err))
		}
		return nil, false
	}
	metrics.ReaderFallbacks.Inc()

	entry := rates.CachedRateFromCanonical(stored)
	if err := r.cache.Put(ctx, entry, r.fillTTL); err != nil {
		// Read-through fill is best effort; the next miss will retry it.
		r.logger.Warn("cache fill failed", zap.String("currency", code), zap.Error(err))
	}

	return entry, false
}
