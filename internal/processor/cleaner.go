// Package processor drives the validate, deduplicate, persist, cache and
// notify stages for one source's collection output.
package processor

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/krwave/ratefeed/internal/currency"
	"github.com/krwave/ratefeed/internal/rates"
	"github.com/krwave/ratefeed/pkg/metrics"
)

// Cleaner converts raw observations into canonical priced records. Clean is
// total: bad records are dropped with a diagnostic, never returned as errors.
type Cleaner struct {
	spread      decimal.Decimal
	maxSaneRate decimal.Decimal
	validate    *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewCleaner builds a cleaner with the system-wide spread (e.g. 0.02) and the
// upper sanity bound that rejects decimal-point or unit errors from providers.
func NewCleaner(spread, maxSaneRate float64, logger *zap.Logger) *Cleaner {
	return &Cleaner{
		spread:      decimal.NewFromFloat(spread),
		maxSaneRate: decimal.NewFromFloat(maxSaneRate),
		validate:    validator.New(),
		logger:      logger,
		now:         time.Now,
	}
}

// Clean validates and prices each record. The output order follows the input;
// rejected records are omitted.
func (c *Cleaner) Clean(records []rates.RawRateRecord) []rates.CanonicalRate {
	cleaned := make([]rates.CanonicalRate, 0, len(records))

	for _, raw := range records {
		if reason := c.reject(raw); reason != "" {
			metrics.RecordsCleaned.WithLabelValues("rejected").Inc()
			c.logger.Warn("rejecting raw rate record",
				zap.String("currency", raw.CurrencyCode),
				zap.Float64("rate", raw.Rate),
				zap.String("source", raw.SourceID),
				zap.String("reason", reason))
			continue
		}

		recordedAt := raw.ObservedAt
		if recordedAt.IsZero() {
			recordedAt = c.now().UTC()
		}

		baseRate := decimal.NewFromFloat(raw.Rate).Round(4)
		cleaned = append(cleaned, rates.CanonicalRate{
			CurrencyCode: raw.CurrencyCode,
			CurrencyName: currency.DisplayName(raw.CurrencyCode),
			BaseRate:     baseRate,
			SellRate:     baseRate.Mul(decimal.NewFromInt(1).Add(c.spread)),
			BuyRate:      baseRate.Mul(decimal.NewFromInt(1).Sub(c.spread)),
			SourceID:     raw.SourceID,
			RecordedAt:   recordedAt,
		})
		metrics.RecordsCleaned.WithLabelValues("accepted").Inc()
	}

	return cleaned
}

// reject returns a diagnostic reason, or "" when the record is acceptable.
func (c *Cleaner) reject(raw rates.RawRateRecord) string {
	if err := c.validate.Struct(raw); err != nil {
		return "malformed record: " + err.Error()
	}
	if !currency.IsKnown(raw.CurrencyCode) {
		return "unknown currency code"
	}
	rate := decimal.NewFromFloat(raw.Rate)
	if rate.LessThanOrEqual(decimal.Zero) {
		return "rate is not positive"
	}
	if rate.GreaterThan(c.maxSaneRate) {
		return "rate exceeds sanity bound"
	}
	return ""
}
