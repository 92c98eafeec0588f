package rates

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// rateKeyPattern is the per-currency cache key, "rate:{CODE}".
const rateKeyPattern = "rate:%s"

// RateCache is the latest-rate cache contract. It is advisory: callers must
// stay correct when it is cold or entirely unavailable.
type RateCache interface {
	// Get returns the live entry for the currency, or (nil, nil) on a miss.
	Get(ctx context.Context, code string) (*CachedRate, error)

	// Put upserts the entry for its currency and resets the TTL.
	Put(ctx context.Context, rate *CachedRate, ttl time.Duration) error
}

// RedisRateCache stores one hash per currency with a bounded TTL.
type RedisRateCache struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisRateCache(client *redis.Client, logger *zap.Logger) *RedisRateCache {
	return &RedisRateCache{client: client, logger: logger}
}

func (c *RedisRateCache) Get(ctx context.Context, code string) (*CachedRate, error) {
	key := fmt.Sprintf(rateKeyPattern, code)

	fields, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cache for %s: %w", code, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	baseRate, err := decimal.NewFromString(fields["deal_base_rate"])
	if err != nil {
		// A malformed entry behaves like a miss; the read path will refill it.
		c.logger.Warn("discarding malformed cache entry",
			zap.String("currency", code),
			zap.String("deal_base_rate", fields["deal_base_rate"]))
		return nil, nil
	}

	cached := &CachedRate{
		CurrencyCode: code,
		CurrencyName: fields["currency_name"],
		BaseRate:     baseRate,
		SourceID:     fields["source"],
	}
	if v, err := decimal.NewFromString(fields["tts"]); err == nil {
		cached.SellRate = v
	}
	if v, err := decimal.NewFromString(fields["ttb"]); err == nil {
		cached.BuyRate = v
	}
	if v, err := time.Parse(time.RFC3339, fields["last_updated_at"]); err == nil {
		cached.LastUpdatedAt = v
	}

	return cached, nil
}

func (c *RedisRateCache) Put(ctx context.Context, rate *CachedRate, ttl time.Duration) error {
	key := fmt.Sprintf(rateKeyPattern, rate.CurrencyCode)

	fields := map[string]interface{}{
		"currency_name":   rate.CurrencyName,
		"deal_base_rate":  rate.BaseRate.String(),
		"tts":             rate.SellRate.String(),
		"ttb":             rate.BuyRate.String(),
		"source":          rate.SourceID,
		"last_updated_at": rate.LastUpdatedAt.UTC().Format(time.RFC3339),
	}

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache rate for %s: %w", rate.CurrencyCode, err)
	}

	return nil
}
