package rates

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawRateRecord is a provider-native observation normalized to the
// domestic-base (KRW per unit) quoting direction by its source adapter.
type RawRateRecord struct {
	CurrencyCode string            `json:"currency_code" validate:"required,len=3,uppercase"`
	Rate         float64           `json:"rate" validate:"required,gt=0"`
	SourceID     string            `json:"source_id" validate:"required"`
	ObservedAt   time.Time         `json:"observed_at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// CollectionOutcome is the per-source result of one collection run.
// Succeeded implies ErrorMessage is empty and Records may be non-empty.
type CollectionOutcome struct {
	SourceID     string          `json:"source_id"`
	Succeeded    bool            `json:"succeeded"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Records      []RawRateRecord `json:"records,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	Duration     time.Duration   `json:"duration"`
}

// CanonicalRate is the durable unit of exchange-rate knowledge. Rows are
// append-only: later observations supersede, never mutate, earlier ones.
type CanonicalRate struct {
	ID           uint            `json:"-" gorm:"primaryKey;autoIncrement"`
	CurrencyCode string          `json:"currency_code" gorm:"column:currency_code;size:3;index:idx_currency_recorded,priority:1"`
	CurrencyName string          `json:"currency_name" gorm:"column:currency_name"`
	BaseRate     decimal.Decimal `json:"deal_base_rate" gorm:"column:deal_base_rate;type:numeric(18,4)"`
	SellRate     decimal.Decimal `json:"tts" gorm:"column:tts;type:numeric(18,4)"`
	BuyRate      decimal.Decimal `json:"ttb" gorm:"column:ttb;type:numeric(18,4)"`
	SourceID     string          `json:"source" gorm:"column:source"`
	RecordedAt   time.Time       `json:"recorded_at" gorm:"column:recorded_at;index:idx_currency_recorded,priority:2,sort:desc"`
	CreatedAt    time.Time       `json:"created_at" gorm:"column:created_at"`
}

// TableName pins the durable schema other services rely on.
func (CanonicalRate) TableName() string {
	return "exchange_rate_history"
}

// CachedRate is the ephemeral latest-known-good rate for one currency.
type CachedRate struct {
	CurrencyCode  string          `json:"currency_code"`
	CurrencyName  string          `json:"currency_name"`
	BaseRate      decimal.Decimal `json:"deal_base_rate"`
	SellRate      decimal.Decimal `json:"tts"`
	BuyRate       decimal.Decimal `json:"ttb"`
	SourceID      string          `json:"source"`
	LastUpdatedAt time.Time       `json:"last_updated_at"`
}

// Snapshot source tags.
const (
	SnapshotSourceCache    = "redis_cache"
	SnapshotSourceDatabase = "database"
)

// RatesSnapshot is the serving-path result: resolved rates for the requested
// currencies, with currencies that could not be resolved omitted.
type RatesSnapshot struct {
	Base        string             `json:"base"`
	Timestamp   int64              `json:"timestamp"`
	Rates       map[string]float64 `json:"rates"`
	Source      string             `json:"source"`
	CacheHits   int                `json:"cache_hits"`
	CacheMisses int                `json:"cache_misses"`
	Missing     []string           `json:"missing,omitempty"`
}

// CachedRateFromCanonical maps a stored row to its cache representation.
func CachedRateFromCanonical(r *CanonicalRate) *CachedRate {
	return &CachedRate{
		CurrencyCode:  r.CurrencyCode,
		CurrencyName:  r.CurrencyName,
		BaseRate:      r.BaseRate,
		SellRate:      r.SellRate,
		BuyRate:       r.BuyRate,
		SourceID:      r.SourceID,
		LastUpdatedAt: r.RecordedAt,
	}
}
