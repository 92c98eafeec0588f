package rates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/krwave/ratefeed/pkg/metrics"
)

// HistoryStore is the historical-store contract the pipeline and the reader
// depend on. No transactional multi-row guarantee is required.
type HistoryStore interface {
	// SaveAll appends records in fixed-size batches and returns the number
	// actually written. Individual write failures are skipped; the error is
	// non-nil only when the store itself is unusable.
	SaveAll(ctx context.Context, records []CanonicalRate) (int, error)

	// LatestByCurrency returns the most recent row for the currency, or
	// ErrRateNotFound.
	LatestByCurrency(ctx context.Context, code string) (*CanonicalRate, error)

	// RecentBySource returns rows for (currency, source) recorded after since,
	// used by the deduplicator's window check.
	RecentBySource(ctx context.Context, code, sourceID string, since time.Time) ([]CanonicalRate, error)

	// CleanupOldRates deletes history recorded before the cutoff and returns
	// the number of rows removed.
	CleanupOldRates(ctx context.Context, cutoff time.Time) (int64, error)
}

// GormHistoryStore implements HistoryStore on PostgreSQL.
type GormHistoryStore struct {
	db        *gorm.DB
	logger    *zap.Logger
	batchSize int
}

// NewGormHistoryStore creates a store writing in batches of batchSize.
func NewGormHistoryStore(db *gorm.DB, logger *zap.Logger, batchSize int) *GormHistoryStore {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &GormHistoryStore{db: db, logger: logger, batchSize: batchSize}
}

// Migrate creates the exchange_rate_history table and its indexes.
func (s *GormHistoryStore) Migrate() error {
	if err := s.db.AutoMigrate(&CanonicalRate{}); err != nil {
		return fmt.Errorf("failed to migrate exchange_rate_history: %w", err)
	}
	return nil
}

func (s *GormHistoryStore) SaveAll(ctx context.Context, records []CanonicalRate) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	saved := 0
	for start := 0; start < len(records); start += s.batchSize {
		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}

		for i := start; i < end; i++ {
			record := records[i]
			if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
				metrics.RecordsPersisted.WithLabelValues("skipped").Inc()
				s.logger.Warn("failed to save rate record",
					zap.String("currency", record.CurrencyCode),
					zap.String("source", record.SourceID),
					zap.Error(err))
				continue
			}
			metrics.RecordsPersisted.WithLabelValues("written").Inc()
			saved++
		}
	}

	s.logger.Info("history save completed",
		zap.Int("total_records", len(records)),
		zap.Int("saved_records", saved))

	return saved, nil
}

func (s *GormHistoryStore) LatestByCurrency(ctx context.Context, code string) (*CanonicalRate, error) {
	var rate CanonicalRate
	err := s.db.WithContext(ctx).
		Where("currency_code = ?", code).
		Order("recorded_at DESC").
		First(&rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRateNotFound
		}
		return nil, fmt.Errorf("failed to query latest rate for %s: %w", code, err)
	}
	return &rate, nil
}

func (s *GormHistoryStore) RecentBySource(ctx context.Context, code, sourceID string, since time.Time) ([]CanonicalRate, error) {
	var rows []CanonicalRate
	err := s.db.WithContext(ctx).
		Where("currency_code = ? AND source = ? AND recorded_at > ?", code, sourceID, since).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query recent rates for %s/%s: %w", code, sourceID, err)
	}
	return rows, nil
}

func (s *GormHistoryStore) CleanupOldRates(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("recorded_at < ?", cutoff).
		Delete(&CanonicalRate{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete rates before %s: %w", cutoff.Format(time.RFC3339), result.Error)
	}
	return result.RowsAffected, nil
}
