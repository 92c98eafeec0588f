package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/krwave/ratefeed/internal/rates"
)

// memoryStore is an in-memory HistoryStore for pipeline tests.
type memoryStore struct {
	mu      sync.Mutex
	rows    []rates.CanonicalRate
	saveErr error
	listErr error
}

func (m *memoryStore) SaveAll(_ context.Context, records []rates.CanonicalRate) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	m.rows = append(m.rows, records...)
	return len(records), nil
}

func (m *memoryStore) LatestByCurrency(_ context.Context, code string) (*rates.CanonicalRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *rates.CanonicalRate
	for i := range m.rows {
		row := &m.rows[i]
		if row.CurrencyCode != code {
			continue
		}
		if latest == nil || row.RecordedAt.After(latest.RecordedAt) {
			latest = row
		}
	}
	if latest == nil {
		return nil, rates.ErrRateNotFound
	}
	copied := *latest
	return &copied, nil
}

func (m *memoryStore) RecentBySource(_ context.Context, code, sourceID string, since time.Time) ([]rates.CanonicalRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var matched []rates.CanonicalRate
	for _, row := range m.rows {
		if row.CurrencyCode == code && row.SourceID == sourceID && row.RecordedAt.After(since) {
			matched = append(matched, row)
		}
	}
	return matched, nil
}

func (m *memoryStore) CleanupOldRates(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	var deleted int64
	for _, row := range m.rows {
		if row.RecordedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	m.rows = kept
	return deleted, nil
}

// memoryCache is an in-memory RateCache for pipeline tests.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*rates.CachedRate
	puts    int
	getErr  error
	putErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]*rates.CachedRate)}
}

func (m *memoryCache) Get(_ context.Context, code string) (*rates.CachedRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	entry, ok := m.entries[code]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

func (m *memoryCache) Put(_ context.Context, rate *rates.CachedRate, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	copied := *rate
	m.entries[rate.CurrencyCode] = &copied
	m.puts++
	return nil
}

// recordingSink captures published events.
type recordingSink struct {
	mu         sync.Mutex
	events     []RateUpdateEvent
	publishErr error
}

func (s *recordingSink) Publish(_ context.Context, _ string, message interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publishErr != nil {
		return s.publishErr
	}
	s.events = append(s.events, message.(RateUpdateEvent))
	return nil
}

func (s *recordingSink) Close() error { return nil }

func newTestProcessor(t *testing.T, store *memoryStore, cache *memoryCache, sink EventSink) *Processor {
	logger := zaptest.NewLogger(t)
	return NewProcessor(
		NewCleaner(0.02, 10000, logger),
		NewDeduplicator(store, time.Hour, 0.01, logger),
		store,
		cache,
		NewNotifier(sink, logger),
		10*time.Minute,
		logger,
	)
}

func outcomeWith(source string, records ...rates.RawRateRecord) rates.CollectionOutcome {
	return rates.CollectionOutcome{
		SourceID:  source,
		Succeeded: true,
		Records:   records,
		StartedAt: time.Now().UTC(),
	}
}

func TestProcessPersistsCachesAndNotifies(t *testing.T) {
	store := &memoryStore{}
	cache := newMemoryCache()
	sink := &recordingSink{}
	proc := newTestProcessor(t, store, cache, sink)

	outcome := outcomeWith("exchangerate_api", rawRecord("USD", 1350.25), rawRecord("JPY", 9.10))
	require.NoError(t, proc.ProcessCollectionResult(context.Background(), outcome))

	assert.Len(t, store.rows, 2)
	assert.Len(t, cache.entries, 2)
	assert.Len(t, sink.events, 2)

	usd, ok := cache.entries["USD"]
	require.True(t, ok)
	assert.True(t, usd.BaseRate.Equal(decimal.NewFromFloat(1350.25)))
	assert.Equal(t, "exchangerate_api", usd.SourceID)
}

func TestProcessSuppressesNearDuplicateRun(t *testing.T) {
	store := &memoryStore{}
	cache := newMemoryCache()
	sink := &recordingSink{}
	proc := newTestProcessor(t, store, cache, sink)

	first := rawRecord("USD", 1350.25)
	first.ObservedAt = time.Now().UTC().Add(-30 * time.Minute)
	require.NoError(t, proc.ProcessCollectionResult(context.Background(), outcomeWith("exchangerate_api", first)))

	// Same source, 30 minutes later, rate moved by less than the epsilon.
	second := rawRecord("USD", 1350.24)
	second.ObservedAt = time.Now().UTC()
	require.NoError(t, proc.ProcessCollectionResult(context.Background(), outcomeWith("exchangerate_api", second)))

	assert.Len(t, store.rows, 1, "near-duplicate must not be persisted")
	assert.Len(t, sink.events, 1, "near-duplicate must not be announced")
}

func TestProcessKeepsDistinctRateFromSameSource(t *testing.T) {
	store := &memoryStore{}
	cache := newMemoryCache()
	proc := newTestProcessor(t, store, cache, &recordingSink{})

	first := rawRecord("USD", 1350.25)
	first.ObservedAt = time.Now().UTC().Add(-30 * time.Minute)
	require.NoError(t, proc.ProcessCollectionResult(context.Background(), outcomeWith("exchangerate_api", first)))

	second := rawRecord("USD", 1351.00)
	second.ObservedAt = time.Now().UTC()
	require.NoError(t, proc.ProcessCollectionResult(context.Background(), outcomeWith("exchangerate_api", second)))

	assert.Len(t, store.rows, 2)
}

func TestProcessSkipsFailedOutcome(t *testing.T) {
	store := &memoryStore{}
	cache := newMemoryCache()
	sink := &recordingSink{}
	proc := newTestProcessor(t, store, cache, sink)

	outcome := rates.CollectionOutcome{SourceID: "bok", Succeeded: false, ErrorMessage: "timeout"}
	require.NoError(t, proc.ProcessCollectionResult(context.Background(), outcome))

	assert.Empty(t, store.rows)
	assert.Empty(t, cache.entries)
	assert.Empty(t, sink.events)
}

func TestProcessPropagatesStoreFailure(t *testing.T) {
	store := &memoryStore{saveErr: errors.New("connection reset")}
	cache := newMemoryCache()
	sink := &recordingSink{}
	proc := newTestProcessor(t, store, cache, sink)

	err := proc.ProcessCollectionResult(context.Background(), outcomeWith("fixer", rawRecord("USD", 1350.25)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fixer")

	assert.Empty(t, cache.entries, "cache must not be refreshed when persistence failed")
	assert.Empty(t, sink.events, "events must not fire when persistence failed")
}

func TestProcessToleratesCacheAndSinkFailures(t *testing.T) {
	store := &memoryStore{}
	cache := newMemoryCache()
	cache.putErr = errors.New("redis down")
	sink := &recordingSink{publishErr: errors.New("kafka down")}
	proc := newTestProcessor(t, store, cache, sink)

	err := proc.ProcessCollectionResult(context.Background(), outcomeWith("exchangerate_api", rawRecord("USD", 1350.25)))
	require.NoError(t, err, "cache and sink failures must not fail the pipeline")
	assert.Len(t, store.rows, 1)
}
