package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krwave/ratefeed/internal/config"
	"github.com/krwave/ratefeed/pkg/set"
)

func sourceConfig(url string, currencies ...string) config.SourceConfig {
	return config.SourceConfig{
		Name:       "test",
		BaseURL:    url,
		Currencies: currencies,
		Timeout:    time.Second,
		Priority:   1,
	}
}

func TestExchangeRateAPIInvertsQuotingDirection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// KRW-based feed quotes foreign-per-KRW.
		w.Write([]byte(`{"base":"KRW","date":"2026-08-28","rates":{"USD":0.00074,"JPY":0.109,"XXX":0.5}}`))
	}))
	defer server.Close()

	src := NewExchangeRateAPISource(sourceConfig(server.URL, "USD", "JPY"))
	records, err := src.Fetch(context.Background(), set.FromSlice([]string{"USD", "JPY"}))
	require.NoError(t, err)
	require.Len(t, records, 2)

	byCode := map[string]float64{}
	for _, rec := range records {
		byCode[rec.CurrencyCode] = rec.Rate
		assert.Equal(t, "exchangerate_api", rec.SourceID)
		assert.False(t, rec.ObservedAt.IsZero())
	}
	assert.InDelta(t, 1/0.00074, byCode["USD"], 0.001)
	assert.InDelta(t, 1/0.109, byCode["JPY"], 0.001)
}

func TestExchangeRateAPIRespectsUniverse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"base":"KRW","rates":{"USD":0.00074,"JPY":0.109}}`))
	}))
	defer server.Close()

	src := NewExchangeRateAPISource(sourceConfig(server.URL, "USD", "JPY"))
	records, err := src.Fetch(context.Background(), set.FromSlice([]string{"USD"}))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "USD", records[0].CurrencyCode)
}

func TestExchangeRateAPIErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	src := NewExchangeRateAPISource(sourceConfig(server.URL, "USD"))
	_, err := src.Fetch(context.Background(), set.FromSlice([]string{"USD"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchangerate_api")
}

func TestFixerCrossesThroughEUR(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "EUR", r.URL.Query().Get("base"))
		w.Write([]byte(`{"date":"2026-08-28","rates":{"KRW":1450.0,"USD":1.08,"JPY":160.0}}`))
	}))
	defer server.Close()

	src := NewFixerSource(sourceConfig(server.URL, "USD", "JPY"))
	records, err := src.Fetch(context.Background(), set.FromSlice([]string{"USD", "JPY"}))
	require.NoError(t, err)
	require.Len(t, records, 2)

	byCode := map[string]float64{}
	for _, rec := range records {
		byCode[rec.CurrencyCode] = rec.Rate
	}
	assert.InDelta(t, 1450.0/1.08, byCode["USD"], 0.001)
	assert.InDelta(t, 1450.0/160.0, byCode["JPY"], 0.001)
}

func TestFixerMissingKRWCrossRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rates":{"USD":1.08}}`))
	}))
	defer server.Close()

	src := NewFixerSource(sourceConfig(server.URL, "USD"))
	_, err := src.Fetch(context.Background(), set.FromSlice([]string{"USD"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KRW")
}

func TestBOKRequiresAPIKey(t *testing.T) {
	src := NewBOKSource(sourceConfig("http://example.invalid", "USD"))
	assert.False(t, src.Active())

	_, err := src.Fetch(context.Background(), set.FromSlice([]string{"USD"}))
	require.Error(t, err)
}

func TestBOKParsesStatisticRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "731Y001", r.URL.Query().Get("statCode"))
		w.Write([]byte(`{"StatisticSearch":{"row":[
			{"STAT_CODE":"731Y001","STAT_NAME":"원/미국달러(매매기준율)","UNIT_NAME":"원","DATA_VALUE":"1350.40"},
			{"STAT_CODE":"731Y001","STAT_NAME":"원/일본엔(100엔)","UNIT_NAME":"원","DATA_VALUE":"910.22"},
			{"STAT_CODE":"731Y001","STAT_NAME":"원/호주달러","UNIT_NAME":"원","DATA_VALUE":"880.00"}
		]}}`))
	}))
	defer server.Close()

	cfg := sourceConfig(server.URL, "USD", "JPY")
	cfg.APIKey = "test-key"
	src := NewBOKSource(cfg)
	assert.True(t, src.Active())

	records, err := src.Fetch(context.Background(), set.FromSlice([]string{"USD", "JPY"}))
	require.NoError(t, err)
	require.Len(t, records, 2)

	byCode := map[string]float64{}
	for _, rec := range records {
		byCode[rec.CurrencyCode] = rec.Rate
		assert.Equal(t, "bok", rec.SourceID)
	}
	assert.Equal(t, 1350.40, byCode["USD"])
	assert.Equal(t, 910.22, byCode["JPY"])
}
