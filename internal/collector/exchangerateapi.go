package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/krwave/ratefeed/internal/config"
	"github.com/krwave/ratefeed/internal/rates"
	"github.com/krwave/ratefeed/pkg/set"
)

type exchangeRateAPIResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// ExchangeRateAPISource pulls the free ExchangeRate-API KRW table. The feed
// quotes foreign-per-KRW, so each rate is inverted to KRW-per-unit.
type ExchangeRateAPISource struct {
	cfg    config.SourceConfig
	client *http.Client
	now    func() time.Time
}

func NewExchangeRateAPISource(cfg config.SourceConfig) *ExchangeRateAPISource {
	return &ExchangeRateAPISource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
}

func (s *ExchangeRateAPISource) ID() string             { return "exchangerate_api" }
func (s *ExchangeRateAPISource) Name() string           { return s.cfg.Name }
func (s *ExchangeRateAPISource) Priority() int          { return s.cfg.Priority }
func (s *ExchangeRateAPISource) Timeout() time.Duration { return s.cfg.Timeout }

// Active is always true: the endpoint needs no credentials.
func (s *ExchangeRateAPISource) Active() bool { return true }

func (s *ExchangeRateAPISource) Fetch(ctx context.Context, universe set.Set[string]) ([]rates.RawRateRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL, nil)
	if err != nil {
		return nil, rates.NewSourceError(s.ID(), err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, rates.NewSourceError(s.ID(), fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, rates.NewSourceError(s.ID(), fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var payload exchangeRateAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, rates.NewSourceError(s.ID(), fmt.Errorf("malformed payload: %w", err))
	}

	observed := s.now().UTC()
	records := make([]rates.RawRateRecord, 0, len(s.cfg.Currencies))
	for _, code := range s.cfg.Currencies {
		if !universe.Include(code) {
			continue
		}
		foreignPerKRW, ok := payload.Rates[code]
		if !ok || foreignPerKRW <= 0 {
			continue
		}
		records = append(records, rates.RawRateRecord{
			CurrencyCode: code,
			Rate:         1 / foreignPerKRW,
			SourceID:     s.ID(),
			ObservedAt:   observed,
			Metadata: map[string]string{
				"base_currency": payload.Base,
				"date":          payload.Date,
			},
		})
	}

	return records, nil
}
