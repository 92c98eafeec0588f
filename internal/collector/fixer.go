package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/krwave/ratefeed/internal/config"
	"github.com/krwave/ratefeed/internal/rates"
	"github.com/krwave/ratefeed/pkg/set"
)

type fixerResponse struct {
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// FixerSource pulls the Fixer.io EUR-based table and crosses every rate
// through KRW/EUR to reach the KRW-per-unit convention.
type FixerSource struct {
	cfg    config.SourceConfig
	client *http.Client
	now    func() time.Time
}

func NewFixerSource(cfg config.SourceConfig) *FixerSource {
	return &FixerSource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
}

func (s *FixerSource) ID() string             { return "fixer" }
func (s *FixerSource) Name() string           { return s.cfg.Name }
func (s *FixerSource) Priority() int          { return s.cfg.Priority }
func (s *FixerSource) Timeout() time.Duration { return s.cfg.Timeout }

// Active is always true; the free tier works without a key.
func (s *FixerSource) Active() bool { return true }

func (s *FixerSource) Fetch(ctx context.Context, universe set.Set[string]) ([]rates.RawRateRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL, nil)
	if err != nil {
		return nil, rates.NewSourceError(s.ID(), err)
	}
	q := req.URL.Query()
	q.Set("access_key", s.cfg.APIKey)
	q.Set("base", "EUR")
	q.Set("symbols", strings.Join(append(append([]string{}, s.cfg.Currencies...), "KRW"), ","))
	req.URL.RawQuery = q.Encode()

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, rates.NewSourceError(s.ID(), fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, rates.NewSourceError(s.ID(), fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var payload fixerResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, rates.NewSourceError(s.ID(), fmt.Errorf("malformed payload: %w", err))
	}

	krwPerEUR, ok := payload.Rates["KRW"]
	if !ok || krwPerEUR <= 0 {
		return nil, rates.NewSourceError(s.ID(), fmt.Errorf("response missing KRW cross rate"))
	}

	observed := s.now().UTC()
	records := make([]rates.RawRateRecord, 0, len(s.cfg.Currencies))
	for _, code := range s.cfg.Currencies {
		if code == "KRW" || !universe.Include(code) {
			continue
		}
		eurRate, ok := payload.Rates[code]
		if !ok || eurRate <= 0 {
			continue
		}
		records = append(records, rates.RawRateRecord{
			CurrencyCode: code,
			Rate:         krwPerEUR / eurRate,
			SourceID:     s.ID(),
			ObservedAt:   observed,
			Metadata: map[string]string{
				"base_currency": "EUR",
				"date":          payload.Date,
				"via_eur":       "true",
			},
		})
	}

	return records, nil
}
