package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/krwave/ratefeed/internal/config"
	"github.com/krwave/ratefeed/internal/rates"
	"github.com/krwave/ratefeed/pkg/set"
)

// bokCountryCurrencies maps the country fragment of a BOK statistic name to
// its currency code.
var bokCountryCurrencies = map[string]string{
	"미국":   "USD",
	"일본":   "JPY",
	"유럽연합": "EUR",
	"영국":   "GBP",
	"중국":   "CNY",
}

type bokResponse struct {
	StatisticSearch struct {
		Row []struct {
			StatCode  string `json:"STAT_CODE"`
			StatName  string `json:"STAT_NAME"`
			UnitName  string `json:"UNIT_NAME"`
			DataValue string `json:"DATA_VALUE"`
		} `json:"row"`
	} `json:"StatisticSearch"`
}

// BOKSource pulls daily won rates from the Bank of Korea statistics API.
// BOK quotes KRW per unit already, so no direction correction is needed.
type BOKSource struct {
	cfg    config.SourceConfig
	client *http.Client
	now    func() time.Time
}

func NewBOKSource(cfg config.SourceConfig) *BOKSource {
	return &BOKSource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
}

func (s *BOKSource) ID() string             { return "bok" }
func (s *BOKSource) Name() string           { return s.cfg.Name }
func (s *BOKSource) Priority() int          { return s.cfg.Priority }
func (s *BOKSource) Timeout() time.Duration { return s.cfg.Timeout }

// Active requires an API key; BOK has no anonymous tier.
func (s *BOKSource) Active() bool { return s.cfg.APIKey != "" }

func (s *BOKSource) Fetch(ctx context.Context, universe set.Set[string]) ([]rates.RawRateRecord, error) {
	if s.cfg.APIKey == "" {
		return nil, rates.NewSourceError(s.ID(), fmt.Errorf("api key not configured"))
	}

	today := s.now().UTC().Format("20060102")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL, nil)
	if err != nil {
		return nil, rates.NewSourceError(s.ID(), err)
	}
	q := req.URL.Query()
	q.Set("service", "StatisticSearch")
	q.Set("authKey", s.cfg.APIKey)
	q.Set("requestType", "json")
	q.Set("language", "kr")
	q.Set("startCount", "1")
	q.Set("endCount", "10")
	q.Set("statCode", "731Y001")
	q.Set("cycleType", "DD")
	q.Set("startDate", today)
	q.Set("endDate", today)
	req.URL.RawQuery = q.Encode()

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, rates.NewSourceError(s.ID(), fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, rates.NewSourceError(s.ID(), fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var payload bokResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, rates.NewSourceError(s.ID(), fmt.Errorf("malformed payload: %w", err))
	}

	observed := s.now().UTC()
	records := make([]rates.RawRateRecord, 0, len(payload.StatisticSearch.Row))
	for _, row := range payload.StatisticSearch.Row {
		code := parseBOKCurrencyCode(row.StatName)
		if code == "" || !universe.Include(code) {
			continue
		}
		rate, err := strconv.ParseFloat(row.DataValue, 64)
		if err != nil {
			continue
		}
		records = append(records, rates.RawRateRecord{
			CurrencyCode: code,
			Rate:         rate,
			SourceID:     s.ID(),
			ObservedAt:   observed,
			Metadata: map[string]string{
				"stat_code":     row.StatCode,
				"unit":          row.UnitName,
				"original_name": row.StatName,
			},
		})
	}

	return records, nil
}

// parseBOKCurrencyCode extracts a currency code from a BOK statistic name
// such as "원/미국달러(매매기준율)".
func parseBOKCurrencyCode(statName string) string {
	for country, code := range bokCountryCurrencies {
		if strings.Contains(statName, country) {
			return code
		}
	}
	return ""
}
