package dataflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/dyike/forexcell/config"
	"github.com/dyike/forexcell/internal/logger"
	"github.com/dyike/forexcell/internal/metrics"
	"github.com/dyike/forexcell/models"
)

const twelveDataProvider = "twelvedata"

var intervalAliases = map[string]string{
	"1m": "1min", "1min": "1min",
	"5m": "5min", "5min": "5min",
	"15m": "15min", "15min": "15min",
	"30m": "30min", "30min": "30min",
	"45m": "45min", "45min": "45min",
	"1h": "1h", "2h": "2h", "4h": "4h",
	"1d": "1day", "1day": "1day",
	"1w": "1week", "1week": "1week",
	"1mo": "1month", "1month": "1month",
}

// NormalizeInterval maps short interval names (1m, 1d, 1w) to the names
// Twelve Data expects.
func NormalizeInterval(interval string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(interval))
	if v, ok := intervalAliases[key]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unsupported interval %q", interval)
}

// TwelveDataClient talks to the Twelve Data REST API. Requests are spaced by
// the configured minimum interval and counted against a daily budget that
// resets at local midnight.
type TwelveDataClient struct {
	client      *resty.Client
	apiKey      string
	minInterval time.Duration
	dailyLimit  int
	backoff     time.Duration
	log         zerolog.Logger

	mu            sync.Mutex
	lastRequest   time.Time
	requestsToday int
	day           string
	now           func() time.Time
}

func NewTwelveDataClient(cfg *config.Config) *TwelveDataClient {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.TwelveDataBaseURL, "/"))
	client.SetTimeout(15 * time.Second)
	client.SetHeader("User-Agent", "forexcell/1.0")

	return &TwelveDataClient{
		client:      client,
		apiKey:      cfg.TwelveDataAPIKey,
		minInterval: cfg.RequestInterval(),
		dailyLimit:  cfg.MaxDailyRequests,
		backoff:     cfg.RateLimitWait(),
		log:         logger.Component("twelvedata"),
		now:         time.Now,
	}
}

func (c *TwelveDataClient) Name() string { return twelveDataProvider }

// reserve blocks until the next request may be sent and counts it.
func (c *TwelveDataClient) reserve(ctx context.Context) error {
	c.mu.Lock()
	now := c.now()
	if today := now.Format("2006-01-02"); today != c.day {
		c.day = today
		c.requestsToday = 0
	}
	if c.requestsToday >= c.dailyLimit {
		c.mu.Unlock()
		return fmt.Errorf("%w (%d/%d)", ErrDailyLimit, c.requestsToday, c.dailyLimit)
	}
	wait := time.Duration(0)
	if !c.lastRequest.IsZero() {
		wait = c.minInterval - now.Sub(c.lastRequest)
	}
	// claim the slot before sleeping so concurrent callers queue behind us
	c.lastRequest = now.Add(max(wait, 0))
	c.requestsToday++
	c.mu.Unlock()

	if wait > 0 {
		c.log.Debug().Dur("wait", wait).Msg("throttling request")
		return sleepCtx(ctx, wait)
	}
	return nil
}

type twelveDataStatus struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func isRateLimitMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "rate limit") || strings.Contains(m, "api credits")
}

// get issues a GET request and decodes the body into out. A rate-limit answer
// waits for the backoff and is retried once.
func (c *TwelveDataClient) get(ctx context.Context, endpoint string, params map[string]string, out any) error {
	for attempt := 0; ; attempt++ {
		if err := c.reserve(ctx); err != nil {
			return err
		}

		resp, err := c.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			SetQueryParam("apikey", c.apiKey).
			Get(endpoint)
		if err != nil {
			metrics.ProviderRequests.WithLabelValues(twelveDataProvider, endpoint, "error").Inc()
			return fmt.Errorf("twelve data %s request failed: %w", endpoint, err)
		}

		rateLimited := resp.StatusCode() == http.StatusTooManyRequests
		var status twelveDataStatus
		if !rateLimited {
			if err := json.Unmarshal(resp.Body(), &status); err != nil && resp.IsSuccess() {
				metrics.ProviderRequests.WithLabelValues(twelveDataProvider, endpoint, "error").Inc()
				return fmt.Errorf("decode twelve data %s response: %w", endpoint, err)
			}
			if status.Status == "error" || (status.Code != 0 && status.Code != http.StatusOK) {
				rateLimited = status.Code == http.StatusTooManyRequests || isRateLimitMessage(status.Message)
				if !rateLimited {
					metrics.ProviderRequests.WithLabelValues(twelveDataProvider, endpoint, "api_error").Inc()
					return &APIError{Provider: "twelve data", Code: status.Code, Message: status.Message}
				}
			}
		}

		if rateLimited {
			metrics.ProviderRequests.WithLabelValues(twelveDataProvider, endpoint, "rate_limited").Inc()
			if attempt > 0 {
				return fmt.Errorf("%s: %w", endpoint, ErrRateLimited)
			}
			c.log.Warn().Str("endpoint", endpoint).Dur("backoff", c.backoff).Msg("rate limited, backing off")
			if err := sleepCtx(ctx, c.backoff); err != nil {
				return err
			}
			continue
		}

		if !resp.IsSuccess() {
			metrics.ProviderRequests.WithLabelValues(twelveDataProvider, endpoint, "error").Inc()
			return fmt.Errorf("twelve data %s: HTTP %d", endpoint, resp.StatusCode())
		}
		metrics.ProviderRequests.WithLabelValues(twelveDataProvider, endpoint, "ok").Inc()
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode twelve data %s response: %w", endpoint, err)
		}
		return nil
	}
}

type twelveDataQuote struct {
	Symbol        string     `json:"symbol"`
	Datetime      string     `json:"datetime"`
	Timestamp     int64      `json:"timestamp"`
	Open          flexFloat  `json:"open"`
	High          flexFloat  `json:"high"`
	Low           flexFloat  `json:"low"`
	Close         *flexFloat `json:"close"`
	Volume        flexFloat  `json:"volume"`
	PreviousClose flexFloat  `json:"previous_close"`
	Change        flexFloat  `json:"change"`
	PercentChange flexFloat  `json:"percent_change"`
}

// Quote fetches the latest quote for pair.
func (c *TwelveDataClient) Quote(ctx context.Context, pair string) (*models.Quote, error) {
	from, to, err := models.SplitPair(pair)
	if err != nil {
		return nil, err
	}
	symbol := from + "/" + to

	var raw twelveDataQuote
	if err := c.get(ctx, "/quote", map[string]string{"symbol": symbol}, &raw); err != nil {
		return nil, err
	}
	if raw.Close == nil {
		return nil, fmt.Errorf("twelve data quote for %s has no close price", symbol)
	}

	ts := raw.Datetime
	if raw.Timestamp > 0 {
		ts = time.Unix(raw.Timestamp, 0).UTC().Format(time.RFC3339)
	}
	return &models.Quote{
		Symbol:        symbol,
		FromCurrency:  from,
		ToCurrency:    to,
		ExchangeRate:  float64(*raw.Close),
		Open:          float64(raw.Open),
		High:          float64(raw.High),
		Low:           float64(raw.Low),
		PreviousClose: float64(raw.PreviousClose),
		Change:        float64(raw.Change),
		PercentChange: float64(raw.PercentChange),
		Volume:        int64(raw.Volume),
		Timestamp:     ts,
		TimeZone:      "UTC",
	}, nil
}

type twelveDataBar struct {
	Datetime string    `json:"datetime"`
	Open     flexFloat `json:"open"`
	High     flexFloat `json:"high"`
	Low      flexFloat `json:"low"`
	Close    flexFloat `json:"close"`
	Volume   flexFloat `json:"volume"`
}

// TimeSeries fetches up to size bars, returned in ascending time order.
func (c *TwelveDataClient) TimeSeries(ctx context.Context, pair, interval string, size int) (*models.Series, error) {
	symbol, err := models.NormalizePair(pair)
	if err != nil {
		return nil, err
	}
	tdInterval, err := NormalizeInterval(interval)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 100
	}
	size = min(size, 5000)

	var raw struct {
		Values  []twelveDataBar `json:"values"`
		Message string          `json:"message"`
	}
	params := map[string]string{
		"symbol":     symbol,
		"interval":   tdInterval,
		"outputsize": fmt.Sprint(size),
		"timezone":   "UTC",
	}
	if err := c.get(ctx, "/time_series", params, &raw); err != nil {
		return nil, err
	}
	if raw.Values == nil {
		msg := raw.Message
		if msg == "" {
			msg = "no values in response"
		}
		return nil, &APIError{Provider: "twelve data", Message: msg}
	}

	series := &models.Series{Symbol: symbol, Interval: tdInterval}
	for _, v := range raw.Values {
		ts, err := ParseDateString(v.Datetime)
		if err != nil {
			c.log.Debug().Str("datetime", v.Datetime).Msg("skipping bar with bad datetime")
			continue
		}
		series.Candles = append(series.Candles, models.Candle{
			Symbol:   symbol,
			Datetime: ts,
			Open:     float64(v.Open),
			High:     float64(v.High),
			Low:      float64(v.Low),
			Close:    float64(v.Close),
			Volume:   int64(v.Volume),
		})
	}
	sort.Slice(series.Candles, func(i, j int) bool {
		return series.Candles[i].Datetime.Before(series.Candles[j].Datetime)
	})
	series.Summary = Summarize(series.Candles)
	return series, nil
}

// Price fetches the latest traded price only.
func (c *TwelveDataClient) Price(ctx context.Context, pair string) (float64, error) {
	symbol, err := models.NormalizePair(pair)
	if err != nil {
		return 0, err
	}
	var raw struct {
		Price *flexFloat `json:"price"`
	}
	if err := c.get(ctx, "/price", map[string]string{"symbol": symbol}, &raw); err != nil {
		return 0, err
	}
	if raw.Price == nil {
		return 0, fmt.Errorf("twelve data price for %s missing", symbol)
	}
	return float64(*raw.Price), nil
}

// SymbolMatch is one symbol_search hit.
type SymbolMatch struct {
	Symbol         string `json:"symbol"`
	InstrumentName string `json:"instrument_name"`
	Exchange       string `json:"exchange"`
	InstrumentType string `json:"instrument_type"`
	Country        string `json:"country"`
	Currency       string `json:"currency"`
}

// SymbolSearch looks up instruments matching query.
func (c *TwelveDataClient) SymbolSearch(ctx context.Context, query string, limit int) ([]SymbolMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query cannot be empty")
	}
	if limit <= 0 {
		limit = 10
	}
	var raw struct {
		Data []SymbolMatch `json:"data"`
	}
	params := map[string]string{"symbol": query, "outputsize": fmt.Sprint(limit)}
	if err := c.get(ctx, "/symbol_search", params, &raw); err != nil {
		return nil, err
	}
	if len(raw.Data) > limit {
		raw.Data = raw.Data[:limit]
	}
	return raw.Data, nil
}

// Usage reports the request budget.
func (c *TwelveDataClient) Usage() (used, limit int, last time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.day != c.now().Format("2006-01-02") {
		return 0, c.dailyLimit, c.lastRequest
	}
	return c.requestsToday, c.dailyLimit, c.lastRequest
}

// Summarize computes the record count, date range and price statistics of
// candles. The standard deviation is the sample deviation.
func Summarize(candles []models.Candle) models.SeriesSummary {
	sum := models.SeriesSummary{RecordCount: len(candles)}
	if len(candles) == 0 {
		return sum
	}
	sum.DateRange = models.DateRange{
		Start: candles[0].Datetime.Format("2006-01-02 15:04:05"),
		End:   candles[len(candles)-1].Datetime.Format("2006-01-02 15:04:05"),
	}
	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = float64(c.Volume)
	}
	mean, std := stat.MeanStdDev(closes, nil)
	if len(candles) < 2 {
		std = 0
	}
	sum.PriceStats = models.PriceStats{
		CloseMean:  mean,
		CloseStd:   std,
		VolumeMean: stat.Mean(volumes, nil),
	}
	return sum
}
