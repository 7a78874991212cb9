package dataflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/dyike/forexcell/config"
	"github.com/dyike/forexcell/internal/logger"
	"github.com/dyike/forexcell/internal/metrics"
	"github.com/dyike/forexcell/models"
)

const alphaVantageProvider = "alphavantage"

// ErrTestMode is returned instead of a network call when no usable API key
// is configured.
var ErrTestMode = errors.New("alpha vantage running in test mode")

// AlphaVantageClient fetches news sentiment, macro indicators and exchange
// rates. The free tier allows few calls per day, so every request counts
// against a local budget.
type AlphaVantageClient struct {
	client     *resty.Client
	apiKey     string
	dailyLimit int
	log        zerolog.Logger

	mu    sync.Mutex
	calls int
	day   string
}

func NewAlphaVantageClient(cfg *config.Config) *AlphaVantageClient {
	client := resty.New()
	client.SetTimeout(10 * time.Second)
	client.SetHeader("User-Agent", "forexcell/1.0")
	client.SetBaseURL(cfg.AlphaVantageBaseURL)

	return &AlphaVantageClient{
		client:     client,
		apiKey:     cfg.AlphaVantageAPIKey,
		dailyLimit: cfg.AlphaVantageDailyLimit,
		log:        logger.Component("alphavantage"),
	}
}

func (c *AlphaVantageClient) Name() string { return alphaVantageProvider }

// TestMode reports whether the key is missing or an unexpanded placeholder.
func (c *AlphaVantageClient) TestMode() bool {
	return c.apiKey == "" || strings.HasPrefix(c.apiKey, "${")
}

// Usage returns the calls made today and the daily limit.
func (c *AlphaVantageClient) Usage() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.day != time.Now().Format("2006-01-02") {
		return 0, c.dailyLimit
	}
	return c.calls, c.dailyLimit
}

// LimitReached reports whether no calls are left today.
func (c *AlphaVantageClient) LimitReached() bool {
	used, limit := c.Usage()
	return used >= limit
}

func (c *AlphaVantageClient) reserve() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if today := time.Now().Format("2006-01-02"); today != c.day {
		c.day, c.calls = today, 0
	}
	if c.calls >= c.dailyLimit {
		return fmt.Errorf("alpha vantage: %w (%d/%d)", ErrDailyLimit, c.calls, c.dailyLimit)
	}
	c.calls++
	return nil
}

func (c *AlphaVantageClient) query(ctx context.Context, function string, params map[string]string) ([]byte, error) {
	if c.TestMode() {
		return nil, ErrTestMode
	}
	if err := c.reserve(); err != nil {
		return nil, err
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("function", function).
		SetQueryParams(params).
		SetQueryParam("apikey", c.apiKey).
		Get("")
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(alphaVantageProvider, function, "error").Inc()
		return nil, fmt.Errorf("alpha vantage %s request failed: %w", function, err)
	}
	if !resp.IsSuccess() {
		metrics.ProviderRequests.WithLabelValues(alphaVantageProvider, function, "error").Inc()
		return nil, fmt.Errorf("alpha vantage %s: HTTP %d", function, resp.StatusCode())
	}

	var envelope struct {
		ErrorMessage string `json:"Error Message"`
		Note         string `json:"Note"`
		Information  string `json:"Information"`
	}
	body := resp.Body()
	if err := json.Unmarshal(body, &envelope); err != nil {
		metrics.ProviderRequests.WithLabelValues(alphaVantageProvider, function, "error").Inc()
		return nil, fmt.Errorf("decode alpha vantage %s response: %w", function, err)
	}
	switch {
	case envelope.ErrorMessage != "":
		metrics.ProviderRequests.WithLabelValues(alphaVantageProvider, function, "api_error").Inc()
		return nil, &APIError{Provider: "alpha vantage", Message: envelope.ErrorMessage}
	case envelope.Note != "":
		metrics.ProviderRequests.WithLabelValues(alphaVantageProvider, function, "note").Inc()
		return nil, fmt.Errorf("%w: %s", ErrAPINote, envelope.Note)
	case envelope.Information != "":
		c.log.Info().Str("function", function).Str("information", envelope.Information).Msg("alpha vantage information")
	}
	metrics.ProviderRequests.WithLabelValues(alphaVantageProvider, function, "ok").Inc()
	return body, nil
}

type avTickerSentiment struct {
	Ticker         string `json:"ticker"`
	RelevanceScore string `json:"relevance_score"`
}

type avArticle struct {
	Title                 string              `json:"title"`
	URL                   string              `json:"url"`
	TimePublished         string              `json:"time_published"`
	Summary               string              `json:"summary"`
	Source                string              `json:"source"`
	OverallSentimentScore flexFloat           `json:"overall_sentiment_score"`
	OverallSentimentLabel string              `json:"overall_sentiment_label"`
	TickerSentiment       []avTickerSentiment `json:"ticker_sentiment"`
}

// NewsSentiment returns the latest articles for the given tickers and topics.
func (c *AlphaVantageClient) NewsSentiment(ctx context.Context, tickers, topics []string, limit int) ([]models.NewsArticle, error) {
	params := map[string]string{"sort": "LATEST"}
	if len(tickers) > 0 {
		params["tickers"] = strings.Join(tickers, ",")
	}
	if len(topics) > 0 {
		params["topics"] = strings.Join(topics, ",")
	}
	if limit > 0 {
		params["limit"] = fmt.Sprint(limit)
	}

	body, err := c.query(ctx, "NEWS_SENTIMENT", params)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Feed []avArticle `json:"feed"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode news feed: %w", err)
	}

	articles := make([]models.NewsArticle, 0, len(raw.Feed))
	for _, a := range raw.Feed {
		published, _ := ParseDateString(a.TimePublished)
		relevance := "0"
		if len(a.TickerSentiment) > 0 {
			relevance = a.TickerSentiment[0].RelevanceScore
		}
		articles = append(articles, models.NewsArticle{
			Title:          a.Title,
			Summary:        a.Summary,
			URL:            a.URL,
			Source:         a.Source,
			PublishedAt:    published,
			SentimentScore: float64(a.OverallSentimentScore),
			SentimentLabel: a.OverallSentimentLabel,
			RelevanceScore: relevance,
		})
	}
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return articles, nil
}

// IndicatorPoint is one observation of a macro series.
type IndicatorPoint struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

// IndicatorSeries is a macro series, newest observation first.
type IndicatorSeries struct {
	Name     string           `json:"name"`
	Interval string           `json:"interval"`
	Unit     string           `json:"unit"`
	Data     []IndicatorPoint `json:"data"`
}

// EconomicIndicator fetches a macro series such as CPI or UNEMPLOYMENT.
// interval may be empty for functions that do not take one.
func (c *AlphaVantageClient) EconomicIndicator(ctx context.Context, function, interval string) (*IndicatorSeries, error) {
	params := map[string]string{}
	if interval != "" {
		params["interval"] = interval
	}
	body, err := c.query(ctx, function, params)
	if err != nil {
		return nil, err
	}
	var series IndicatorSeries
	if err := json.Unmarshal(body, &series); err != nil {
		return nil, fmt.Errorf("decode %s: %w", function, err)
	}
	return &series, nil
}

// ExchangeRate fetches the realtime rate between two currencies.
func (c *AlphaVantageClient) ExchangeRate(ctx context.Context, from, to string) (*models.Quote, error) {
	body, err := c.query(ctx, "CURRENCY_EXCHANGE_RATE", map[string]string{
		"from_currency": strings.ToUpper(from),
		"to_currency":   strings.ToUpper(to),
	})
	if err != nil {
		return nil, err
	}
	var raw struct {
		Rate *struct {
			From          string    `json:"1. From_Currency Code"`
			To            string    `json:"3. To_Currency Code"`
			ExchangeRate  flexFloat `json:"5. Exchange Rate"`
			LastRefreshed string    `json:"6. Last Refreshed"`
			TimeZone      string    `json:"7. Time Zone"`
		} `json:"Realtime Currency Exchange Rate"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode exchange rate: %w", err)
	}
	if raw.Rate == nil {
		return nil, fmt.Errorf("alpha vantage returned no exchange rate for %s/%s", from, to)
	}
	return &models.Quote{
		Symbol:       raw.Rate.From + "/" + raw.Rate.To,
		FromCurrency: raw.Rate.From,
		ToCurrency:   raw.Rate.To,
		ExchangeRate: float64(raw.Rate.ExchangeRate),
		Timestamp:    raw.Rate.LastRefreshed,
		TimeZone:     raw.Rate.TimeZone,
	}, nil
}
