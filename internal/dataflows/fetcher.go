package dataflows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyike/forexcell/config"
	"github.com/dyike/forexcell/internal/cache"
	"github.com/dyike/forexcell/internal/logger"
	"github.com/dyike/forexcell/internal/metrics"
	"github.com/dyike/forexcell/models"
)

// Data types accepted by Fetch.
const (
	DataRealtime   = "realtime"
	DataHistorical = "historical"
	DataIntraday   = "intraday"
)

// SupportedIntervals are the timeframes advertised to agents.
var SupportedIntervals = []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d"}

// MarketProvider is a source of quotes and bars.
type MarketProvider interface {
	Name() string
	Quote(ctx context.Context, pair string) (*models.Quote, error)
	TimeSeries(ctx context.Context, pair, interval string, size int) (*models.Series, error)
}

// RateSource is the last quote source tried, keyed by currency codes.
type RateSource interface {
	Name() string
	ExchangeRate(ctx context.Context, from, to string) (*models.Quote, error)
}

type usageReporter interface {
	Usage() (used, limit int, last time.Time)
}

type pricer interface {
	Price(ctx context.Context, pair string) (float64, error)
}

type symbolSearcher interface {
	SymbolSearch(ctx context.Context, query string, limit int) ([]SymbolMatch, error)
}

// FetchRequest describes one market data request.
type FetchRequest struct {
	Pair       string `json:"currency_pair"`
	DataType   string `json:"data_type"`
	Interval   string `json:"interval"`
	OutputSize int    `json:"output_size"`
}

// DataFetcher serves market data from a primary provider, falling back to a
// secondary provider and then to the newest CSV snapshot on disk.
type DataFetcher struct {
	primary         MarketProvider
	fallback        MarketProvider
	rates           RateSource
	cache           *cache.MarketCache
	store           *cache.SeriesStore
	defaultInterval string
	supportedPairs  []string
	minInterval     time.Duration
	log             zerolog.Logger
}

type FetcherOption func(*DataFetcher)

func WithPrimary(p MarketProvider) FetcherOption {
	return func(f *DataFetcher) { f.primary = p }
}

// WithFallback sets the provider used when the primary fails. nil disables it.
func WithFallback(p MarketProvider) FetcherOption {
	return func(f *DataFetcher) { f.fallback = p }
}

// WithRateSource sets the exchange rate source used when every quote
// provider fails. nil disables it.
func WithRateSource(r RateSource) FetcherOption {
	return func(f *DataFetcher) { f.rates = r }
}

func WithSeriesStore(s *cache.SeriesStore) FetcherOption {
	return func(f *DataFetcher) { f.store = s }
}

// NewDataFetcher wires the providers selected by cfg. c may be nil.
func NewDataFetcher(cfg *config.Config, c *cache.MarketCache, opts ...FetcherOption) *DataFetcher {
	f := &DataFetcher{
		cache:           c,
		store:           cache.NewSeriesStore(cfg.DataDir),
		defaultInterval: cfg.DefaultTimeframe,
		supportedPairs:  cfg.SupportedPairs,
		minInterval:     cfg.RequestInterval(),
		log:             logger.Component("data_fetcher"),
	}
	if strings.EqualFold(cfg.MarketDataProvider, yahooProvider) {
		f.primary = NewYahooClient()
	} else {
		f.primary = NewTwelveDataClient(cfg)
		f.fallback = NewYahooClient()
	}
	if av := NewAlphaVantageClient(cfg); !av.TestMode() {
		f.rates = av
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.defaultInterval == "" {
		f.defaultInterval = "1h"
	}
	return f
}

// Fetch retrieves the requested data. Intraday requests are historical
// requests relabeled.
func (f *DataFetcher) Fetch(ctx context.Context, req FetchRequest) (*models.FetchResult, error) {
	pair, err := models.NormalizePair(req.Pair)
	if err != nil {
		return nil, err
	}
	dataType := strings.ToLower(strings.TrimSpace(req.DataType))
	if dataType == "" {
		dataType = DataRealtime
	}
	interval := req.Interval
	if interval == "" {
		interval = f.defaultInterval
	}
	size := req.OutputSize
	if size <= 0 {
		size = 100
	}

	switch dataType {
	case DataRealtime:
		return f.realtime(ctx, pair)
	case DataHistorical, DataIntraday:
		res, err := f.historical(ctx, pair, interval, size)
		if err != nil {
			return nil, err
		}
		out := *res
		out.DataType = dataType
		return &out, nil
	default:
		return nil, fmt.Errorf("unsupported data type %q", req.DataType)
	}
}

func (f *DataFetcher) realtime(ctx context.Context, pair string) (*models.FetchResult, error) {
	key := cache.Key("quote", pair)
	if v, ok := f.cache.Get(key); ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		res := *v.(*models.FetchResult)
		res.Metadata = withCacheHit(res.Metadata)
		return &res, nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	q, source, err := f.quoteWithFallback(ctx, pair)
	if err != nil {
		return nil, err
	}
	res := &models.FetchResult{
		Success:      true,
		DataType:     DataRealtime,
		CurrencyPair: pair,
		Quote:        q,
		Metadata:     f.metadata(source),
	}
	f.cache.Set(key, res)
	return res, nil
}

func (f *DataFetcher) quoteWithFallback(ctx context.Context, pair string) (*models.Quote, string, error) {
	q, err := f.primary.Quote(ctx, pair)
	if err == nil {
		return q, f.primary.Name(), nil
	}
	errs := []error{err}
	if f.fallback != nil && ctx.Err() == nil {
		f.log.Warn().Err(err).Str("pair", pair).Str("fallback", f.fallback.Name()).Msg("primary quote failed")
		q, ferr := f.fallback.Quote(ctx, pair)
		if ferr == nil {
			return q, f.fallback.Name(), nil
		}
		errs = append(errs, ferr)
	}
	if f.rates != nil && ctx.Err() == nil {
		f.log.Warn().Str("pair", pair).Str("fallback", f.rates.Name()).Msg("quote providers failed, trying exchange rate")
		base, quote, _ := strings.Cut(pair, "/")
		q, rerr := f.rates.ExchangeRate(ctx, base, quote)
		if rerr == nil {
			return q, f.rates.Name(), nil
		}
		errs = append(errs, rerr)
	}
	if len(errs) == 1 {
		return nil, "", err
	}
	return nil, "", errors.Join(errs...)
}

// PriceResult is a latest price lookup.
type PriceResult struct {
	CurrencyPair string  `json:"currency_pair"`
	Price        float64 `json:"price"`
	Source       string  `json:"source"`
	RetrievedAt  string  `json:"retrieved_at"`
}

// Price returns the latest price of pair. Providers without a price
// endpoint answer from a full quote.
func (f *DataFetcher) Price(ctx context.Context, pair string) (*PriceResult, error) {
	pair, err := models.NormalizePair(pair)
	if err != nil {
		return nil, err
	}
	res := &PriceResult{CurrencyPair: pair, RetrievedAt: time.Now().Format(time.RFC3339)}
	if p, ok := f.primary.(pricer); ok {
		price, err := p.Price(ctx, pair)
		if err == nil {
			res.Price, res.Source = price, f.primary.Name()
			return res, nil
		}
		f.log.Warn().Err(err).Str("pair", pair).Msg("price endpoint failed")
	}
	q, source, err := f.quoteWithFallback(ctx, pair)
	if err != nil {
		return nil, err
	}
	res.Price, res.Source = q.ExchangeRate, source
	return res, nil
}

// SearchSymbols looks up instruments on the primary provider.
func (f *DataFetcher) SearchSymbols(ctx context.Context, query string, limit int) ([]SymbolMatch, error) {
	s, ok := f.primary.(symbolSearcher)
	if !ok {
		return nil, fmt.Errorf("%s does not support symbol search", f.primary.Name())
	}
	return s.SymbolSearch(ctx, query, limit)
}

func (f *DataFetcher) historical(ctx context.Context, pair, interval string, size int) (*models.FetchResult, error) {
	key := cache.Key("series", pair, interval, size)
	if v, ok := f.cache.Get(key); ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		res := *v.(*models.FetchResult)
		res.Metadata = withCacheHit(res.Metadata)
		return &res, nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	series, source, err := f.seriesWithFallback(ctx, pair, interval, size)
	if err != nil {
		snapshot, at, serr := f.snapshot(pair, interval)
		if serr != nil {
			return nil, err
		}
		f.log.Warn().Err(err).Str("pair", pair).Time("snapshot", at).Msg("serving stale snapshot")
		snapshot.Summary = Summarize(snapshot.Candles)
		meta := f.metadata("csv_snapshot")
		meta["stale"] = true
		meta["snapshot_time"] = at.Format(time.RFC3339)
		meta["provider_error"] = err.Error()
		return seriesResult(pair, snapshot, meta), nil
	}

	if f.store != nil {
		if path, werr := f.store.Write(series); werr != nil {
			f.log.Debug().Err(werr).Msg("snapshot write failed")
		} else {
			f.log.Debug().Str("path", path).Msg("snapshot written")
		}
	}
	res := seriesResult(pair, series, f.metadata(source))
	f.cache.Set(key, res)
	return res, nil
}

func (f *DataFetcher) seriesWithFallback(ctx context.Context, pair, interval string, size int) (*models.Series, string, error) {
	s, err := f.primary.TimeSeries(ctx, pair, interval, size)
	if err == nil {
		return s, f.primary.Name(), nil
	}
	if f.fallback == nil || ctx.Err() != nil {
		return nil, "", err
	}
	f.log.Warn().Err(err).Str("pair", pair).Str("fallback", f.fallback.Name()).Msg("primary time series failed")
	s, ferr := f.fallback.TimeSeries(ctx, pair, interval, size)
	if ferr != nil {
		return nil, "", errors.Join(err, ferr)
	}
	return s, f.fallback.Name(), nil
}

func (f *DataFetcher) snapshot(pair, interval string) (*models.Series, time.Time, error) {
	if f.store == nil {
		return nil, time.Time{}, errors.New("no snapshot store")
	}
	norm, err := NormalizeInterval(interval)
	if err != nil {
		return nil, time.Time{}, err
	}
	return f.store.Latest(pair, norm, 1)
}

func seriesResult(pair string, s *models.Series, meta map[string]any) *models.FetchResult {
	summary := s.Summary
	return &models.FetchResult{
		Success:      true,
		DataType:     DataHistorical,
		CurrencyPair: pair,
		Interval:     s.Interval,
		Series:       s,
		Summary:      &summary,
		Metadata:     meta,
	}
}

func (f *DataFetcher) metadata(source string) map[string]any {
	used, _, _ := f.usage()
	return map[string]any{
		"source":            source,
		"retrieved_at":      time.Now().Format(time.RFC3339),
		"api_requests_used": used,
	}
}

func withCacheHit(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out["cache_hit"] = true
	return out
}

// BatchFetch runs each request in order. Failed requests produce an
// unsuccessful envelope instead of aborting the batch.
func (f *DataFetcher) BatchFetch(ctx context.Context, reqs []FetchRequest) []*models.FetchResult {
	out := make([]*models.FetchResult, 0, len(reqs))
	for _, req := range reqs {
		res, err := f.Fetch(ctx, req)
		if err != nil {
			res = &models.FetchResult{
				Success:      false,
				DataType:     req.DataType,
				CurrencyPair: req.Pair,
				Error:        err.Error(),
			}
		}
		out = append(out, res)
	}
	return out
}

func (f *DataFetcher) usage() (int, int, time.Time) {
	if u, ok := f.primary.(usageReporter); ok {
		return u.Usage()
	}
	return 0, 0, time.Time{}
}

// UsageStats reports the request budget of the primary provider.
type UsageStats struct {
	Provider       string         `json:"provider"`
	RequestsToday  int            `json:"requests_today"`
	DailyLimit     int            `json:"daily_limit"`
	Remaining      int            `json:"remaining"`
	LastRequest    string         `json:"last_request_time"`
	MinInterval    float64        `json:"min_interval"`
	CacheEnabled   bool           `json:"cache_enabled"`
	Cache          map[string]any `json:"cache"`
	SupportedPairs []string       `json:"supported_pairs"`
}

func (f *DataFetcher) UsageStats() UsageStats {
	used, limit, last := f.usage()
	lastText := "never"
	if !last.IsZero() {
		lastText = last.Format("2006-01-02 15:04:05")
	}
	return UsageStats{
		Provider:       f.primary.Name(),
		RequestsToday:  used,
		DailyLimit:     limit,
		Remaining:      max(limit-used, 0),
		LastRequest:    lastText,
		MinInterval:    f.minInterval.Seconds(),
		CacheEnabled:   f.cache.Enabled(),
		Cache:          f.cache.Stats(),
		SupportedPairs: f.supportedPairs,
	}
}

type HealthStatus struct {
	Success      bool   `json:"success"`
	Status       string `json:"status"`
	APIConnected bool   `json:"api_connected"`
	RequestsUsed int    `json:"api_requests_used"`
	Message      string `json:"message"`
}

// HealthCheck fetches a EUR/USD quote, bypassing the cache.
func (f *DataFetcher) HealthCheck(ctx context.Context) HealthStatus {
	_, _, err := f.quoteWithFallback(ctx, "EUR/USD")
	used, _, _ := f.usage()
	if err != nil {
		return HealthStatus{Success: true, Status: "degraded", RequestsUsed: used, Message: err.Error()}
	}
	return HealthStatus{Success: true, Status: "healthy", APIConnected: true, RequestsUsed: used, Message: "market data provider reachable"}
}

// Capabilities describes what Fetch accepts.
func (f *DataFetcher) Capabilities() map[string]any {
	return map[string]any{
		"capabilities": []string{
			"fetch_realtime_data",
			"fetch_historical_data",
			"fetch_intraday_data",
			"batch_fetch",
			"latest_price",
			"symbol_search",
			"health_check",
			"usage_stats",
		},
		"supported_data_types": []string{DataRealtime, DataHistorical, DataIntraday},
		"supported_intervals":  SupportedIntervals,
		"supported_pairs":      f.supportedPairs,
		"input_parameters": map[string]string{
			"currency_pair": "string (e.g., EUR/USD)",
			"data_type":     "string (realtime/historical/intraday)",
			"interval":      "string (timeframe)",
			"output_size":   "integer",
		},
	}
}
