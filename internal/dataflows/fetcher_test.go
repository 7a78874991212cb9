package dataflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dyike/forexcell/config"
	"github.com/dyike/forexcell/internal/cache"
	"github.com/dyike/forexcell/models"
)

type fakeProvider struct {
	name       string
	err        error
	quoteCalls int
	seriesCall int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Quote(ctx context.Context, pair string) (*models.Quote, error) {
	p.quoteCalls++
	if p.err != nil {
		return nil, p.err
	}
	return &models.Quote{Symbol: pair, ExchangeRate: 1.1}, nil
}

func (p *fakeProvider) TimeSeries(ctx context.Context, pair, interval string, size int) (*models.Series, error) {
	p.seriesCall++
	if p.err != nil {
		return nil, p.err
	}
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, size)
	for i := range candles {
		price := 1.1 + float64(i)*0.001
		candles[i] = models.Candle{
			Symbol:   pair,
			Datetime: start.Add(time.Duration(i) * time.Hour),
			Open:     price,
			High:     price + 0.002,
			Low:      price - 0.002,
			Close:    price,
		}
	}
	return &models.Series{Symbol: pair, Interval: "1h", Candles: candles, Summary: Summarize(candles)}, nil
}

type pricedProvider struct {
	fakeProvider
	price    float64
	priceErr error
	matches  []SymbolMatch
}

func (p *pricedProvider) Price(ctx context.Context, pair string) (float64, error) {
	if p.priceErr != nil {
		return 0, p.priceErr
	}
	return p.price, nil
}

func (p *pricedProvider) SymbolSearch(ctx context.Context, query string, limit int) ([]SymbolMatch, error) {
	return p.matches, nil
}

type fakeRates struct {
	from, to string
	err      error
}

func (r *fakeRates) Name() string { return "rates" }

func (r *fakeRates) ExchangeRate(_ context.Context, from, to string) (*models.Quote, error) {
	r.from, r.to = from, to
	if r.err != nil {
		return nil, r.err
	}
	return &models.Quote{Symbol: from + "/" + to, ExchangeRate: 1.2345}, nil
}

func newTestFetcher(t *testing.T, primary, fallback MarketProvider, c *cache.MarketCache) (*DataFetcher, *config.Config) {
	t.Helper()
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	f := NewDataFetcher(cfg, c, WithPrimary(primary), WithFallback(fallback))
	return f, cfg
}

func TestFetchRealtime(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	f, _ := newTestFetcher(t, primary, nil, nil)

	res, err := f.Fetch(context.Background(), FetchRequest{Pair: "eur/usd"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !res.Success || res.DataType != DataRealtime || res.CurrencyPair != "EUR/USD" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Quote == nil || res.Quote.ExchangeRate != 1.1 {
		t.Fatalf("missing quote")
	}
	if res.Metadata["source"] != "primary" {
		t.Fatalf("source = %v", res.Metadata["source"])
	}
}

func TestFetchIntradayIsRelabeledHistorical(t *testing.T) {
	f, _ := newTestFetcher(t, &fakeProvider{name: "primary"}, nil, nil)

	res, err := f.Fetch(context.Background(), FetchRequest{Pair: "GBP/USD", DataType: "intraday", Interval: "1h", OutputSize: 40})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.DataType != DataIntraday {
		t.Fatalf("data type = %q", res.DataType)
	}
	if res.Series == nil || len(res.Series.Candles) != 40 || res.Summary.RecordCount != 40 {
		t.Fatalf("unexpected series in %+v", res)
	}
}

func TestFetchUsesFallbackProvider(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("boom")}
	fallback := &fakeProvider{name: "backup"}
	f, _ := newTestFetcher(t, primary, fallback, nil)

	res, err := f.Fetch(context.Background(), FetchRequest{Pair: "USD/JPY", DataType: DataHistorical, OutputSize: 30})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Metadata["source"] != "backup" || fallback.seriesCall != 1 {
		t.Fatalf("fallback not used: %+v", res.Metadata)
	}
}

func TestFetchServesStaleSnapshot(t *testing.T) {
	good := &fakeProvider{name: "primary"}
	f, _ := newTestFetcher(t, good, nil, nil)
	if _, err := f.Fetch(context.Background(), FetchRequest{Pair: "EUR/USD", DataType: DataHistorical, Interval: "1h", OutputSize: 35}); err != nil {
		t.Fatalf("seed fetch: %v", err)
	}

	good.err = errors.New("provider down")
	res, err := f.Fetch(context.Background(), FetchRequest{Pair: "EUR/USD", DataType: DataHistorical, Interval: "1h", OutputSize: 35})
	if err != nil {
		t.Fatalf("expected snapshot fallback, got %v", err)
	}
	if res.Metadata["stale"] != true || res.Metadata["source"] != "csv_snapshot" {
		t.Fatalf("unexpected metadata %+v", res.Metadata)
	}
	if len(res.Series.Candles) != 35 {
		t.Fatalf("snapshot has %d candles", len(res.Series.Candles))
	}
}

func TestFetchCachesResults(t *testing.T) {
	c, err := cache.New(100, time.Minute, true)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	defer c.Close()

	primary := &fakeProvider{name: "primary"}
	f, _ := newTestFetcher(t, primary, nil, c)
	req := FetchRequest{Pair: "EUR/USD"}
	if _, err := f.Fetch(context.Background(), req); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	c.Wait()
	res, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if primary.quoteCalls != 1 {
		t.Fatalf("expected 1 provider call, got %d", primary.quoteCalls)
	}
	if res.Metadata["cache_hit"] != true {
		t.Fatalf("expected cache_hit metadata")
	}
}

func TestFetchRejectsBadInput(t *testing.T) {
	f, _ := newTestFetcher(t, &fakeProvider{name: "primary"}, nil, nil)
	if _, err := f.Fetch(context.Background(), FetchRequest{Pair: "EURO"}); err == nil {
		t.Fatalf("expected invalid pair error")
	}
	if _, err := f.Fetch(context.Background(), FetchRequest{Pair: "EUR/USD", DataType: "weekly"}); err == nil {
		t.Fatalf("expected unsupported data type error")
	}
}

func TestBatchFetchKeepsFailures(t *testing.T) {
	f, _ := newTestFetcher(t, &fakeProvider{name: "primary"}, nil, nil)
	results := f.BatchFetch(context.Background(), []FetchRequest{
		{Pair: "EUR/USD"},
		{Pair: "bad"},
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Success || results[1].Success || results[1].Error == "" {
		t.Fatalf("unexpected batch results %+v %+v", results[0], results[1])
	}
}

func TestHealthCheckDegraded(t *testing.T) {
	f, _ := newTestFetcher(t, &fakeProvider{name: "primary", err: errors.New("down")}, nil, nil)
	h := f.HealthCheck(context.Background())
	if h.Status != "degraded" || h.APIConnected {
		t.Fatalf("unexpected health %+v", h)
	}
}

func TestPricePrefersPriceEndpoint(t *testing.T) {
	primary := &pricedProvider{fakeProvider: fakeProvider{name: "primary"}, price: 1.0842}
	f, _ := newTestFetcher(t, primary, nil, nil)

	p, err := f.Price(context.Background(), "eur/usd")
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if p.CurrencyPair != "EUR/USD" || p.Price != 1.0842 || p.Source != "primary" || primary.quoteCalls != 0 {
		t.Fatalf("unexpected price %+v (quote calls %d)", p, primary.quoteCalls)
	}

	primary.priceErr = errors.New("no price")
	p, err = f.Price(context.Background(), "EUR/USD")
	if err != nil {
		t.Fatalf("Price after endpoint failure: %v", err)
	}
	if p.Price != 1.1 || primary.quoteCalls != 1 {
		t.Fatalf("expected quote fallback, got %+v", p)
	}

	if _, err := f.Price(context.Background(), "EURUSDX"); err == nil {
		t.Fatal("expected error for a malformed pair")
	}
}

func TestPriceFromQuoteOnlyProvider(t *testing.T) {
	f, _ := newTestFetcher(t, &fakeProvider{name: "primary"}, nil, nil)
	p, err := f.Price(context.Background(), "USD/CHF")
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if p.Price != 1.1 || p.Source != "primary" {
		t.Fatalf("unexpected price %+v", p)
	}
}

func TestQuoteFallsBackToRateSource(t *testing.T) {
	down := errors.New("down")
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	rates := &fakeRates{}
	f := NewDataFetcher(cfg, nil,
		WithPrimary(&fakeProvider{name: "primary", err: down}),
		WithFallback(&fakeProvider{name: "backup", err: errors.New("also down")}),
		WithRateSource(rates))

	res, err := f.Fetch(context.Background(), FetchRequest{Pair: "eur/usd"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Metadata["source"] != "rates" || res.Quote.ExchangeRate != 1.2345 {
		t.Fatalf("unexpected result %+v", res.Metadata)
	}
	if rates.from != "EUR" || rates.to != "USD" {
		t.Fatalf("rate source got %s/%s", rates.from, rates.to)
	}

	rates.err = errors.New("no rate")
	if _, err := f.Fetch(context.Background(), FetchRequest{Pair: "GBP/USD"}); !errors.Is(err, down) {
		t.Fatalf("expected joined provider errors, got %v", err)
	}
}

func TestSearchSymbolsNeedsSupport(t *testing.T) {
	primary := &pricedProvider{
		fakeProvider: fakeProvider{name: "primary"},
		matches:      []SymbolMatch{{Symbol: "AUD/USD"}},
	}
	f, _ := newTestFetcher(t, primary, nil, nil)
	matches, err := f.SearchSymbols(context.Background(), "AUD", 5)
	if err != nil || len(matches) != 1 || matches[0].Symbol != "AUD/USD" {
		t.Fatalf("SearchSymbols = %v, %v", matches, err)
	}

	f, _ = newTestFetcher(t, &fakeProvider{name: "plain"}, nil, nil)
	if _, err := f.SearchSymbols(context.Background(), "AUD", 5); err == nil {
		t.Fatal("expected error from a provider without search")
	}
}
