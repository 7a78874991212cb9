package dataflows

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/dyike/forexcell/config"
)

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.TwelveDataAPIKey = "test-key"
	cfg.TwelveDataBaseURL = baseURL
	cfg.MinRequestInterval = 0
	cfg.RateLimitBackoff = 0.01
	return cfg
}

func TestNormalizeInterval(t *testing.T) {
	cases := map[string]string{
		"1m":    "1min",
		"15M":   "15min",
		"1h":    "1h",
		"4h":    "4h",
		"1d":    "1day",
		" 1w ":  "1week",
		"1day":  "1day",
		"1mo":   "1month",
		"30min": "30min",
	}
	for in, want := range cases {
		got, err := NormalizeInterval(in)
		if err != nil {
			t.Fatalf("NormalizeInterval(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("NormalizeInterval(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := NormalizeInterval("7h"); err == nil {
		t.Fatalf("expected error for unsupported interval")
	}
}

func TestTwelveDataQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("apikey") != "test-key" {
			t.Errorf("missing api key")
		}
		if r.URL.Query().Get("symbol") != "EUR/USD" {
			t.Errorf("unexpected symbol %q", r.URL.Query().Get("symbol"))
		}
		fmt.Fprint(w, `{"symbol":"EUR/USD","datetime":"2024-05-01","open":"1.0700","high":"1.0750","low":"1.0680","close":"1.0725","volume":"0","previous_close":"1.0710","change":"0.0015","percent_change":"0.14"}`)
	}))
	defer srv.Close()

	c := NewTwelveDataClient(testConfig(t, srv.URL))
	q, err := c.Quote(context.Background(), "eurusd")
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.ExchangeRate != 1.0725 || q.FromCurrency != "EUR" || q.ToCurrency != "USD" {
		t.Fatalf("unexpected quote %+v", q)
	}
	if q.PreviousClose != 1.0710 || q.Timestamp != "2024-05-01" {
		t.Fatalf("unexpected quote fields %+v", q)
	}
	if used, _, _ := c.Usage(); used != 1 {
		t.Fatalf("expected 1 request counted, got %d", used)
	}
}

func TestTwelveDataQuoteMissingClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"symbol":"EUR/USD"}`)
	}))
	defer srv.Close()

	c := NewTwelveDataClient(testConfig(t, srv.URL))
	if _, err := c.Quote(context.Background(), "EUR/USD"); err == nil {
		t.Fatalf("expected error for quote without close")
	}
}

func TestTwelveDataTimeSeriesSortsAscending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("interval"); got != "1day" {
			t.Errorf("interval = %q, want 1day", got)
		}
		if got := r.URL.Query().Get("outputsize"); got != "5000" {
			t.Errorf("outputsize = %q, want capped 5000", got)
		}
		fmt.Fprint(w, `{"values":[
			{"datetime":"2024-05-03","open":"1.3","high":"1.4","low":"1.2","close":"1.3","volume":"0"},
			{"datetime":"2024-05-02","open":"1.2","high":"1.3","low":"1.1","close":"1.2","volume":"0"},
			{"datetime":"2024-05-01","open":"1.1","high":"1.2","low":"1.0","close":"1.1","volume":"0"}
		],"status":"ok"}`)
	}))
	defer srv.Close()

	c := NewTwelveDataClient(testConfig(t, srv.URL))
	s, err := c.TimeSeries(context.Background(), "EUR/USD", "1d", 9000)
	if err != nil {
		t.Fatalf("TimeSeries: %v", err)
	}
	if len(s.Candles) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(s.Candles))
	}
	for i := 1; i < len(s.Candles); i++ {
		if !s.Candles[i-1].Datetime.Before(s.Candles[i].Datetime) {
			t.Fatalf("candles not ascending at %d", i)
		}
	}
	if s.Summary.RecordCount != 3 || s.Summary.DateRange.Start != "2024-05-01 00:00:00" {
		t.Fatalf("unexpected summary %+v", s.Summary)
	}
	if diff := s.Summary.PriceStats.CloseMean - 1.2; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("close mean = %v", s.Summary.PriceStats.CloseMean)
	}
}

func TestTwelveDataAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":400,"message":"symbol not found","status":"error"}`)
	}))
	defer srv.Close()

	c := NewTwelveDataClient(testConfig(t, srv.URL))
	_, err := c.TimeSeries(context.Background(), "EUR/USD", "1h", 10)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 400 {
		t.Fatalf("expected APIError with code 400, got %v", err)
	}
}

func TestTwelveDataRateLimitRetriesOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			fmt.Fprint(w, `{"code":429,"message":"You have run out of API credits for the current minute","status":"error"}`)
			return
		}
		fmt.Fprint(w, `{"price":"1.0833"}`)
	}))
	defer srv.Close()

	c := NewTwelveDataClient(testConfig(t, srv.URL))
	p, err := c.Price(context.Background(), "EUR/USD")
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if p != 1.0833 || calls.Load() != 2 {
		t.Fatalf("price=%v calls=%d", p, calls.Load())
	}
}

func TestTwelveDataRateLimitGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewTwelveDataClient(testConfig(t, srv.URL))
	if _, err := c.Price(context.Background(), "EUR/USD"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestTwelveDataDailyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"price":"1.1"}`)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.MaxDailyRequests = 1
	c := NewTwelveDataClient(cfg)
	if _, err := c.Price(context.Background(), "EUR/USD"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := c.Price(context.Background(), "EUR/USD"); !errors.Is(err, ErrDailyLimit) {
		t.Fatalf("expected ErrDailyLimit, got %v", err)
	}
}

func TestTwelveDataSymbolSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[
			{"symbol":"EUR/USD","instrument_name":"Euro / US Dollar","instrument_type":"Physical Currency"},
			{"symbol":"EUR/GBP","instrument_name":"Euro / British Pound","instrument_type":"Physical Currency"}
		]}`)
	}))
	defer srv.Close()

	c := NewTwelveDataClient(testConfig(t, srv.URL))
	matches, err := c.SymbolSearch(context.Background(), "EUR", 1)
	if err != nil {
		t.Fatalf("SymbolSearch: %v", err)
	}
	if len(matches) != 1 || matches[0].Symbol != "EUR/USD" {
		t.Fatalf("unexpected matches %+v", matches)
	}
	if _, err := c.SymbolSearch(context.Background(), "  ", 5); err == nil {
		t.Fatalf("expected error for empty query")
	}
}

func TestFetcherPriceAndSearchUseTwelveData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/price":
			if r.URL.Query().Get("symbol") != "GBP/USD" {
				t.Errorf("unexpected symbol %q", r.URL.Query().Get("symbol"))
			}
			fmt.Fprint(w, `{"price":"1.26410"}`)
		case "/symbol_search":
			fmt.Fprint(w, `{"data":[{"symbol":"GBP/USD","instrument_name":"British Pound / US Dollar","instrument_type":"Physical Currency"}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := NewDataFetcher(testConfig(t, srv.URL), nil, WithFallback(nil))
	p, err := f.Price(context.Background(), "gbp/usd")
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if p.CurrencyPair != "GBP/USD" || p.Price != 1.2641 || p.Source != twelveDataProvider {
		t.Fatalf("unexpected price %+v", p)
	}
	matches, err := f.SearchSymbols(context.Background(), "GBP", 5)
	if err != nil {
		t.Fatalf("SearchSymbols: %v", err)
	}
	if len(matches) != 1 || matches[0].Symbol != "GBP/USD" {
		t.Fatalf("unexpected matches %+v", matches)
	}
}
