package dataflows

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dyike/forexcell/config"
)

func alphaConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.AlphaVantageAPIKey = "demo-key"
	cfg.AlphaVantageBaseURL = baseURL
	return cfg
}

func TestAlphaVantageTestMode(t *testing.T) {
	for _, key := range []string{"", "${ALPHA_VANTAGE_API_KEY}"} {
		cfg := alphaConfig(t, "http://127.0.0.1:1")
		cfg.AlphaVantageAPIKey = key
		c := NewAlphaVantageClient(cfg)
		if !c.TestMode() {
			t.Fatalf("key %q should enable test mode", key)
		}
		if _, err := c.NewsSentiment(context.Background(), []string{"FOREX:EUR"}, nil, 5); !errors.Is(err, ErrTestMode) {
			t.Fatalf("expected ErrTestMode, got %v", err)
		}
		if used, _ := c.Usage(); used != 0 {
			t.Fatalf("test mode must not spend budget, used %d", used)
		}
	}
}

func TestAlphaVantageNewsSentiment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("function") != "NEWS_SENTIMENT" || q.Get("tickers") != "FOREX:EUR,FOREX:USD" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("sort") != "LATEST" || q.Get("apikey") != "demo-key" {
			t.Errorf("missing sort or key: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"items":"2","feed":[
			{"title":"ECB holds rates","url":"https://example.com/a","time_published":"20240501T120000","source":"Reuters",
			 "overall_sentiment_score":0.31,"overall_sentiment_label":"Bullish",
			 "ticker_sentiment":[{"ticker":"FOREX:EUR","relevance_score":"0.72"}]},
			{"title":"Dollar steady","url":"https://example.com/b","time_published":"20240501T100000","source":"Bloomberg",
			 "overall_sentiment_score":"-0.05","overall_sentiment_label":"Neutral","ticker_sentiment":[]}
		]}`)
	}))
	defer srv.Close()

	c := NewAlphaVantageClient(alphaConfig(t, srv.URL+"/query"))
	articles, err := c.NewsSentiment(context.Background(), []string{"FOREX:EUR", "FOREX:USD"}, []string{"economy_monetary"}, 15)
	if err != nil {
		t.Fatalf("NewsSentiment: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}
	if articles[0].SentimentScore != 0.31 || articles[0].RelevanceScore != "0.72" {
		t.Fatalf("unexpected first article %+v", articles[0])
	}
	if articles[1].SentimentScore != -0.05 || articles[1].RelevanceScore != "0" {
		t.Fatalf("unexpected second article %+v", articles[1])
	}
	if articles[0].PublishedAt.Hour() != 12 {
		t.Fatalf("published time not parsed: %v", articles[0].PublishedAt)
	}
}

func TestAlphaVantageNoteIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`)
	}))
	defer srv.Close()

	c := NewAlphaVantageClient(alphaConfig(t, srv.URL))
	if _, err := c.EconomicIndicator(context.Background(), "CPI", "monthly"); !errors.Is(err, ErrAPINote) {
		t.Fatalf("expected ErrAPINote, got %v", err)
	}
}

func TestAlphaVantageErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Error Message":"Invalid API call."}`)
	}))
	defer srv.Close()

	c := NewAlphaVantageClient(alphaConfig(t, srv.URL))
	_, err := c.EconomicIndicator(context.Background(), "CPI", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
}

func TestAlphaVantageIndicatorAndBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("interval") != "monthly" {
			t.Errorf("interval not forwarded: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"name":"Consumer Price Index for all Urban Consumers","interval":"monthly","unit":"index 1982-1984=100",
			"data":[{"date":"2024-04-01","value":"313.548"},{"date":"2024-03-01","value":"312.332"}]}`)
	}))
	defer srv.Close()

	cfg := alphaConfig(t, srv.URL)
	cfg.AlphaVantageDailyLimit = 1
	c := NewAlphaVantageClient(cfg)
	series, err := c.EconomicIndicator(context.Background(), "CPI", "monthly")
	if err != nil {
		t.Fatalf("EconomicIndicator: %v", err)
	}
	if len(series.Data) != 2 || series.Data[0].Value != "313.548" {
		t.Fatalf("unexpected series %+v", series)
	}
	if !c.LimitReached() {
		t.Fatalf("budget of 1 should be spent")
	}
	if _, err := c.EconomicIndicator(context.Background(), "CPI", "monthly"); !errors.Is(err, ErrDailyLimit) {
		t.Fatalf("expected ErrDailyLimit, got %v", err)
	}
}

func TestAlphaVantageExchangeRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Realtime Currency Exchange Rate":{"1. From_Currency Code":"EUR","3. To_Currency Code":"USD",
			"5. Exchange Rate":"1.07250000","6. Last Refreshed":"2024-05-01 12:00:01","7. Time Zone":"UTC"}}`)
	}))
	defer srv.Close()

	c := NewAlphaVantageClient(alphaConfig(t, srv.URL))
	q, err := c.ExchangeRate(context.Background(), "eur", "usd")
	if err != nil {
		t.Fatalf("ExchangeRate: %v", err)
	}
	if q.Symbol != "EUR/USD" || q.ExchangeRate != 1.0725 {
		t.Fatalf("unexpected quote %+v", q)
	}
}

func TestFetcherFallsBackToAlphaVantageRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("function") != "CURRENCY_EXCHANGE_RATE" || q.Get("from_currency") != "USD" || q.Get("to_currency") != "JPY" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"Realtime Currency Exchange Rate":{"1. From_Currency Code":"USD","3. To_Currency Code":"JPY",
			"5. Exchange Rate":"156.21000000","6. Last Refreshed":"2024-05-01 12:00:01","7. Time Zone":"UTC"}}`)
	}))
	defer srv.Close()

	primary := &fakeProvider{name: "primary", err: errors.New("down")}
	f := NewDataFetcher(alphaConfig(t, srv.URL), nil, WithPrimary(primary), WithFallback(nil))
	res, err := f.Fetch(context.Background(), FetchRequest{Pair: "USD/JPY"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Metadata["source"] != alphaVantageProvider || res.Quote.ExchangeRate != 156.21 {
		t.Fatalf("unexpected result %+v %+v", res.Metadata, res.Quote)
	}
}
