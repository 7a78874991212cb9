package models

import (
	"fmt"
	"strings"
	"time"
)

// Candle is one OHLCV bar of a currency pair.
type Candle struct {
	Symbol   string    `json:"symbol"`
	Datetime time.Time `json:"datetime"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   int64     `json:"volume"`
}

// Quote is the latest quote of a currency pair.
type Quote struct {
	Symbol        string  `json:"symbol"`
	FromCurrency  string  `json:"from_currency"`
	ToCurrency    string  `json:"to_currency"`
	ExchangeRate  float64 `json:"exchange_rate"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	PreviousClose float64 `json:"previous_close"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percent_change"`
	Volume        int64   `json:"volume"`
	Timestamp     string  `json:"timestamp"`
	TimeZone      string  `json:"time_zone"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type PriceStats struct {
	CloseMean  float64 `json:"close_mean"`
	CloseStd   float64 `json:"close_std"`
	VolumeMean float64 `json:"volume_mean"`
}

type SeriesSummary struct {
	RecordCount int        `json:"record_count"`
	DateRange   DateRange  `json:"date_range"`
	PriceStats  PriceStats `json:"price_stats"`
}

// Series is an ascending run of candles.
type Series struct {
	Symbol   string        `json:"symbol"`
	Interval string        `json:"interval"`
	Candles  []Candle      `json:"data"`
	Summary  SeriesSummary `json:"summary"`
}

// Closes returns the close prices in order.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}

// FetchResult is the envelope returned by the market data service.
type FetchResult struct {
	Success      bool           `json:"success"`
	DataType     string         `json:"data_type"`
	CurrencyPair string         `json:"currency_pair"`
	Interval     string         `json:"interval,omitempty"`
	Quote        *Quote         `json:"quote,omitempty"`
	Series       *Series        `json:"series,omitempty"`
	Summary      *SeriesSummary `json:"summary,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// IndicatorValue represents a single indicator value at a specific time
type IndicatorValue struct {
	Datetime time.Time `json:"datetime"`
	Value    float64   `json:"value"`
}

// SplitPair splits "EUR/USD" (or "EURUSD") into its two currency codes.
func SplitPair(pair string) (string, string, error) {
	p := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(pair), " ", ""))
	if from, to, ok := strings.Cut(p, "/"); ok && len(from) == 3 && len(to) == 3 {
		return from, to, nil
	}
	if len(p) == 6 && !strings.Contains(p, "/") {
		return p[:3], p[3:], nil
	}
	return "", "", fmt.Errorf("invalid currency pair %q", pair)
}

// NormalizePair returns the canonical "BASE/QUOTE" form.
func NormalizePair(pair string) (string, error) {
	from, to, err := SplitPair(pair)
	if err != nil {
		return "", err
	}
	return from + "/" + to, nil
}
