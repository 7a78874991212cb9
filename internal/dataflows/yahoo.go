package dataflows

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"

	"github.com/dyike/forexcell/internal/metrics"
	"github.com/dyike/forexcell/models"
)

const yahooProvider = "yahoo"

// YahooClient serves quotes and bars from Yahoo Finance. It has no API key
// or budget and backs the Twelve Data client when that one fails.
type YahooClient struct {
	retry *RetryConfig
}

func NewYahooClient() *YahooClient {
	return &YahooClient{retry: DefaultRetryConfig()}
}

func (y *YahooClient) Name() string { return yahooProvider }

// yahooSymbol maps "EUR/USD" to Yahoo's "EURUSD=X".
func yahooSymbol(pair string) (string, error) {
	from, to, err := models.SplitPair(pair)
	if err != nil {
		return "", err
	}
	return from + to + "=X", nil
}

var yahooIntervals = map[string]datetime.Interval{
	"1min":  datetime.OneMin,
	"5min":  datetime.FiveMins,
	"15min": datetime.FifteenMins,
	"30min": datetime.ThirtyMins,
	"1h":    datetime.OneHour,
	"1day":  datetime.OneDay,
}

// lookback picks a window long enough to hold size bars of interval.
func lookback(interval string, size int) time.Duration {
	var bar time.Duration
	switch interval {
	case "1min":
		bar = time.Minute
	case "5min":
		bar = 5 * time.Minute
	case "15min":
		bar = 15 * time.Minute
	case "30min":
		bar = 30 * time.Minute
	case "1h", "4h":
		bar = time.Hour
	default:
		bar = 24 * time.Hour
	}
	// weekends and holidays
	return time.Duration(size) * bar * 3 / 2
}

func (y *YahooClient) Quote(ctx context.Context, pair string) (*models.Quote, error) {
	symbol, err := yahooSymbol(pair)
	if err != nil {
		return nil, err
	}
	from, to, _ := models.SplitPair(pair)

	var out *models.Quote
	err = WithRetry(ctx, y.retry, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		q, err := quote.Get(symbol)
		if err != nil {
			return fmt.Errorf("get yahoo quote for %s: %w", symbol, err)
		}
		if q == nil {
			return &APIError{Provider: "yahoo", Message: "no quote for " + symbol}
		}
		out = &models.Quote{
			Symbol:        from + "/" + to,
			FromCurrency:  from,
			ToCurrency:    to,
			ExchangeRate:  q.RegularMarketPrice,
			Open:          q.RegularMarketOpen,
			High:          q.RegularMarketDayHigh,
			Low:           q.RegularMarketDayLow,
			PreviousClose: q.RegularMarketPreviousClose,
			Change:        q.RegularMarketChange,
			PercentChange: q.RegularMarketChangePercent,
			Volume:        int64(q.RegularMarketVolume),
			Timestamp:     time.Unix(int64(q.RegularMarketTime), 0).UTC().Format(time.RFC3339),
			TimeZone:      "UTC",
		}
		return nil
	})
	metrics.ProviderRequests.WithLabelValues(yahooProvider, "quote", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (y *YahooClient) TimeSeries(ctx context.Context, pair, interval string, size int) (*models.Series, error) {
	symbol, err := yahooSymbol(pair)
	if err != nil {
		return nil, err
	}
	interval, err = NormalizeInterval(interval)
	if err != nil {
		return nil, err
	}
	yi, ok := yahooIntervals[interval]
	switch {
	case ok:
	case interval == "4h":
		yi = datetime.OneHour
	default:
		yi = datetime.OneDay
	}
	if size <= 0 {
		size = 100
	}
	from, to, _ := models.SplitPair(pair)
	canonical := from + "/" + to

	end := time.Now().UTC()
	start := end.Add(-lookback(interval, size))

	var candles []models.Candle
	err = WithRetry(ctx, y.retry, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		candles = candles[:0]
		iter := chart.Get(&chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: yi,
		})
		for iter.Next() {
			bar := iter.Bar()
			open, _ := bar.Open.Float64()
			high, _ := bar.High.Float64()
			low, _ := bar.Low.Float64()
			closePrice, _ := bar.Close.Float64()
			candles = append(candles, models.Candle{
				Symbol:   canonical,
				Datetime: time.Unix(int64(bar.Timestamp), 0).UTC(),
				Open:     open,
				High:     high,
				Low:      low,
				Close:    closePrice,
				Volume:   int64(bar.Volume),
			})
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("get yahoo chart for %s: %w", symbol, err)
		}
		return nil
	})
	metrics.ProviderRequests.WithLabelValues(yahooProvider, "chart", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, &APIError{Provider: "yahoo", Message: "no bars for " + symbol}
	}
	if len(candles) > size {
		candles = candles[len(candles)-size:]
	}

	return &models.Series{
		Symbol:   canonical,
		Interval: interval,
		Candles:  candles,
		Summary:  Summarize(candles),
	}, nil
}
