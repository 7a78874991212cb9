package technical

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dyike/forexcell/models"
)

// ErrNoPriceData is returned when no OHLC rows can be found in the input.
var ErrNoPriceData = errors.New("no OHLC data found in input")

var priceKeys = []string{"open", "high", "low", "close", "exchange_rate", "price"}

// nestedKeys are searched, in order, for candle lists inside a map.
var nestedKeys = []string{"series", "data", "values", "historical_data", "result", "quotes", "market_data"}

// ExtractCandles pulls OHLC bars out of the shapes other agents produce:
// typed candles and series, fetch envelopes, lists of maps with string or
// numeric prices, JSON text, and maps nesting any of those.
func ExtractCandles(data any) ([]models.Candle, error) {
	candles := extract(data, 0)
	if len(candles) == 0 {
		return nil, ErrNoPriceData
	}
	return candles, nil
}

func extract(data any, depth int) []models.Candle {
	if depth > 6 {
		return nil
	}
	switch v := data.(type) {
	case nil:
		return nil
	case []models.Candle:
		return v
	case *models.Series:
		if v == nil {
			return nil
		}
		return v.Candles
	case models.Series:
		return v.Candles
	case *models.FetchResult:
		if v == nil {
			return nil
		}
		if v.Series != nil {
			return v.Series.Candles
		}
		if v.Quote != nil {
			return []models.Candle{quoteCandle(v.Quote)}
		}
		return nil
	case *models.Quote:
		if v == nil {
			return nil
		}
		return []models.Candle{quoteCandle(v)}
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			return nil
		}
		return extract(parsed, depth+1)
	case []byte:
		return extract(string(v), depth)
	case []map[string]any:
		rows := make([]any, len(v))
		for i, m := range v {
			rows[i] = m
		}
		return extractList(rows)
	case []any:
		return extractList(v)
	case map[string]any:
		return extractMap(v, depth)
	default:
		// typed structs from other packages round-trip through JSON
		m, err := models.ToMap(v)
		if err != nil {
			return nil
		}
		return extractMap(m, depth)
	}
}

func extractList(rows []any) []models.Candle {
	var out []models.Candle
	for _, row := range rows {
		m, ok := row.(map[string]any)
		if !ok || !hasPriceField(m) {
			continue
		}
		if c, ok := candleFromMap(m); ok {
			out = append(out, c)
		}
	}
	return out
}

func extractMap(m map[string]any, depth int) []models.Candle {
	for _, key := range nestedKeys {
		if v, ok := m[key]; ok {
			if c := extract(v, depth+1); len(c) > 0 {
				return c
			}
		}
	}
	if hasAll(m, "open", "high", "low") && (hasAll(m, "close") || hasAll(m, "exchange_rate")) {
		if c, ok := candleFromMap(m); ok {
			return []models.Candle{c}
		}
	}
	if hasAll(m, "exchange_rate") {
		if c, ok := candleFromMap(m); ok {
			return []models.Candle{c}
		}
	}
	// deep search of the remaining values
	for k, v := range m {
		if contains(nestedKeys, k) {
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			if c := extract(v, depth+1); len(c) > 0 {
				return c
			}
		}
	}
	return nil
}

func quoteCandle(q *models.Quote) models.Candle {
	ts, _ := parseTime(q.Timestamp)
	return models.Candle{
		Symbol:   q.Symbol,
		Datetime: ts,
		Open:     q.Open,
		High:     q.High,
		Low:      q.Low,
		Close:    q.ExchangeRate,
		Volume:   q.Volume,
	}
}

func candleFromMap(m map[string]any) (models.Candle, bool) {
	closePrice, ok := number(m["close"])
	if !ok {
		if closePrice, ok = number(m["exchange_rate"]); !ok {
			closePrice, ok = number(m["price"])
		}
	}
	if !ok {
		return models.Candle{}, false
	}
	open, ok := number(m["open"])
	if !ok {
		open = closePrice
	}
	high, ok := number(m["high"])
	if !ok {
		high = max(open, closePrice)
	}
	low, ok := number(m["low"])
	if !ok {
		low = min(open, closePrice)
	}
	volume, _ := number(m["volume"])

	var ts time.Time
	for _, key := range []string{"datetime", "date", "timestamp", "time"} {
		if s, ok := m[key].(string); ok {
			if t, err := parseTime(s); err == nil {
				ts = t
				break
			}
		}
	}
	symbol, _ := m["symbol"].(string)
	return models.Candle{
		Symbol:   symbol,
		Datetime: ts,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		Volume:   int64(volume),
	}, true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"20060102T150405",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func hasPriceField(m map[string]any) bool {
	for _, k := range priceKeys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func hasAll(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
