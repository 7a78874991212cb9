package technical

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dyike/forexcell/models"
)

func rising(n int) []models.Candle {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		c := 1.0 + 0.001*float64(i)
		out[i] = models.Candle{
			Symbol:   "EUR/USD",
			Datetime: start.Add(time.Duration(i) * time.Hour),
			Open:     c - 0.0002,
			High:     c + 0.0005,
			Low:      c - 0.0005,
			Close:    c,
		}
	}
	return out
}

func ptr(v float64) *float64 { return &v }

func TestAnalyzeSyntheticSeries(t *testing.T) {
	a := NewAnalyzer()
	r, err := a.Analyze(SyntheticCandles("GBP/USD", 60, 1.25), "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if r.Symbol != "GBP/USD" || r.RecordCount != 60 {
		t.Fatalf("unexpected header %s/%d", r.Symbol, r.RecordCount)
	}
	if r.RSI.Value == nil || r.MACD.Signal == models.SignalNoData || r.Stochastic.K == nil {
		t.Fatalf("indicators missing: %+v", r.Indicators)
	}
	if _, ok := r.Indicators.EMA["ema_200"]; ok {
		t.Fatalf("ema_200 should need 200 bars")
	}
	if r.Volatility.Level == "unknown" {
		t.Fatalf("volatility should be graded with ATR present")
	}
	if r.PriceSummary.HighestHigh < r.PriceSummary.LowestLow {
		t.Fatalf("bad price summary %+v", r.PriceSummary)
	}
}

func TestAnalyzeRisingSeries(t *testing.T) {
	r, err := NewAnalyzer().Analyze(rising(80), "EUR/USD")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if r.MovingAverages.Signal != TrendStrongUp || r.MovingAverages.Alignment != models.SignalBullish {
		t.Fatalf("moving averages = %+v", r.MovingAverages)
	}
	if r.Trend.Direction != "up" || r.Trend.Strength != 100 {
		t.Fatalf("trend = %+v", r.Trend)
	}
	if r.RSI.Signal != models.SignalOverbought {
		t.Fatalf("rsi = %+v", r.RSI)
	}
	if r.Bollinger.Signal != BandNearUpper {
		t.Fatalf("bollinger = %+v", r.Bollinger)
	}
}

func TestAnalyzeRequiresMinimumBars(t *testing.T) {
	_, err := NewAnalyzer().Analyze(rising(MinBars-1), "EUR/USD")
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	if _, err := NewAnalyzer().Analyze(map[string]any{"foo": "bar"}, "X"); !errors.Is(err, ErrNoPriceData) {
		t.Fatalf("expected ErrNoPriceData, got %v", err)
	}
}

func TestComputeShortInput(t *testing.T) {
	f := Compute(rising(10), DefaultConfig())
	s := f.Snapshot()
	if s.RSI != nil || s.MACD != nil || s.ATR != nil || s.BBUpper != nil {
		t.Fatalf("expected only short EMAs, got %+v", s)
	}
	if _, ok := s.EMA["ema_5"]; !ok {
		t.Fatalf("ema_5 should be available")
	}
	if _, err := f.Series("rsi"); err == nil {
		t.Fatalf("expected error for missing rsi series")
	}
}

func TestFrameSeries(t *testing.T) {
	f := Compute(rising(40), DefaultConfig())
	rsi, err := f.Series("rsi")
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	if len(rsi) != 40-14 {
		t.Fatalf("rsi points = %d", len(rsi))
	}
	if !rsi[0].Datetime.Equal(f.Candles[14].Datetime) {
		t.Fatalf("first rsi point at %v", rsi[0].Datetime)
	}
}

func TestSignalRules(t *testing.T) {
	rsi := analyzeRSI(ptr(75))
	if rsi.Signal != models.SignalOverbought || rsi.Strength != 16.7 {
		t.Fatalf("rsi = %+v", rsi)
	}
	if got := analyzeRSI(ptr(40)).Signal; got != models.SignalBearish {
		t.Fatalf("rsi 40 = %s", got)
	}
	if got := analyzeRSI(nil).Signal; got != models.SignalNoData {
		t.Fatalf("nil rsi = %s", got)
	}

	snap := models.IndicatorSnapshot{BBUpper: ptr(1.2), BBLower: ptr(1.0), BBPosition: ptr(0.2), BBWidth: ptr(0.03)}
	bb := analyzeBollinger(1.04, snap)
	if bb.Signal != BandNearLower || !bb.Squeeze {
		t.Fatalf("bollinger = %+v", bb)
	}
	if got := analyzeBollinger(1.21, snap).Signal; got != BandUpperResistance {
		t.Fatalf("above band = %s", got)
	}

	st := analyzeStochastic(models.IndicatorSnapshot{StochK: ptr(85), StochD: ptr(82)})
	if st.Signal != models.SignalOverbought {
		t.Fatalf("stochastic = %+v", st)
	}

	ma := analyzeMovingAverages(models.IndicatorSnapshot{EMA: map[string]float64{"ema_5": 1.0, "ema_20": 1.1, "ema_50": 1.05}})
	if ma.Signal != TrendDown || ma.Alignment != "mixed" {
		t.Fatalf("moving averages = %+v", ma)
	}

	if got := analyzeVolatility(1.1, ptr(0.03)).Level; got != "high" {
		t.Fatalf("volatility = %s", got)
	}
	if got := analyzeVolatility(150, ptr(0.3)).Level; got != "low" {
		t.Fatalf("jpy volatility = %s", got)
	}
	if got := analyzeTrend([]float64{1, 2, 3}).Direction; got != "unknown" {
		t.Fatalf("short trend = %s", got)
	}
}

func TestComposite(t *testing.T) {
	r := &models.TechnicalReport{
		RSI:            models.RSISignal{Signal: models.SignalOversold},
		MACD:           models.MACDSignal{Signal: models.SignalBullish},
		Bollinger:      models.BollingerSignal{Signal: models.SignalNeutral},
		MovingAverages: models.MovingAverageSignal{Signal: TrendDown},
	}
	c := composite(r)
	if c.Recommendation != models.RecommendBuy || c.Confidence != 33.3 {
		t.Fatalf("composite = %+v", c)
	}

	r.MACD.Signal = models.SignalBearish
	r.MovingAverages.Signal = TrendSideways
	if got := composite(r).Recommendation; got != models.RecommendHold {
		t.Fatalf("tied votes = %s", got)
	}

	empty := &models.TechnicalReport{}
	if got := composite(empty); got.Recommendation != models.RecommendNone || got.Confidence != 0 {
		t.Fatalf("no votes = %+v", got)
	}
}

func TestExtractCandlesShapes(t *testing.T) {
	text := `{"values":[
		{"datetime":"2024-01-01 01:00:00","open":"1.10","high":"1.12","low":"1.09","close":"1.11"},
		{"datetime":"2024-01-01 00:00:00","open":"1.09","high":"1.11","low":"1.08","close":"1.10"}
	]}`
	candles, err := ExtractCandles(text)
	if err != nil {
		t.Fatalf("ExtractCandles(json): %v", err)
	}
	if len(candles) != 2 || candles[0].Close != 1.11 {
		t.Fatalf("unexpected candles %+v", candles)
	}

	nested := map[string]any{
		"success": true,
		"historical_data": map[string]any{
			"data": []any{
				map[string]any{"date": "2024-01-02", "close": 1.2},
			},
		},
	}
	candles, err = ExtractCandles(nested)
	if err != nil {
		t.Fatalf("ExtractCandles(nested): %v", err)
	}
	if candles[0].Open != 1.2 || candles[0].High != 1.2 || candles[0].Datetime.Day() != 2 {
		t.Fatalf("defaults not applied: %+v", candles[0])
	}

	quote := map[string]any{"exchange_rate": "1.0850", "symbol": "EUR/USD"}
	candles, err = ExtractCandles(quote)
	if err != nil || candles[0].Close != 1.085 || candles[0].Symbol != "EUR/USD" {
		t.Fatalf("quote extraction: %+v, %v", candles, err)
	}

	res := &models.FetchResult{Series: &models.Series{Candles: rising(3)}}
	if candles, _ := ExtractCandles(res); len(candles) != 3 {
		t.Fatalf("fetch result candles = %d", len(candles))
	}
}

func TestConfigAndHealth(t *testing.T) {
	a := NewAnalyzer(WithConfig(Config{RSIPeriod: 7}))
	info := a.Config()
	if info.IndicatorsConfig.RSIPeriod != 7 || info.IndicatorsConfig.MACDSlow != 26 {
		t.Fatalf("config = %+v", info.IndicatorsConfig)
	}
	if len(info.AvailableIndicators) != 7 || info.AIEnabled {
		t.Fatalf("config info = %+v", info)
	}
	h := a.HealthCheck()
	if h.Status != "healthy" || !h.IndicatorsWorking || h.CalculatedIndicators == 0 {
		t.Fatalf("health = %+v", h)
	}
}

func TestDescribeReport(t *testing.T) {
	a := NewAnalyzer()
	f, err := a.Calculate(rising(40))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	r, err := a.Analyze(f.Candles, "EUR/USD")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	text := DescribeReport(r, f)
	for _, want := range []string{"EUR/USD technical report", "Composite signal", "Recent high (10 bars)"} {
		if !strings.Contains(text, want) {
			t.Fatalf("report text missing %q:\n%s", want, text)
		}
	}
}
