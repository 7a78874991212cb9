// Package technical computes indicators over OHLC bars and turns them into
// trading signals.
package technical

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyike/forexcell/internal/logger"
	"github.com/dyike/forexcell/models"
)

// MinBars is the fewest candles Analyze accepts.
const MinBars = 30

var ErrInsufficientData = errors.New("insufficient price data")

// Narrator turns a technical context into prose. The LLM analyzer satisfies it.
type Narrator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

type Analyzer struct {
	cfg      Config
	narrator Narrator
	log      zerolog.Logger
}

type Option func(*Analyzer)

func WithConfig(cfg Config) Option {
	return func(a *Analyzer) { a.cfg = cfg.withDefaults() }
}

// WithNarrator enables AI commentary on reports.
func WithNarrator(n Narrator) Option {
	return func(a *Analyzer) { a.narrator = n }
}

func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{cfg: DefaultConfig(), log: logger.Component("technical")}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Calculate extracts candles from data and computes every indicator.
func (a *Analyzer) Calculate(data any) (*Frame, error) {
	candles, err := ExtractCandles(data)
	if err != nil {
		return nil, err
	}
	return Compute(candles, a.cfg), nil
}

// Analyze computes indicators and signals for the latest bar.
func (a *Analyzer) Analyze(data any, symbol string) (*models.TechnicalReport, error) {
	frame, err := a.Calculate(data)
	if err != nil {
		return nil, err
	}
	if frame.Len() < MinBars {
		return nil, fmt.Errorf("%w: need at least %d bars, got %d", ErrInsufficientData, MinBars, frame.Len())
	}
	if symbol == "" {
		symbol = frame.Candles[0].Symbol
	}
	if symbol == "" {
		symbol = "UNKNOWN"
	}
	a.log.Debug().Str("symbol", symbol).Int("bars", frame.Len()).Msg("analyzing")
	return a.report(frame, symbol), nil
}

func (a *Analyzer) report(f *Frame, symbol string) *models.TechnicalReport {
	last := f.Candles[f.Len()-1]
	snap := f.Snapshot()

	closes := make([]float64, f.Len())
	hi, lo := math.Inf(-1), math.Inf(1)
	for i, c := range f.Candles {
		closes[i] = c.Close
		hi, lo = math.Max(hi, c.High), math.Min(lo, c.Low)
	}
	first := closes[0]
	summary := models.PriceSummary{
		CurrentPrice: last.Close,
		PriceChange:  last.Close - first,
		HighestHigh:  hi,
		LowestLow:    lo,
	}
	if first != 0 {
		summary.PriceChangePct = (last.Close - first) / first * 100
	}

	ts := ""
	if !last.Datetime.IsZero() {
		ts = last.Datetime.Format(time.RFC3339)
	}
	r := &models.TechnicalReport{
		Success:        true,
		Symbol:         symbol,
		Timestamp:      ts,
		Price:          last.Close,
		RecordCount:    f.Len(),
		Indicators:     snap,
		PriceSummary:   summary,
		RSI:            analyzeRSI(snap.RSI),
		MACD:           analyzeMACD(f),
		Bollinger:      analyzeBollinger(last.Close, snap),
		Stochastic:     analyzeStochastic(snap),
		MovingAverages: analyzeMovingAverages(snap),
		Trend:          analyzeTrend(closes),
		Volatility:     analyzeVolatility(last.Close, snap.ATR),
	}
	r.Composite = composite(r)
	return r
}

// Narrate asks the configured narrator for commentary on report.
func (a *Analyzer) Narrate(ctx context.Context, report *models.TechnicalReport, f *Frame) (string, error) {
	if a.narrator == nil {
		return "", errors.New("ai analysis is not configured")
	}
	prompt := fmt.Sprintf(narratePrompt, DescribeReport(report, f))
	return a.narrator.Generate(ctx, narrateSystem, prompt)
}

const narrateSystem = `You are an experienced forex analyst focused on technical analysis and risk management.
Base every statement on the data given, name concrete price levels, and always cover risk control.`

const narratePrompt = `Review the technical data below and write a professional trading analysis.

%s

Cover, with concrete numbers:
1. Current market state: trend direction and strength, momentum, volatility.
2. Indicator readings: RSI, MACD crosses, Bollinger position and squeeze, moving-average alignment.
3. Agreement or divergence between indicators.
4. Key support and resistance levels and likely breakouts.
5. Whether a trade setup exists, its quality and a suitable strategy.
6. Stop loss, targets and position sizing.
7. Sentiment and risks to watch.`

// DescribeReport renders report as the plain-text context used in prompts.
func DescribeReport(r *models.TechnicalReport, f *Frame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== %s technical report ===\n", r.Symbol)
	fmt.Fprintf(&b, "Time: %s\n", r.Timestamp)
	fmt.Fprintf(&b, "Price: %.5f\n\n", r.Price)

	ps := r.PriceSummary
	b.WriteString("Price statistics:\n")
	fmt.Fprintf(&b, "  Bars: %d\n", r.RecordCount)
	fmt.Fprintf(&b, "  Change: %.4f (%+.2f%%)\n", ps.PriceChange, ps.PriceChangePct)
	fmt.Fprintf(&b, "  High: %.5f\n", ps.HighestHigh)
	fmt.Fprintf(&b, "  Low: %.5f\n\n", ps.LowestLow)

	b.WriteString("Indicators:\n")
	fmt.Fprintf(&b, "  RSI: %s - %s\n", fmtPtr(r.RSI.Value, 2), r.RSI.Signal)
	fmt.Fprintf(&b, "  MACD: %s - crossover: %s\n", r.MACD.Signal, r.MACD.CrossoverType)
	fmt.Fprintf(&b, "  Bollinger: %s - position: %s\n", r.Bollinger.Signal, fmtPtr(r.Bollinger.Position, 3))
	if r.Bollinger.Squeeze {
		b.WriteString("  * band squeeze, expect expanding volatility\n")
	}
	fmt.Fprintf(&b, "  Stochastic: %s (K %s, D %s)\n", r.Stochastic.Signal, fmtPtr(r.Stochastic.K, 2), fmtPtr(r.Stochastic.D, 2))
	fmt.Fprintf(&b, "  Trend: %s - strength %.1f%%\n", r.Trend.Direction, r.Trend.Strength)
	fmt.Fprintf(&b, "  Moving averages: %s, alignment %s, strength %s\n", r.MovingAverages.Signal, r.MovingAverages.Alignment, r.MovingAverages.Strength)
	fmt.Fprintf(&b, "  Volatility: %s - ATR %s\n\n", r.Volatility.Level, fmtPtr(r.Volatility.ATR, 5))

	c := r.Composite
	b.WriteString("Composite signal:\n")
	fmt.Fprintf(&b, "  Recommendation: %s\n", c.Recommendation)
	fmt.Fprintf(&b, "  Confidence: %.1f%%\n", c.Confidence)
	fmt.Fprintf(&b, "  Bullish votes: %d, bearish votes: %d\n", c.BullishSignals, c.BearishSignals)

	if f != nil && f.Len() > 0 {
		n := f.Len()
		recent := f.Candles[max(0, n-10):]
		hi, lo := math.Inf(-1), math.Inf(1)
		for _, c := range recent {
			hi, lo = math.Max(hi, c.High), math.Min(lo, c.Low)
		}
		sum := 0.0
		tail := f.Candles[max(0, n-20):]
		for _, c := range tail {
			sum += c.Close
		}
		b.WriteString("\nKey levels:\n")
		fmt.Fprintf(&b, "  Recent high (10 bars): %.5f\n", hi)
		fmt.Fprintf(&b, "  Recent low (10 bars): %.5f\n", lo)
		fmt.Fprintf(&b, "  20-bar average: %.5f\n", sum/float64(len(tail)))
	}
	return b.String()
}

func fmtPtr(v *float64, places int) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.*f", places, *v)
}

// ConfigInfo is returned by the config action.
type ConfigInfo struct {
	Success             bool     `json:"success"`
	IndicatorsConfig    Config   `json:"indicators_config"`
	AIEnabled           bool     `json:"ai_enabled"`
	AvailableIndicators []string `json:"available_indicators"`
	MinBars             int      `json:"min_bars"`
}

func (a *Analyzer) Config() ConfigInfo {
	return ConfigInfo{
		Success:          true,
		IndicatorsConfig: a.cfg,
		AIEnabled:        a.narrator != nil,
		AvailableIndicators: []string{
			"RSI", "MACD", "Bollinger Bands", "Stochastic",
			"Moving Averages", "ATR", "Trend Analysis",
		},
		MinBars: MinBars,
	}
}

type Health struct {
	Success              bool   `json:"success"`
	Status               string `json:"status"`
	AIEnabled            bool   `json:"ai_enabled"`
	IndicatorsWorking    bool   `json:"indicators_working"`
	TestSymbol           string `json:"test_symbol"`
	CalculatedIndicators int    `json:"calculated_indicators"`
	Error                string `json:"error,omitempty"`
}

// HealthCheck runs the full analysis over synthetic bars.
func (a *Analyzer) HealthCheck() Health {
	h := Health{Success: true, AIEnabled: a.narrator != nil, TestSymbol: "TEST"}
	candles := SyntheticCandles("TEST", 60, 1.1)
	r, err := a.Analyze(candles, "TEST")
	if err != nil {
		h.Status, h.Error = "degraded", err.Error()
		return h
	}
	h.Status = "healthy"
	h.IndicatorsWorking = r.RSI.Value != nil && r.MACD.Signal != models.SignalNoData
	h.CalculatedIndicators = len(Compute(candles, a.cfg).Names())
	if !h.IndicatorsWorking {
		h.Status = "degraded"
	}
	return h
}

// SyntheticCandles produces n hourly bars oscillating around base.
func SyntheticCandles(symbol string, n int, base float64) []models.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		mid := base + 0.01*math.Sin(float64(i)/5) + 0.0002*float64(i)
		out[i] = models.Candle{
			Symbol:   symbol,
			Datetime: start.Add(time.Duration(i) * time.Hour),
			Open:     mid - 0.0005,
			High:     mid + 0.002,
			Low:      mid - 0.002,
			Close:    mid + 0.0005,
			Volume:   1000,
		}
	}
	return out
}
