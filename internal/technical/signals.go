package technical

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/dyike/forexcell/models"
)

// Bollinger and moving-average labels.
const (
	BandUpperResistance = "overbought_upper_resistance"
	BandLowerSupport    = "oversold_lower_support"
	BandNearUpper       = "near_upper_band"
	BandNearLower       = "near_lower_band"

	TrendStrongUp   = "strong_uptrend"
	TrendUp         = "uptrend"
	TrendStrongDown = "strong_downtrend"
	TrendDown       = "downtrend"
	TrendSideways   = "sideways"
)

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func roundPtr(v *float64, places int) *float64 {
	if v == nil {
		return nil
	}
	r := round(*v, places)
	return &r
}

func analyzeRSI(rsi *float64) models.RSISignal {
	if rsi == nil {
		return models.RSISignal{Signal: models.SignalNoData}
	}
	v := *rsi
	out := models.RSISignal{Value: roundPtr(rsi, 2), Signal: models.SignalNeutral}
	switch {
	case v > 70:
		out.Signal, out.Strength = models.SignalOverbought, math.Min(100, (v-70)/30*100)
	case v < 30:
		out.Signal, out.Strength = models.SignalOversold, math.Min(100, (30-v)/30*100)
	case v > 55:
		out.Signal, out.Strength = models.SignalBullish, (v-50)/20*50
	case v < 45:
		out.Signal, out.Strength = models.SignalBearish, (50-v)/20*50
	}
	out.Strength = round(out.Strength, 1)
	return out
}

// analyzeMACD compares the last bar with the one before for crossovers.
func analyzeMACD(f *Frame) models.MACDSignal {
	last := f.Len() - 1
	macd, signal := f.Value("macd", last), f.Value("macd_signal", last)
	if macd == nil || signal == nil {
		return models.MACDSignal{Signal: models.SignalNoData, CrossoverType: "none"}
	}
	out := models.MACDSignal{Signal: models.SignalBearish, CrossoverType: "none"}
	if *macd > *signal {
		out.Signal = models.SignalBullish
	}

	prevMACD, prevSignal := f.Value("macd", last-1), f.Value("macd_signal", last-1)
	if prevMACD == nil || prevSignal == nil {
		return out
	}
	switch {
	case *prevMACD <= *prevSignal && *macd > *signal:
		out.Crossover, out.CrossoverType = true, "golden_cross"
	case *prevMACD >= *prevSignal && *macd < *signal:
		out.Crossover, out.CrossoverType = true, "death_cross"
	}
	return out
}

func analyzeBollinger(price float64, s models.IndicatorSnapshot) models.BollingerSignal {
	if s.BBUpper == nil || s.BBLower == nil || s.BBPosition == nil {
		return models.BollingerSignal{Signal: models.SignalNoData}
	}
	out := models.BollingerSignal{
		Signal:   models.SignalNeutral,
		Squeeze:  s.BBWidth != nil && *s.BBWidth < 0.05,
		Position: roundPtr(s.BBPosition, 3),
	}
	switch pos := *s.BBPosition; {
	case price >= *s.BBUpper:
		out.Signal = BandUpperResistance
	case price <= *s.BBLower:
		out.Signal = BandLowerSupport
	case pos > 0.7:
		out.Signal = BandNearUpper
	case pos < 0.3:
		out.Signal = BandNearLower
	}
	return out
}

func analyzeStochastic(s models.IndicatorSnapshot) models.StochasticSignal {
	if s.StochK == nil || s.StochD == nil {
		return models.StochasticSignal{Signal: models.SignalNoData}
	}
	k, d := *s.StochK, *s.StochD
	out := models.StochasticSignal{Signal: models.SignalNeutral, K: roundPtr(s.StochK, 2), D: roundPtr(s.StochD, 2)}
	switch {
	case k > 80 && d > 80:
		out.Signal = models.SignalOverbought
	case k < 20 && d < 20:
		out.Signal = models.SignalOversold
	case k > d:
		out.Signal = models.SignalBullish
	case k < d:
		out.Signal = models.SignalBearish
	}
	return out
}

func analyzeMovingAverages(s models.IndicatorSnapshot) models.MovingAverageSignal {
	ema5, ok5 := s.EMA["ema_5"]
	ema20, ok20 := s.EMA["ema_20"]
	if !ok5 || !ok20 {
		return models.MovingAverageSignal{Signal: models.SignalNoData}
	}
	// without EMA50 only the short/medium relation counts
	ema50, ok50 := s.EMA["ema_50"]

	out := models.MovingAverageSignal{Alignment: "mixed"}
	switch {
	case ok50 && ema5 > ema20 && ema20 > ema50:
		out.Signal, out.Strength, out.Alignment = TrendStrongUp, "strong", models.SignalBullish
	case ema5 > ema20:
		out.Signal, out.Strength = TrendUp, "medium"
	case ok50 && ema5 < ema20 && ema20 < ema50:
		out.Signal, out.Strength, out.Alignment = TrendStrongDown, "strong", models.SignalBearish
	case ema5 < ema20:
		out.Signal, out.Strength = TrendDown, "medium"
	default:
		out.Signal, out.Strength = TrendSideways, "weak"
	}
	return out
}

// analyzeTrend fits a least-squares line through the closes.
func analyzeTrend(closes []float64) models.TrendSignal {
	n := len(closes)
	if n < 20 {
		return models.TrendSignal{Direction: "unknown"}
	}
	xs := make([]float64, n)
	lo, hi := closes[0], closes[0]
	for i, c := range closes {
		xs[i] = float64(i)
		lo, hi = math.Min(lo, c), math.Max(hi, c)
	}
	_, slope := stat.LinearRegression(xs, closes, nil, false)

	strength := 0.0
	if span := hi - lo; span > 0 {
		strength = math.Min(100, math.Abs(slope)*float64(n)/span*100)
	}
	direction := "flat"
	switch {
	case slope > 0:
		direction = "up"
	case slope < 0:
		direction = "down"
	}
	return models.TrendSignal{Direction: direction, Strength: round(strength, 1), Slope: slope}
}

// analyzeVolatility grades ATR relative to price, so JPY pairs and EUR
// pairs share thresholds.
func analyzeVolatility(price float64, atr *float64) models.VolatilitySignal {
	if atr == nil || price <= 0 {
		return models.VolatilitySignal{Level: "unknown", ATR: roundPtr(atr, 5)}
	}
	ratio := *atr / price
	level := "medium"
	switch {
	case ratio > 0.02:
		level = "high"
	case ratio < 0.005:
		level = "low"
	}
	return models.VolatilitySignal{Level: level, ATR: roundPtr(atr, 5), Ratio: roundPtr(&ratio, 5)}
}

// composite counts RSI, MACD, Bollinger and moving-average votes.
func composite(r *models.TechnicalReport) models.CompositeSignal {
	bull, bear := 0, 0
	switch r.RSI.Signal {
	case models.SignalOversold, models.SignalBullish:
		bull++
	case models.SignalOverbought, models.SignalBearish:
		bear++
	}
	switch r.MACD.Signal {
	case models.SignalBullish:
		bull++
	case models.SignalBearish:
		bear++
	}
	switch bb := r.Bollinger.Signal; {
	case strings.Contains(bb, "oversold") || strings.Contains(bb, "lower"):
		bull++
	case strings.Contains(bb, "overbought") || strings.Contains(bb, "upper"):
		bear++
	}
	switch ma := r.MovingAverages.Signal; {
	case strings.HasSuffix(ma, "uptrend"):
		bull++
	case strings.HasSuffix(ma, "downtrend"):
		bear++
	}

	out := models.CompositeSignal{Recommendation: models.RecommendNone, BullishSignals: bull, BearishSignals: bear}
	total := bull + bear
	if total == 0 {
		return out
	}
	out.Confidence = round(math.Abs(float64(bull-bear))/float64(total)*100, 1)
	switch {
	case bull > bear:
		out.Recommendation = models.RecommendBuy
	case bear > bull:
		out.Recommendation = models.RecommendSell
	default:
		out.Recommendation = models.RecommendHold
	}
	return out
}
