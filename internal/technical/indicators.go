package technical

import (
	"fmt"
	"sort"

	"github.com/markcheno/go-talib"

	"github.com/dyike/forexcell/models"
)

// Config holds the indicator periods.
type Config struct {
	RSIPeriod    int     `json:"rsi_period" yaml:"rsi_period"`
	MACDFast     int     `json:"macd_fast" yaml:"macd_fast"`
	MACDSlow     int     `json:"macd_slow" yaml:"macd_slow"`
	MACDSignal   int     `json:"macd_signal" yaml:"macd_signal"`
	BBPeriod     int     `json:"bb_period" yaml:"bb_period"`
	BBStdDev     float64 `json:"bb_std" yaml:"bb_std"`
	StochKPeriod int     `json:"stoch_k_period" yaml:"stoch_k_period"`
	StochDPeriod int     `json:"stoch_d_period" yaml:"stoch_d_period"`
	EMAPeriods   []int   `json:"ema_periods" yaml:"ema_periods"`
	ATRPeriod    int     `json:"atr_period" yaml:"atr_period"`
}

func DefaultConfig() Config {
	return Config{
		RSIPeriod:    14,
		MACDFast:     12,
		MACDSlow:     26,
		MACDSignal:   9,
		BBPeriod:     20,
		BBStdDev:     2,
		StochKPeriod: 14,
		StochDPeriod: 3,
		EMAPeriods:   []int{5, 10, 20, 50, 200},
		ATRPeriod:    14,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = d.RSIPeriod
	}
	if c.MACDFast <= 0 {
		c.MACDFast = d.MACDFast
	}
	if c.MACDSlow <= 0 {
		c.MACDSlow = d.MACDSlow
	}
	if c.MACDSignal <= 0 {
		c.MACDSignal = d.MACDSignal
	}
	if c.BBPeriod <= 0 {
		c.BBPeriod = d.BBPeriod
	}
	if c.BBStdDev <= 0 {
		c.BBStdDev = d.BBStdDev
	}
	if c.StochKPeriod <= 0 {
		c.StochKPeriod = d.StochKPeriod
	}
	if c.StochDPeriod <= 0 {
		c.StochDPeriod = d.StochDPeriod
	}
	if len(c.EMAPeriods) == 0 {
		c.EMAPeriods = d.EMAPeriods
	}
	if c.ATRPeriod <= 0 {
		c.ATRPeriod = d.ATRPeriod
	}
	return c
}

// column is one indicator over every bar. Values before start are padding.
type column struct {
	values []float64
	start  int
}

func (c *column) at(i int) *float64 {
	if c == nil || i < c.start || i < 0 || i >= len(c.values) {
		return nil
	}
	v := c.values[i]
	return &v
}

// Frame is the candles plus every indicator column that had enough bars.
type Frame struct {
	Candles []models.Candle
	cols    map[string]*column
	emas    []int
}

// Compute sorts candles by time and calculates all indicators with TA-Lib.
func Compute(candles []models.Candle, cfg Config) *Frame {
	cfg = cfg.withDefaults()
	sorted := append([]models.Candle(nil), candles...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Datetime.Before(sorted[j].Datetime)
	})

	n := len(sorted)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i, c := range sorted {
		highs[i], lows[i], closes[i] = c.High, c.Low, c.Close
	}

	f := &Frame{Candles: sorted, cols: map[string]*column{}}

	// TA-Lib indexes past the end on short input, so every call is guarded.
	if n > cfg.RSIPeriod {
		f.cols["rsi"] = &column{talib.Rsi(closes, cfg.RSIPeriod), cfg.RSIPeriod}
	}

	stochLookback := (cfg.StochKPeriod - 1) + (cfg.StochDPeriod - 1) + (cfg.StochDPeriod - 1)
	if n > stochLookback && n >= cfg.StochKPeriod {
		k, d := talib.Stoch(highs, lows, closes, cfg.StochKPeriod, cfg.StochDPeriod, talib.SMA, cfg.StochDPeriod, talib.SMA)
		f.cols["stoch_k"] = &column{k, stochLookback}
		f.cols["stoch_d"] = &column{d, stochLookback}
	}

	if n >= cfg.MACDSlow {
		macd, signal, hist := talib.Macd(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
		lookback := (cfg.MACDSlow - 1) + (cfg.MACDSignal - 1)
		f.cols["macd"] = &column{macd, lookback}
		f.cols["macd_signal"] = &column{signal, lookback}
		f.cols["macd_histogram"] = &column{hist, lookback}
	}

	for _, p := range cfg.EMAPeriods {
		if p > 0 && n >= p {
			f.cols[emaKey(p)] = &column{talib.Ema(closes, p), p - 1}
			f.emas = append(f.emas, p)
		}
	}

	if n >= cfg.BBPeriod {
		upper, middle, lower := talib.BBands(closes, cfg.BBPeriod, cfg.BBStdDev, cfg.BBStdDev, talib.SMA)
		width := make([]float64, n)
		position := make([]float64, n)
		for i := cfg.BBPeriod - 1; i < n; i++ {
			if middle[i] != 0 {
				width[i] = (upper[i] - lower[i]) / middle[i]
			}
			if span := upper[i] - lower[i]; span != 0 {
				position[i] = (closes[i] - lower[i]) / span
			} else {
				position[i] = 0.5
			}
		}
		start := cfg.BBPeriod - 1
		f.cols["bb_upper"] = &column{upper, start}
		f.cols["bb_middle"] = &column{middle, start}
		f.cols["bb_lower"] = &column{lower, start}
		f.cols["bb_width"] = &column{width, start}
		f.cols["bb_position"] = &column{position, start}
	}

	if n > cfg.ATRPeriod {
		f.cols["atr"] = &column{talib.Atr(highs, lows, closes, cfg.ATRPeriod), cfg.ATRPeriod}
	}
	return f
}

func emaKey(p int) string { return fmt.Sprintf("ema_%d", p) }

// Len returns the number of bars.
func (f *Frame) Len() int { return len(f.Candles) }

// Value returns indicator name at bar i, or nil when it is not available.
func (f *Frame) Value(name string, i int) *float64 {
	return f.cols[name].at(i)
}

// Latest returns the last value of indicator name.
func (f *Frame) Latest(name string) *float64 {
	return f.Value(name, f.Len()-1)
}

// Names lists the indicators that were calculated.
func (f *Frame) Names() []string {
	names := make([]string, 0, len(f.cols))
	for k := range f.cols {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Series returns the valid history of indicator name.
func (f *Frame) Series(name string) ([]models.IndicatorValue, error) {
	col, ok := f.cols[name]
	if !ok {
		return nil, fmt.Errorf("indicator %s not calculated (have %d bars)", name, f.Len())
	}
	out := make([]models.IndicatorValue, 0, len(col.values)-col.start)
	for i := col.start; i < len(col.values); i++ {
		out = append(out, models.IndicatorValue{Datetime: f.Candles[i].Datetime, Value: col.values[i]})
	}
	return out, nil
}

// Snapshot collects the latest value of every indicator.
func (f *Frame) Snapshot() models.IndicatorSnapshot {
	s := models.IndicatorSnapshot{
		RSI:           f.Latest("rsi"),
		MACD:          f.Latest("macd"),
		MACDSignal:    f.Latest("macd_signal"),
		MACDHistogram: f.Latest("macd_histogram"),
		BBUpper:       f.Latest("bb_upper"),
		BBMiddle:      f.Latest("bb_middle"),
		BBLower:       f.Latest("bb_lower"),
		BBWidth:       f.Latest("bb_width"),
		BBPosition:    f.Latest("bb_position"),
		StochK:        f.Latest("stoch_k"),
		StochD:        f.Latest("stoch_d"),
		ATR:           f.Latest("atr"),
	}
	if len(f.emas) > 0 {
		s.EMA = make(map[string]float64, len(f.emas))
		for _, p := range f.emas {
			if v := f.Latest(emaKey(p)); v != nil {
				s.EMA[emaKey(p)] = *v
			}
		}
	}
	return s
}
