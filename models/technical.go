package models

// Signal labels shared by the technical analyzer and the report formatter.
const (
	SignalNoData     = "no_data"
	SignalNeutral    = "neutral"
	SignalOverbought = "overbought"
	SignalOversold   = "oversold"
	SignalBullish    = "bullish"
	SignalBearish    = "bearish"
)

// Composite recommendations.
const (
	RecommendBuy  = "buy"
	RecommendSell = "sell"
	RecommendHold = "hold"
	RecommendNone = "none"
)

// IndicatorSnapshot holds the latest value of every computed indicator.
// Nil pointers mean there were not enough bars for that indicator.
type IndicatorSnapshot struct {
	RSI           *float64           `json:"rsi,omitempty"`
	MACD          *float64           `json:"macd,omitempty"`
	MACDSignal    *float64           `json:"macd_signal,omitempty"`
	MACDHistogram *float64           `json:"macd_histogram,omitempty"`
	BBUpper       *float64           `json:"bb_upper,omitempty"`
	BBMiddle      *float64           `json:"bb_middle,omitempty"`
	BBLower       *float64           `json:"bb_lower,omitempty"`
	BBWidth       *float64           `json:"bb_width,omitempty"`
	BBPosition    *float64           `json:"bb_position,omitempty"`
	StochK        *float64           `json:"stoch_k,omitempty"`
	StochD        *float64           `json:"stoch_d,omitempty"`
	ATR           *float64           `json:"atr,omitempty"`
	EMA           map[string]float64 `json:"ema,omitempty"`
}

type RSISignal struct {
	Value    *float64 `json:"value"`
	Signal   string   `json:"signal"`
	Strength float64  `json:"strength"`
}

type MACDSignal struct {
	Signal        string `json:"signal"`
	Crossover     bool   `json:"crossover"`
	CrossoverType string `json:"crossover_type"`
}

type BollingerSignal struct {
	Signal   string   `json:"signal"`
	Squeeze  bool     `json:"squeeze"`
	Position *float64 `json:"position,omitempty"`
}

type StochasticSignal struct {
	Signal string   `json:"signal"`
	K      *float64 `json:"k"`
	D      *float64 `json:"d"`
}

type MovingAverageSignal struct {
	Signal    string `json:"signal"`
	Strength  string `json:"strength,omitempty"`
	Alignment string `json:"alignment,omitempty"`
}

type TrendSignal struct {
	Direction string  `json:"direction"`
	Strength  float64 `json:"strength"`
	Slope     float64 `json:"slope"`
}

type VolatilitySignal struct {
	Level string   `json:"level"`
	ATR   *float64 `json:"atr"`
	Ratio *float64 `json:"atr_ratio,omitempty"`
}

type CompositeSignal struct {
	Recommendation string  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
	BullishSignals int     `json:"bullish_signals"`
	BearishSignals int     `json:"bearish_signals"`
}

type PriceSummary struct {
	CurrentPrice   float64 `json:"current_price"`
	PriceChange    float64 `json:"price_change"`
	PriceChangePct float64 `json:"price_change_pct"`
	HighestHigh    float64 `json:"highest_high"`
	LowestLow      float64 `json:"lowest_low"`
}

// TechnicalReport is the output of one technical analysis run.
type TechnicalReport struct {
	Success        bool                `json:"success"`
	Symbol         string              `json:"symbol"`
	Timestamp      string              `json:"timestamp"`
	Price          float64             `json:"price"`
	RecordCount    int                 `json:"record_count"`
	Indicators     IndicatorSnapshot   `json:"indicators"`
	PriceSummary   PriceSummary        `json:"price_summary"`
	RSI            RSISignal           `json:"rsi"`
	MACD           MACDSignal          `json:"macd"`
	Bollinger      BollingerSignal     `json:"bollinger_bands"`
	Stochastic     StochasticSignal    `json:"stochastic"`
	MovingAverages MovingAverageSignal `json:"moving_averages"`
	Trend          TrendSignal         `json:"trend"`
	Volatility     VolatilitySignal    `json:"volatility"`
	Composite      CompositeSignal     `json:"composite_signal"`
}
