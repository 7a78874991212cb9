package models

import "time"

// NewsArticle is a news item with the sentiment fields Alpha Vantage returns.
type NewsArticle struct {
	Title          string            `json:"title"`
	Summary        string            `json:"summary,omitempty"`
	URL            string            `json:"url"`
	Source         string            `json:"source"`
	PublishedAt    time.Time         `json:"published_at"`
	SentimentScore float64           `json:"sentiment_score"`
	SentimentLabel string            `json:"sentiment_label,omitempty"`
	RelevanceScore string            `json:"relevance_score,omitempty"`
	Keywords       []string          `json:"keywords,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type ImportantArticle struct {
	Title     string `json:"title"`
	Sentiment string `json:"sentiment"`
	Relevance string `json:"relevance"`
}

// SentimentSummary aggregates the news feed for one pair.
type SentimentSummary struct {
	Sentiment         string             `json:"sentiment"`
	Score             float64            `json:"sentiment_score"`
	Explanation       string             `json:"sentiment_explanation"`
	KeyThemes         []string           `json:"key_themes"`
	ImportantArticles []ImportantArticle `json:"important_articles"`
	TotalArticles     int                `json:"total_articles"`
	Source            string             `json:"source"`
}

type ImpactProfile struct {
	Direction string `json:"direction"`
	Magnitude string `json:"magnitude"`
	Duration  string `json:"duration"`
}

type MarketExpectations struct {
	ConsensusForecast string `json:"consensus_forecast"`
	PreviousValue     string `json:"previous_value"`
	DeviationImpact   string `json:"deviation_impact"`
}

type TradingImplications struct {
	PreEventStrategy  string `json:"pre_event_strategy"`
	PostEventReaction string `json:"post_event_reaction"`
	RiskManagement    string `json:"risk_management"`
}

// EventExplanation describes what an economic release is and how it moves FX.
type EventExplanation struct {
	WhatIsIt            string               `json:"what_is_it"`
	WhyItMatters        string               `json:"why_it_matters"`
	TypicalImpact       ImpactProfile        `json:"typical_impact"`
	AffectedCurrencies  []string             `json:"affected_currencies,omitempty"`
	MarketExpectations  *MarketExpectations  `json:"market_expectations,omitempty"`
	TradingImplications *TradingImplications `json:"trading_implications,omitempty"`
}

// EconomicEvent is a released indicator value.
type EconomicEvent struct {
	Name           string            `json:"name"`
	Date           string            `json:"date"`
	Time           string            `json:"time"`
	Impact         string            `json:"impact"`
	CurrencyImpact []string          `json:"currency_impact"`
	ActualValue    string            `json:"actual_value"`
	Status         string            `json:"status"`
	Explanation    *EventExplanation `json:"detailed_explanation,omitempty"`
	DataSource     string            `json:"data_source"`
	Importance     string            `json:"importance"`
}

// EventsSnapshot is the set of latest indicator releases.
type EventsSnapshot struct {
	Events               []EconomicEvent `json:"events"`
	NextEvent            *EconomicEvent  `json:"next_event,omitempty"`
	HighImpactCount      int             `json:"high_impact_count"`
	SuccessfulIndicators int             `json:"successful_indicators"`
	AttemptedIndicators  int             `json:"total_indicators_attempted"`
	Source               string          `json:"source"`
}

// TradingAdvice is the recommendation produced by the LLM or the rule fallback.
type TradingAdvice struct {
	Action           string   `json:"action"`
	Confidence       string   `json:"confidence"`
	Risk             string   `json:"risk"`
	Timeframe        string   `json:"timeframe"`
	PositionSize     string   `json:"position_size"`
	Reasoning        []string `json:"reasoning"`
	KeyFactors       []string `json:"key_factors"`
	RiskFactors      []string `json:"risk_factors"`
	EntrySuggestions []string `json:"entry_suggestions"`
	Summary          string   `json:"summary"`
}

type RecommendedAction struct {
	Timeframe      string `json:"timeframe"`
	Action         string `json:"action"`
	Rationale      string `json:"rationale"`
	RiskLevel      string `json:"risk_level"`
	PositionSizing string `json:"position_sizing"`
}

// CriticalLevels lists support and resistance prices, nearest first.
type CriticalLevels struct {
	Support    []string `json:"support"`
	Resistance []string `json:"resistance"`
}

type TradingRecommendation struct {
	OverallBias         string              `json:"overall_bias"`
	ConfidenceLevel     string              `json:"confidence_level"`
	RecommendedActions  []RecommendedAction `json:"recommended_actions"`
	KeyRiskFactors      []string            `json:"key_risk_factors"`
	PreferredEntryZones []string            `json:"preferred_entry_zones"`
	CriticalLevels      CriticalLevels      `json:"critical_levels"`
	Reasoning           []string            `json:"reasoning,omitempty"`
	Summary             string              `json:"summary"`
}

type MarketContext struct {
	OverallSentiment  string   `json:"overall_sentiment"`
	SentimentScore    float64  `json:"sentiment_score"`
	KeyMarketThemes   []string `json:"key_market_themes"`
	VolatilityOutlook string   `json:"volatility_outlook"`
}

type CalendarEvent struct {
	EventName       string            `json:"event_name"`
	EventDate       string            `json:"event_date"`
	EventTime       string            `json:"event_time"`
	Country         string            `json:"country"`
	ImportanceLevel string            `json:"importance_level"`
	ActualValue     string            `json:"actual_value"`
	Status          string            `json:"status"`
	Explanation     *EventExplanation `json:"detailed_explanation,omitempty"`
}

type CalendarSection struct {
	DataType             string          `json:"data_type"`
	PeriodCovered        string          `json:"period_covered"`
	TotalEvents          int             `json:"total_events"`
	HighImpactEvents     int             `json:"high_impact_events"`
	SuccessfulDataPoints int             `json:"successful_data_points"`
	Events               []CalendarEvent `json:"events"`
}

type APIUsage struct {
	CallsMade      int `json:"calls_made"`
	CallsRemaining int `json:"calls_remaining"`
}

type DataSources struct {
	NewsSource   string   `json:"news_source"`
	EventsSource string   `json:"events_source"`
	APIUsage     APIUsage `json:"api_usage"`
}

type EducationalInsights struct {
	FundamentalConcept     string   `json:"fundamental_concept"`
	HowToInterpret         string   `json:"how_to_interpret"`
	CommonMistakes         []string `json:"common_mistakes"`
	AdvancedConsiderations []string `json:"advanced_considerations"`
}

// PairAnalysis is the fundamental analysis of a single currency pair.
type PairAnalysis struct {
	Success           bool                   `json:"success"`
	CurrencyPair      string                 `json:"currency_pair"`
	AnalysisTimestamp time.Time              `json:"analysis_timestamp"`
	MarketContext     *MarketContext         `json:"market_context,omitempty"`
	Calendar          *CalendarSection       `json:"economic_calendar_analysis,omitempty"`
	Recommendation    *TradingRecommendation `json:"trading_recommendation,omitempty"`
	DataSources       *DataSources           `json:"data_sources,omitempty"`
	Insights          *EducationalInsights   `json:"educational_insights,omitempty"`
	SupportedPairs    []string               `json:"supported_pairs,omitempty"`
	Error             string                 `json:"error,omitempty"`
}

type MultiCurrencySummary struct {
	BullishPairs       []string `json:"bullish_pairs"`
	BearishPairs       []string `json:"bearish_pairs"`
	MarketOutlook      string   `json:"market_outlook"`
	DominantBias       string   `json:"dominant_bias"`
	SuccessfulAnalyses int      `json:"successful_analyses"`
	TotalPairs         int      `json:"total_pairs"`
}

// MultiCurrencyAnalysis runs the pair analysis over every supported major.
type MultiCurrencyAnalysis struct {
	Success           bool                     `json:"success"`
	AnalysisType      string                   `json:"analysis_type"`
	PairsAnalyzed     []string                 `json:"currency_pairs_analyzed"`
	Analyses          map[string]*PairAnalysis `json:"individual_analyses"`
	Summary           MultiCurrencySummary     `json:"summary"`
	AnalysisTimestamp time.Time                `json:"analysis_timestamp"`
}

type EventAdvice struct {
	Strategy       string `json:"strategy"`
	RiskManagement string `json:"risk_management"`
	KeyLevels      string `json:"key_levels"`
}
