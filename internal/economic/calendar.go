// Package economic builds the fundamental view of a currency pair from
// Alpha Vantage news sentiment and released US macro indicators.
package economic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyike/forexcell/config"
	"github.com/dyike/forexcell/internal/dataflows"
	"github.com/dyike/forexcell/internal/logger"
	"github.com/dyike/forexcell/models"
)

var ErrUnsupportedPair = errors.New("unsupported currency pair")

// Source is the subset of the Alpha Vantage client the calendar reads.
type Source interface {
	NewsSentiment(ctx context.Context, tickers, topics []string, limit int) ([]models.NewsArticle, error)
	EconomicIndicator(ctx context.Context, function, interval string) (*dataflows.IndicatorSeries, error)
	TestMode() bool
	LimitReached() bool
	Usage() (int, int)
}

// Generator produces the model-written trading advice. The llm analyzer
// satisfies it.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

var pairTickers = map[string][]string{
	"EUR/USD": {"FOREX:EUR", "FOREX:USD"},
	"GBP/USD": {"FOREX:GBP", "FOREX:USD"},
	"USD/JPY": {"FOREX:USD", "FOREX:JPY"},
	"USD/CHF": {"FOREX:USD", "FOREX:CHF"},
	"AUD/USD": {"FOREX:AUD", "FOREX:USD"},
	"USD/CAD": {"FOREX:USD", "FOREX:CAD"},
	"NZD/USD": {"FOREX:NZD", "FOREX:USD"},
}

// Calendar runs the economic analysis. A nil source or a source in test
// mode yields simulated sentiment and the fallback event.
type Calendar struct {
	source Source
	gen    Generator
	pairs  []string
	now    func() time.Time
	log    zerolog.Logger
}

type Option func(*Calendar)

func WithGenerator(g Generator) Option {
	return func(c *Calendar) { c.gen = g }
}

func WithClock(now func() time.Time) Option {
	return func(c *Calendar) { c.now = now }
}

func NewCalendar(source Source, opts ...Option) *Calendar {
	c := &Calendar{
		source: source,
		pairs:  append([]string(nil), config.MajorPairs...),
		now:    time.Now,
		log:    logger.Component("economic_calendar"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SupportedPairs returns the pairs the calendar can analyze.
func (c *Calendar) SupportedPairs() []string {
	return append([]string(nil), c.pairs...)
}

func (c *Calendar) offline() bool {
	return c.source == nil || c.source.TestMode() || c.source.LimitReached()
}

// TradingAnalysis analyzes pair, or every supported major when pair is
// empty. The result is a *models.PairAnalysis or *models.MultiCurrencyAnalysis.
func (c *Calendar) TradingAnalysis(ctx context.Context, pair string, daysAhead int, includeFundamental bool) (any, error) {
	if strings.TrimSpace(pair) == "" {
		return c.MultiCurrency(ctx, daysAhead, includeFundamental)
	}
	return c.Analyze(ctx, pair, daysAhead, includeFundamental)
}

// Analyze builds the fundamental analysis of one pair.
func (c *Calendar) Analyze(ctx context.Context, pair string, daysAhead int, includeFundamental bool) (*models.PairAnalysis, error) {
	norm, err := models.NormalizePair(pair)
	if err != nil || pairTickers[norm] == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPair, pair)
	}
	news := c.News(ctx, norm)
	events := c.Events(ctx)
	return c.buildAnalysis(ctx, norm, news, events, includeFundamental), nil
}

// MultiCurrency analyzes every supported major. The indicator releases are
// shared across pairs so they are fetched once.
func (c *Calendar) MultiCurrency(ctx context.Context, daysAhead int, includeFundamental bool) (*models.MultiCurrencyAnalysis, error) {
	events := c.Events(ctx)
	out := &models.MultiCurrencyAnalysis{
		Success:           true,
		AnalysisType:      "multi_currency",
		Analyses:          make(map[string]*models.PairAnalysis, len(c.pairs)),
		AnalysisTimestamp: c.now(),
	}
	for _, pair := range c.pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		news := c.News(ctx, pair)
		out.Analyses[pair] = c.buildAnalysis(ctx, pair, news, events, includeFundamental)
		out.PairsAnalyzed = append(out.PairsAnalyzed, pair)
	}
	out.Summary = summarize(out.PairsAnalyzed, out.Analyses)
	return out, nil
}

func summarize(order []string, analyses map[string]*models.PairAnalysis) models.MultiCurrencySummary {
	s := models.MultiCurrencySummary{
		BullishPairs: []string{},
		BearishPairs: []string{},
		TotalPairs:   len(analyses),
	}
	for _, pair := range order {
		a := analyses[pair]
		if a == nil || !a.Success {
			continue
		}
		s.SuccessfulAnalyses++
		if a.Recommendation == nil {
			continue
		}
		switch a.Recommendation.OverallBias {
		case BiasLong:
			s.BullishPairs = append(s.BullishPairs, pair)
		case BiasShort:
			s.BearishPairs = append(s.BearishPairs, pair)
		}
	}
	s.MarketOutlook = "consistent"
	if len(s.BullishPairs) > 0 && len(s.BearishPairs) > 0 {
		s.MarketOutlook = "divided"
	}
	switch {
	case len(s.BullishPairs) > len(s.BearishPairs):
		s.DominantBias = "bullish"
	case len(s.BearishPairs) > len(s.BullishPairs):
		s.DominantBias = "bearish"
	default:
		s.DominantBias = "neutral"
	}
	return s
}

func (c *Calendar) buildAnalysis(ctx context.Context, pair string, news models.SentimentSummary, events models.EventsSnapshot, includeFundamental bool) *models.PairAnalysis {
	advice := c.Advice(ctx, pair, news, events)

	used, limit := 0, 0
	if c.source != nil {
		used, limit = c.source.Usage()
	}
	themes := news.KeyThemes
	if themes == nil {
		themes = []string{}
	}
	entries := advice.EntrySuggestions
	if entries == nil {
		entries = []string{}
	}
	out := &models.PairAnalysis{
		Success:           true,
		CurrencyPair:      pair,
		AnalysisTimestamp: c.now(),
		MarketContext: &models.MarketContext{
			OverallSentiment:  news.Sentiment,
			SentimentScore:    news.Score,
			KeyMarketThemes:   themes,
			VolatilityOutlook: VolatilityOutlook(events.HighImpactCount),
		},
		Calendar: &models.CalendarSection{
			DataType:             "historical_releases",
			PeriodCovered:        "latest published indicators",
			TotalEvents:          len(events.Events),
			HighImpactEvents:     events.HighImpactCount,
			SuccessfulDataPoints: events.SuccessfulIndicators,
			Events:               calendarEvents(events.Events),
		},
		Recommendation: &models.TradingRecommendation{
			OverallBias:         advice.Action,
			ConfidenceLevel:     advice.Confidence,
			RecommendedActions:  recommendedActions(advice),
			KeyRiskFactors:      advice.RiskFactors,
			PreferredEntryZones: entries,
			CriticalLevels:      CriticalLevelsFor(pair),
			Reasoning:           advice.Reasoning,
			Summary:             advice.Summary,
		},
		DataSources: &models.DataSources{
			NewsSource:   news.Source,
			EventsSource: events.Source,
			APIUsage:     models.APIUsage{CallsMade: used, CallsRemaining: max(limit-used, 0)},
		},
	}
	if includeFundamental {
		out.Insights = educationalInsights()
	}
	return out
}

// VolatilityOutlook grades expected volatility by the number of
// high-impact releases.
func VolatilityOutlook(highImpact int) string {
	switch {
	case highImpact >= 2:
		return "high"
	case highImpact == 1:
		return "medium"
	default:
		return "low"
	}
}

func recommendedActions(a models.TradingAdvice) []models.RecommendedAction {
	actions := []models.RecommendedAction{{
		Timeframe:      "short_term (1-3 days)",
		Action:         a.Action,
		Rationale:      "current news sentiment and recent economic releases",
		RiskLevel:      a.Risk,
		PositionSizing: a.PositionSize,
	}}
	if len(a.RiskFactors) > 0 {
		actions = append(actions, models.RecommendedAction{
			Timeframe:      "event_driven",
			Action:         "trade cautiously",
			Rationale:      "high-impact releases can trigger sharp moves",
			RiskLevel:      "high",
			PositionSizing: "light",
		})
	}
	return actions
}

func educationalInsights() *models.EducationalInsights {
	return &models.EducationalInsights{
		FundamentalConcept: "How economic releases move exchange rates",
		HowToInterpret:     "Watch the surprise against consensus rather than the absolute value",
		CommonMistakes: []string{
			"Holding large positions into a major release",
			"Ignoring revisions to the previous value",
			"Overtrading low-impact events",
		},
		AdvancedConsiderations: []string{
			"Read the trend across releases, not a single print",
			"Track shifts in central bank expectations",
			"Confirm fundamental signals with technical levels",
		},
	}
}

// Health describes the calendar's data and model availability.
type Health struct {
	Success        bool            `json:"success"`
	Status         string          `json:"status"`
	APIRemaining   int             `json:"api_remaining"`
	TestMode       bool            `json:"test_mode"`
	AIEnabled      bool            `json:"ai_enabled"`
	Features       map[string]bool `json:"features_enabled"`
	SupportedPairs []string        `json:"supported_currency_pairs"`
}

func (c *Calendar) HealthCheck() Health {
	h := Health{
		Success:        true,
		Status:         "operational",
		TestMode:       c.source == nil || c.source.TestMode(),
		AIEnabled:      c.gen != nil,
		Features:       map[string]bool{"detailed_explanations": true, "market_expectations": true},
		SupportedPairs: c.SupportedPairs(),
	}
	if c.source != nil {
		used, limit := c.source.Usage()
		h.APIRemaining = max(limit-used, 0)
	}
	return h
}
