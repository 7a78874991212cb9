package economic

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyike/forexcell/internal/llm"
	"github.com/dyike/forexcell/models"
)

// Trading biases.
const (
	BiasLong  = "long"
	BiasShort = "short"
	BiasWait  = "wait"
)

const adviceSystem = "You are a senior forex analyst. Using the market data and economic releases provided, give a detailed trading view as a JSON object only, with no markdown or commentary."

type modelAdvice struct {
	OverallBias      string   `json:"overall_bias"`
	ConfidenceLevel  string   `json:"confidence_level"`
	Timeframe        string   `json:"timeframe"`
	RiskLevel        string   `json:"risk_level"`
	Reasoning        []string `json:"analysis_reasoning"`
	KeyFactors       []string `json:"key_factors"`
	RiskFactors      []string `json:"risk_factors"`
	EntrySuggestions []string `json:"entry_suggestions"`
	Summary          string   `json:"summary"`
}

// Advice asks the model for a trading view and falls back to the rules
// when no model is configured or its reply cannot be used.
func (c *Calendar) Advice(ctx context.Context, pair string, news models.SentimentSummary, events models.EventsSnapshot) models.TradingAdvice {
	if c.gen == nil {
		return RuleAdvice(pair, news, events)
	}
	prompt, err := llm.RenderPrompt("trading_advice", map[string]string{
		"Pair":        pair,
		"Sentiment":   news.Sentiment,
		"Score":       fmt.Sprintf("%.3f", news.Score),
		"Explanation": news.Explanation,
		"Themes":      strings.Join(news.KeyThemes, ", "),
		"Events":      describeEvents(events.Events, 3),
	})
	if err != nil {
		return RuleAdvice(pair, news, events)
	}
	text, err := c.gen.Generate(ctx, adviceSystem, prompt)
	if err != nil {
		c.log.Warn().Err(err).Str("pair", pair).Msg("model advice failed, using rules")
		return RuleAdvice(pair, news, events)
	}
	var m modelAdvice
	if err := llm.DecodeJSON(text, &m); err != nil || m.OverallBias == "" {
		c.log.Warn().Err(err).Str("pair", pair).Msg("unusable model advice, using rules")
		return RuleAdvice(pair, news, events)
	}

	a := models.TradingAdvice{
		Action:           normalizeBias(m.OverallBias),
		Confidence:       orDefault(strings.ToLower(m.ConfidenceLevel), "medium"),
		Risk:             orDefault(strings.ToLower(m.RiskLevel), "medium"),
		Timeframe:        orDefault(m.Timeframe, "short_term"),
		Reasoning:        m.Reasoning,
		KeyFactors:       m.KeyFactors,
		RiskFactors:      m.RiskFactors,
		EntrySuggestions: m.EntrySuggestions,
		Summary:          m.Summary,
	}
	a.PositionSize = positionSize(a.Risk)
	if len(a.RiskFactors) == 0 {
		a.RiskFactors = riskFactors(events)
	}
	if a.Summary == "" {
		a.Summary = adviceSummary(a, news, events)
	}
	return a
}

// RuleAdvice derives the trading view from sentiment and the number of
// high-impact releases.
func RuleAdvice(pair string, news models.SentimentSummary, events models.EventsSnapshot) models.TradingAdvice {
	high := events.HighImpactCount
	a := models.TradingAdvice{Action: BiasWait, Confidence: "low", Risk: "low", Timeframe: "short_term"}
	switch {
	case strings.Contains(news.Sentiment, "bullish"):
		a.Action, a.Confidence = BiasLong, "medium"
	case strings.Contains(news.Sentiment, "bearish"):
		a.Action, a.Confidence = BiasShort, "medium"
	}
	if a.Action != BiasWait && high > 0 {
		a.Risk = "medium"
	}
	a.PositionSize = positionSize(a.Risk)
	a.Reasoning = adviceReasoning(news, events)
	a.KeyFactors = keyFactors(news, events)
	a.RiskFactors = riskFactors(events)
	a.EntrySuggestions = []string{"Wait for a technical level before entering", "Protect the position with a stop"}
	if zone, width, ok := EntryZone(pair, a.Action); ok {
		a.EntrySuggestions = append([]string{fmt.Sprintf("Entry zone %s (%s pips)", zone, width.String())}, a.EntrySuggestions...)
	}
	a.Summary = adviceSummary(a, news, events)
	return a
}

func adviceReasoning(news models.SentimentSummary, events models.EventsSnapshot) []string {
	lean := "neither side"
	switch {
	case strings.Contains(news.Sentiment, "bullish"):
		lean = "buyers"
	case strings.Contains(news.Sentiment, "bearish"):
		lean = "sellers"
	}
	out := []string{fmt.Sprintf("Market sentiment is %s, favouring %s", news.Sentiment, lean)}
	if n := events.HighImpactCount; n > 0 {
		out = append(out, fmt.Sprintf("%d high-impact economic releases may drive volatility", n))
	}
	if len(news.KeyThemes) > 0 {
		out = append(out, fmt.Sprintf("Coverage centres on %s, which will steer the rate", strings.Join(news.KeyThemes, ", ")))
	}
	return out
}

func keyFactors(news models.SentimentSummary, events models.EventsSnapshot) []string {
	var out []string
	switch {
	case strings.Contains(news.Sentiment, "bullish"):
		out = append(out, "Positive sentiment supports the rate")
	case strings.Contains(news.Sentiment, "bearish"):
		out = append(out, "Negative sentiment pressures the rate")
	}
	for i, ev := range events.Events {
		if i == 2 {
			break
		}
		out = append(out, fmt.Sprintf("%s may move %s", ev.Name, strings.Join(ev.CurrencyImpact, ", ")))
	}
	return out
}

func riskFactors(events models.EventsSnapshot) []string {
	var out []string
	if n := events.HighImpactCount; n > 0 {
		out = append(out,
			fmt.Sprintf("%d high-impact releases could cause sharp swings", n),
			"Uncertain release outcomes raise trading risk")
	}
	return append(out,
		"Global economic and political shocks may upset the outlook",
		"Technicals and fundamentals may diverge")
}

func adviceSummary(a models.TradingAdvice, news models.SentimentSummary, events models.EventsSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "With %s sentiment", news.Sentiment)
	if n := events.HighImpactCount; n > 0 {
		fmt.Fprintf(&b, " and %d high-impact releases", n)
	}
	fmt.Fprintf(&b, ", the bias is %s with %s confidence and %s risk. Size positions to your own risk tolerance.", a.Action, a.Confidence, a.Risk)
	return b.String()
}

func describeEvents(events []models.EconomicEvent, n int) string {
	if len(events) == 0 {
		return "none"
	}
	var lines []string
	for i, ev := range events {
		if i == n {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s (%s): actual %s, impact %s", i+1, ev.Name, ev.Date, ev.ActualValue, ev.Impact))
	}
	return strings.Join(lines, "\n")
}

func normalizeBias(bias string) string {
	b := strings.ToLower(strings.TrimSpace(bias))
	switch {
	case strings.Contains(b, "long"), strings.Contains(b, "buy"), strings.Contains(b, "bull"):
		return BiasLong
	case strings.Contains(b, "short"), strings.Contains(b, "sell"), strings.Contains(b, "bear"):
		return BiasShort
	default:
		return BiasWait
	}
}

func positionSize(risk string) string {
	if risk == "high" {
		return "light"
	}
	return "standard"
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
