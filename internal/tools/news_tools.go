// Package tools exposes forex news and calendar lookups as eino tools for
// the ReAct agents.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/forexcell/internal/dataflows"
	"github.com/dyike/forexcell/internal/economic"
	"github.com/dyike/forexcell/models"
)

// NewsReport is the text a news tool hands back to the model.
type NewsReport struct {
	Report string `json:"report"`
}

type BreakingNewsInput struct{}

type FinancialNewsInput struct {
	CurrencyPair string `json:"currency_pair"`
}

type WebSearchInput struct {
	Query string `json:"query"`
}

// Headlines is the search side of dataflows.HeadlineScraper.
type Headlines interface {
	Headlines(ctx context.Context, q dataflows.HeadlineQuery) ([]models.NewsArticle, error)
}

// NewBreakingNewsTool summarizes the next-day outlook across the majors.
func NewBreakingNewsTool(cal *economic.Calendar) tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name:        "breaking_news",
			Desc:        "Urgent forex market updates: overall bias, high-impact economic releases and volatility across the major pairs",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		func(ctx context.Context, _ BreakingNewsInput) (*NewsReport, error) {
			return BreakingNews(ctx, cal)
		},
	)
}

// NewFinancialNewsTool reports the fundamental picture of one pair, or of
// the whole market when no pair is given.
func NewFinancialNewsTool(cal *economic.Calendar) tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "financial_news",
			Desc: "Detailed forex market news and trading view, optionally focused on one currency pair",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"currency_pair": {
					Type:     "string",
					Desc:     "Currency pair to focus on, e.g. 'EUR/USD'. Omit for the whole market",
					Required: false,
				},
			}),
		},
		func(ctx context.Context, input FinancialNewsInput) (*NewsReport, error) {
			return FinancialNews(ctx, cal, input.CurrencyPair)
		},
	)
}

// NewWebSearchTool searches recent headlines and adds the multi-pair view.
func NewWebSearchTool(cal *economic.Calendar, headlines Headlines) tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "web_search",
			Desc: "Search recent forex headlines and combine them with a multi-currency trading analysis",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     "string",
					Desc:     "Search query, e.g. 'EUR/USD ECB rate decision'",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, input WebSearchInput) (*NewsReport, error) {
			if strings.TrimSpace(input.Query) == "" {
				return nil, fmt.Errorf("query parameter is required")
			}
			return WebSearch(ctx, cal, headlines, input.Query)
		},
	)
}

func BreakingNews(ctx context.Context, cal *economic.Calendar) (*NewsReport, error) {
	multi, err := cal.MultiCurrency(ctx, 1, true)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	b.WriteString("🚨 Breaking forex news\n\n")
	fmt.Fprintf(&b, "📊 Dominant bias: %s (%s)\n", multi.Summary.DominantBias, multi.Summary.MarketOutlook)

	if first := firstAnalysis(multi); first != nil && first.MarketContext != nil {
		if themes := first.MarketContext.KeyMarketThemes; len(themes) > 0 {
			fmt.Fprintf(&b, "🎯 Key themes: %s\n", strings.Join(themes, ", "))
		}
		if first.Calendar != nil && first.Calendar.HighImpactEvents > 0 {
			fmt.Fprintf(&b, "⚠️ High-impact events: %d\n", first.Calendar.HighImpactEvents)
		}
		fmt.Fprintf(&b, "📈 Volatility outlook: %s\n", first.MarketContext.VolatilityOutlook)
	}
	if len(multi.Summary.BullishPairs) > 0 {
		fmt.Fprintf(&b, "\n🟢 Bullish: %s\n", strings.Join(multi.Summary.BullishPairs, ", "))
	}
	if len(multi.Summary.BearishPairs) > 0 {
		fmt.Fprintf(&b, "🔴 Bearish: %s\n", strings.Join(multi.Summary.BearishPairs, ", "))
	}
	return &NewsReport{Report: b.String()}, nil
}

func FinancialNews(ctx context.Context, cal *economic.Calendar, pair string) (*NewsReport, error) {
	if strings.TrimSpace(pair) == "" {
		multi, err := cal.MultiCurrency(ctx, 3, true)
		if err != nil {
			return nil, err
		}
		return &NewsReport{Report: formatMulti(multi)}, nil
	}
	a, err := cal.Analyze(ctx, pair, 3, true)
	if err != nil {
		return nil, err
	}
	return &NewsReport{Report: formatPair(a)}, nil
}

func WebSearch(ctx context.Context, cal *economic.Calendar, headlines Headlines, query string) (*NewsReport, error) {
	var b strings.Builder
	if headlines != nil {
		articles, err := headlines.Headlines(ctx, dataflows.HeadlineQuery{Query: query, MaxResults: 8})
		if err == nil && len(articles) > 0 {
			fmt.Fprintf(&b, "📰 Headlines for %q\n", query)
			for i, a := range articles {
				fmt.Fprintf(&b, "  %d. %s", i+1, a.Title)
				if a.Source != "" {
					fmt.Fprintf(&b, " (%s)", a.Source)
				}
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}
	multi, err := cal.MultiCurrency(ctx, 2, true)
	if err != nil {
		return nil, err
	}
	b.WriteString(formatMulti(multi))
	return &NewsReport{Report: b.String()}, nil
}

func formatPair(a *models.PairAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💱 %s forex analysis\n\n", a.CurrencyPair)
	if mc := a.MarketContext; mc != nil {
		b.WriteString("📊 Market overview\n")
		fmt.Fprintf(&b, "    Sentiment: %s (%.3f)\n", mc.OverallSentiment, mc.SentimentScore)
		fmt.Fprintf(&b, "    Themes: %s\n", strings.Join(mc.KeyMarketThemes, ", "))
		fmt.Fprintf(&b, "    Volatility: %s\n\n", mc.VolatilityOutlook)
	}
	if cs := a.Calendar; cs != nil && len(cs.Events) > 0 {
		b.WriteString("📅 Latest economic data\n")
		for i, ev := range cs.Events {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "    %d. %s: %s\n", i+1, ev.EventName, ev.ActualValue)
		}
		b.WriteString("\n")
	}
	if rec := a.Recommendation; rec != nil {
		b.WriteString("💡 Trading view\n")
		fmt.Fprintf(&b, "    Bias: %s (%s confidence)\n", rec.OverallBias, rec.ConfidenceLevel)
		if len(rec.RecommendedActions) > 0 {
			act := rec.RecommendedActions[0]
			fmt.Fprintf(&b, "    Timeframe: %s\n", act.Timeframe)
			fmt.Fprintf(&b, "    Risk: %s\n", act.RiskLevel)
		}
		if len(rec.PreferredEntryZones) > 0 {
			fmt.Fprintf(&b, "    Entry: %s\n", rec.PreferredEntryZones[0])
		}
	}
	return b.String()
}

func formatMulti(m *models.MultiCurrencyAnalysis) string {
	var b strings.Builder
	b.WriteString("🌍 Multi-currency market analysis\n\n")
	b.WriteString("📈 Overview\n")
	fmt.Fprintf(&b, "    Bullish pairs: %s\n", joinOrNone(m.Summary.BullishPairs))
	fmt.Fprintf(&b, "    Bearish pairs: %s\n", joinOrNone(m.Summary.BearishPairs))
	fmt.Fprintf(&b, "    Dominant bias: %s\n\n", m.Summary.DominantBias)

	b.WriteString("💱 Pairs\n")
	for i, pair := range m.PairsAnalyzed {
		a := m.Analyses[pair]
		if a == nil || !a.Success || a.Recommendation == nil {
			continue
		}
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, pair, a.Recommendation.OverallBias)
	}
	return b.String()
}

func firstAnalysis(m *models.MultiCurrencyAnalysis) *models.PairAnalysis {
	pairs := append([]string(nil), m.PairsAnalyzed...)
	if len(pairs) == 0 {
		for p := range m.Analyses {
			pairs = append(pairs, p)
		}
		sort.Strings(pairs)
	}
	for _, p := range pairs {
		if a := m.Analyses[p]; a != nil && a.Success {
			return a
		}
	}
	return nil
}

func joinOrNone(list []string) string {
	if len(list) == 0 {
		return "none"
	}
	return strings.Join(list, ", ")
}
