package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyike/forexcell/models"
)

// ComprehensiveInput carries the upstream results into the synthesis step.
// The data fields accept typed results or their generic map forms.
type ComprehensiveInput struct {
	UserQuery     string
	QueryAnalysis *models.QueryAnalysis
	MarketData    any
	EconomicData  any
	TechnicalData any
}

type marketDigest struct {
	pair    string
	kind    string
	quote   *models.Quote
	last    *models.Candle
	summary *models.SeriesSummary
}

type economicDigest struct {
	multi *models.MultiCurrencyAnalysis
	pair  *models.PairAnalysis
}

type analysisContext struct {
	market       marketDigest
	economic     economicDigest
	technical    *models.TechnicalReport
	availability models.DataAvailability
	focus        []string
}

func digestMarket(v any) marketDigest {
	var d marketDigest
	if v == nil {
		return d
	}
	var fr models.FetchResult
	if err := models.FromMap(v, &fr); err != nil || !fr.Success {
		return d
	}
	d.pair = fr.CurrencyPair
	switch {
	case fr.Quote != nil:
		d.kind, d.quote = "real_time", fr.Quote
	case fr.Series != nil && len(fr.Series.Candles) > 0:
		last := fr.Series.Candles[len(fr.Series.Candles)-1]
		d.kind, d.last = "historical", &last
		d.summary = &fr.Series.Summary
		if fr.Summary != nil {
			d.summary = fr.Summary
		}
	}
	return d
}

func digestEconomic(v any) economicDigest {
	var d economicDigest
	if v == nil {
		return d
	}
	m, err := models.ToMap(v)
	if err != nil {
		return d
	}
	if ok, _ := m["success"].(bool); !ok {
		return d
	}
	if m["analysis_type"] == "multi_currency" {
		var multi models.MultiCurrencyAnalysis
		if models.FromMap(m, &multi) != nil {
			return d
		}
		d.multi = &multi
		for _, pair := range multi.PairsAnalyzed {
			if pa := multi.Analyses[pair]; pa != nil && pa.Success {
				d.pair = pa
				break
			}
		}
		return d
	}
	var pa models.PairAnalysis
	if models.FromMap(m, &pa) == nil {
		d.pair = &pa
	}
	return d
}

func digestTechnical(v any) *models.TechnicalReport {
	if v == nil {
		return nil
	}
	var r models.TechnicalReport
	if err := models.FromMap(v, &r); err != nil || !r.Success || r.RecordCount == 0 {
		return nil
	}
	return &r
}

func (e economicDigest) events() []models.CalendarEvent {
	if e.pair == nil || e.pair.Calendar == nil {
		return nil
	}
	return e.pair.Calendar.Events
}

func prepareContext(in ComprehensiveInput) analysisContext {
	c := analysisContext{
		market:    digestMarket(in.MarketData),
		economic:  digestEconomic(in.EconomicData),
		technical: digestTechnical(in.TechnicalData),
	}
	a := &c.availability
	a.HasMarketData = c.market.kind != ""
	a.MarketDataType = c.market.kind
	a.HasEconomicData = c.economic.pair != nil && (c.economic.pair.MarketContext != nil || len(c.economic.events()) > 0)
	if a.HasEconomicData {
		a.EconomicDataType = "single_currency"
		if c.economic.multi != nil {
			a.EconomicDataType = "multi_currency"
		}
	}
	a.HasTechnicalData = c.technical != nil
	if a.HasTechnicalData {
		a.TechnicalDataType = "trading_signals"
	}
	c.focus = analysisFocus(c, in.QueryAnalysis)
	return c
}

// analysisFocus merges the query's focus with what the data supports,
// deduplicated in order and capped at five.
func analysisFocus(c analysisContext, qa *models.QueryAnalysis) []string {
	var areas []string
	if qa != nil {
		areas = append(areas, qa.AnalysisFocus...)
	}
	a := c.availability
	if a.HasTechnicalData {
		areas = append(areas, "trading signal analysis", "indicator agreement")
	}
	if a.HasEconomicData {
		if mc := c.economic.pair.MarketContext; mc != nil && mc.OverallSentiment != "" {
			areas = append(areas, "market sentiment impact")
		}
		if len(c.economic.events()) > 0 {
			areas = append(areas, "economic event analysis")
		}
		if a.EconomicDataType == "multi_currency" {
			areas = append(areas, "cross-pair comparison")
		}
	}
	switch a.MarketDataType {
	case "real_time":
		areas = append(areas, "real-time price analysis")
	case "historical":
		areas = append(areas, "historical trend analysis")
	}

	seen := map[string]bool{}
	out := make([]string, 0, 5)
	for _, f := range areas {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
		if len(out) == 5 {
			break
		}
	}
	return out
}

// ComprehensiveAnalysis writes the final markdown report. Without a model,
// or when the model fails, it returns a data summary marked as fallback.
func (a *Analyzer) ComprehensiveAnalysis(ctx context.Context, in ComprehensiveInput) (*models.ComprehensiveReport, error) {
	if in.QueryAnalysis == nil && strings.TrimSpace(in.UserQuery) != "" {
		qa, err := a.AnalyzeUserQuery(ctx, in.UserQuery)
		if err == nil {
			in.QueryAnalysis = qa
		}
	}
	c := prepareContext(in)
	report := &models.ComprehensiveReport{
		Success:       true,
		QueryAnalysis: in.QueryAnalysis,
		DataContext:   c.availability,
		Focus:         c.focus,
		Model:         a.client.Model(),
		UserQuery:     in.UserQuery,
		Sources:       c.availability.Sources(),
	}

	if a.client != nil {
		text, err := a.client.Generate(ctx, mustPrompt("comprehensive_system"), buildAnalysisPrompt(c, in))
		if err == nil {
			report.Analysis = text
			return report, nil
		}
		a.log.Warn().Err(err).Msg("comprehensive analysis failed, writing data summary")
	}
	report.Analysis = fallbackReport(c, in)
	report.Fallback = true
	return report, nil
}

func buildAnalysisPrompt(c analysisContext, in ComprehensiveInput) string {
	var b strings.Builder
	query := in.UserQuery
	if query == "" {
		query = "General market analysis"
	}
	fmt.Fprintf(&b, "# Forex In-Depth Analysis\n\n## User question\n%s\n", query)

	if qa := in.QueryAnalysis; qa != nil {
		primary := qa.PrimaryPair
		if primary == "" {
			primary = "not identified"
		}
		concerns := qa.UserConcerns
		if len(concerns) == 0 {
			concerns = []string{"market direction"}
		}
		fmt.Fprintf(&b, "\n## Query analysis\n- **Primary pair**: %s\n- **Focus**: %s\n- **User concerns**: %s\n",
			primary, strings.Join(c.focus, ", "), strings.Join(concerns, ", "))
	}

	fmt.Fprintf(&b, "\n## Data availability\n%s\n", availabilityReport(c.availability))
	b.WriteString("\n## Data\n")
	if c.availability.HasMarketData {
		fmt.Fprintf(&b, "\n### 📊 Market data\n%s\n", formatMarket(c.market))
	}
	if c.availability.HasEconomicData {
		fmt.Fprintf(&b, "\n### 📈 Economic data and sentiment\n%s\n", formatEconomic(c.economic))
	}
	if c.availability.HasTechnicalData {
		fmt.Fprintf(&b, "\n### 🔧 Technical analysis\n%s\n", formatTechnical(c.technical))
	}

	tail, err := RenderPrompt("comprehensive_report", map[string]string{"Instructions": analysisInstructions(c.availability)})
	if err == nil {
		b.WriteString("\n")
		b.WriteString(tail)
	}
	return b.String()
}

func availabilityReport(a models.DataAvailability) string {
	mark := func(ok bool) string {
		if ok {
			return "✅ available"
		}
		return "❌ missing"
	}
	lines := []string{
		fmt.Sprintf("- Market data: %s", mark(a.HasMarketData)),
		fmt.Sprintf("- Economic data: %s", mark(a.HasEconomicData)),
		fmt.Sprintf("- Technical data: %s", mark(a.HasTechnicalData)),
	}
	if !a.HasMarketData || !a.HasEconomicData || !a.HasTechnicalData {
		lines = append(lines, "- State the limits that missing data places on the conclusions.")
	}
	return strings.Join(lines, "\n")
}

func analysisInstructions(a models.DataAvailability) string {
	var lines []string
	lines = append(lines, "### 1. Market assessment")
	if a.HasMarketData {
		lines = append(lines, "- 📊 **Price**: current price, direction of change, key levels",
			"- 💰 **Volatility**: how much the price has been moving")
	}
	if a.HasEconomicData {
		lines = append(lines, "- 📈 **Sentiment**: sentiment score and main themes",
			"- 🗓️ **Events**: actual impact of major releases")
	}
	lines = append(lines, "### 2. Technical signals")
	if a.HasTechnicalData {
		lines = append(lines, "- 🔔 **Composite signal**: direction and strength",
			"- 📉 **Agreement**: whether RSI, MACD and the others confirm each other")
	}
	lines = append(lines,
		"### 3. Strategy",
		"- 💡 **Opportunity**: the best-supported timing",
		"- ⚖️ **Risk/reward**: a concrete ratio",
		"- 🛡️ **Risk control**: stops placed from volatility and support/resistance",
		"### 4. Execution and monitoring",
		"- 🎯 **Setup**: explicit entry, stop and target prices",
		"- 🔄 **Adjustment**: how to react as the market changes",
	)
	if a.EconomicDataType == "multi_currency" {
		lines = append(lines, "", "### 🌍 Cross-market opportunities", "- Relative value across the analyzed pairs")
	}
	return strings.Join(lines, "\n")
}

func formatMarket(m marketDigest) string {
	var lines []string
	switch {
	case m.quote != nil:
		q := m.quote
		lines = append(lines, fmt.Sprintf("- **Current price**: %.5f", q.ExchangeRate))
		if q.Change != 0 {
			arrow := "📉"
			if q.Change > 0 {
				arrow = "📈"
			}
			lines = append(lines, fmt.Sprintf("- **Change**: %s %.5f (%.2f%%)", arrow, q.Change, q.PercentChange))
		}
		lines = append(lines, fmt.Sprintf("- **Day range**: %.5f - %.5f", q.Low, q.High))
	case m.last != nil:
		lines = append(lines, fmt.Sprintf("- **Latest close**: %.5f (%s)", m.last.Close, m.last.Datetime.Format("2006-01-02 15:04")))
		lines = append(lines, fmt.Sprintf("- **Latest bar**: O %.5f H %.5f L %.5f", m.last.Open, m.last.High, m.last.Low))
		if s := m.summary; s != nil && s.RecordCount > 0 {
			lines = append(lines, fmt.Sprintf("- **History**: %d bars, %s to %s, mean close %.5f, std %.5f",
				s.RecordCount, s.DateRange.Start, s.DateRange.End, s.PriceStats.CloseMean, s.PriceStats.CloseStd))
		}
	}
	if m.pair != "" {
		lines = append(lines, fmt.Sprintf("- **Instrument**: %s", m.pair))
	}
	return strings.Join(lines, "\n")
}

func formatEconomic(e economicDigest) string {
	var lines []string
	pa := e.pair
	if mc := pa.MarketContext; mc != nil {
		icon := "⚖️"
		switch {
		case strings.Contains(mc.OverallSentiment, "bullish"):
			icon = "🐂"
		case strings.Contains(mc.OverallSentiment, "bearish"):
			icon = "🐻"
		}
		lines = append(lines, fmt.Sprintf("- **Sentiment**: %s %s (score %.3f)", icon, mc.OverallSentiment, mc.SentimentScore))
		if len(mc.KeyMarketThemes) > 0 {
			lines = append(lines, fmt.Sprintf("- **Themes**: %s", strings.Join(first(mc.KeyMarketThemes, 3), ", ")))
		}
		lines = append(lines, fmt.Sprintf("- **Volatility outlook**: %s", mc.VolatilityOutlook))
	}
	var high []models.CalendarEvent
	for _, ev := range e.events() {
		if ev.ImportanceLevel == "high" || ev.ImportanceLevel == "very_high" {
			high = append(high, ev)
		}
	}
	if len(high) > 0 {
		lines = append(lines, fmt.Sprintf("- **High-impact releases**: %d", len(high)))
		for _, ev := range high[:min(3, len(high))] {
			lines = append(lines, fmt.Sprintf("  - %s (%s): %s", ev.EventName, ev.EventDate, ev.ActualValue))
		}
	}
	if rec := pa.Recommendation; rec != nil && rec.OverallBias != "" {
		lines = append(lines, fmt.Sprintf("- **Fundamental bias**: %s (confidence %s)", rec.OverallBias, rec.ConfidenceLevel))
		if len(rec.KeyRiskFactors) > 0 {
			lines = append(lines, fmt.Sprintf("- **Main risks**: %s", strings.Join(first(rec.KeyRiskFactors, 2), "; ")))
		}
	}
	if m := e.multi; m != nil {
		lines = append(lines, fmt.Sprintf("- **Multi-pair view**: %s, dominant bias %s", m.Summary.MarketOutlook, m.Summary.DominantBias))
	}
	if len(lines) == 0 {
		return "Limited economic data"
	}
	return strings.Join(lines, "\n")
}

func formatTechnical(r *models.TechnicalReport) string {
	c := r.Composite
	strength := "medium"
	switch {
	case c.Confidence > 70:
		strength = "strong"
	case c.Confidence < 30:
		strength = "weak"
	}
	lines := []string{
		fmt.Sprintf("- **Composite signal**: %s, confidence %.1f%% (%s)", c.Recommendation, c.Confidence, strength),
		fmt.Sprintf("- **Votes**: %d bullish vs %d bearish", c.BullishSignals, c.BearishSignals),
	}
	var parts []string
	if r.RSI.Value != nil {
		parts = append(parts, fmt.Sprintf("RSI %.2f (%s)", *r.RSI.Value, r.RSI.Signal))
	}
	if r.MACD.Signal != "" {
		parts = append(parts, fmt.Sprintf("MACD %s", r.MACD.Signal))
	}
	if r.Trend.Direction != "" {
		parts = append(parts, fmt.Sprintf("trend %s %.1f%%", r.Trend.Direction, r.Trend.Strength))
	}
	if r.Bollinger.Signal != "" {
		parts = append(parts, fmt.Sprintf("Bollinger %s", r.Bollinger.Signal))
	}
	if len(parts) > 0 {
		lines = append(lines, "- **Indicators**: "+strings.Join(parts, ", "))
	}
	lines = append(lines, fmt.Sprintf("- **Price**: %.5f (%+.2f%% over %d bars)", r.Price, r.PriceSummary.PriceChangePct, r.RecordCount))
	return strings.Join(lines, "\n")
}

func fallbackReport(c analysisContext, in ComprehensiveInput) string {
	var b strings.Builder
	b.WriteString("## Data Summary\n\n")
	b.WriteString("_No language model was available; this summary lists the collected data._\n")
	if in.UserQuery != "" {
		fmt.Fprintf(&b, "\n**Question**: %s\n", in.UserQuery)
	}
	if c.availability.HasMarketData {
		fmt.Fprintf(&b, "\n### Market\n%s\n", formatMarket(c.market))
	}
	if c.availability.HasEconomicData {
		fmt.Fprintf(&b, "\n### Fundamentals\n%s\n", formatEconomic(c.economic))
	}
	if c.availability.HasTechnicalData {
		fmt.Fprintf(&b, "\n### Technicals\n%s\n", formatTechnical(c.technical))
	}
	if len(c.availability.Sources()) == 0 {
		b.WriteString("\nNo usable data was collected.\n")
	}
	return b.String()
}

func first(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
