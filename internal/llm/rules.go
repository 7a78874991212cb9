package llm

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dyike/forexcell/models"
)

var currencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true, "CHF": true,
	"AUD": true, "CAD": true, "NZD": true, "CNY": true, "CNH": true,
	"HKD": true, "SGD": true, "SEK": true, "NOK": true, "MXN": true,
}

var pairPattern = regexp.MustCompile(`\b([A-Z]{3})(?:\s*/\s*|-)?([A-Z]{3})\b`)

// nicknames maps market slang to the pair it usually refers to.
var nicknames = []struct {
	re   *regexp.Regexp
	pair string
}{
	{regexp.MustCompile(`\bcable\b`), "GBP/USD"},
	{regexp.MustCompile(`\bfiber\b`), "EUR/USD"},
	{regexp.MustCompile(`\beuros?\b`), "EUR/USD"},
	{regexp.MustCompile(`\bsterling\b`), "GBP/USD"},
	{regexp.MustCompile(`\bpounds?\b`), "GBP/USD"},
	{regexp.MustCompile(`\byen\b`), "USD/JPY"},
	{regexp.MustCompile(`\bswissy\b`), "USD/CHF"},
	{regexp.MustCompile(`\bfrancs?\b`), "USD/CHF"},
	{regexp.MustCompile(`\baussie\b`), "AUD/USD"},
	{regexp.MustCompile(`\bloonie\b`), "USD/CAD"},
	{regexp.MustCompile(`\bkiwi\b`), "NZD/USD"},
}

// DetectPairs finds currency pairs in free text, in order of appearance.
func DetectPairs(text string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, m := range pairPattern.FindAllStringSubmatch(strings.ToUpper(text), -1) {
		if currencies[m[1]] && currencies[m[2]] && m[1] != m[2] {
			add(m[1] + "/" + m[2])
		}
	}
	lower := strings.ToLower(text)
	for _, n := range nicknames {
		if n.re.MatchString(lower) {
			add(n.pair)
		}
	}
	return out
}

var (
	technicalWords   = []string{"rsi", "macd", "bollinger", "support", "resistance", "technical", "indicator", "chart", "breakout", "moving average", "ema"}
	fundamentalWords = []string{"cpi", "inflation", "fed", "ecb", "boe", "boj", "rate", "nfp", "payroll", "gdp", "employment", "news", "central bank", "economic"}
	riskWords        = []string{"risk", "stop loss", "volatility", "hedge", "drawdown", "exposure"}
	tradeWords       = []string{"buy", "sell", "entry", "long", "short", "opportunity", "trade"}
)

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// RuleQueryAnalysis reads a question with keyword rules when no model is
// available.
func RuleQueryAnalysis(query string) *models.QueryAnalysis {
	lower := strings.ToLower(query)
	pairs := DetectPairs(query)
	qa := &models.QueryAnalysis{
		IdentifiedPairs: pairs,
		QueryType:       "trend_analysis",
		Source:          "rules",
	}
	if len(pairs) > 0 {
		qa.PrimaryPair = pairs[0]
	}

	technical := containsAny(lower, technicalWords)
	fundamental := containsAny(lower, fundamentalWords)
	switch {
	case containsAny(lower, riskWords):
		qa.QueryType = "risk_assessment"
	case technical && !fundamental:
		qa.QueryType = "technical_analysis"
	case fundamental && !technical:
		qa.QueryType = "fundamental_analysis"
	case containsAny(lower, tradeWords):
		qa.QueryType = "trading_opportunity"
	}

	qa.RequiredData = []string{models.DataMarket}
	switch {
	case technical && !fundamental:
		qa.RequiredData = append(qa.RequiredData, models.DataTechnical)
		qa.AnalysisFocus = []string{"technical indicators", "price action"}
	case fundamental && !technical:
		qa.RequiredData = append(qa.RequiredData, models.DataEconomic, models.DataNews)
		qa.AnalysisFocus = []string{"economic events", "market sentiment"}
	default:
		qa.RequiredData = append(qa.RequiredData, models.DataEconomic, models.DataTechnical)
		qa.AnalysisFocus = []string{"trend direction", "technical indicators", "economic events"}
	}
	qa.UserConcerns = []string{"market direction"}
	if strings.Contains(lower, "why") {
		qa.UserConcerns = append(qa.UserConcerns, "drivers of the recent move")
	}
	qa.AnalysisSuggestions = []string{"confirm the trend with technical signals", "check upcoming high-impact events"}

	words := len(strings.Fields(query))
	switch {
	case len(pairs) > 1 || words > 30:
		qa.ComplexityLevel = "complex"
	case words > 12:
		qa.ComplexityLevel = "medium"
	default:
		qa.ComplexityLevel = "simple"
	}
	return qa
}

// RuleReasoningPlan derives an investigation plan from the keyword reading.
func RuleReasoningPlan(question string) *models.ReasoningPlan {
	qa := RuleQueryAnalysis(question)
	target := qa.PrimaryPair
	if target == "" {
		target = "N/A"
	}
	plan := &models.ReasoningPlan{
		Reasoning:             fmt.Sprintf("Keyword reading classified the question as %s.", qa.QueryType),
		TargetPair:            target,
		NeedMarketData:        true,
		NeedEconomicData:      qa.NeedsData(models.DataEconomic),
		NeedTechnicalAnalysis: qa.NeedsData(models.DataTechnical),
		NeedNewsAnalysis:      qa.NeedsData(models.DataNews),
		KeyFactors:            qa.AnalysisFocus,
		Source:                "rules",
	}
	plan.InvestigationSteps = append(plan.InvestigationSteps, "fetch recent price history")
	plan.ExpectedDataSources = append(plan.ExpectedDataSources, "data_fetcher")
	if plan.NeedTechnicalAnalysis {
		plan.InvestigationSteps = append(plan.InvestigationSteps, "compute technical indicators")
		plan.ExpectedDataSources = append(plan.ExpectedDataSources, "technical_analyzer")
	}
	if plan.NeedEconomicData {
		plan.InvestigationSteps = append(plan.InvestigationSteps, "review economic releases and news sentiment")
		plan.ExpectedDataSources = append(plan.ExpectedDataSources, "economic_calendar")
	}
	return plan
}

func ruleEvaluation(collected map[string]any) *models.EvidenceEvaluation {
	keys := sortedKeys(collected)
	eval := &models.EvidenceEvaluation{
		Reasoning:       fmt.Sprintf("%d data sources collected.", len(keys)),
		KeyInsights:     []string{},
		ConfidenceLevel: "low",
	}
	for _, want := range []string{"market_data", "technical_data", "economic_data"} {
		if _, ok := collected[want]; !ok {
			eval.MissingInformation = append(eval.MissingInformation, want)
		}
	}
	eval.EvidenceSufficient = len(eval.MissingInformation) == 0
	eval.NeedMoreData = !eval.EvidenceSufficient
	if eval.EvidenceSufficient {
		eval.ConfidenceLevel = "medium"
		eval.NextSteps = []string{"produce the final analysis"}
	} else {
		eval.NextSteps = []string{"collect " + strings.Join(eval.MissingInformation, ", ")}
	}
	return eval
}

func ruleFinalAnalysis(question string, collected map[string]any) *models.FinalAnalysis {
	keys := sortedKeys(collected)
	evidence := make(map[string]string, len(keys))
	for _, k := range keys {
		evidence[k] = "collected"
	}
	return &models.FinalAnalysis{
		ProcessSummary:     fmt.Sprintf("Collected %s without model reasoning.", strings.Join(keys, ", ")),
		KeyFindings:        []string{},
		SupportingEvidence: evidence,
		ConfidenceLevel:    "low",
		FinalConclusion:    fmt.Sprintf("No language model is configured, so %q was not answered beyond the raw data.", question),
		Recommendations:    []string{"configure an LLM provider for a reasoned answer"},
		Limitations:        []string{"rule-based fallback"},
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
