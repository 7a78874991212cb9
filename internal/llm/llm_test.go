package llm

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/forexcell/models"
)

// fakeModel replays canned replies and records the prompts it was sent.
type fakeModel struct {
	replies []string
	err     error
	prompts []string
}

func (f *fakeModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.prompts = append(f.prompts, input[len(input)-1].Content)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.replies) == 0 {
		return nil, errors.New("no reply queued")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return schema.AssistantMessage(reply, nil), nil
}

func (f *fakeModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func newFakeAnalyzer(replies ...string) (*Analyzer, *fakeModel) {
	fm := &fakeModel{replies: replies}
	return NewAnalyzer(NewClient(fm, "fake-model")), fm
}

func TestExtractJSON(t *testing.T) {
	cases := []struct{ in, want string }{
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"Sure! {\"a\": {\"b\": 2}} hope it helps", `{"a": {"b": 2}}`},
		{"```\n{\"x\": true}\n```", `{"x": true}`},
	}
	for _, c := range cases {
		got, err := ExtractJSON(c.in)
		if err != nil {
			t.Fatalf("ExtractJSON(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ExtractJSON(%q) = %q, want %q", c.in, got, c.want)
		}
	}
	if _, err := ExtractJSON("no json here"); err == nil {
		t.Fatalf("expected error for text without an object")
	}
}

func TestDetectPairs(t *testing.T) {
	got := DetectPairs("Is EUR/USD or gbpjpy going up? What about cable")
	want := []string{"EUR/USD", "GBP/JPY", "GBP/USD"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DetectPairs = %v, want %v", got, want)
	}
	if got := DetectPairs("THE USD is strong"); len(got) != 0 {
		t.Fatalf("single currency should not form a pair: %v", got)
	}
	if got := DetectPairs("usd-jpy and USD/JPY"); !reflect.DeepEqual(got, []string{"USD/JPY"}) {
		t.Fatalf("duplicates not removed: %v", got)
	}
}

func TestRuleQueryAnalysis(t *testing.T) {
	qa := RuleQueryAnalysis("Should I buy EUR/USD after the CPI release?")
	if qa.PrimaryPair != "EUR/USD" || qa.QueryType != "fundamental_analysis" {
		t.Fatalf("unexpected reading %+v", qa)
	}
	if !qa.NeedsData(models.DataEconomic) || qa.NeedsData(models.DataTechnical) {
		t.Fatalf("required data = %v", qa.RequiredData)
	}
	if qa.Source != "rules" || qa.ComplexityLevel != "simple" {
		t.Fatalf("source/complexity = %s/%s", qa.Source, qa.ComplexityLevel)
	}

	risk := RuleQueryAnalysis("How much risk is there in GBP/USD and USD/JPY right now?")
	if risk.QueryType != "risk_assessment" || risk.ComplexityLevel != "complex" {
		t.Fatalf("unexpected reading %+v", risk)
	}
}

func TestAnalyzeUserQueryWithModel(t *testing.T) {
	a, fm := newFakeAnalyzer("```json\n" + `{
		"identified_currency_pairs": ["eurusd"],
		"primary_currency_pair": "eur/usd",
		"query_type": "technical_analysis",
		"required_data": ["market_data", "technical_indicators"],
		"complexity_level": "simple"
	}` + "\n```")

	qa, err := a.AnalyzeUserQuery(context.Background(), "EURUSD RSI?")
	if err != nil {
		t.Fatalf("AnalyzeUserQuery: %v", err)
	}
	if qa.PrimaryPair != "EUR/USD" || qa.IdentifiedPairs[0] != "EUR/USD" || qa.Source != "llm" {
		t.Fatalf("unexpected analysis %+v", qa)
	}
	if !strings.Contains(fm.prompts[0], `"EURUSD RSI?"`) {
		t.Fatalf("query not rendered into prompt: %s", fm.prompts[0])
	}
}

func TestAnalyzeUserQueryFallsBack(t *testing.T) {
	fm := &fakeModel{err: errors.New("upstream down")}
	a := NewAnalyzer(NewClient(fm, "fake-model"))
	qa, err := a.AnalyzeUserQuery(context.Background(), "aussie outlook")
	if err != nil {
		t.Fatalf("AnalyzeUserQuery: %v", err)
	}
	if qa.Source != "rules" || qa.PrimaryPair != "AUD/USD" {
		t.Fatalf("expected keyword fallback, got %+v", qa)
	}
	if _, err := a.AnalyzeUserQuery(context.Background(), "   "); err == nil {
		t.Fatalf("expected error for empty query")
	}
}

func TestReactReasoningNormalizesTarget(t *testing.T) {
	a, _ := newFakeAnalyzer(`{"reasoning": "check rates", "target_currency_pair": "usd / jpy", "need_market_data": true}`)
	plan, err := a.ReactReasoning(context.Background(), "Why is the yen weak?", nil, "")
	if err != nil {
		t.Fatalf("ReactReasoning: %v", err)
	}
	if plan.TargetPair != "USD/JPY" || !plan.NeedMarketData || plan.Source != "llm" {
		t.Fatalf("unexpected plan %+v", plan)
	}

	rules, err := NewAnalyzer(nil).ReactReasoning(context.Background(), "What moves markets?", nil, "")
	if err != nil {
		t.Fatalf("ReactReasoning without model: %v", err)
	}
	if rules.TargetPair != "N/A" || rules.ExpectedDataSources[0] != "data_fetcher" {
		t.Fatalf("unexpected rule plan %+v", rules)
	}
}

func TestEvaluateEvidenceWithoutModel(t *testing.T) {
	eval, err := NewAnalyzer(nil).EvaluateEvidence(context.Background(), "q", nil, map[string]any{"market_data": 1})
	if err != nil {
		t.Fatalf("EvaluateEvidence: %v", err)
	}
	if eval.EvidenceSufficient || !reflect.DeepEqual(eval.MissingInformation, []string{"technical_data", "economic_data"}) {
		t.Fatalf("unexpected evaluation %+v", eval)
	}
}

func sampleInput() ComprehensiveInput {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	candles := []models.Candle{
		{Symbol: "EUR/USD", Datetime: start, Open: 1.07, High: 1.08, Low: 1.06, Close: 1.075},
		{Symbol: "EUR/USD", Datetime: start.Add(time.Hour), Open: 1.075, High: 1.09, Low: 1.07, Close: 1.085},
	}
	return ComprehensiveInput{
		UserQuery: "EUR/USD outlook",
		QueryAnalysis: &models.QueryAnalysis{
			PrimaryPair:   "EUR/USD",
			AnalysisFocus: []string{"trend direction", "trading signal analysis"},
		},
		MarketData: models.FetchResult{
			Success:      true,
			DataType:     "historical",
			CurrencyPair: "EUR/USD",
			Series:       &models.Series{Symbol: "EUR/USD", Candles: candles},
		},
		EconomicData: &models.PairAnalysis{
			Success:       true,
			CurrencyPair:  "EUR/USD",
			MarketContext: &models.MarketContext{OverallSentiment: "mildly_bullish", SentimentScore: 0.1},
		},
		TechnicalData: &models.TechnicalReport{
			Success:     true,
			Symbol:      "EUR/USD",
			RecordCount: 60,
			Composite:   models.CompositeSignal{Recommendation: "buy", Confidence: 75, BullishSignals: 3},
		},
	}
}

func TestComprehensiveAnalysisFallback(t *testing.T) {
	r, err := NewAnalyzer(nil).ComprehensiveAnalysis(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("ComprehensiveAnalysis: %v", err)
	}
	if !r.Fallback || !r.Success {
		t.Fatalf("expected fallback report, got %+v", r)
	}
	d := r.DataContext
	if !d.HasMarketData || d.MarketDataType != "historical" || !d.HasEconomicData || !d.HasTechnicalData {
		t.Fatalf("availability = %+v", d)
	}
	want := []string{"trend direction", "trading signal analysis", "indicator agreement", "market sentiment impact", "historical trend analysis"}
	if !reflect.DeepEqual(r.Focus, want) {
		t.Fatalf("focus = %v, want %v", r.Focus, want)
	}
	if !strings.Contains(r.Analysis, "Latest close") || !strings.Contains(r.Analysis, "buy") {
		t.Fatalf("summary missing data:\n%s", r.Analysis)
	}
}

func TestComprehensiveAnalysisWithModel(t *testing.T) {
	a, fm := newFakeAnalyzer("## EUR/USD\nLean long above 1.0750.")
	in := sampleInput()
	in.TechnicalData = nil
	r, err := a.ComprehensiveAnalysis(context.Background(), in)
	if err != nil {
		t.Fatalf("ComprehensiveAnalysis: %v", err)
	}
	if r.Fallback || !strings.HasPrefix(r.Analysis, "## EUR/USD") || r.Model != "fake-model" {
		t.Fatalf("unexpected report %+v", r)
	}
	prompt := fm.prompts[0]
	if !strings.Contains(prompt, "Technical data: ❌ missing") || !strings.Contains(prompt, "Economic data and sentiment") {
		t.Fatalf("prompt does not reflect availability:\n%s", prompt)
	}
	if !reflect.DeepEqual(r.Sources, []string{"market", "economic"}) {
		t.Fatalf("sources = %v", r.Sources)
	}
}

func TestHealthCheck(t *testing.T) {
	if h := NewAnalyzer(nil).HealthCheck(); h.Status != "degraded" || h.AICapabilities != "unavailable" {
		t.Fatalf("health without model = %+v", h)
	}
	a, _ := newFakeAnalyzer()
	if h := a.HealthCheck(); h.Status != "healthy" || h.DefaultModel != "fake-model" {
		t.Fatalf("health with model = %+v", h)
	}
}

func TestRenderPrompt(t *testing.T) {
	p, err := RenderPrompt("react_reasoning", map[string]string{"Question": "Q?", "Tools": "a, b", "Context": "none"})
	if err != nil {
		t.Fatalf("RenderPrompt: %v", err)
	}
	if strings.Contains(p, "{{.Question}}") || !strings.Contains(p, "Q?") {
		t.Fatalf("placeholders left in prompt:\n%s", p)
	}
	if _, err := LoadPrompt("missing"); err == nil {
		t.Fatalf("expected error for unknown prompt")
	}
}
