package graph

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/dyike/forexcell/models"
)

type fakeRunner struct {
	mu       sync.Mutex
	required []string
	primary  string
	fail     map[string]bool
	calls    []string
	tasks    map[string]map[string]any
}

func (f *fakeRunner) Execute(_ context.Context, name string, task map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := name
	if a, ok := task["action"].(string); ok {
		key = name + ":" + a
	}
	f.calls = append(f.calls, key)
	if f.tasks == nil {
		f.tasks = map[string]map[string]any{}
	}
	f.tasks[key] = task
	if f.fail[name] {
		return nil, errors.New(name + " down")
	}
	switch key {
	case "analyzer:analyze_query":
		return map[string]any{"success": true, "query_analysis": &models.QueryAnalysis{
			PrimaryPair:  f.primary,
			RequiredData: f.required,
		}}, nil
	case "analyzer:comprehensive":
		return map[string]any{"success": true, "analysis": "ok"}, nil
	}
	return map[string]any{"success": true, "agent": name}, nil
}

func runGraph(t *testing.T, r *fakeRunner, pair, query string) *AnalysisState {
	t.Helper()
	ctx := context.Background()
	a, err := NewAnalysis(ctx, r)
	if err != nil {
		t.Fatalf("NewAnalysis: %v", err)
	}
	out, err := a.Run(ctx, pair, query)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out
}

func TestGraphVisitsEveryDataNodeByDefault(t *testing.T) {
	r := &fakeRunner{primary: "GBP/USD"}
	out := runGraph(t, r, "", "where is cable heading?")

	want := []string{QueryAnalysis, MarketData, Economic, Technical, Synthesis}
	if !slices.Equal(out.Visited, want) {
		t.Fatalf("visited = %v, want %v", out.Visited, want)
	}
	if out.Pair != "GBP/USD" {
		t.Fatalf("pair = %q", out.Pair)
	}
	if out.Report["analysis"] != "ok" {
		t.Fatalf("report = %v", out.Report)
	}
	if r.tasks["technical_analyzer:analyze"]["symbol"] != "GBP/USD" {
		t.Fatalf("technical task = %v", r.tasks["technical_analyzer:analyze"])
	}
}

func TestGraphSkipsUnrequestedData(t *testing.T) {
	r := &fakeRunner{required: []string{models.DataEconomic}}
	out := runGraph(t, r, "USD/JPY", "any CPI this week?")

	want := []string{QueryAnalysis, Economic, Synthesis}
	if !slices.Equal(out.Visited, want) {
		t.Fatalf("visited = %v, want %v", out.Visited, want)
	}
	if !slices.Equal(out.Skipped, []string{MarketData, Technical}) {
		t.Fatalf("skipped = %v", out.Skipped)
	}
	if out.Pair != "USD/JPY" {
		t.Fatalf("pair = %q", out.Pair)
	}
	if out.MarketData != nil || out.EconomicData == nil {
		t.Fatalf("unexpected data: market=%v economic=%v", out.MarketData, out.EconomicData)
	}
}

func TestGraphContinuesPastDataFailures(t *testing.T) {
	r := &fakeRunner{fail: map[string]bool{"economic_calendar": true}}
	out := runGraph(t, r, "", "outlook")

	if out.Pair != defaultPair {
		t.Fatalf("pair = %q, want %q", out.Pair, defaultPair)
	}
	if _, ok := out.Errors[Economic]; !ok {
		t.Fatalf("errors = %v", out.Errors)
	}
	if out.Report == nil {
		t.Fatal("synthesis did not run")
	}
}

func TestGraphFailsWhenSynthesisFails(t *testing.T) {
	r := &fakeRunner{fail: map[string]bool{"analyzer": true}}
	a, err := NewAnalysis(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Run(context.Background(), "EUR/USD", "outlook"); err == nil {
		t.Fatal("expected synthesis error")
	}
}

func TestPlan(t *testing.T) {
	pending, skipped := plan(nil)
	if len(pending) != 3 || len(skipped) != 0 {
		t.Fatalf("plan(nil) = %v %v", pending, skipped)
	}
	pending, _ = plan(&models.QueryAnalysis{RequiredData: []string{models.DataTechnical, models.DataNews}})
	if !slices.Equal(pending, []string{Technical}) {
		t.Fatalf("pending = %v", pending)
	}
}
