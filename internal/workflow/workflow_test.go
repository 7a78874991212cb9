package workflow

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dyike/forexcell/internal/agents"
)

type fakeAgents struct {
	mu    sync.Mutex
	tasks []agents.Task
}

func (f *fakeAgents) Has(name string) bool {
	return name == "data_fetcher" || name == "technical_analyzer"
}

func (f *fakeAgents) Execute(_ context.Context, name string, task agents.Task) (agents.Result, error) {
	f.mu.Lock()
	f.tasks = append(f.tasks, task)
	f.mu.Unlock()
	if name == "technical_analyzer" && task["currency_pair"] == "XXX/YYY" {
		return agents.Result{"success": false, "error": "unsupported pair"}, nil
	}
	return agents.Result{
		"success":       true,
		"agent":         name,
		"currency_pair": task["currency_pair"],
		"action":        task["action"],
		"data":          map[string]any{"exchange_rate": 1.0852, "volume": 1250000},
	}, nil
}

type fakeServers struct {
	mu      sync.Mutex
	running map[string]bool
	calls   []string
}

func newFakeServers() *fakeServers { return &fakeServers{running: map[string]bool{}} }

func (f *fakeServers) Start(name string, _ map[string]any) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == "broken" {
		return 0, errors.New("no such tool")
	}
	f.running[name] = true
	return 8000, nil
}

func (f *fakeServers) Stop(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	ok := f.running[name]
	delete(f.running, name)
	return ok
}

func (f *fakeServers) Running(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[name]
}

func (f *fakeServers) Call(_ context.Context, name, method string, inputs map[string]any) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name+"."+method)
	return map[string]any{"zone": "1.0700-1.0750", "bias": inputs["bias"]}, nil
}

type scriptedPrompter struct{ answers map[string]string }

func (p scriptedPrompter) Ask(spec InputSpec) (string, error) {
	return p.answers[spec.Variable], nil
}

func mustParse(t *testing.T, src string) *Workflow {
	t.Helper()
	wf, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return wf
}

func TestRender(t *testing.T) {
	ctx := map[string]any{
		"pair":   "EUR/USD",
		"quote":  map[string]any{"rate": 1.0852, "tags": []any{"major", "liquid"}},
		"empty":  "",
		"flag":   "no",
		"count":  3,
		"a.b":    "dotted",
		"nested": map[string]any{"on": true},
	}
	cases := []struct {
		tpl, want string
	}{
		{"{{pair}} at {{quote.rate}}", "EUR/USD at 1.0852"},
		{"{{$pair}}", "EUR/USD"},
		{"{{quote.tags.1}}", "liquid"},
		{"[{{missing}}]", "[]"},
		{"{{#pair}}has pair{{/pair}}", "has pair"},
		{"{{#empty}}hidden{{/empty}}shown", "shown"},
		{"{{#flag}}hidden{{/flag}}", ""},
		{"{{^flag}}inverted{{/flag}}", "inverted"},
		{"{{#nested.on}}a{{#count}}b{{/count}}c{{/nested.on}}", "abc"},
		{"{{#pair}}x{{#pair}}y{{/pair}}z{{/pair}}", "xyz"},
		{"{{a.b}}", "dotted"},
		{"no placeholders", "no placeholders"},
	}
	for _, c := range cases {
		if got := Render(c.tpl, ctx); got != c.want {
			t.Errorf("Render(%q) = %q, want %q", c.tpl, got, c.want)
		}
	}
}

func TestResolveKeepsRawValues(t *testing.T) {
	ctx := map[string]any{"quote": map[string]any{"rate": 1.0852}, "n": 5}
	in := map[string]any{
		"data":  "{{quote}}",
		"size":  "{{ n }}",
		"label": "rate={{quote.rate}}",
		"list":  []any{"{{n}}", "x"},
	}
	out := Resolve(in, ctx).(map[string]any)
	if _, ok := out["data"].(map[string]any); !ok {
		t.Fatalf("single placeholder should resolve to a map, got %T", out["data"])
	}
	if out["size"] != 5 {
		t.Fatalf("expected raw int, got %#v", out["size"])
	}
	if out["label"] != "rate=1.0852" {
		t.Fatalf("unexpected label %q", out["label"])
	}
	if out["list"].([]any)[0] != 5 {
		t.Fatalf("lists should resolve recursively: %v", out["list"])
	}
}

func TestTruthy(t *testing.T) {
	var nilMap *map[string]any
	zero := 0
	truthy := []any{true, 1, 0.5, "yes", "x", []any{1}, map[string]any{"a": 1},
		int32(2), uint8(1), float32(0.5), []map[string]any{{"a": 1}}, map[string]string{"a": "b"}}
	falsy := []any{nil, false, 0, 0.0, "", "false", "No", "0", []any{}, map[string]any{},
		int32(0), uint(0), float32(0), []map[string]any{}, []float64{}, map[string]string{}, nilMap, &zero}
	for _, v := range truthy {
		if !Truthy(v) {
			t.Errorf("%#v should be truthy", v)
		}
	}
	for _, v := range falsy {
		if Truthy(v) {
			t.Errorf("%#v should be falsy", v)
		}
	}
}

func TestFormatData(t *testing.T) {
	out := FormatData("Report", map[string]any{"analysis": "  Buy dips.  ", "success": true})
	if out != "# Report\n\nBuy dips." {
		t.Fatalf("analysis should print directly, got %q", out)
	}

	out = FormatData("", map[string]any{
		"success":       true,
		"timestamp":     "2024-06-03",
		"currency_pair": "EUR/USD",
		"price_stats":   map[string]any{"close_mean": 1234.56789, "record_count": 1500},
		"themes":        []any{"rates", "inflation"},
	})
	for _, want := range []string{
		"## Currency Pair\nEUR/USD",
		"- **Close Mean**: 1,234.5679",
		"- **Record Count**: 1,500",
		"## Themes\n- rates\n- inflation",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Timestamp") || strings.Contains(out, "Success") {
		t.Fatalf("metadata keys should be skipped:\n%s", out)
	}
}

func TestExecuteAgentAndToolSteps(t *testing.T) {
	wf := mustParse(t, `
name: forex_analysis
variables:
  currency_pair: EUR/USD
  analysis_days: 3
steps:
  - name: quote
    type: tool
    server: data_fetcher
    method: fetch
    inputs:
      currency_pair: "{{currency_pair}}"
      data_type: realtime
  - name: levels
    type: tool
    server: levels
    method: entry_zone
    inputs:
      bias: long
    store_result_as: zone
  - name: tech
    type: agent
    agent: technical_analyzer
    task:
      currency_pair: "{{currency_pair}}"
      data: "{{quote.data}}"
  - name: report
    type: print
    message: "{{currency_pair}} zone {{zone.zone}}{{#tech}} (tech ok){{/tech}}"
`)
	ag := &fakeAgents{}
	srv := newFakeServers()
	var out bytes.Buffer
	report, err := New(ag, srv, WithOutput(&out)).Execute(context.Background(), wf, map[string]any{"currency_pair": "GBP/USD"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.RunID == "" || report.Summary.Total != 4 || report.Summary.Successful != 4 {
		t.Fatalf("unexpected summary %+v", report.Summary)
	}
	if ag.tasks[0]["currency_pair"] != "GBP/USD" || ag.tasks[0]["action"] != "fetch" {
		t.Fatalf("params should override variables: %v", ag.tasks[0])
	}
	if _, ok := ag.tasks[1]["data"].(map[string]any); !ok {
		t.Fatalf("agent task should receive the raw map, got %T", ag.tasks[1]["data"])
	}
	if len(srv.calls) != 1 || srv.calls[0] != "levels.entry_zone" {
		t.Fatalf("unexpected server calls %v", srv.calls)
	}
	if srv.Running("levels") {
		t.Fatal("servers started by the run should be stopped")
	}
	printed := report.Results["report"].Result.(string)
	if printed != "GBP/USD zone 1.0700-1.0750 (tech ok)" {
		t.Fatalf("unexpected print %q", printed)
	}
	if !strings.Contains(out.String(), printed) {
		t.Fatalf("print output missing from writer:\n%s", out.String())
	}
}

func TestPrintKeepsSectionTextLiteral(t *testing.T) {
	wf := mustParse(t, `
name: report
steps:
  - name: out
    type: print
    message: "Report for {{secret}}{{review}}"
`)
	params := map[string]any{
		"secret": "LEAK",
		"review": map[string]any{"analysis": "literal {{secret}} braces"},
	}
	report, err := New(nil, nil, WithQuiet(true)).Execute(context.Background(), wf, params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	printed := report.Results["out"].Result.(string)
	want := "Report for LEAK\n\n## AI Analysis\nliteral {{secret}} braces"
	if printed != want {
		t.Fatalf("print = %q, want %q", printed, want)
	}
}

func TestExecuteStopsOnFailure(t *testing.T) {
	wf := mustParse(t, `
name: failing
steps:
  - name: bad
    type: agent
    agent: technical_analyzer
    task: {currency_pair: XXX/YYY}
  - name: never
    type: set_variable
    variable: reached
    value: true
`)
	report, err := New(&fakeAgents{}, nil, WithQuiet(true)).Execute(context.Background(), wf, nil)
	var se *StepError
	if !errors.As(err, &se) || se.Step != "bad" {
		t.Fatalf("expected step error for bad, got %v", err)
	}
	if _, ok := report.Results["never"]; ok {
		t.Fatal("run should abort after the failing step")
	}
	if report.Summary.Failed != 1 || !strings.Contains(report.Error, "unsupported pair") {
		t.Fatalf("unexpected report %+v", report.Summary)
	}

	wf.Steps[0]["continue_on_error"] = true
	report, err = New(&fakeAgents{}, nil, WithQuiet(true)).Execute(context.Background(), wf, nil)
	if err != nil {
		t.Fatalf("continue_on_error should keep going: %v", err)
	}
	if report.Stored["reached"] != true {
		t.Fatalf("later step did not run: %v", report.Stored)
	}
}

func TestControlFlow(t *testing.T) {
	wf := mustParse(t, `
name: control
variables:
  mode: fast
  enabled: "no"
steps:
  - name: counter
    type: loop
    times: "{{limit}}"
    until: "{{stop}}"
    steps:
      - name: mark
        type: set_variable
        variable: last
        value: "{{loop_iteration}}"
      - name: halt
        type: set_variable
        variable: stop
        value: "{{#mark}}{{loop_index}}{{/mark}}"
  - name: check
    type: branch
    condition: "{{enabled}}"
    then:
      - {name: on, type: set_variable, variable: branch, value: then}
    else:
      - {name: off, type: set_variable, variable: branch, value: else}
  - name: pick
    type: router
    value: "{{mode}}"
    routes:
      fast:
        - {name: quick, type: set_variable, variable: route, value: fast}
    default:
      - {name: slow, type: set_variable, variable: route, value: default}
  - name: skipped
    type: set_variable
    when: "{{enabled}}"
    variable: never
    value: x
  - name: fan
    type: parallel
    steps:
      - {name: p1, type: set_variable, variable: p1, value: 1}
      - {name: p2, type: set_variable, variable: p2, value: 2}
`)
	report, err := New(nil, nil, WithQuiet(true)).Execute(context.Background(), wf, map[string]any{"limit": 5})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := report.Results["counter"].Result.(map[string]any)["iterations"]; got != 2 {
		t.Fatalf("until should stop after the second iteration (index 1 is truthy), got %v", got)
	}
	if _, ok := report.Results["counter.2.mark"]; !ok {
		t.Fatalf("loop results should be keyed per iteration: %v", report.Order)
	}
	if report.Stored["branch"] != "else" || report.Stored["route"] != "fast" {
		t.Fatalf("unexpected branch/route %v", report.Stored)
	}
	if !report.Results["skipped"].Skipped || report.Summary.Skipped != 1 {
		t.Fatalf("when should skip the step")
	}
	if report.Stored["p1"] != 1 || report.Stored["p2"] != 2 {
		t.Fatalf("parallel steps did not run: %v", report.Stored)
	}
}

func TestInputSteps(t *testing.T) {
	wf := mustParse(t, `
name: inputs
steps:
  - name: pair
    type: input
    variable: currency_pair
    config:
      type: choice
      choices: [EUR/USD, GBP/USD]
      default: EUR/USD
  - name: days
    type: input
    variable: analysis_days
    config:
      type: integer
      min: 1
      max: 30
      default: 7
`)
	report, err := New(nil, nil, WithQuiet(true)).Execute(context.Background(), wf, map[string]any{"analysis_days": "14"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Stored["currency_pair"] != "EUR/USD" || report.Stored["analysis_days"] != 14 {
		t.Fatalf("unexpected inputs %v", report.Stored)
	}

	report, err = New(nil, nil, WithQuiet(true)).Execute(context.Background(), wf, map[string]any{"analysis_days": float64(21)})
	if err != nil {
		t.Fatalf("numeric param: %v", err)
	}
	if report.Stored["analysis_days"] != 21 {
		t.Fatalf("numeric param should be converted to the input type, got %#v", report.Stored["analysis_days"])
	}
	for _, bad := range []any{45, int64(0), 7.5} {
		_, err = New(nil, nil, WithQuiet(true)).Execute(context.Background(), wf, map[string]any{"analysis_days": bad})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("param %#v should fail validation, got %v", bad, err)
		}
	}

	prompter := scriptedPrompter{answers: map[string]string{"currency_pair": "GBP/USD", "analysis_days": "45"}}
	_, err = New(nil, nil, WithQuiet(true), WithPrompter(prompter)).Execute(context.Background(), wf, nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("out of range answer should fail validation, got %v", err)
	}

	required := mustParse(t, `
name: required
steps:
  - {name: q, type: input, variable: user_query, required: true}
`)
	if _, err := New(nil, nil, WithQuiet(true)).Execute(context.Background(), required, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("required input without a default should fail, got %v", err)
	}
}

func TestUnknownStepAndMissingServers(t *testing.T) {
	wf := mustParse(t, "name: x\nsteps:\n  - {name: odd, type: teleport}\n")
	if _, err := New(nil, nil, WithQuiet(true)).Execute(context.Background(), wf, nil); !errors.Is(err, ErrUnknownStepType) {
		t.Fatalf("expected unknown step type, got %v", err)
	}

	wf = mustParse(t, "name: y\nservers: [levels]\nsteps:\n  - {name: p, type: print, message: hi}\n")
	if _, err := New(nil, nil, WithQuiet(true)).Execute(context.Background(), wf, nil); !errors.Is(err, ErrNoServers) {
		t.Fatalf("expected missing server manager error, got %v", err)
	}

	wf = mustParse(t, "name: z\nservers: [broken]\nsteps:\n  - {name: p, type: print, message: hi}\n")
	report, err := New(nil, newFakeServers(), WithQuiet(true)).Execute(context.Background(), wf, nil)
	if err == nil || report.Error == "" {
		t.Fatalf("server start failure should abort the run")
	}
}

func TestLoadAndResolve(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FOREXCELL_TEST_PAIR", "USD/JPY")
	src := "variables:\n  currency_pair: ${FOREXCELL_TEST_PAIR}\nworkflow:\n  - {step: hello, type: print, config: {message: hi}}\n"
	if err := os.WriteFile(filepath.Join(dir, "daily.yaml"), []byte(src), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	path, err := ResolvePath(dir, "daily")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	wf, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if wf.Name != "daily" || wf.Variables["currency_pair"] != "USD/JPY" {
		t.Fatalf("unexpected workflow %+v", wf)
	}
	if wf.Steps[0].Name(1) != "hello" || wf.Steps[0].Text("message") != "hi" {
		t.Fatalf("legacy step layout not read: %v", wf.Steps[0])
	}
	if _, err := ResolvePath(dir, "weekly"); err == nil {
		t.Fatal("expected error for unknown workflow")
	}
}
