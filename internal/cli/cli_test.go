package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dyike/forexcell/consts"
)

func TestBuildParams(t *testing.T) {
	f := runFlags{
		pair:   " eur/usd ",
		query:  "rate outlook",
		days:   14,
		params: []string{"risk=low", "currency_pair=GBP/USD", "note=a=b"},
	}
	params, err := f.buildParams()
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if params["currency_pair"] != "GBP/USD" {
		t.Fatalf("explicit -p should win, got %v", params["currency_pair"])
	}
	if params["user_query"] != "rate outlook" || params["analysis_days"] != 14 {
		t.Fatalf("params = %v", params)
	}
	if params["note"] != "a=b" || params["risk"] != "low" {
		t.Fatalf("params = %v", params)
	}

	if _, err := (runFlags{params: []string{"novalue"}}).buildParams(); err == nil {
		t.Fatal("expected error for missing '='")
	}
	if _, err := (runFlags{params: []string{"=x"}}).buildParams(); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestBuildParamsPairOnly(t *testing.T) {
	params, err := runFlags{pair: "usd/jpy"}.buildParams()
	if err != nil {
		t.Fatal(err)
	}
	if len(params) != 1 || params["currency_pair"] != "USD/JPY" {
		t.Fatalf("params = %v", params)
	}
}

func TestRootHasCommands(t *testing.T) {
	root := NewRootCmd()
	want := []string{"build", "run", "list", "agents", "plan", "analyze", "serve", "history", "config", "version"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("command %s not registered", name)
		}
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, consts.AppName+" version "+consts.Version) {
		t.Fatalf("output = %q", out)
	}
}

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(cfgPath, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "workflows"), 0o755); err != nil {
		t.Fatal(err)
	}
	wf := `name: watch
description: Remember a pair
steps:
  - name: remember
    type: set_variable
    variable: watched
    value: "{{currency_pair}}"
`
	if err := os.WriteFile(filepath.Join(dir, "workflows", "watch.yaml"), []byte(wf), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func TestRunWorkflowCommand(t *testing.T) {
	cfgPath := writeProject(t)
	out, err := execute(t, "--config", cfgPath, "run", "watch", "-c", "eur/usd", "-Q")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 steps: 1 ok, 0 failed, 0 skipped") {
		t.Fatalf("missing summary in %q", out)
	}
	if !strings.Contains(out, "Report saved to") {
		t.Fatalf("missing report path in %q", out)
	}

	out, err = execute(t, "--config", cfgPath, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "watch") || !strings.Contains(out, "1/1") {
		t.Fatalf("history output = %q", out)
	}
}

func TestRunUnknownWorkflow(t *testing.T) {
	cfgPath := writeProject(t)
	if _, err := execute(t, "--config", cfgPath, "run", "missing"); err == nil {
		t.Fatal("expected error for unknown workflow")
	}
}

func TestListShowsWorkflows(t *testing.T) {
	cfgPath := writeProject(t)
	out, err := execute(t, "--config", cfgPath, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "watch") || !strings.Contains(out, "Remember a pair") {
		t.Fatalf("list output = %q", out)
	}
}

func TestMask(t *testing.T) {
	cases := map[string]string{
		"":                  "",
		"short":             "****",
		"sk-1234567890abcd": "sk-1****abcd",
	}
	for in, want := range cases {
		if got := mask(in); got != want {
			t.Errorf("mask(%q) = %q, want %q", in, got, want)
		}
	}
}
