package servers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/dyike/forexcell/internal/agents"
)

const levelsYAML = `name: levels
description: Critical price levels
server_type: levels
parameters:
  currency_pair:
    type: string
    default: EUR/USD
    description: Default pair
methods:
  - critical_levels
  - entry_zone
  - pip_distance
`

func writeDefinition(t *testing.T, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, name), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, name, name+".yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

type echoTool struct{}

func (echoTool) Methods() []string { return []string{"echo"} }
func (echoTool) Call(_ context.Context, _ string, inputs map[string]any) (any, error) {
	return inputs, nil
}

type failingTool struct{ echoTool }

func (failingTool) HealthCheck(context.Context) (map[string]any, error) {
	return nil, errors.New("upstream down")
}

func newRegistry(t *testing.T) *ToolRegistry {
	t.Helper()
	r := NewToolRegistry()
	for name, tool := range map[string]Tool{"echo": echoTool{}, "flaky": failingTool{}, "other": echoTool{}} {
		tool := tool
		if err := r.Register(&ToolDefinition{Name: name}, func(map[string]any) (Tool, error) { return tool, nil }); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	return r
}

func TestBuildWritesAndSkips(t *testing.T) {
	dir := t.TempDir()
	def := writeDefinition(t, dir, "levels", levelsYAML)

	res, err := Build(def, false)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(res.Written) != 2 || len(res.Skipped) != 0 {
		t.Fatalf("unexpected first build %+v", res)
	}

	var server ServerConfig
	data, err := os.ReadFile(filepath.Join(dir, "levels", "levels_server.yaml"))
	if err != nil {
		t.Fatalf("read server file: %v", err)
	}
	if err := yaml.Unmarshal(data, &server); err != nil {
		t.Fatalf("decode server file: %v", err)
	}
	if server.Port != 8000 || server.Workers != 1 || server.Timeout != 300 || server.Name != "levels_server" {
		t.Fatalf("unexpected server config %+v", server)
	}

	res, err = Build(def, false)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if len(res.Written) != 0 || len(res.Skipped) != 2 {
		t.Fatalf("existing files should be skipped: %+v", res)
	}
	res, err = Build(def, true)
	if err != nil || len(res.Written) != 2 {
		t.Fatalf("force should rewrite: %+v %v", res, err)
	}

	if _, err := Build(filepath.Join(dir, "missing.yaml"), false); err == nil {
		t.Fatal("expected error for missing definition")
	}
}

func TestDiscoverAndRegister(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "levels", levelsYAML)
	writeDefinition(t, dir, "mystery", "name: mystery\nserver_type: unknown\n")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	found, err := Discover(dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if !reflect.DeepEqual(SortedNames(found), []string{"levels", "mystery"}) {
		t.Fatalf("unexpected discovery %v", found)
	}

	r := NewToolRegistry()
	skipped, err := r.RegisterDiscovered(dir, BuiltinFactories(context.Background(), agents.NewManager()))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !reflect.DeepEqual(skipped, []string{"mystery"}) || !reflect.DeepEqual(r.List(), []string{"levels"}) {
		t.Fatalf("skipped %v, registered %v", skipped, r.List())
	}

	tool, err := r.Create("levels", map[string]any{"currency_pair": "usd/jpy"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	out, err := tool.Call(context.Background(), "critical_levels", nil)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if got := out.(map[string]any)["pip_size"]; got != "0.01" {
		t.Fatalf("expected yen pip size, got %v", got)
	}

	if missing, err := Discover(filepath.Join(dir, "nope")); err != nil || len(missing) != 0 {
		t.Fatalf("missing dir should be empty, got %v %v", missing, err)
	}
}

func TestManagerPortPool(t *testing.T) {
	m, err := NewManager(newRegistry(t), 9000, 9001)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	defer m.StopAll()

	p1, err := m.Start("echo", nil)
	if err != nil || p1 != 9000 {
		t.Fatalf("start echo: %d %v", p1, err)
	}
	again, err := m.Start("echo", nil)
	if err != nil || again != p1 {
		t.Fatalf("restart should reuse port, got %d %v", again, err)
	}
	p2, err := m.Start("flaky", nil)
	if err != nil || p2 != 9001 {
		t.Fatalf("start flaky: %d %v", p2, err)
	}
	if _, err := m.Start("other", nil); !errors.Is(err, ErrNoPorts) {
		t.Fatalf("expected pool exhaustion, got %v", err)
	}

	if !m.Stop("echo") || m.Stop("echo") {
		t.Fatal("stop should report true once")
	}
	if _, err := m.Start("ghost", nil); !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected unknown tool, got %v", err)
	}
	p3, err := m.Start("other", nil)
	if err != nil || p3 != 9000 {
		t.Fatalf("freed port should be reused, got %d %v", p3, err)
	}
	if _, err := NewManager(newRegistry(t), 10, 5); err == nil {
		t.Fatal("expected invalid range error")
	}
}

func TestManagerCallAndHealth(t *testing.T) {
	m, err := NewManager(newRegistry(t), 9100, 9110)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	defer m.StopAll()
	ctx := context.Background()

	if _, err := m.Call(ctx, "echo", "echo", nil); !errors.Is(err, ErrServerNotRunning) {
		t.Fatalf("expected not running, got %v", err)
	}
	if got := m.Health(ctx, "echo")["status"]; got != "stopped" {
		t.Fatalf("expected stopped, got %v", got)
	}

	if _, err := m.Start("echo", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	out, err := m.Call(ctx, "echo", "echo", map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out.(map[string]any)["x"] != 1 {
		t.Fatalf("unexpected output %v", out)
	}
	if _, err := m.Call(ctx, "echo", "shout", nil); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expected unknown method, got %v", err)
	}
	if got := m.Health(ctx, "echo")["status"]; got != "running" {
		t.Fatalf("expected running, got %v", got)
	}

	if _, err := m.Start("flaky", nil); err != nil {
		t.Fatalf("start flaky: %v", err)
	}
	if got := m.Health(ctx, "flaky")["status"]; got != "error" {
		t.Fatalf("expected error status, got %v", got)
	}
	if st := m.Status(); len(st) != 2 || st[0].Name != "echo" {
		t.Fatalf("unexpected status %+v", st)
	}
}

type actionAgent struct{}

func (actionAgent) Name() string        { return "echo_agent" }
func (actionAgent) Description() string { return "echoes" }
func (actionAgent) Info() agents.AgentInfo {
	return agents.AgentInfo{Name: "echo_agent", Actions: []string{"say", "health"}}
}
func (actionAgent) Execute(_ context.Context, task agents.Task) (agents.Result, error) {
	return agents.Result{"success": true, "action": task["action"], "text": task["text"]}, nil
}

func TestAgentTool(t *testing.T) {
	am := agents.NewManager()
	am.Provide("echo_agent", "echoes", func(context.Context) (agents.Agent, error) { return actionAgent{}, nil })

	r := NewToolRegistry()
	def := &ToolDefinition{
		Name:       "echo_server",
		ServerType: TypeAgent,
		Parameters: map[string]ParameterDef{"agent": {Type: "string", Default: "echo_agent"}},
	}
	ctx := context.Background()
	if err := r.Register(def, BuiltinFactories(ctx, am)[TypeAgent]); err != nil {
		t.Fatalf("register: %v", err)
	}
	m, err := NewManager(r, 9200, 9200)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	defer m.StopAll()
	if _, err := m.Start("echo_server", nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	out, err := m.Call(ctx, "echo_server", "say", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	res := out.(agents.Result)
	if res["action"] != "say" || res["text"] != "hi" {
		t.Fatalf("unexpected result %v", res)
	}
	if got := m.Health(ctx, "echo_server")["action"]; got != "health" {
		t.Fatalf("health should run the agent's health action, got %v", got)
	}
}

func TestLevelsTool(t *testing.T) {
	tool := NewLevelsTool("")
	ctx := context.Background()

	out, err := tool.Call(ctx, "pip_distance", map[string]any{"from": "1.0850", "to": 1.08})
	if err != nil {
		t.Fatalf("pip distance: %v", err)
	}
	if got := out.(map[string]any)["pips"]; got != "50" {
		t.Fatalf("expected 50 pips, got %v", got)
	}

	out, err = tool.Call(ctx, "entry_zone", map[string]any{"bias": "LONG"})
	if err != nil {
		t.Fatalf("entry zone: %v", err)
	}
	if got := out.(map[string]any)["zone"]; got != "1.0700-1.0750" {
		t.Fatalf("unexpected zone %v", got)
	}
	if _, err := tool.Call(ctx, "entry_zone", map[string]any{"bias": "neutral"}); err == nil {
		t.Fatal("neutral bias has no entry zone")
	}
	if _, err := tool.Call(ctx, "pip_distance", map[string]any{"from": "1.1"}); err == nil {
		t.Fatal("missing to should fail")
	}
}
