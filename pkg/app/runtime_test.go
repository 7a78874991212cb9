package app

import (
	"errors"
	"sync"
	"testing"

	"github.com/dyike/forexcell/config"
)

type events struct {
	mu     sync.Mutex
	topics []string
}

func (e *events) notify(topic, _ string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.topics = append(e.topics, topic)
}

func (e *events) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.topics...)
}

func TestRuntimeReloadsOnConfigChange(t *testing.T) {
	mgr, err := config.NewManager(config.WithConfigDir(t.TempDir()))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer mgr.Close()

	var builds int
	fail := false
	builder := func(cfg config.Config) (*Engine, error) {
		if fail {
			return nil, errors.New("boom")
		}
		builds++
		return &Engine{Config: cfg, Version: uint64(builds)}, nil
	}
	ev := &events{}
	rt, err := NewRuntime(mgr, WithBuilder(builder), WithNotifier(ev.notify), WithGrace(0))
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Close()

	if rt.Engine().Version != 1 {
		t.Fatalf("version = %d", rt.Engine().Version)
	}

	if err := mgr.Mutate(func(c *config.Config) { c.DefaultTimeframe = "4h" }); err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if e := rt.Engine(); e.Version != 2 || e.Config.DefaultTimeframe != "4h" {
		t.Fatalf("engine after reload = %+v", e)
	}

	fail = true
	if err := mgr.Mutate(func(c *config.Config) { c.DefaultTimeframe = "1d" }); err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if rt.Engine().Version != 2 {
		t.Fatal("failed reload must keep the previous engine")
	}

	got := ev.list()
	want := []string{"engine.reloaded", "engine.reloaded", "engine.reload_failed"}
	if len(got) != len(want) {
		t.Fatalf("events = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestRuntimeRequiresManager(t *testing.T) {
	if _, err := NewRuntime(nil); err == nil {
		t.Fatal("expected error")
	}
}
