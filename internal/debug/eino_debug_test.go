package debug

import (
	"context"
	"testing"

	"github.com/dyike/forexcell/config"
)

func TestDisabledDebugger(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.EinoDebugEnabled = false
	d := NewEinoDebugger(cfg)
	if d.IsEnabled() {
		t.Fatal("expected disabled debugger")
	}
	if err := d.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if url := d.GetDebugURL(); url != "" {
		t.Fatalf("url = %q, want empty", url)
	}
}

func TestDebugURL(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.EinoDebugEnabled = true
	if got := NewEinoDebugger(cfg).GetDebugURL(); got != "http://localhost:52538" {
		t.Fatalf("url = %q", got)
	}
}
