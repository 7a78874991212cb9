package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("FX_TEST_KEY", "secret")

	got, err := ExpandEnv("key=${FX_TEST_KEY} tf=${FX_TEST_TF:1h}")
	if err != nil {
		t.Fatalf("ExpandEnv: %v", err)
	}
	if got != "key=secret tf=1h" {
		t.Fatalf("unexpected expansion %q", got)
	}

	if _, err := ExpandEnv("${FX_TEST_MISSING}"); err == nil {
		t.Fatalf("expected error for unset variable without default")
	}
}

func TestDecodeYAMLResolvesNestedValues(t *testing.T) {
	t.Setenv("FX_TEST_PAIR", "GBP/USD")
	dir := t.TempDir()
	path := filepath.Join(dir, "wf.yaml")
	content := `
name: demo
variables:
  currency_pair: ${FX_TEST_PAIR}
  pairs:
    - ${FX_TEST_OTHER:USD/JPY}
  days: 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out struct {
		Name      string         `yaml:"name"`
		Variables map[string]any `yaml:"variables"`
	}
	if err := DecodeYAML(path, &out); err != nil {
		t.Fatalf("DecodeYAML: %v", err)
	}
	if out.Variables["currency_pair"] != "GBP/USD" {
		t.Fatalf("pair not expanded: %v", out.Variables["currency_pair"])
	}
	pairs, _ := out.Variables["pairs"].([]any)
	if len(pairs) != 1 || pairs[0] != "USD/JPY" {
		t.Fatalf("default not applied in list: %v", out.Variables["pairs"])
	}
	if out.Variables["days"] != 3 {
		t.Fatalf("numbers must survive decoding, got %T %v", out.Variables["days"], out.Variables["days"])
	}
}

func TestLoadYAMLMissingFile(t *testing.T) {
	if _, err := LoadYAML(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
