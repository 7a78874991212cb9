package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandEnv replaces ${VAR} and ${VAR:default} references. A variable that
// is unset and has no default is an error.
func ExpandEnv(value string) (string, error) {
	var missing string
	out := envPattern.ReplaceAllStringFunc(value, func(match string) string {
		expr := envPattern.FindStringSubmatch(match)[1]
		name, def, hasDefault := strings.Cut(expr, ":")
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if hasDefault {
			return def
		}
		if missing == "" {
			missing = name
		}
		return match
	})
	if missing != "" {
		return "", fmt.Errorf("environment variable %s is not set", missing)
	}
	return out, nil
}

// ResolveEnv walks a decoded YAML document and expands env references in
// every string value.
func ResolveEnv(node any) (any, error) {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			resolved, err := ResolveEnv(item)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := ResolveEnv(item)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case string:
		return ExpandEnv(v)
	default:
		return v, nil
	}
}

// LoadYAML reads a YAML document into a generic map with env references
// resolved. A .env file next to the document is loaded first.
func LoadYAML(path string) (map[string]any, error) {
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if raw == nil {
		return map[string]any{}, nil
	}

	resolved, err := ResolveEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return resolved.(map[string]any), nil
}

// DecodeYAML loads path like LoadYAML and decodes the result into out.
func DecodeYAML(path string, out any) error {
	doc, err := LoadYAML(path)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("re-encode %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
