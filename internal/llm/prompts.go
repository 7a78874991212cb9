package llm

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed prompts
var promptFiles embed.FS

// LoadPrompt loads an embedded markdown prompt by name.
func LoadPrompt(name string) (string, error) {
	content, err := promptFiles.ReadFile(fmt.Sprintf("prompts/%s.md", name))
	if err != nil {
		return "", fmt.Errorf("failed to load prompt %s: %w", name, err)
	}
	return strings.TrimSpace(string(content)), nil
}

// RenderPrompt loads a prompt and replaces {{.Name}} placeholders.
func RenderPrompt(name string, vars map[string]string) (string, error) {
	content, err := LoadPrompt(name)
	if err != nil {
		return "", err
	}
	for key, value := range vars {
		content = strings.ReplaceAll(content, fmt.Sprintf("{{.%s}}", key), value)
	}
	return content, nil
}

func mustPrompt(name string) string {
	p, err := LoadPrompt(name)
	if err != nil {
		panic(err)
	}
	return p
}
