// Package servers builds, discovers and runs the tool servers that workflow
// steps call.
package servers

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dyike/forexcell/config"
)

type ParameterDef struct {
	Type        string `yaml:"type" json:"type"`
	Default     any    `yaml:"default" json:"default"`
	Description string `yaml:"description" json:"description"`
}

// ToolDefinition is the <name>.yaml file describing a tool server.
type ToolDefinition struct {
	Name        string                  `yaml:"name" json:"name"`
	Description string                  `yaml:"description" json:"description"`
	ServerType  string                  `yaml:"server_type" json:"server_type"`
	Parameters  map[string]ParameterDef `yaml:"parameters" json:"parameters"`
	Methods     []string                `yaml:"methods" json:"methods"`
}

// Type is the factory key: server_type, or the name when unset.
func (d *ToolDefinition) Type() string {
	if d.ServerType != "" {
		return d.ServerType
	}
	return d.Name
}

// Defaults returns the parameter defaults keyed by parameter name.
func (d *ToolDefinition) Defaults() map[string]any {
	out := make(map[string]any, len(d.Parameters))
	for name, p := range d.Parameters {
		out[name] = p.Default
	}
	return out
}

// ServerConfig is the generated <name>_server.yaml.
type ServerConfig struct {
	ServerType  string `yaml:"server_type" json:"server_type"`
	Name        string `yaml:"name" json:"name"`
	Port        int    `yaml:"port" json:"port"`
	Workers     int    `yaml:"workers" json:"workers"`
	Timeout     int    `yaml:"timeout" json:"timeout"`
	LogLevel    string `yaml:"log_level" json:"log_level"`
	Description string `yaml:"description" json:"description"`
}

// LoadDefinition reads a tool definition, expanding env references.
func LoadDefinition(path string) (*ToolDefinition, error) {
	var def ToolDefinition
	if err := config.DecodeYAML(path, &def); err != nil {
		return nil, err
	}
	if strings.TrimSpace(def.Name) == "" {
		return nil, fmt.Errorf("%s: tool name is required", path)
	}
	return &def, nil
}

type BuildResult struct {
	Tool    string   `json:"tool"`
	Written []string `json:"written"`
	Skipped []string `json:"skipped"`
}

// Build writes <name>_parameter.yaml and <name>_server.yaml next to the
// definition. Existing files are kept unless force is set.
func Build(defPath string, force bool) (*BuildResult, error) {
	if _, err := os.Stat(defPath); err != nil {
		return nil, fmt.Errorf("tool file: %w", err)
	}
	raw, err := readRawDefinition(defPath)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(defPath)
	res := &BuildResult{Tool: raw.Name}

	params := make(map[string]any, len(raw.Parameters))
	for name, p := range raw.Parameters {
		params[name] = p.Default
	}
	paramFile := filepath.Join(dir, raw.Name+"_parameter.yaml")
	if err := writeYAML(paramFile, params, force, res); err != nil {
		return nil, err
	}

	server := ServerConfig{
		ServerType:  raw.Name,
		Name:        raw.Name + "_server",
		Port:        8000,
		Workers:     1,
		Timeout:     300,
		LogLevel:    "INFO",
		Description: raw.Description,
	}
	serverFile := filepath.Join(dir, raw.Name+"_server.yaml")
	if err := writeYAML(serverFile, server, force, res); err != nil {
		return nil, err
	}
	return res, nil
}

// readRawDefinition parses the definition without env expansion so that
// ${VAR} defaults are carried into the parameter file unchanged.
func readRawDefinition(path string) (*ToolDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var def ToolDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if strings.TrimSpace(def.Name) == "" {
		return nil, fmt.Errorf("%s: tool name is required", path)
	}
	return &def, nil
}

func writeYAML(path string, v any, force bool, res *BuildResult) error {
	if _, err := os.Stat(path); err == nil && !force {
		log.Printf("⚠️  %s exists, use --force to regenerate", path)
		res.Skipped = append(res.Skipped, path)
		return nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	res.Written = append(res.Written, path)
	return nil
}

// Discover finds <dir>/<name>/<name>.yaml definitions, keyed by name.
func Discover(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read servers dir: %w", err)
	}
	out := map[string]string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name(), e.Name()+".yaml")
		if _, err := os.Stat(path); err == nil {
			out[e.Name()] = path
		}
	}
	return out, nil
}

// SortedNames returns the keys of a Discover result in order.
func SortedNames(found map[string]string) []string {
	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
