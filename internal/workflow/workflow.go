// Package workflow loads YAML workflows and runs their steps against the
// agent manager and the tool servers.
package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dyike/forexcell/config"
)

// Step is one decoded workflow step. Fields may sit at the top level or
// under a "config" block.
type Step map[string]any

type Workflow struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Variables   map[string]any `json:"variables,omitempty"`
	Servers     []string       `json:"servers,omitempty"`
	Steps       []Step         `json:"steps"`
	Path        string         `json:"path,omitempty"`
}

// Load reads a workflow file with env references expanded.
func Load(path string) (*Workflow, error) {
	doc, err := config.LoadYAML(path)
	if err != nil {
		return nil, err
	}
	wf, err := fromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if wf.Name == "" {
		wf.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	wf.Path = path
	return wf, nil
}

// Parse decodes a workflow from YAML text.
func Parse(data []byte) (*Workflow, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("empty workflow")
	}
	resolved, err := config.ResolveEnv(raw)
	if err != nil {
		return nil, err
	}
	return fromDocument(resolved.(map[string]any))
}

func fromDocument(doc map[string]any) (*Workflow, error) {
	wf := &Workflow{
		Name:        asString(doc["name"]),
		Description: asString(doc["description"]),
		Variables:   map[string]any{},
	}
	if vars, ok := doc["variables"].(map[string]any); ok {
		wf.Variables = vars
	}

	for _, key := range []string{"servers", "tools"} {
		list, _ := doc[key].([]any)
		for _, item := range list {
			switch v := item.(type) {
			case string:
				wf.Servers = append(wf.Servers, v)
			case map[string]any:
				if name := asString(v["name"]); name != "" {
					wf.Servers = append(wf.Servers, name)
				}
			}
		}
	}

	rawSteps, ok := doc["steps"]
	if !ok {
		rawSteps = doc["workflow"]
	}
	steps, err := toSteps(rawSteps)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("workflow has no steps")
	}
	wf.Steps = steps
	return wf, nil
}

func toSteps(v any) ([]Step, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("steps must be a list, got %T", v)
	}
	steps := make([]Step, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("step %d must be a map, got %T", i+1, item)
		}
		steps = append(steps, Step(m))
	}
	return steps, nil
}

// Discover lists the workflow files in dir by name.
func Discover(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read workflows dir: %w", err)
	}
	out := map[string]string{}
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		out[strings.TrimSuffix(e.Name(), ext)] = filepath.Join(dir, e.Name())
	}
	return out, nil
}

// ResolvePath finds a workflow by path, or by name inside dir.
func ResolvePath(dir, ref string) (string, error) {
	if _, err := os.Stat(ref); err == nil {
		return ref, nil
	}
	found, err := Discover(dir)
	if err != nil {
		return "", err
	}
	if path, ok := found[strings.TrimSuffix(ref, filepath.Ext(ref))]; ok {
		return path, nil
	}
	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	sort.Strings(names)
	return "", fmt.Errorf("workflow %q not found (available: %s)", ref, strings.Join(names, ", "))
}

func (s Step) field(key string) (any, bool) {
	if v, ok := s[key]; ok {
		return v, true
	}
	if cfg, ok := s["config"].(map[string]any); ok {
		v, ok := cfg[key]
		return v, ok
	}
	return nil, false
}

// Text returns the first non-empty string among keys.
func (s Step) Text(keys ...string) string {
	for _, k := range keys {
		if v, ok := s.field(k); ok {
			if str := asString(v); str != "" {
				return str
			}
		}
	}
	return ""
}

func (s Step) Value(key string) any {
	v, _ := s.field(key)
	return v
}

func (s Step) Bool(key string) bool {
	v, _ := s.field(key)
	b, _ := v.(bool)
	return b
}

func (s Step) Map(key string) map[string]any {
	v, _ := s.field(key)
	m, _ := v.(map[string]any)
	return m
}

func (s Step) Steps(key string) ([]Step, error) {
	v, _ := s.field(key)
	return toSteps(v)
}

// Name is the step's name, or step_<n> for the n-th step of its list.
func (s Step) Name(n int) string {
	if name := s.Text("name", "step"); name != "" {
		return name
	}
	return "step_" + strconv.Itoa(n)
}

func (s Step) Type() string {
	if t := s.Text("type"); t != "" {
		return strings.ToLower(t)
	}
	return "tool"
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}
