package servers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrUnknownMethod    = errors.New("unknown method")
	ErrServerNotRunning = errors.New("server is not running")
	ErrNoPorts          = errors.New("no free port in range")
)

// Tool is a server instance that answers method calls.
type Tool interface {
	Call(ctx context.Context, method string, inputs map[string]any) (any, error)
	Methods() []string
}

// HealthChecker is implemented by tools that report their own health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) (map[string]any, error)
}

// Factory creates a tool from its resolved parameters.
type Factory func(params map[string]any) (Tool, error)

type entry struct {
	def     *ToolDefinition
	factory Factory
}

// ToolRegistry maps tool names to definitions and factories.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]entry
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]entry)}
}

func (r *ToolRegistry) Register(def *ToolDefinition, factory Factory) error {
	if def == nil || def.Name == "" {
		return errors.New("tool definition needs a name")
	}
	if factory == nil {
		return fmt.Errorf("tool %s: factory is required", def.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = entry{def: def, factory: factory}
	return nil
}

func (r *ToolRegistry) Definition(name string) (*ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	return e.def, ok
}

func (r *ToolRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create instantiates name with the definition defaults overlaid by params.
func (r *ToolRegistry) Create(name string, params map[string]any) (Tool, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	merged := e.def.Defaults()
	for k, v := range params {
		merged[k] = v
	}
	return e.factory(merged)
}

// RegisterDiscovered loads every definition found under dir and binds it to
// the factory for its server type. Definitions without a factory are
// skipped and returned.
func (r *ToolRegistry) RegisterDiscovered(dir string, factories map[string]Factory) ([]string, error) {
	found, err := Discover(dir)
	if err != nil {
		return nil, err
	}
	var skipped []string
	for _, name := range SortedNames(found) {
		def, err := LoadDefinition(found[name])
		if err != nil {
			return nil, err
		}
		factory, ok := factories[def.Type()]
		if !ok {
			skipped = append(skipped, name)
			continue
		}
		if err := r.Register(def, factory); err != nil {
			return nil, err
		}
	}
	return skipped, nil
}
