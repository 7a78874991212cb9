package agents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrDuplicateAgent = errors.New("agent already registered")
	ErrUnknownAgent   = errors.New("unknown agent")
)

// Registry holds constructed agents by name.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

func (r *Registry) Register(a Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[a.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, a.Name())
	}
	r.agents[a.Name()] = a
	return nil
}

func (r *Registry) Get(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	return a, ok
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Info() []AgentInfo {
	names := r.List()
	out := make([]AgentInfo, 0, len(names))
	for _, name := range names {
		if a, ok := r.Get(name); ok {
			out = append(out, a.Info())
		}
	}
	return out
}

// Constructor builds an agent on first use.
type Constructor func(ctx context.Context) (Agent, error)

// Manager builds agents lazily, once per name, and keeps them in a Registry.
type Manager struct {
	mu       sync.Mutex
	ctors    map[string]Constructor
	describe map[string]string
	inflight map[string]*sync.Once
	errs     map[string]error
	registry *Registry
}

func NewManager() *Manager {
	return &Manager{
		ctors:    make(map[string]Constructor),
		describe: make(map[string]string),
		inflight: make(map[string]*sync.Once),
		errs:     make(map[string]error),
		registry: NewRegistry(),
	}
}

// Provide registers the constructor for name. description is shown before
// the agent is built, e.g. to the planner.
func (m *Manager) Provide(name, description string, ctor Constructor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctors[name] = ctor
	m.describe[name] = description
	m.inflight[name] = new(sync.Once)
}

func (m *Manager) Has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ctors[name]
	return ok
}

// Names lists every provided agent, built or not.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.ctors))
	for name := range m.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptions maps every provided agent to its description.
func (m *Manager) Descriptions() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.describe))
	for k, v := range m.describe {
		out[k] = v
	}
	return out
}

// Get returns the agent, building it on the first call. A failed build is
// remembered and returned to later callers.
func (m *Manager) Get(ctx context.Context, name string) (Agent, error) {
	m.mu.Lock()
	once, ok := m.inflight[name]
	ctor := m.ctors[name]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}

	once.Do(func() {
		a, err := ctor(ctx)
		if err == nil {
			err = m.registry.Register(a)
		}
		if err != nil {
			m.mu.Lock()
			m.errs[name] = err
			m.mu.Unlock()
		}
	})

	if a, ok := m.registry.Get(name); ok {
		return a, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return nil, fmt.Errorf("init agent %s: %w", name, m.errs[name])
}

// Execute builds the agent if needed and runs task on it.
func (m *Manager) Execute(ctx context.Context, name string, task Task) (Result, error) {
	a, err := m.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return Run(ctx, a, task)
}

// InitAll builds every provided agent and returns the failures by name.
func (m *Manager) InitAll(ctx context.Context) map[string]error {
	failed := map[string]error{}
	for _, name := range m.Names() {
		if _, err := m.Get(ctx, name); err != nil {
			failed[name] = err
		}
	}
	return failed
}

// Registry is the view of agents built so far.
func (m *Manager) Registry() *Registry { return m.registry }
