package servers

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dyike/forexcell/internal/agents"
	"github.com/dyike/forexcell/internal/economic"
)

// Server types with a built-in factory.
const (
	TypeAgent  = "agent"
	TypeLevels = "levels"
)

// AgentTool serves an agent's actions as methods.
type AgentTool struct {
	manager *agents.Manager
	agent   string
	methods []string
}

// NewAgentTool binds the agent registered under name, building it through
// the manager if it was not built yet.
func NewAgentTool(ctx context.Context, m *agents.Manager, name string) (*AgentTool, error) {
	a, err := m.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return &AgentTool{manager: m, agent: name, methods: a.Info().Actions}, nil
}

func (t *AgentTool) Methods() []string { return t.methods }

func (t *AgentTool) Call(ctx context.Context, method string, inputs map[string]any) (any, error) {
	task := make(agents.Task, len(inputs)+1)
	for k, v := range inputs {
		task[k] = v
	}
	task["action"] = method
	return t.manager.Execute(ctx, t.agent, task)
}

func (t *AgentTool) HealthCheck(ctx context.Context) (map[string]any, error) {
	for _, m := range t.methods {
		if m == "health" {
			return t.manager.Execute(ctx, t.agent, agents.Task{"action": "health"})
		}
	}
	return map[string]any{"status": "running", "agent": t.agent}, nil
}

// LevelsTool answers price level questions for a default pair.
type LevelsTool struct {
	pair string
}

func NewLevelsTool(pair string) *LevelsTool {
	if pair == "" {
		pair = "EUR/USD"
	}
	return &LevelsTool{pair: strings.ToUpper(pair)}
}

func (t *LevelsTool) Methods() []string {
	return []string{"critical_levels", "entry_zone", "pip_distance"}
}

func (t *LevelsTool) Call(_ context.Context, method string, inputs map[string]any) (any, error) {
	pair := t.pair
	if p, ok := inputs["currency_pair"].(string); ok && p != "" {
		pair = strings.ToUpper(p)
	}
	switch method {
	case "critical_levels":
		levels := economic.CriticalLevelsFor(pair)
		return map[string]any{
			"currency_pair":   pair,
			"critical_levels": map[string]any{"support": levels.Support, "resistance": levels.Resistance},
			"pip_size":        economic.PipSize(pair).String(),
		}, nil
	case "entry_zone":
		bias, _ := inputs["bias"].(string)
		zone, width, ok := economic.EntryZone(pair, strings.ToLower(bias))
		if !ok {
			return nil, fmt.Errorf("no entry zone for %s with bias %q", pair, bias)
		}
		return map[string]any{"currency_pair": pair, "zone": zone, "width_pips": width.String()}, nil
	case "pip_distance":
		from, err := decimalInput(inputs, "from")
		if err != nil {
			return nil, err
		}
		to, err := decimalInput(inputs, "to")
		if err != nil {
			return nil, err
		}
		pips := to.Sub(from).Abs().Div(economic.PipSize(pair)).Round(1)
		return map[string]any{"currency_pair": pair, "pips": pips.String()}, nil
	}
	return nil, fmt.Errorf("%w: levels.%s", ErrUnknownMethod, method)
}

func decimalInput(inputs map[string]any, key string) (decimal.Decimal, error) {
	switch v := inputs[key].(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s: %w", key, err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case nil:
		return decimal.Zero, fmt.Errorf("%s is required", key)
	}
	return decimal.Zero, fmt.Errorf("%s: unsupported value %v", key, inputs[key])
}

// BuiltinFactories returns the factories for the agent and levels server
// types. Agent servers name their agent in the "agent" parameter.
func BuiltinFactories(ctx context.Context, m *agents.Manager) map[string]Factory {
	return map[string]Factory{
		TypeAgent: func(params map[string]any) (Tool, error) {
			name, _ := params["agent"].(string)
			if name == "" {
				return nil, fmt.Errorf("agent server: agent parameter is required")
			}
			return NewAgentTool(ctx, m, name)
		},
		TypeLevels: func(params map[string]any) (Tool, error) {
			pair, _ := params["currency_pair"].(string)
			return NewLevelsTool(pair), nil
		},
	}
}
