// Package agents exposes the forex services as named agents that the
// workflow executor, the planner and the HTTP API dispatch tasks to.
package agents

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dyike/forexcell/internal/metrics"
	"github.com/dyike/forexcell/models"
)

// Task is the free-form input of an agent call.
type Task = map[string]any

// Result is an agent's reply. It always carries "success" and "agent".
type Result = map[string]any

type Agent interface {
	Name() string
	Description() string
	Execute(ctx context.Context, task Task) (Result, error)
	Info() AgentInfo
}

// AgentInfo describes an agent for listings and the planner prompt.
type AgentInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Actions     []string `json:"actions,omitempty"`
	Tools       []string `json:"tools,omitempty"`
}

// Run executes task on a and records the outcome.
func Run(ctx context.Context, a Agent, task Task) (Result, error) {
	if task == nil {
		task = Task{}
	}
	res, err := a.Execute(ctx, task)
	metrics.AgentExecutions.WithLabelValues(a.Name(), metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", a.Name(), err)
	}
	return res, nil
}

// result converts a typed reply into a Result stamped with the agent name.
func result(agent string, v any) (Result, error) {
	m, err := models.ToMap(v)
	if err != nil {
		return nil, err
	}
	if _, ok := m["success"]; !ok {
		m["success"] = true
	}
	m["agent"] = agent
	if _, ok := m["timestamp"]; !ok {
		m["timestamp"] = time.Now().Format(time.RFC3339)
	}
	return m, nil
}

func action(task Task, def string) string {
	return strings.ToLower(str(task, def, "action"))
}

// str returns the first non-empty string under keys, or def.
func str(task Task, def string, keys ...string) string {
	for _, k := range keys {
		switch v := task[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case fmt.Stringer:
			return v.String()
		}
	}
	return def
}

func intVal(task Task, key string, def int) int {
	switch v := task[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func boolVal(task Task, key string, def bool) bool {
	switch v := task[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func mapVal(task Task, key string) map[string]any {
	if m, ok := task[key].(map[string]any); ok {
		return m
	}
	if v, ok := task[key]; ok && v != nil {
		if m, err := models.ToMap(v); err == nil {
			return m
		}
	}
	return nil
}

func stringList(task Task, key string) []string {
	switch v := task[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
