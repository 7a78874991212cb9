// Package planner turns a free-form user request into agent tasks.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dyike/forexcell/internal/llm"
	"github.com/dyike/forexcell/internal/logger"
	"github.com/dyike/forexcell/models"
)

const defaultAgent = "analyzer"

var (
	ErrEmptyQuery   = errors.New("query is empty")
	ErrInvalidPlan  = errors.New("planner reply is missing required fields")
	ErrUnknownAgent = errors.New("plan references an unknown agent")
)

// Generator is the model call the planner needs.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

type Planner struct {
	gen    Generator
	agents map[string]string
	now    func() time.Time
	log    zerolog.Logger
}

type Option func(*Planner)

// WithAgents restricts plans to the named agents; values are descriptions
// shown to the model.
func WithAgents(agents map[string]string) Option {
	return func(p *Planner) { p.agents = agents }
}

func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// New creates a planner. gen may be nil, in which case plans come from
// pair detection alone.
func New(gen Generator, opts ...Option) *Planner {
	p := &Planner{gen: gen, now: time.Now, log: logger.Component("planner")}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type replyTask struct {
	Title     string `json:"title"`
	Query     string `json:"query"`
	AgentName string `json:"agent_name"`
	Pattern   string `json:"pattern"`
}

type reply struct {
	Tasks           *[]replyTask `json:"tasks"`
	Adequate        *bool        `json:"adequate"`
	Reason          *string      `json:"reason"`
	GuidanceMessage string       `json:"guidance_message"`
}

// Plan produces the execution plan for query. targetAgent, when set, is the
// agent the caller would like the work routed to.
func (p *Planner) Plan(ctx context.Context, targetAgent, query string) (*models.ExecutionPlan, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if targetAgent != "" && p.agents != nil {
		if _, ok := p.agents[targetAgent]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, targetAgent)
		}
	}

	var r reply
	if p.gen == nil {
		r = p.rulePlan(targetAgent, query)
	} else {
		prompt, err := llm.RenderPrompt("planner", map[string]string{
			"Now":         p.now().Format(time.RFC3339),
			"TargetAgent": orNone(targetAgent),
			"Agents":      p.describeAgents(),
			"Query":       query,
		})
		if err != nil {
			return nil, err
		}
		text, err := p.gen.Generate(ctx, "You plan work for forex analysis agents. Reply with JSON only.", prompt)
		if err != nil {
			return nil, fmt.Errorf("plan: %w", err)
		}
		if err := llm.DecodeJSON(text, &r); err != nil {
			return nil, fmt.Errorf("plan: %w", err)
		}
	}
	return p.build(targetAgent, query, r)
}

func (p *Planner) build(targetAgent, query string, r reply) (*models.ExecutionPlan, error) {
	if r.Tasks == nil || r.Adequate == nil || r.Reason == nil {
		return nil, ErrInvalidPlan
	}
	plan := &models.ExecutionPlan{
		PlanID:      uuid.NewString(),
		OrigQuery:   query,
		TargetAgent: targetAgent,
		Tasks:       []models.PlanTask{},
		Adequate:    *r.Adequate,
		Reason:      *r.Reason,
		CreatedAt:   p.now(),
	}
	if !*r.Adequate || len(*r.Tasks) == 0 {
		plan.Adequate = false
		plan.GuidanceMessage = r.GuidanceMessage
		if plan.GuidanceMessage == "" {
			plan.GuidanceMessage = *r.Reason
		}
		p.log.Info().Str("plan_id", plan.PlanID).Msg("request needs more detail")
		return plan, nil
	}

	for _, t := range *r.Tasks {
		agent := t.AgentName
		if agent == "" {
			agent = targetAgent
		}
		if agent == "" {
			agent = defaultAgent
		}
		if p.agents != nil {
			if _, ok := p.agents[agent]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, agent)
			}
		}
		pattern := t.Pattern
		if pattern == "" {
			pattern = "once"
		}
		q := t.Query
		if q == "" {
			q = query
		}
		plan.Tasks = append(plan.Tasks, models.PlanTask{
			ID:        uuid.NewString(),
			Title:     t.Title,
			Query:     q,
			AgentName: agent,
			Status:    models.TaskPending,
			Pattern:   pattern,
		})
	}
	p.log.Info().Str("plan_id", plan.PlanID).Int("tasks", len(plan.Tasks)).Msg("plan created")
	return plan, nil
}

// rulePlan assigns one task per detected pair.
func (p *Planner) rulePlan(targetAgent, query string) reply {
	pairs := llm.DetectPairs(query)
	tasks := []replyTask{}
	adequate := len(pairs) > 0
	reason := "no currency pair found in the request"
	guidance := "Name the currency pair you are interested in, for example \"EUR/USD outlook this week\"."
	if adequate {
		reason = fmt.Sprintf("analyze %s", strings.Join(pairs, ", "))
		guidance = ""
		agent := targetAgent
		if agent == "" {
			agent = defaultAgent
		}
		for _, pair := range pairs {
			q := query
			if len(pairs) > 1 {
				q = fmt.Sprintf("%s (focus on %s)", query, pair)
			}
			tasks = append(tasks, replyTask{Title: pair + " analysis", Query: q, AgentName: agent})
		}
	}
	return reply{Tasks: &tasks, Adequate: &adequate, Reason: &reason, GuidanceMessage: guidance}
}

func (p *Planner) describeAgents() string {
	if len(p.agents) == 0 {
		return "- " + defaultAgent + ": forex analysis"
	}
	names := make([]string, 0, len(p.agents))
	for name := range p.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %s\n", name, p.agents[name])
	}
	return strings.TrimRight(b.String(), "\n")
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
