package agents

import (
	"context"

	"github.com/dyike/forexcell/internal/planner"
)

const PlannerName = "planner"

type PlannerAgent struct {
	planner *planner.Planner
}

func NewPlannerAgent(p *planner.Planner) *PlannerAgent {
	return &PlannerAgent{planner: p}
}

func (a *PlannerAgent) Name() string { return PlannerName }

func (a *PlannerAgent) Description() string {
	return "Breaks a forex request into tasks routed to the other agents"
}

func (a *PlannerAgent) Info() AgentInfo {
	return AgentInfo{Name: a.Name(), Description: a.Description(), Actions: []string{"plan"}}
}

func (a *PlannerAgent) Execute(ctx context.Context, task Task) (Result, error) {
	plan, err := a.planner.Plan(ctx, str(task, "", "target_agent", "agent_name"), str(task, "", "query", "user_query"))
	if err != nil {
		return nil, err
	}
	return result(a.Name(), plan)
}
