package models

import "time"

const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// PlanTask is one unit of work assigned to an agent.
type PlanTask struct {
	ID        string `json:"task_id"`
	Title     string `json:"title"`
	Query     string `json:"query"`
	AgentName string `json:"agent_name"`
	Status    string `json:"status"`
	Pattern   string `json:"pattern"`
}

// ExecutionPlan is what the planner returns for a user query.
type ExecutionPlan struct {
	PlanID          string     `json:"plan_id"`
	OrigQuery       string     `json:"orig_query"`
	TargetAgent     string     `json:"target_agent,omitempty"`
	Tasks           []PlanTask `json:"tasks"`
	Adequate        bool       `json:"adequate"`
	Reason          string     `json:"reason,omitempty"`
	GuidanceMessage string     `json:"guidance_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
