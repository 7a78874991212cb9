package models

import "time"

// StepResult records the outcome of one workflow step.
type StepResult struct {
	Step       string `json:"step"`
	Type       string `json:"type"`
	Success    bool   `json:"success"`
	Skipped    bool   `json:"skipped,omitempty"`
	Result     any    `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type RunSummary struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors,omitempty"`
}

// RunReport is the persisted record of one workflow execution.
type RunReport struct {
	RunID      string                 `json:"run_id"`
	Workflow   string                 `json:"workflow"`
	Params     map[string]any         `json:"params,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Results    map[string]*StepResult `json:"results"`
	Order      []string               `json:"order"`
	Stored     map[string]any         `json:"stored"`
	Summary    RunSummary             `json:"summary"`
	Error      string                 `json:"error,omitempty"`
}

// Success reports whether the run finished without an aborting error.
func (r *RunReport) Success() bool {
	return r.Error == ""
}

// RunListItem is the row shown when listing past runs.
type RunListItem struct {
	RunID      string     `json:"run_id"`
	Workflow   string     `json:"workflow"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Summary    RunSummary `json:"summary"`
}
