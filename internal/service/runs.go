package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dyike/forexcell/internal/workflow"
	"github.com/dyike/forexcell/models"
	"github.com/dyike/forexcell/pkg/bridge"
	"github.com/dyike/forexcell/pkg/utils"
)

// RunOutcome is a finished workflow run and where it was recorded.
type RunOutcome struct {
	Report     *models.RunReport `json:"report"`
	ReportPath string            `json:"report_path,omitempty"`
}

// RunWorkflow resolves ref against the workflows dir, executes it, then
// persists the run and writes its markdown report. The run's own error is
// returned alongside the outcome.
func (s *Service) RunWorkflow(ctx context.Context, ref string, params map[string]any, opts ...workflow.Option) (*RunOutcome, error) {
	path, err := workflow.ResolvePath(s.Config.WorkflowsDir, ref)
	if err != nil {
		return nil, err
	}
	wf, err := workflow.Load(path)
	if err != nil {
		return nil, err
	}

	bridge.Notify("run.started", fmt.Sprintf(`{"workflow":%q}`, wf.Name))
	report, runErr := s.Executor(opts...).Execute(ctx, wf, params)
	out := &RunOutcome{Report: report}

	if s.Store != nil {
		if err := s.Store.SaveRun(ctx, report); err != nil {
			s.log.Error().Err(err).Str("run_id", report.RunID).Msg("save run")
		}
	}
	dir := filepath.Join(s.Config.ResultsDir, wf.Name)
	name := fmt.Sprintf("%s_%s.md", report.StartedAt.Format("20060102_150405"), report.RunID[:8])
	if p, err := utils.WriteMarkdown(dir, name, ReportMarkdown(report)); err != nil {
		s.log.Error().Err(err).Msg("write report")
	} else {
		out.ReportPath = p
	}

	payload, _ := json.Marshal(map[string]any{
		"run_id":   report.RunID,
		"workflow": report.Workflow,
		"success":  report.Success(),
		"summary":  report.Summary,
	})
	bridge.Notify("run.finished", string(payload))
	return out, runErr
}

// ReportMarkdown renders a run as a markdown document: a summary table,
// then every successful step result formatted for reading.
func ReportMarkdown(r *models.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Workflow)
	fmt.Fprintf(&b, "- **Run**: %s\n", r.RunID)
	fmt.Fprintf(&b, "- **Started**: %s\n", r.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Duration**: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	status := "success"
	if !r.Success() {
		status = "failed: " + r.Error
	}
	fmt.Fprintf(&b, "- **Status**: %s\n\n", status)

	b.WriteString("| Step | Type | Result | Duration |\n|---|---|---|---|\n")
	for _, key := range r.Order {
		res := r.Results[key]
		outcome := "ok"
		switch {
		case res.Skipped:
			outcome = "skipped"
		case !res.Success:
			outcome = "error: " + res.Error
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %dms |\n", key, res.Type, outcome, res.DurationMS)
	}

	for _, key := range r.Order {
		res := r.Results[key]
		if !res.Success || res.Skipped || res.Result == nil || res.Type == "print" {
			continue
		}
		if _, ok := res.Result.(map[string]any); !ok {
			continue
		}
		b.WriteString("\n")
		b.WriteString(workflow.FormatData(workflow.TitleCase(key), res.Result))
		b.WriteString("\n")
	}
	return b.String()
}
