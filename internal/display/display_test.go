package display

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dyike/forexcell/models"
)

func TestRunSummary(t *testing.T) {
	start := time.Now()
	r := &models.RunReport{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Order:      []string{"fetch", "check", "report"},
		Results: map[string]*models.StepResult{
			"fetch":  {Type: "agent", Success: true, DurationMS: 120},
			"check":  {Type: "branch", Success: true, Skipped: true},
			"report": {Type: "agent", Error: "analyzer down"},
		},
		Summary: models.RunSummary{Total: 3, Successful: 1, Failed: 1, Skipped: 1},
	}
	var buf bytes.Buffer
	RunSummary(&buf, r)
	out := buf.String()
	for _, want := range []string{"run-1", "fetch", "skipped", "analyzer down", "3 steps: 1 ok, 1 failed, 1 skipped"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestTableAndMessages(t *testing.T) {
	var buf bytes.Buffer
	Table(&buf, []string{"NAME", "PORT"}, [][]string{{"levels", "8000"}, {"technical_analyzer", "-"}})
	Error(&buf, errors.New("boom"))
	Success(&buf, "done")
	out := buf.String()
	for _, want := range []string{"NAME", "technical_analyzer", "8000", "boom", "done"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("a\nb", 10); got != "a b" {
		t.Fatalf("truncate = %q", got)
	}
}
