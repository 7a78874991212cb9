package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsRegistered(t *testing.T) {
	srv := Serve(":0")
	defer srv.Close()

	ProviderRequests.WithLabelValues("twelvedata", "quote", "ok").Inc()
	ObserveStep("tool", 20*time.Millisecond, errors.New("boom"))

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	want := map[string]bool{
		"forexcell_provider_requests_total": false,
		"forexcell_workflow_step_seconds":   false,
	}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("%s metric not found", name)
		}
	}
}

func TestOutcome(t *testing.T) {
	if Outcome(nil) != "ok" || Outcome(errors.New("x")) != "error" {
		t.Fatalf("unexpected outcome labels")
	}
}
