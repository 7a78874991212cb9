package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "forexcell_provider_requests_total", Help: "Outbound data provider requests"},
		[]string{"provider", "endpoint", "outcome"},
	)
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "forexcell_cache_lookups_total", Help: "Market data cache lookups"},
		[]string{"result"},
	)
	AgentExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "forexcell_agent_executions_total", Help: "Agent task executions"},
		[]string{"agent", "outcome"},
	)
	StepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forexcell_workflow_step_seconds",
			Help:    "Workflow step duration",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
		[]string{"type", "outcome"},
	)
	WorkflowRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "forexcell_workflow_runs_total", Help: "Workflow runs"},
		[]string{"workflow", "outcome"},
	)
	LLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "forexcell_llm_calls_total", Help: "Chat model invocations"},
		[]string{"model", "outcome"},
	)
	ServersRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "forexcell_servers_running", Help: "Tool servers currently started"},
	)
)

func init() {
	prometheus.MustRegister(ProviderRequests, CacheLookups, AgentExecutions, StepDuration, WorkflowRuns, LLMCalls, ServersRunning)
}

// Outcome maps an error to the outcome label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveStep records a workflow step duration.
func ObserveStep(stepType string, d time.Duration, err error) {
	StepDuration.WithLabelValues(stepType, Outcome(err)).Observe(d.Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on its own listener.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
