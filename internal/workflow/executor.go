package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dyike/forexcell/internal/agents"
	"github.com/dyike/forexcell/internal/logger"
	"github.com/dyike/forexcell/internal/metrics"
	"github.com/dyike/forexcell/models"
)

var (
	ErrUnknownStepType = errors.New("unknown step type")
	ErrNoServers       = errors.New("no server manager configured")
)

// AgentRunner dispatches tasks to named agents.
type AgentRunner interface {
	Has(name string) bool
	Execute(ctx context.Context, name string, task agents.Task) (agents.Result, error)
}

// ServerRunner starts tool servers and calls their methods.
type ServerRunner interface {
	Start(name string, params map[string]any) (int, error)
	Stop(name string) bool
	Running(name string) bool
	Call(ctx context.Context, name, method string, inputs map[string]any) (any, error)
}

// StepError marks the step a run aborted on.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("step %s: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

type Executor struct {
	agents      AgentRunner
	servers     ServerRunner
	prompter    Prompter
	interactive bool
	quiet       bool
	verbose     bool

	outMu sync.Mutex
	out   io.Writer
	log   zerolog.Logger
}

type Option func(*Executor)

func WithOutput(w io.Writer) Option { return func(e *Executor) { e.out = w } }

// WithQuiet suppresses all output, including print steps.
func WithQuiet(q bool) Option { return func(e *Executor) { e.quiet = q } }

// WithVerbose dumps every step result.
func WithVerbose(v bool) Option { return func(e *Executor) { e.verbose = v } }

// WithPrompter enables interactive input steps.
func WithPrompter(p Prompter) Option {
	return func(e *Executor) {
		e.prompter = p
		e.interactive = p != nil
	}
}

// New creates an executor. Either runner may be nil; steps that need a
// missing runner fail.
func New(agentRunner AgentRunner, serverRunner ServerRunner, opts ...Option) *Executor {
	e := &Executor{
		agents:  agentRunner,
		servers: serverRunner,
		out:     os.Stdout,
		log:     logger.Component("workflow"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.quiet {
		e.verbose = false
	}
	return e
}

// Execute runs wf with params layered over its variables.
func (e *Executor) Execute(ctx context.Context, wf *Workflow, params map[string]any) (*models.RunReport, error) {
	report := &models.RunReport{
		RunID:     uuid.NewString(),
		Workflow:  wf.Name,
		Params:    params,
		StartedAt: time.Now(),
	}
	r := newRun(wf.Variables, params)
	e.printf("📋 %s\n", wf.Name)
	e.log.Info().Str("run_id", report.RunID).Str("workflow", wf.Name).Msg("run started")

	started, err := e.startServers(wf)
	defer func() {
		for _, name := range started {
			e.servers.Stop(name)
		}
	}()
	if err == nil {
		err = e.runSteps(ctx, r, wf.Steps, nil, "")
	}

	report.FinishedAt = time.Now()
	report.Results, report.Order, report.Stored = r.snapshot()
	report.Summary = summarize(report)
	if err != nil {
		report.Error = err.Error()
	}
	metrics.WorkflowRuns.WithLabelValues(wf.Name, metrics.Outcome(err)).Inc()
	e.log.Info().Str("run_id", report.RunID).Int("steps", report.Summary.Total).
		Int("failed", report.Summary.Failed).Err(err).Msg("run finished")
	return report, err
}

func summarize(report *models.RunReport) models.RunSummary {
	var s models.RunSummary
	for _, key := range report.Order {
		res := report.Results[key]
		s.Total++
		switch {
		case res.Skipped:
			s.Skipped++
		case res.Success:
			s.Successful++
		default:
			s.Failed++
			s.Errors = append(s.Errors, key+": "+res.Error)
		}
	}
	return s
}

// startServers starts every non-agent server the workflow names or calls
// and returns the ones it started.
func (e *Executor) startServers(wf *Workflow) ([]string, error) {
	seen := map[string]bool{}
	var needed []string
	add := func(name string) {
		if name == "" || seen[name] || (e.agents != nil && e.agents.Has(name)) {
			return
		}
		seen[name] = true
		needed = append(needed, name)
	}
	for _, name := range wf.Servers {
		add(name)
	}
	walkSteps(wf.Steps, func(s Step) {
		if s.Type() == "tool" {
			add(s.Text("server", "tool"))
		}
	})
	if len(needed) == 0 {
		return nil, nil
	}
	if e.servers == nil {
		return nil, fmt.Errorf("%w: workflow needs %s", ErrNoServers, strings.Join(needed, ", "))
	}

	var started []string
	for _, name := range needed {
		if e.servers.Running(name) {
			continue
		}
		port, err := e.servers.Start(name, nil)
		if err != nil {
			return started, fmt.Errorf("start server %s: %w", name, err)
		}
		started = append(started, name)
		e.log.Debug().Str("server", name).Int("port", port).Msg("server started for run")
	}
	return started, nil
}

func walkSteps(steps []Step, fn func(Step)) {
	for _, s := range steps {
		fn(s)
		for _, key := range []string{"steps", "then", "else", "default"} {
			children, _ := s.Steps(key)
			walkSteps(children, fn)
		}
		for _, route := range s.Map("routes") {
			children, _ := toSteps(route)
			walkSteps(children, fn)
		}
	}
}

func (e *Executor) runSteps(ctx context.Context, r *run, steps []Step, local map[string]any, prefix string) error {
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.runStep(ctx, r, s, i+1, local, prefix); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) runStep(ctx context.Context, r *run, s Step, n int, local map[string]any, prefix string) error {
	name := s.Name(n)
	key := prefix + name
	typ := s.Type()
	sctx := r.context(local)

	if cond, ok := s.field("when"); ok && !Condition(cond, sctx) {
		r.record(key, &models.StepResult{Step: key, Type: typ, Skipped: true})
		e.printf("⏭️  %s skipped\n", key)
		return nil
	}

	start := time.Now()
	out, err := e.dispatch(ctx, r, s, typ, key, local, prefix, sctx)
	elapsed := time.Since(start)
	metrics.ObserveStep(typ, elapsed, err)

	res := &models.StepResult{Step: key, Type: typ, DurationMS: elapsed.Milliseconds()}
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Success = true
		res.Result = out
		if local != nil {
			local[name] = out
		}
	}
	r.record(key, res)

	if err != nil {
		e.log.Warn().Str("step", key).Str("type", typ).Err(err).Msg("step failed")
		var se *StepError
		if errors.As(err, &se) {
			return err
		}
		e.printf("❌ %s: %v\n", key, err)
		if s.Bool("continue_on_error") {
			return nil
		}
		return &StepError{Step: key, Err: err}
	}
	if typ != "print" {
		e.printf("✅ %s (%s, %dms)\n", key, typ, res.DurationMS)
	}
	if e.verbose && out != nil && typ != "print" {
		if data, err := json.MarshalIndent(out, "   ", "  "); err == nil {
			e.printf("   %s\n", data)
		}
	}
	return nil
}

func (e *Executor) dispatch(ctx context.Context, r *run, s Step, typ, key string, local map[string]any, prefix string, sctx map[string]any) (any, error) {
	switch typ {
	case "print":
		return e.print(s, sctx), nil
	case "set_variable":
		variable := s.Text("variable", "name")
		if variable == "" {
			return nil, errors.New("set_variable needs a variable name")
		}
		v := Resolve(s.Value("value"), sctx)
		r.set(variable, v)
		return v, nil
	case "input":
		return e.input(r, s, sctx)
	case "tool":
		server := s.Text("server", "tool")
		if server == "" {
			return nil, errors.New("tool step needs a server")
		}
		out, err := e.callTool(ctx, server, s.Text("method"), resolveInputs(s.Map("inputs"), sctx))
		return e.store(r, s, out, err)
	case "agent":
		name := s.Text("agent")
		if name == "" {
			return nil, errors.New("agent step needs an agent name")
		}
		task, ok := s.field("task")
		if !ok {
			task = s.Value("inputs")
		}
		inputs, _ := Resolve(task, sctx).(map[string]any)
		out, err := e.callAgent(ctx, name, inputs)
		return e.store(r, s, out, err)
	case "loop":
		return e.loop(ctx, r, s, key, local, sctx)
	case "branch":
		ok := Condition(s.Value("condition"), sctx)
		label := "else"
		if ok {
			label = "then"
		}
		steps, err := s.Steps(label)
		if err != nil {
			return nil, err
		}
		if err := e.runSteps(ctx, r, steps, local, prefix); err != nil {
			return nil, err
		}
		return map[string]any{"branch": label, "condition": ok}, nil
	case "router":
		value := strings.TrimSpace(Stringify(Resolve(s.Value("value"), sctx)))
		route := value
		raw, ok := s.Map("routes")[value]
		if !ok {
			route = "default"
			raw = s.Value("default")
		}
		steps, err := toSteps(raw)
		if err != nil {
			return nil, err
		}
		if len(steps) == 0 {
			return map[string]any{"value": value, "route": "none"}, nil
		}
		if err := e.runSteps(ctx, r, steps, local, prefix); err != nil {
			return nil, err
		}
		return map[string]any{"value": value, "route": route}, nil
	case "parallel":
		return e.parallel(ctx, r, s, local, prefix)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownStepType, typ)
}

func (e *Executor) store(r *run, s Step, out any, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if variable := s.Text("store_result_as", "output"); variable != "" {
		r.set(variable, out)
	}
	return out, nil
}

// callTool prefers an agent registered under the server name. Otherwise
// the server manager dispatches server.method.
func (e *Executor) callTool(ctx context.Context, server, method string, inputs map[string]any) (any, error) {
	if e.agents != nil && e.agents.Has(server) {
		if method != "" && method != "execute" {
			inputs["action"] = method
		}
		return e.callAgent(ctx, server, inputs)
	}
	if e.servers == nil {
		return nil, ErrNoServers
	}
	return e.servers.Call(ctx, server, method, inputs)
}

func (e *Executor) callAgent(ctx context.Context, name string, task map[string]any) (any, error) {
	if e.agents == nil {
		return nil, fmt.Errorf("%w: %s", agents.ErrUnknownAgent, name)
	}
	if task == nil {
		task = map[string]any{}
	}
	res, err := e.agents.Execute(ctx, name, task)
	if err != nil {
		return nil, err
	}
	if ok, isBool := res["success"].(bool); isBool && !ok {
		msg, _ := res["error"].(string)
		if msg == "" {
			msg = "agent reported failure"
		}
		return nil, fmt.Errorf("%s: %s", name, msg)
	}
	return res, nil
}

func resolveInputs(inputs map[string]any, ctx map[string]any) map[string]any {
	out, _ := Resolve(inputs, ctx).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

func blockMarker(i int) string { return "\x00block" + strconv.Itoa(i) + "\x00" }

var mapPlaceholder = regexp.MustCompile(`\{\{\s*(\$?[A-Za-z0-9_][A-Za-z0-9_.\-]*)\s*\}\}`)

// print renders message with placeholders that resolve to maps expanded
// into markdown sections. Sections are spliced in after rendering so text
// inside them is never treated as a template.
func (e *Executor) print(s Step, ctx map[string]any) string {
	msg := s.Text("message", "content")
	var blocks []string
	msg = mapPlaceholder.ReplaceAllStringFunc(msg, func(m string) string {
		path := mapPlaceholder.FindStringSubmatch(m)[1]
		v, ok := Lookup(path, ctx)
		data, isMap := v.(map[string]any)
		if !ok || !isMap || len(data) == 0 {
			return m
		}
		parts := strings.Split(strings.TrimPrefix(path, "$"), ".")
		title := TitleCase(parts[len(parts)-1])
		if _, ok := data["analysis"].(string); ok {
			title = "AI Analysis"
		}
		blocks = append(blocks, "\n\n## "+title+"\n"+FormatData("", data))
		return blockMarker(len(blocks) - 1)
	})
	text := Render(msg, ctx)
	for i, block := range blocks {
		text = strings.ReplaceAll(text, blockMarker(i), block)
	}

	if raw, ok := s.field("data"); ok {
		data := Resolve(raw, ctx)
		if formatted := FormatData(s.Text("title"), data); formatted != "" {
			if text != "" {
				text += "\n"
			}
			text += formatted
		}
	}
	if !e.quiet {
		e.printf("%s\n", text)
	}
	return text
}

func (e *Executor) loop(ctx context.Context, r *run, s Step, key string, local, sctx map[string]any) (any, error) {
	times := 1
	if raw, ok := s.field("times"); ok {
		n, err := toInt(Resolve(raw, sctx))
		if err != nil {
			return nil, fmt.Errorf("loop times: %w", err)
		}
		times = n
	}
	if times < 0 {
		return nil, fmt.Errorf("loop times must not be negative, got %d", times)
	}
	steps, err := s.Steps("steps")
	if err != nil {
		return nil, err
	}
	until, hasUntil := s.field("until")

	count := 0
	for i := 0; i < times; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iter := copyMap(local)
		iter["loop_index"] = i
		iter["loop_iteration"] = i + 1
		if err := e.runSteps(ctx, r, steps, iter, fmt.Sprintf("%s.%d.", key, i+1)); err != nil {
			return nil, err
		}
		count++
		if hasUntil && Condition(until, r.context(iter)) {
			break
		}
	}
	return map[string]any{"iterations": count}, nil
}

func (e *Executor) parallel(ctx context.Context, r *run, s Step, local map[string]any, prefix string) (any, error) {
	steps, err := s.Steps("steps")
	if err != nil {
		return nil, err
	}
	g, gctx := errgroup.WithContext(ctx)
	for i, child := range steps {
		g.Go(func() error {
			return e.runStep(gctx, r, child, i+1, copyMap(local), prefix)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return map[string]any{"branches": len(steps)}, nil
}

func (e *Executor) printf(format string, args ...any) {
	if e.quiet || e.out == nil {
		return
	}
	e.outMu.Lock()
	defer e.outMu.Unlock()
	fmt.Fprintf(e.out, format, args...)
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(t))
	case nil:
		return 0, errors.New("missing value")
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// run holds the mutable state of one execution.
type run struct {
	mu      sync.Mutex
	stored  map[string]any
	params  map[string]bool
	values  map[string]any
	results map[string]*models.StepResult
	order   []string
}

func newRun(variables, params map[string]any) *run {
	r := &run{
		stored:  map[string]any{},
		params:  map[string]bool{},
		values:  map[string]any{},
		results: map[string]*models.StepResult{},
	}
	for k, v := range variables {
		r.stored[k] = v
	}
	for k, v := range params {
		r.stored[k] = v
		r.params[k] = true
	}
	return r
}

func (r *run) set(key string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored[key] = v
}

// preset reports the value a run parameter supplied for key.
func (r *run) preset(key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.params[key] {
		return nil, false
	}
	v, ok := r.stored[key]
	return v, ok && v != nil
}

func (r *run) record(key string, res *models.StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.results[key]; !ok {
		r.order = append(r.order, key)
	}
	r.results[key] = res
	if res.Success {
		r.values[key] = res.Result
	} else {
		delete(r.values, key)
	}
}

// context is the template scope of a step: stored data, then successful
// results by step name, then local values.
func (r *run) context(local map[string]any) map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx := make(map[string]any, len(r.stored)+len(r.values)+len(local)+2)
	stored := make(map[string]any, len(r.stored))
	for k, v := range r.stored {
		ctx[k] = v
		stored[k] = v
	}
	for k, v := range r.values {
		ctx[k] = v
	}
	for k, v := range local {
		ctx[k] = v
	}
	results := make(map[string]any, len(r.results))
	for k, res := range r.results {
		entry := map[string]any{"success": res.Success}
		if res.Success {
			entry["result"] = res.Result
		} else if res.Error != "" {
			entry["error"] = res.Error
		}
		results[k] = entry
	}
	ctx["stored_data"] = stored
	ctx["results"] = results
	return ctx
}

func (r *run) snapshot() (map[string]*models.StepResult, []string, map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	results := make(map[string]*models.StepResult, len(r.results))
	for k, v := range r.results {
		results[k] = v
	}
	stored := make(map[string]any, len(r.stored))
	for k, v := range r.stored {
		stored[k] = v
	}
	return results, append([]string(nil), r.order...), stored
}
