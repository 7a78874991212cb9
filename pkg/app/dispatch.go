package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/dyike/forexcell/consts"
	"github.com/dyike/forexcell/internal/service"
	"github.com/dyike/forexcell/internal/workflow"
)

// Response is the envelope returned to embedding hosts.
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

var errNotFound = errors.New("not found")

// notFound keeps err's message while matching errNotFound.
type notFound struct{ error }

func (notFound) Is(target error) bool { return target == errNotFound }

type runParams struct {
	Workflow string         `json:"workflow"`
	Params   map[string]any `json:"params"`
}

type idParams struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Cursor string `json:"cursor"`
	Limit  int    `json:"limit"`
}

type analyzeParams struct {
	Pair  string `json:"currency_pair"`
	Query string `json:"query"`
}

// Dispatch runs method against the current engine and returns a JSON
// Response. params is the method's JSON argument object.
func (r *Runtime) Dispatch(ctx context.Context, method, params string) string {
	engine := r.Engine()
	if engine == nil {
		return jsonResp(consts.CodeError, "engine not ready", nil)
	}
	svc := engine.Service

	var result any
	var err error
	switch method {
	case "system.info":
		result = map[string]any{
			"name":           consts.AppName,
			"version":        consts.Version,
			"engine_version": engine.Version,
			"built_at":       engine.BuiltAt,
			"agents":         svc.Agents.Names(),
			"llm":            svc.Analyzer.Enabled(),
		}
	case "workflow.list":
		result, err = listWorkflows(svc)
	case "workflow.run":
		result, err = runWorkflow(ctx, svc, params)
	case "run.list":
		result, err = listRuns(ctx, svc, params)
	case "run.get":
		result, err = getRun(ctx, svc, params)
	case "report.list":
		var p idParams
		if err = decode(params, &p); err == nil {
			result, err = svc.ListReports(p.Cursor, p.Limit)
		}
	case "report.read":
		var p idParams
		if err = decode(params, &p); err == nil {
			result, err = svc.ReadReport(p.Path)
		}
	case "analyze":
		var p analyzeParams
		if err = decode(params, &p); err == nil {
			result, err = svc.Analyze(ctx, p.Pair, p.Query)
		}
	default:
		return jsonResp(consts.CodeNotFound, "Method not found", nil)
	}

	switch {
	case errors.Is(err, errNotFound):
		return jsonResp(consts.CodeNotFound, err.Error(), nil)
	case err != nil:
		return jsonResp(consts.CodeError, err.Error(), result)
	}
	return jsonResp(consts.CodeOK, "Ok", result)
}

func decode(params string, out any) error {
	if params == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(params), out); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

func listWorkflows(svc *service.Service) ([]string, error) {
	found, err := workflow.Discover(svc.Config.WorkflowsDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func runWorkflow(ctx context.Context, svc *service.Service, params string) (any, error) {
	var p runParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.Workflow == "" {
		return nil, errors.New("workflow is required")
	}
	out, err := svc.RunWorkflow(ctx, p.Workflow, p.Params, workflow.WithOutput(io.Discard), workflow.WithQuiet(true))
	if out == nil {
		return nil, notFound{err}
	}
	return out, err
}

func listRuns(ctx context.Context, svc *service.Service, params string) (any, error) {
	if svc.Store == nil {
		return nil, errors.New("run store is not available")
	}
	var p idParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
	return svc.Store.ListRuns(ctx, p.Limit)
}

func getRun(ctx context.Context, svc *service.Service, params string) (any, error) {
	if svc.Store == nil {
		return nil, errors.New("run store is not available")
	}
	var p idParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	run, err := svc.Store.GetRun(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %s: %w", p.ID, errNotFound)
	}
	return run, nil
}

func jsonResp(code int, msg string, data any) string {
	resp := Response{Code: code, Msg: msg, Data: data}
	b, err := json.Marshal(resp)
	if err != nil {
		b, _ = json.Marshal(Response{Code: consts.CodeError, Msg: err.Error()})
	}
	return string(b)
}
