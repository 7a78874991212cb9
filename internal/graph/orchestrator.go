package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/dyike/forexcell/internal/logger"
	"github.com/dyike/forexcell/models"
)

// Agent names the graph dispatches to.
const (
	analyzerAgent  = "analyzer"
	fetcherAgent   = "data_fetcher"
	calendarAgent  = "economic_calendar"
	technicalAgent = "technical_analyzer"
)

const defaultPair = "EUR/USD"

// Runner executes a task on a named agent.
type Runner interface {
	Execute(ctx context.Context, name string, task map[string]any) (map[string]any, error)
}

type nodes struct {
	runner Runner
}

func (n *nodes) queryAnalysis(ctx context.Context, s *AnalysisState) (*AnalysisState, error) {
	s.Visited = append(s.Visited, QueryAnalysis)
	res, err := n.runner.Execute(ctx, analyzerAgent, map[string]any{
		"action":     "analyze_query",
		"user_query": s.Query,
	})
	if err != nil {
		s.Errors[QueryAnalysis] = err.Error()
	} else if raw, ok := res["query_analysis"]; ok && raw != nil {
		var qa models.QueryAnalysis
		if err := models.FromMap(raw, &qa); err != nil {
			s.Errors[QueryAnalysis] = err.Error()
		} else {
			s.QueryAnalysis = &qa
		}
	}

	if s.Pair == "" && s.QueryAnalysis != nil {
		s.Pair = s.QueryAnalysis.PrimaryPair
	}
	if s.Pair == "" {
		s.Pair = defaultPair
	}

	pending, skipped := plan(s.QueryAnalysis)
	s.Skipped = skipped
	err = compose.ProcessState[*route](ctx, func(_ context.Context, r *route) error {
		r.Pending = pending
		return nil
	})
	if err != nil {
		return nil, err
	}
	advance(ctx)
	return s, nil
}

// collect wraps a data node: failures are recorded and the run goes on with
// whatever data the other nodes produced.
func (n *nodes) collect(name, agent string, task func(*AnalysisState) map[string]any, store func(*AnalysisState, map[string]any)) func(context.Context, *AnalysisState) (*AnalysisState, error) {
	return func(ctx context.Context, s *AnalysisState) (*AnalysisState, error) {
		s.Visited = append(s.Visited, name)
		res, err := n.runner.Execute(ctx, agent, task(s))
		if err == nil {
			if ok, isBool := res["success"].(bool); isBool && !ok {
				err = fmt.Errorf("%v", res["error"])
			}
		}
		if err != nil {
			s.Errors[name] = err.Error()
		} else {
			store(s, res)
		}
		advance(ctx)
		return s, nil
	}
}

func (n *nodes) synthesis(ctx context.Context, s *AnalysisState) (*AnalysisState, error) {
	s.Visited = append(s.Visited, Synthesis)
	task := map[string]any{
		"action":         "comprehensive",
		"user_query":     s.Query,
		"market_data":    s.MarketData,
		"economic_data":  s.EconomicData,
		"technical_data": s.TechnicalData,
	}
	if s.QueryAnalysis != nil {
		task["query_analysis"] = s.QueryAnalysis
	}
	report, err := n.runner.Execute(ctx, analyzerAgent, task)
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	s.Report = report
	return s, nil
}

// NewAnalysisGraph compiles the analysis graph. The query analysis decides
// which data nodes run; each node hands off to the next through the graph's
// local route state.
func NewAnalysisGraph(ctx context.Context, runner Runner) (compose.Runnable[*AnalysisState, *AnalysisState], error) {
	g := compose.NewGraph[*AnalysisState, *AnalysisState](
		compose.WithGenLocalState(func(context.Context) *route { return &route{} }),
	)
	n := &nodes{runner: runner}

	outMap := map[string]bool{
		MarketData: true,
		Economic:   true,
		Technical:  true,
		Synthesis:  true,
	}

	market := n.collect(MarketData, fetcherAgent,
		func(s *AnalysisState) map[string]any {
			return map[string]any{"action": "fetch", "currency_pair": s.Pair, "data_type": "realtime"}
		},
		func(s *AnalysisState, res map[string]any) { s.MarketData = res })
	economic := n.collect(Economic, calendarAgent,
		func(s *AnalysisState) map[string]any {
			return map[string]any{"action": "trading_analysis", "currency_pair": s.Pair}
		},
		func(s *AnalysisState, res map[string]any) { s.EconomicData = res })
	technical := n.collect(Technical, technicalAgent,
		func(s *AnalysisState) map[string]any {
			return map[string]any{"action": "analyze", "symbol": s.Pair, "interval": s.Interval}
		},
		func(s *AnalysisState, res map[string]any) { s.TechnicalData = res })

	steps := []struct {
		name string
		fn   func(context.Context, *AnalysisState) (*AnalysisState, error)
	}{
		{QueryAnalysis, n.queryAnalysis},
		{MarketData, market},
		{Economic, economic},
		{Technical, technical},
		{Synthesis, n.synthesis},
	}
	for _, st := range steps {
		if err := g.AddLambdaNode(st.name, compose.InvokableLambda(st.fn), compose.WithNodeName(st.name)); err != nil {
			return nil, err
		}
	}

	for _, from := range []string{QueryAnalysis, MarketData, Economic, Technical} {
		if err := g.AddBranch(from, compose.NewGraphBranch(handOff, outMap)); err != nil {
			return nil, err
		}
	}
	if err := g.AddEdge(compose.START, QueryAnalysis); err != nil {
		return nil, err
	}
	if err := g.AddEdge(Synthesis, compose.END); err != nil {
		return nil, err
	}

	return g.Compile(ctx,
		compose.WithGraphName("ForexCell-Analysis"),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
	)
}

// Analysis runs the compiled graph with logging callbacks attached.
type Analysis struct {
	runnable compose.Runnable[*AnalysisState, *AnalysisState]
	Out      chan string
}

func NewAnalysis(ctx context.Context, runner Runner) (*Analysis, error) {
	r, err := NewAnalysisGraph(ctx, runner)
	if err != nil {
		return nil, fmt.Errorf("compile analysis graph: %w", err)
	}
	return &Analysis{runnable: r}, nil
}

// Run analyses query for pair. An empty pair is taken from the query.
func (a *Analysis) Run(ctx context.Context, pair, query string) (*AnalysisState, error) {
	log := logger.Component("graph")
	start := time.Now()
	cb := &LoggerCallback{Out: a.Out}

	out, err := a.runnable.Invoke(ctx, NewAnalysisState(pair, query), compose.WithCallbacks(cb))
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("analysis failed")
		return nil, err
	}
	log.Info().
		Str("pair", out.Pair).
		Strs("visited", out.Visited).
		Int("errors", len(out.Errors)).
		Dur("took", time.Since(start)).
		Msg("analysis finished")
	return out, nil
}
