package agents

import (
	"context"
	"fmt"

	"github.com/dyike/forexcell/internal/llm"
	"github.com/dyike/forexcell/models"
)

const AnalyzerName = "analyzer"

type AnalyzerAgent struct {
	analyzer *llm.Analyzer
}

func NewAnalyzerAgent(analyzer *llm.Analyzer) *AnalyzerAgent {
	return &AnalyzerAgent{analyzer: analyzer}
}

func (a *AnalyzerAgent) Name() string { return AnalyzerName }

func (a *AnalyzerAgent) Description() string {
	return "Understands forex questions and combines market, economic and technical data into a written analysis"
}

func (a *AnalyzerAgent) Info() AgentInfo {
	return AgentInfo{
		Name:        a.Name(),
		Description: a.Description(),
		Actions: []string{
			"analyze_query", "comprehensive", "react_reasoning",
			"evaluate_evidence", "final_analysis", "quick", "health",
		},
	}
}

func (a *AnalyzerAgent) Execute(ctx context.Context, task Task) (Result, error) {
	query := str(task, "", "user_query", "query", "question")

	switch action(task, "comprehensive") {
	case "analyze_query":
		qa, err := a.analyzer.AnalyzeUserQuery(ctx, query)
		if err != nil {
			return nil, err
		}
		return result(a.Name(), map[string]any{"success": true, "query_analysis": qa})
	case "comprehensive", "":
		in := llm.ComprehensiveInput{
			UserQuery:     query,
			MarketData:    task["market_data"],
			EconomicData:  task["economic_data"],
			TechnicalData: task["technical_data"],
		}
		if raw, ok := task["query_analysis"]; ok && raw != nil {
			var qa models.QueryAnalysis
			if err := models.FromMap(raw, &qa); err != nil {
				return nil, fmt.Errorf("query_analysis: %w", err)
			}
			in.QueryAnalysis = &qa
		}
		report, err := a.analyzer.ComprehensiveAnalysis(ctx, in)
		if err != nil {
			return nil, err
		}
		return result(a.Name(), report)
	case "react_reasoning":
		plan, err := a.analyzer.ReactReasoning(ctx, query, stringList(task, "available_tools"), str(task, "", "context"))
		if err != nil {
			return nil, err
		}
		return result(a.Name(), map[string]any{"success": true, "reasoning_plan": plan})
	case "evaluate_evidence":
		eval, err := a.analyzer.EvaluateEvidence(ctx, query, mapVal(task, "findings"), mapVal(task, "collected_data"))
		if err != nil {
			return nil, err
		}
		return result(a.Name(), map[string]any{"success": true, "evaluation": eval})
	case "final_analysis":
		fa, err := a.analyzer.FinalAnalysis(ctx, query, mapVal(task, "reasoning_steps"), mapVal(task, "collected_data"))
		if err != nil {
			return nil, err
		}
		return result(a.Name(), map[string]any{"success": true, "final_analysis": fa})
	case "quick":
		text, err := a.analyzer.QuickAnalysis(ctx, task["data"], str(task, "general", "analysis_type"))
		if err != nil {
			return nil, err
		}
		return result(a.Name(), map[string]any{"success": true, "analysis": text})
	case "health":
		return result(a.Name(), a.analyzer.HealthCheck())
	default:
		return nil, fmt.Errorf("unsupported action %q", task["action"])
	}
}
