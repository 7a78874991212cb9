package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyike/forexcell/internal/dataflows"
	"github.com/dyike/forexcell/internal/technical"
)

const TechnicalAnalyzerName = "technical_analyzer"

type TechnicalAnalyzerAgent struct {
	analyzer *technical.Analyzer
	data     MarketData
}

// NewTechnicalAnalyzerAgent creates the agent. data may be nil; when set,
// tasks without bars fetch history for their currency_pair.
func NewTechnicalAnalyzerAgent(analyzer *technical.Analyzer, data MarketData) *TechnicalAnalyzerAgent {
	return &TechnicalAnalyzerAgent{analyzer: analyzer, data: data}
}

func (a *TechnicalAnalyzerAgent) Name() string { return TechnicalAnalyzerName }

func (a *TechnicalAnalyzerAgent) Description() string {
	return "Computes RSI, MACD, Bollinger, stochastic, moving averages, trend and ATR signals over price bars"
}

func (a *TechnicalAnalyzerAgent) Info() AgentInfo {
	return AgentInfo{
		Name:        a.Name(),
		Description: a.Description(),
		Actions:     []string{"analyze", "config", "health"},
	}
}

func (a *TechnicalAnalyzerAgent) Execute(ctx context.Context, task Task) (Result, error) {
	switch action(task, "analyze") {
	case "analyze", "":
		return a.analyze(ctx, task)
	case "config":
		return result(a.Name(), a.analyzer.Config())
	case "health":
		return result(a.Name(), a.analyzer.HealthCheck())
	default:
		return nil, fmt.Errorf("unsupported action %q", task["action"])
	}
}

func (a *TechnicalAnalyzerAgent) analyze(ctx context.Context, task Task) (Result, error) {
	data, ok := task["data"]
	if !ok || data == nil {
		data = task["market_data"]
	}
	symbol := str(task, "", "symbol", "currency_pair")

	if data == nil {
		if a.data == nil || symbol == "" {
			return nil, errors.New("no price data in task")
		}
		res, err := a.data.Fetch(ctx, dataflows.FetchRequest{
			Pair:       symbol,
			DataType:   dataflows.DataHistorical,
			Interval:   str(task, "1h", "interval", "timeframe"),
			OutputSize: intVal(task, "output_size", 100),
		})
		if err != nil {
			return nil, fmt.Errorf("fetch bars: %w", err)
		}
		data = res
	}

	report, err := a.analyzer.Analyze(data, symbol)
	if err != nil {
		return nil, err
	}
	out, err := result(a.Name(), report)
	if err != nil {
		return nil, err
	}
	if !boolVal(task, "include_ai_analysis", false) {
		return out, nil
	}
	frame, err := a.analyzer.Calculate(data)
	if err != nil {
		return nil, err
	}
	text, err := a.analyzer.Narrate(ctx, report, frame)
	if err != nil {
		out["ai_analysis_error"] = err.Error()
		return out, nil
	}
	out["ai_analysis"] = text
	return out, nil
}
