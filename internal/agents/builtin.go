package agents

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/components/model"

	"github.com/dyike/forexcell/internal/economic"
	"github.com/dyike/forexcell/internal/llm"
	"github.com/dyike/forexcell/internal/planner"
	"github.com/dyike/forexcell/internal/technical"
	"github.com/dyike/forexcell/internal/tools"
)

// Deps are the services the built-in agents wrap. ChatModel, Headlines and
// Generator may be nil.
type Deps struct {
	Market    MarketData
	Calendar  *economic.Calendar
	Technical *technical.Analyzer
	Analyzer  *llm.Analyzer
	ChatModel model.ToolCallingChatModel
	Headlines tools.Headlines
	Generator planner.Generator
}

// RegisterBuiltins provides every built-in agent to m.
func RegisterBuiltins(m *Manager, d Deps) {
	m.Provide(DataFetcherName, "Fetches real-time quotes and historical OHLC bars", func(context.Context) (Agent, error) {
		if d.Market == nil {
			return nil, errors.New("market data source is not configured")
		}
		return NewDataFetcherAgent(d.Market), nil
	})
	m.Provide(EconomicCalendarName, "Economic releases, news sentiment and fundamental bias for the major pairs", func(context.Context) (Agent, error) {
		if d.Calendar == nil {
			return nil, errors.New("economic calendar is not configured")
		}
		return NewEconomicCalendarAgent(d.Calendar), nil
	})
	m.Provide(TechnicalAnalyzerName, "Technical indicators and trading signals over price bars", func(context.Context) (Agent, error) {
		ta := d.Technical
		if ta == nil {
			ta = technical.NewAnalyzer()
		}
		return NewTechnicalAnalyzerAgent(ta, d.Market), nil
	})
	m.Provide(AnalyzerName, "Understands forex questions and writes the combined analysis", func(context.Context) (Agent, error) {
		an := d.Analyzer
		if an == nil {
			an = llm.NewAnalyzer(nil)
		}
		return NewAnalyzerAgent(an), nil
	})
	m.Provide(NewsName, "Forex news, breaking updates and economic event impact", func(ctx context.Context) (Agent, error) {
		if d.Calendar == nil {
			return nil, errors.New("economic calendar is not configured")
		}
		return NewNewsAgent(ctx, d.ChatModel, d.Calendar, d.Headlines)
	})
	m.Provide(PlannerName, "Breaks a request into tasks for the other agents", func(context.Context) (Agent, error) {
		targets := m.Descriptions()
		delete(targets, PlannerName)
		return NewPlannerAgent(planner.New(d.Generator, planner.WithAgents(targets))), nil
	})
}
