package agents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/dyike/forexcell/config"
	"github.com/dyike/forexcell/internal/economic"
	"github.com/dyike/forexcell/internal/llm"
	"github.com/dyike/forexcell/internal/logger"
	"github.com/dyike/forexcell/internal/tools"
)

const NewsName = "news"

const defaultNewsQuery = "Give me an overview of today's forex market"

var (
	forexKeywords    = []string{"market", "trading", "currency", "forex", "fx", "usd", "eur", "gbp", "jpy"}
	economicKeywords = []string{"economic", "news", "event", "data", "rate", "inflation"}
)

// NewsAgent answers forex news questions. With a chat model it runs a ReAct
// loop over the news tools; without one it calls the tools directly.
type NewsAgent struct {
	cal       *economic.Calendar
	headlines tools.Headlines
	runner    compose.Runnable[[]*schema.Message, *schema.Message]
	system    string
	log       zerolog.Logger
}

// NewNewsAgent builds the agent. cm may be nil.
func NewNewsAgent(ctx context.Context, cm model.ToolCallingChatModel, cal *economic.Calendar, headlines tools.Headlines) (*NewsAgent, error) {
	a := &NewsAgent{cal: cal, headlines: headlines, log: logger.Component(NewsName)}
	if cm == nil {
		return a, nil
	}

	system, err := llm.LoadPrompt("news_agent")
	if err != nil {
		return nil, err
	}
	a.system = system

	newsTools := []tool.BaseTool{
		tools.NewBreakingNewsTool(cal),
		tools.NewFinancialNewsTool(cal),
		tools.NewWebSearchTool(cal, headlines),
	}
	ra, err := react.NewAgent(ctx, &react.AgentConfig{
		MaxStep:               12,
		ToolCallingModel:      cm,
		ToolsConfig:           compose.ToolsNodeConfig{Tools: newsTools},
		StreamToolCallChecker: toolCallChecker,
	})
	if err != nil {
		return nil, fmt.Errorf("create react agent: %w", err)
	}
	agentLambda, err := compose.AnyLambda(ra.Generate, ra.Stream, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create agent lambda: %w", err)
	}

	g := compose.NewGraph[[]*schema.Message, *schema.Message]()
	_ = g.AddLambdaNode("agent", agentLambda)
	_ = g.AddEdge(compose.START, "agent")
	_ = g.AddEdge("agent", compose.END)

	a.runner, err = g.Compile(ctx, compose.WithGraphName("news_agent"))
	if err != nil {
		return nil, fmt.Errorf("compile news graph: %w", err)
	}
	return a, nil
}

func (a *NewsAgent) Name() string { return NewsName }

func (a *NewsAgent) Description() string {
	return "Forex news, breaking market updates and economic event impact, with trading insight"
}

func (a *NewsAgent) Info() AgentInfo {
	return AgentInfo{
		Name:        a.Name(),
		Description: a.Description(),
		Tools:       []string{"breaking_news", "financial_news", "web_search"},
	}
}

func (a *NewsAgent) Execute(ctx context.Context, task Task) (Result, error) {
	query := str(task, defaultNewsQuery, "query", "user_query", "question")
	enhanced := EnhanceQuery(query)
	a.log.Info().Str("query", truncate(query, 100)).Bool("react", a.runner != nil).Msg("processing news query")

	if a.runner == nil {
		text, err := a.direct(ctx, query)
		if err != nil {
			return nil, err
		}
		return result(a.Name(), map[string]any{
			"success":        true,
			"query":          query,
			"enhanced_query": enhanced,
			"analysis":       text,
			"mode":           "tools",
		})
	}

	msg, err := a.runner.Invoke(ctx, []*schema.Message{
		schema.SystemMessage(a.system),
		schema.UserMessage(enhanced),
	})
	if err != nil {
		return nil, fmt.Errorf("news agent: %w", err)
	}
	return result(a.Name(), map[string]any{
		"success":        true,
		"query":          query,
		"enhanced_query": enhanced,
		"analysis":       msg.Content,
		"mode":           "react",
	})
}

// direct answers without a model: breaking news plus the view of the
// first pair mentioned, or the headline search otherwise.
func (a *NewsAgent) direct(ctx context.Context, query string) (string, error) {
	breaking, err := tools.BreakingNews(ctx, a.cal)
	if err != nil {
		return "", err
	}
	var detail *tools.NewsReport
	if pairs := llm.DetectPairs(query); len(pairs) > 0 {
		detail, err = tools.FinancialNews(ctx, a.cal, pairs[0])
	} else {
		detail, err = tools.WebSearch(ctx, a.cal, a.headlines, query)
	}
	if err != nil {
		return "", err
	}
	return breaking.Report + "\n" + detail.Report, nil
}

// EnhanceQuery adds multi-pair context to general market questions that do
// not name a major pair.
func EnhanceQuery(query string) string {
	lower := strings.ToLower(query)
	if !containsAny(lower, forexKeywords) && !containsAny(lower, economicKeywords) {
		return query
	}
	upper := strings.ToUpper(query)
	for _, p := range config.MajorPairs {
		if strings.Contains(upper, p) {
			return query
		}
	}
	return query + " - cover the major currency pairs (EUR/USD, GBP/USD, USD/JPY and others)"
}

func toolCallChecker(_ context.Context, sr *schema.StreamReader[*schema.Message]) (bool, error) {
	defer sr.Close()
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if len(msg.ToolCalls) > 0 {
			return true, nil
		}
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
