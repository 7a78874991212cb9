package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyike/forexcell/internal/logger"
	"github.com/dyike/forexcell/models"
)

// Analyzer runs the LLM analysis steps. Without a client every step that
// has a rule-based fallback uses it.
type Analyzer struct {
	client *Client
	log    zerolog.Logger
	now    func() time.Time
}

func NewAnalyzer(client *Client) *Analyzer {
	return &Analyzer{client: client, log: logger.Component("analyzer"), now: time.Now}
}

// Enabled reports whether a chat model is attached.
func (a *Analyzer) Enabled() bool { return a.client != nil }

func (a *Analyzer) Model() string { return a.client.Model() }

// Generate forwards to the attached client so the analyzer can narrate
// technical reports.
func (a *Analyzer) Generate(ctx context.Context, system, prompt string) (string, error) {
	if a.client == nil {
		return "", ErrNotConfigured
	}
	return a.client.Generate(ctx, system, prompt)
}

// AnalyzeUserQuery identifies pairs, intent and required data in a question.
// Model failures fall back to keyword detection.
func (a *Analyzer) AnalyzeUserQuery(ctx context.Context, query string) (*models.QueryAnalysis, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query is empty")
	}
	if a.client == nil {
		return RuleQueryAnalysis(query), nil
	}

	prompt, err := RenderPrompt("query_analysis", map[string]string{"Query": query})
	if err != nil {
		return nil, err
	}
	var qa models.QueryAnalysis
	if err := a.client.GenerateJSON(ctx, mustPrompt("query_system"), prompt, &qa); err != nil {
		a.log.Warn().Err(err).Msg("query analysis failed, using keyword detection")
		return RuleQueryAnalysis(query), nil
	}
	for i, p := range qa.IdentifiedPairs {
		if norm, err := models.NormalizePair(p); err == nil {
			qa.IdentifiedPairs[i] = norm
		}
	}
	if norm, err := models.NormalizePair(qa.PrimaryPair); err == nil {
		qa.PrimaryPair = norm
	} else if len(qa.IdentifiedPairs) > 0 {
		qa.PrimaryPair = qa.IdentifiedPairs[0]
	}
	qa.Source = "llm"
	return &qa, nil
}

// ReactReasoning plans which data to collect for a question.
func (a *Analyzer) ReactReasoning(ctx context.Context, question string, tools []string, extra string) (*models.ReasoningPlan, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question is empty")
	}
	if len(tools) == 0 {
		tools = []string{"data_fetcher", "technical_analyzer", "economic_calendar"}
	}
	if a.client == nil {
		return RuleReasoningPlan(question), nil
	}
	if extra == "" {
		extra = "none"
	}
	prompt, err := RenderPrompt("react_reasoning", map[string]string{
		"Question": question,
		"Tools":    strings.Join(tools, ", "),
		"Context":  extra,
	})
	if err != nil {
		return nil, err
	}
	var plan models.ReasoningPlan
	system := "You are a professional forex analyst who plans investigations. Always identify the target currency pair. Reply with JSON only."
	if err := a.client.GenerateJSON(ctx, system, prompt, &plan); err != nil {
		return nil, fmt.Errorf("reasoning plan: %w", err)
	}
	plan.TargetPair = normalizeTarget(plan.TargetPair)
	plan.Source = "llm"
	return &plan, nil
}

// normalizeTarget upper-cases the pair and strips spaces; "N/A" is kept.
func normalizeTarget(pair string) string {
	pair = strings.TrimSpace(pair)
	if pair == "" || strings.EqualFold(pair, "N/A") {
		return pair
	}
	return strings.ReplaceAll(strings.ToUpper(pair), " ", "")
}

// EvaluateEvidence decides whether the collected data answers the question.
func (a *Analyzer) EvaluateEvidence(ctx context.Context, question string, findings, collected map[string]any) (*models.EvidenceEvaluation, error) {
	if a.client == nil {
		return ruleEvaluation(collected), nil
	}
	prompt, err := RenderPrompt("evaluate_evidence", map[string]string{
		"Question":  question,
		"Findings":  indentJSON(findings),
		"Collected": indentJSON(collected),
	})
	if err != nil {
		return nil, err
	}
	var eval models.EvidenceEvaluation
	system := "You are a data analyst who judges whether evidence is complete. Reply with JSON only."
	if err := a.client.GenerateJSON(ctx, system, prompt, &eval); err != nil {
		return nil, fmt.Errorf("evaluate evidence: %w", err)
	}
	return &eval, nil
}

// FinalAnalysis turns the reasoning record and collected data into an answer.
func (a *Analyzer) FinalAnalysis(ctx context.Context, question string, steps, collected map[string]any) (*models.FinalAnalysis, error) {
	if a.client == nil {
		return ruleFinalAnalysis(question, collected), nil
	}
	prompt, err := RenderPrompt("final_analysis", map[string]string{
		"Question":  question,
		"Steps":     indentJSON(steps),
		"Collected": indentJSON(collected),
	})
	if err != nil {
		return nil, err
	}
	var fa models.FinalAnalysis
	system := "You are a top forex analyst who draws professional conclusions from a reasoning record and data. Reply with JSON only."
	if err := a.client.GenerateJSON(ctx, system, prompt, &fa); err != nil {
		return nil, fmt.Errorf("final analysis: %w", err)
	}
	return &fa, nil
}

// QuickAnalysis asks for a short commentary on a single data source.
func (a *Analyzer) QuickAnalysis(ctx context.Context, data any, kind string) (string, error) {
	if a.client == nil {
		return "", ErrNotConfigured
	}
	if kind == "" {
		kind = "general"
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode data: %w", err)
	}
	return a.client.Generate(ctx, "You are a data analysis expert.",
		fmt.Sprintf("Analyze the following %s data: %s", kind, raw))
}

type Health struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	AICapabilities string `json:"ai_capabilities"`
	DefaultModel   string `json:"default_model"`
	Timestamp      string `json:"timestamp"`
}

func (a *Analyzer) HealthCheck() Health {
	h := Health{
		Status:         "healthy",
		Service:        "analyzer",
		AICapabilities: "available",
		DefaultModel:   a.client.Model(),
		Timestamp:      a.now().Format(time.RFC3339),
	}
	if a.client == nil {
		h.Status, h.AICapabilities = "degraded", "unavailable"
	}
	return h
}

func indentJSON(v any) string {
	if v == nil {
		return "{}"
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
