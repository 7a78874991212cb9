// Package llm wraps the eino chat models and the prompts built on them.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/forexcell/config"
	"github.com/dyike/forexcell/internal/metrics"
)

// ErrNotConfigured is returned when no API key is set for the provider.
var ErrNotConfigured = errors.New("llm provider is not configured")

// NewChatModel creates the provider's chat model. deep selects the
// deep-think model name instead of the quick one.
func NewChatModel(ctx context.Context, cfg *config.Config, deep bool) (model.ToolCallingChatModel, string, error) {
	name := cfg.QuickThinkLLM
	if deep {
		name = cfg.DeepThinkLLM
	}
	maxTokens := cfg.MaxTokens
	temperature := cfg.Temperature

	switch strings.ToLower(cfg.LLMProvider) {
	case "deepseek", "":
		if cfg.DeepSeekAPIKey == "" {
			return nil, "", fmt.Errorf("%w: DEEPSEEK_API_KEY is empty", ErrNotConfigured)
		}
		cm, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:      cfg.DeepSeekAPIKey,
			BaseURL:     cfg.BackendURL,
			Model:       name,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		})
		if err != nil {
			return nil, "", fmt.Errorf("create deepseek model: %w", err)
		}
		return cm, name, nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, "", fmt.Errorf("%w: OPENAI_API_KEY is empty", ErrNotConfigured)
		}
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     cfg.BackendURL,
			APIKey:      cfg.OpenAIAPIKey,
			Model:       name,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		})
		if err != nil {
			return nil, "", fmt.Errorf("create openai model: %w", err)
		}
		return cm, name, nil
	default:
		return nil, "", fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}

// Client sends single-turn prompts to a chat model.
type Client struct {
	model model.BaseChatModel
	name  string
}

func NewClient(m model.BaseChatModel, name string) *Client {
	return &Client{model: m, name: name}
}

// NewClientFromConfig builds a client for the configured provider.
func NewClientFromConfig(ctx context.Context, cfg *config.Config, deep bool) (*Client, error) {
	cm, name, err := NewChatModel(ctx, cfg, deep)
	if err != nil {
		return nil, err
	}
	return NewClient(cm, name), nil
}

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.name
}

// ChatModel exposes the underlying model for graph and agent nodes.
func (c *Client) ChatModel() model.BaseChatModel { return c.model }

// Generate sends a system and user message and returns the reply text.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	msgs := make([]*schema.Message, 0, 2)
	if system != "" {
		msgs = append(msgs, schema.SystemMessage(system))
	}
	msgs = append(msgs, schema.UserMessage(prompt))

	resp, err := c.model.Generate(ctx, msgs)
	metrics.LLMCalls.WithLabelValues(c.name, metrics.Outcome(err)).Inc()
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return "", errors.New("model returned an empty reply")
	}
	return content, nil
}

// GenerateJSON sends the prompt and decodes the JSON object in the reply.
func (c *Client) GenerateJSON(ctx context.Context, system, prompt string, out any) error {
	text, err := c.Generate(ctx, system, prompt)
	if err != nil {
		return err
	}
	return DecodeJSON(text, out)
}
