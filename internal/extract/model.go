// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/pdiddy/toolsweep/pkg/types"
)

// Completer produces one model completion for a system and user
// message pair. The engine depends on nothing else about the model, so
// tests drive it with canned implementations.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Model adapts a langchaingo backend to Completer.
type Model struct {
	llm         llms.Model
	name        string
	temperature float64
	maxTokens   int
}

// NewModel constructs the configured provider backend. Ollama runs
// without a key; the hosted providers refuse an empty one.
func NewModel(cfg types.ModelConfig) (*Model, error) {
	var backend llms.Model
	var err error

	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		backend, err = openai.New(openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model))
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		backend, err = anthropic.New(anthropic.WithToken(cfg.APIKey), anthropic.WithModel(cfg.Model))
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.ServerURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.ServerURL))
		}
		backend, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s model: %w", cfg.Provider, err)
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.25
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	return &Model{
		llm:         backend,
		name:        cfg.Model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Name returns the configured model name.
func (m *Model) Name() string {
	return m.name
}

// Complete sends one system and user exchange and returns the raw
// reply text. JSON mode is requested from providers that support it.
func (m *Model) Complete(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
		llms.TextParts(schema.ChatMessageTypeHuman, user),
	}

	resp, err := m.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(m.temperature),
		llms.WithMaxTokens(m.maxTokens),
		llms.WithJSONMode(),
	)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}
