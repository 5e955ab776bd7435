package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/voicegraph/voicegraph/internal/observability"
	"github.com/voicegraph/voicegraph/internal/resilience"
)

const (
	// Sampling is fixed across providers so a fallback reply sounds like
	// the primary one.
	completionTemperature = 0.7
	completionMaxTokens   = 256

	groqBaseURL       = "https://api.groq.com/openai/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"
)

// Provider is a chat-completion backend behind an OpenAI-compatible API.
type Provider struct {
	name           string
	client         *openai.Client
	model          string
	logger         zerolog.Logger
	circuitBreaker *resilience.CircuitBreaker
}

// NewProvider creates a provider against an OpenAI-compatible endpoint.
func NewProvider(name, apiKey, baseURL, model string, maxFailures int, resetTimeout time.Duration) *Provider {
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = baseURL

	return &Provider{
		name:           name,
		client:         openai.NewClientWithConfig(clientCfg),
		model:          model,
		logger:         observability.ComponentLogger("llm." + name),
		circuitBreaker: resilience.NewCircuitBreaker(name, maxFailures, resetTimeout),
	}
}

// NewGroqProvider targets Groq's OpenAI-compatible endpoint.
func NewGroqProvider(apiKey, model string, maxFailures int, resetTimeout time.Duration) *Provider {
	return NewProvider("groq", apiKey, groqBaseURL, model, maxFailures, resetTimeout)
}

// NewOpenRouterProvider targets OpenRouter's OpenAI-compatible endpoint.
func NewOpenRouterProvider(apiKey, model string, maxFailures int, resetTimeout time.Duration) *Provider {
	return NewProvider("openrouter", apiKey, openRouterBaseURL, model, maxFailures, resetTimeout)
}

// Name identifies the provider in logs and metrics.
func (p *Provider) Name() string {
	return p.name
}

// Complete runs a single chat completion and returns the reply text.
func (p *Provider) Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	var reply string

	err := p.circuitBreaker.Call(func() error {
		resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       p.model,
			Messages:    messages,
			Temperature: completionTemperature,
			MaxTokens:   completionMaxTokens,
		})
		if err != nil {
			observability.IncrementCircuitBreakerFailures(p.name)
			return fmt.Errorf("%s completion failed: %w", p.name, err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%s returned no completion choices", p.name)
		}
		reply = strings.TrimSpace(resp.Choices[0].Message.Content)
		if reply == "" {
			return fmt.Errorf("%s returned an empty completion", p.name)
		}
		return nil
	})

	observability.UpdateCircuitBreakerState(p.name, int(p.circuitBreaker.GetState()))
	if err != nil {
		return "", err
	}

	p.logger.Debug().Str("model", p.model).Int("reply_chars", len(reply)).Msg("completion generated")
	return reply, nil
}
