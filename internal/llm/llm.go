// Package llm dispatches chat messages to an interchangeable completion
// provider.
//
// A single concrete provider is resolved once at startup from configuration,
// by static precedence: OpenAI, then Azure OpenAI, then Ollama, then Gemini.
// Presence of credentials decides; this is not a failure-time fallback chain.
// With nothing configured the gateway degrades to a fixed warning answer so
// retrieval citations and the safety preface still reach the caller.
//
// Remote calls are bounded by a 60 second timeout and retried with
// exponential backoff on transient failures (rate limits, 5xx, network
// resets). Non-transient errors propagate to the caller of the pipeline.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/iddcare/carebot/internal/config"
	"github.com/iddcare/carebot/internal/log"
)

// Role identifies the author of a chat message.
type Role string

// Message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in the conversation sent to a provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Provider completes a message sequence into answer text.
// Implementations are safe for concurrent use.
type Provider interface {
	// Complete sends messages and returns the completion text, trimmed.
	Complete(ctx context.Context, messages []Message) (string, error)

	// Name identifies the provider for logging.
	Name() string
}

// NoProviderWarning is returned verbatim as the answer when no provider is
// configured. The pipeline still returns citations in that case.
const NoProviderWarning = "⚠️ No LLM provider configured. Please set OPENAI_API_KEY or OLLAMA_MODEL in .env."

// StatusError is a non-2xx response from a remote provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Provider, e.Code, strings.TrimSpace(e.Body))
}

// Select resolves the active provider from configuration, wrapping remote
// providers with bounded retry. The decision is made once; it is never
// re-checked per request.
func Select(ctx context.Context, cfg *config.Config, logger log.Logger) (Provider, error) {
	var p Provider
	switch {
	case cfg.OpenAIAPIKey != "":
		p = NewOpenAI(OpenAIConfig{
			BaseURL:     cfg.OpenAIBaseURL,
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.OpenAIModel,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	case cfg.AzureAPIKey != "":
		p = NewAzure(AzureConfig{
			Endpoint:    cfg.AzureEndpoint,
			Deployment:  cfg.AzureDeployment,
			APIKey:      cfg.AzureAPIKey,
			APIVersion:  cfg.AzureAPIVersion,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	case cfg.OllamaModel != "":
		p = NewOllama(cfg.OllamaHost, cfg.OllamaModel)
	case cfg.GeminiAPIKey != "":
		gp, err := NewGemini(ctx, GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiModel,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("creating gemini provider: %w", err)
		}
		p = gp
	default:
		logger.Warn("no LLM provider configured, answers degrade to a fixed notice")
		return NoProvider{}, nil
	}

	logger.Info("LLM provider selected", "provider", p.Name())
	return NewRetrying(p, DefaultRetryConfig(), logger), nil
}

// NoProvider is the degraded gateway used when nothing is configured.
// It performs no network call.
type NoProvider struct{}

// Name implements Provider.
func (NoProvider) Name() string { return "none" }

// Complete implements Provider by returning the fixed warning.
func (NoProvider) Complete(context.Context, []Message) (string, error) {
	return NoProviderWarning, nil
}
