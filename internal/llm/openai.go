package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// completionTimeout bounds every remote completion call; past it the call
// fails instead of hanging an in-flight chat request.
const completionTimeout = 60 * time.Second

// openAIChatRequest is the OpenAI chat completions wire format, shared by
// the OpenAI and Azure providers.
type openAIChatRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// OpenAI calls an OpenAI-compatible chat completions endpoint with bearer
// authentication.
type OpenAI struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float32
	maxTokens   int
	client      *http.Client
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	BaseURL     string // default https://api.openai.com/v1
	APIKey      string
	Model       string // default gpt-4o-mini
	Temperature float32
	MaxTokens   int
}

// NewOpenAI creates an OpenAI-compatible completion provider.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &OpenAI{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: completionTimeout},
	}
}

// Name implements Provider.
func (p *OpenAI) Name() string { return "openai" }

// Complete implements Provider.
func (p *OpenAI) Complete(ctx context.Context, messages []Message) (string, error) {
	body := openAIChatRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	}
	return postChatCompletion(ctx, p.client, p.Name(), p.baseURL+"/chat/completions", map[string]string{
		"Authorization": "Bearer " + p.apiKey,
	}, body)
}

// postChatCompletion performs one OpenAI-wire chat completion request.
func postChatCompletion(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body openAIChatRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling %s: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{Provider: provider, Code: resp.StatusCode, Body: string(snippet)}
	}

	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding %s response: %w", provider, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", provider)
	}

	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
