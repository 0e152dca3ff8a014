package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Azure calls an Azure-hosted OpenAI deployment. Same wire body as OpenAI,
// but the URL carries the deployment name and api-version, auth is an
// api-key header instead of a bearer token, and the model is implied by the
// deployment.
type Azure struct {
	endpoint    string
	deployment  string
	apiKey      string
	apiVersion  string
	temperature float32
	maxTokens   int
	client      *http.Client
}

// AzureConfig configures the Azure OpenAI provider.
type AzureConfig struct {
	Endpoint    string // e.g. https://myresource.openai.azure.com
	Deployment  string
	APIKey      string
	APIVersion  string // default 2024-06-01
	Temperature float32
	MaxTokens   int
}

// NewAzure creates an Azure OpenAI completion provider.
func NewAzure(cfg AzureConfig) *Azure {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-06-01"
	}
	return &Azure{
		endpoint:    strings.TrimRight(cfg.Endpoint, "/"),
		deployment:  cfg.Deployment,
		apiKey:      cfg.APIKey,
		apiVersion:  cfg.APIVersion,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: completionTimeout},
	}
}

// Name implements Provider.
func (p *Azure) Name() string { return "azure" }

// Complete implements Provider.
func (p *Azure) Complete(ctx context.Context, messages []Message) (string, error) {
	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		p.endpoint, url.PathEscape(p.deployment), url.QueryEscape(p.apiVersion))

	body := openAIChatRequest{
		// No model field: the deployment pins it.
		Messages:    messages,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	}
	return postChatCompletion(ctx, p.client, p.Name(), endpoint, map[string]string{
		"api-key": p.apiKey,
	}, body)
}
