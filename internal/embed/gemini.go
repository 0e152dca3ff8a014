package embed

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiEmbedModel is used when no embedder model is configured.
const DefaultGeminiEmbedModel = "gemini-embedding-001"

// Gemini embeds text through the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini embeddings client.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if model == "" {
		model = DefaultGeminiEmbedModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Gemini{client: client, model: model}, nil
}

// Model returns the embedding model identifier.
func (c *Gemini) Model() string { return c.model }

// Embed returns the normalized embedding of text.
// Queries use the retrieval-query task type; the ingestion side embeds
// documents with the matching retrieval-document type.
func (c *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	result, err := c.client.Models.EmbedContent(ctx, c.model, contents, &genai.EmbedContentConfig{
		TaskType: "RETRIEVAL_QUERY",
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("no embedding returned for model %q", c.model)
	}

	return Normalize(result.Embeddings[0].Values), nil
}
