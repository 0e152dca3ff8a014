// Package embed turns text into fixed-dimension unit vectors for similarity
// search.
//
// The same model must be used at ingestion time and at query time; mixing
// models produces vectors that are silently incomparable. Every Embedder
// therefore exposes its model identifier via Model(), and the index loader
// compares it against the model stamped into the index manifest before
// serving a single request.
//
// All implementations L2-normalize their output, so inner product over these
// vectors equals cosine similarity.
package embed

import (
	"context"
	"errors"
	"math"

	"github.com/iddcare/carebot/internal/config"
)

// ErrNoEmbedder indicates no embedding backend is configured.
// Unlike the LLM gateway, this is fatal: retrieval cannot run without it.
var ErrNoEmbedder = errors.New("no embedding provider configured")

// Embedder generates a unit-length embedding vector for a text.
// Implementations are safe for concurrent use and constructed once at
// startup.
type Embedder interface {
	// Embed returns the L2-normalized embedding of text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Model returns the embedding model identifier, used for the
	// ingestion/query compatibility check against the index manifest.
	Model() string
}

// Normalize scales v to unit length in place and returns it.
// A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}

// Select resolves the embedding backend from configuration, using the same
// static precedence as the LLM gateway: OpenAI, then Ollama, then Gemini.
// The choice happens once at startup; it is never re-evaluated per request.
func Select(ctx context.Context, cfg *config.Config) (Embedder, error) {
	switch {
	case cfg.OpenAIAPIKey != "":
		return NewOpenAI(OpenAIConfig{
			BaseURL: cfg.OpenAIBaseURL,
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.EmbedderModel,
		}), nil
	case cfg.OllamaModel != "":
		return NewOllama(cfg.OllamaHost, cfg.EmbedderModel), nil
	case cfg.GeminiAPIKey != "":
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.EmbedderModel)
	default:
		return nil, ErrNoEmbedder
	}
}
