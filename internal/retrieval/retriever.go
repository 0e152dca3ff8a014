// Package retrieval turns a caregiver question into ranked, grounded corpus
// snippets.
//
// The retriever is thin orchestration: embed the query, search the index,
// join the returned positions against the chunk metadata, preserving the
// index's descending-score order. The context formatter then renders hits
// into the single grounding block the prompt builder interpolates.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/iddcare/carebot/internal/embed"
	"github.com/iddcare/carebot/internal/index"
	"github.com/iddcare/carebot/internal/log"
)

// Hit is one retrieval result, ranked by descending score.
type Hit struct {
	Score float32
	Text  string
	Meta  index.Chunk
}

// Searcher is the slice of the index store the retriever needs.
// *index.Store satisfies it; tests substitute fakes.
type Searcher interface {
	Get() *index.Index
}

// Retriever performs embedding, similarity search and the metadata join.
// Safe for concurrent use: both collaborators are read-only after startup.
type Retriever struct {
	embedder embed.Embedder
	store    Searcher
	topK     int
	logger   log.Logger
}

// New creates a Retriever. topK is the default result count when a caller
// passes k <= 0.
func New(embedder embed.Embedder, store Searcher, topK int, logger log.Logger) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		topK:     topK,
		logger:   logger,
	}
}

// Retrieve returns the top-k hits for query in descending score order.
// k larger than the corpus returns every chunk.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 {
		k = r.topK
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	ix := r.store.Get()
	ids, scores, err := ix.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	hits := make([]Hit, len(ids))
	for i, id := range ids {
		meta := ix.Meta(id)
		hits[i] = Hit{
			Score: scores[i],
			Text:  meta.Body(),
			Meta:  meta,
		}
	}

	r.logger.Debug("retrieved context",
		"hits", len(hits),
		"k", k,
	)
	return hits, nil
}

// FormatContext renders hits into the grounding block handed to the model:
// a bracketed provenance header per hit followed by its text, blocks joined
// by a blank line. Missing titles and authors fall back to "N/A", missing
// years to empty, matching the ingested corpus conventions.
func FormatContext(hits []Hit) string {
	blocks := make([]string, len(hits))
	for i, h := range hits {
		title := h.Meta.Title
		if title == "" {
			title = "N/A"
		}
		authors := h.Meta.Authors
		if authors == "" {
			authors = "N/A"
		}
		header := fmt.Sprintf("Title: %s | Authors: %s | Year: %s", title, authors, h.Meta.Year)
		blocks[i] = fmt.Sprintf("[%s]\n%s", header, h.Text)
	}
	return strings.Join(blocks, "\n\n")
}
