// Package bot runs the chat pipeline: safety scan, smalltalk interception,
// retrieval, prompt assembly and generation, then response assembly with
// citations.
package bot

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/iddcare/carebot/internal/llm"
	"github.com/iddcare/carebot/internal/log"
	"github.com/iddcare/carebot/internal/prompt"
	"github.com/iddcare/carebot/internal/retrieval"
	"github.com/iddcare/carebot/internal/safety"
	"github.com/iddcare/carebot/internal/smalltalk"
)

// EmptyQueryResponse is returned when the question is blank after trimming.
// The pipeline never runs for blank input.
const EmptyQueryResponse = "I didn't catch a question there. " +
	"Feel free to ask me anything about caregiving, routines, or resources for your child."

// Citation points a reader back at the corpus chunk an answer was grounded
// in. Field names mirror the ingested metadata.
type Citation struct {
	Title      string  `json:"title"`
	Authors    string  `json:"authors"`
	Year       string  `json:"year"`
	URL        string  `json:"url,omitempty"`
	SourceFile string  `json:"source_file"`
	ChunkID    int     `json:"chunk_id"`
	Score      float32 `json:"score"`
}

// Response is one answered chat turn.
type Response struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// Retriever is the slice of the retrieval layer the engine needs.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]retrieval.Hit, error)
}

// Engine wires the pipeline stages together. Stateless across turns; safe
// for concurrent use.
type Engine struct {
	retriever Retriever
	provider  llm.Provider
	logger    log.Logger
}

// New creates an Engine.
func New(retriever Retriever, provider llm.Provider, logger log.Logger) *Engine {
	return &Engine{
		retriever: retriever,
		provider:  provider,
		logger:    logger,
	}
}

// Chat answers one caregiver question.
//
// Order of concerns: the safety scan always runs on flagged-able input and
// its crisis preface composes with whatever answer is produced, smalltalk
// included. Smalltalk short-circuits before any embedding or index work.
// Citations are built from the retrieval hits before generation, so a failed
// provider call still returns them alongside the error.
func (e *Engine) Chat(ctx context.Context, query string) (Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Response{Answer: EmptyQueryResponse, Citations: []Citation{}}, nil
	}

	if reply, ok := smalltalk.Match(query); ok {
		if flagged, crisis := safety.Check(query); flagged {
			reply = crisis + "\n\n" + reply
		}
		e.logger.Debug("smalltalk short-circuit")
		return Response{Answer: reply, Citations: []Citation{}}, nil
	}

	// The safety scan is independent of retrieval, so a retrieval failure
	// can never mask a crisis flag.
	var (
		flagged bool
		crisis  string
		hits    []retrieval.Hit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		flagged, crisis = safety.Check(query)
		return nil
	})
	g.Go(func() error {
		var err error
		hits, err = e.retriever.Retrieve(gctx, query, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		if flagged {
			return Response{Answer: crisis, Citations: []Citation{}}, fmt.Errorf("retrieving context: %w", err)
		}
		return Response{}, fmt.Errorf("retrieving context: %w", err)
	}

	citations := citationsFrom(hits)

	msgs := prompt.Build(query, retrieval.FormatContext(hits))
	answer, err := e.provider.Complete(ctx, msgs)
	if err != nil {
		resp := Response{Citations: citations}
		if flagged {
			resp.Answer = crisis
		}
		return resp, fmt.Errorf("generating answer: %w", err)
	}

	if flagged {
		answer = crisis + "\n\n" + answer
	}

	e.logger.Info("chat answered",
		"provider", e.provider.Name(),
		"citations", len(citations),
		"flagged", flagged,
	)
	return Response{Answer: answer, Citations: citations}, nil
}

func citationsFrom(hits []retrieval.Hit) []Citation {
	citations := make([]Citation, len(hits))
	for i, h := range hits {
		citations[i] = Citation{
			Title:      h.Meta.Title,
			Authors:    h.Meta.Authors,
			Year:       h.Meta.Year,
			URL:        h.Meta.URL,
			SourceFile: h.Meta.SourceFile,
			ChunkID:    h.Meta.ChunkID,
			Score:      h.Score,
		}
	}
	return citations
}
