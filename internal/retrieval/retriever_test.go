package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/iddcare/carebot/internal/index"
	"github.com/iddcare/carebot/internal/log"
)

// fakeEmbedder returns a fixed vector without touching the network.
type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	return f.vec, f.err
}

func (f *fakeEmbedder) Model() string { return "fake" }

type fixedStore struct{ ix *index.Index }

func (s fixedStore) Get() *index.Index { return s.ix }

func buildIndex(t *testing.T) *index.Index {
	t.Helper()

	dir := t.TempDir()
	vectors := [][]float32{
		{0, 1},
		{1, 0},
		{0.6, 0.8},
	}
	meta := []index.Chunk{
		{Title: "Feeding problems", Authors: "Field et al.", Year: "2003", Abstract: "Feeding challenges are common.", SourceFile: "feeding.csv", ChunkID: 0},
		{Title: "Sleep disorders in Down Syndrome", Authors: "Breslin et al.", Year: "2014", Abstract: "Sleep apnea is more common.", SourceFile: "sleep.csv", ChunkID: 0},
		{Title: "", Authors: "", Abstract: "Untitled chunk.", SourceFile: "misc.csv", ChunkID: 2},
	}
	if err := index.Write(dir, "fake", vectors, meta); err != nil {
		t.Fatal(err)
	}
	ix, err := index.Load(dir, "fake")
	if err != nil {
		t.Fatal(err)
	}
	return ix
}

func TestRetrieve_RankingAndJoin(t *testing.T) {
	ix := buildIndex(t)
	r := New(&fakeEmbedder{vec: []float32{1, 0}}, fixedStore{ix}, 5, log.NewNop())

	hits, err := r.Retrieve(context.Background(), "my child won't sleep", 2)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2", len(hits))
	}
	if hits[0].Meta.Title != "Sleep disorders in Down Syndrome" {
		t.Errorf("top hit = %q, want the sleep chunk", hits[0].Meta.Title)
	}
	if hits[0].Score < hits[1].Score {
		t.Errorf("scores not descending: %v then %v", hits[0].Score, hits[1].Score)
	}
	if hits[0].Text != "Sleep apnea is more common." {
		t.Errorf("hit text = %q, want the chunk abstract", hits[0].Text)
	}
}

func TestRetrieve_DefaultTopK(t *testing.T) {
	ix := buildIndex(t)
	r := New(&fakeEmbedder{vec: []float32{1, 0}}, fixedStore{ix}, 2, log.NewNop())

	hits, err := r.Retrieve(context.Background(), "q", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Errorf("len(hits) = %d, want configured default 2", len(hits))
	}
}

func TestRetrieve_KExceedsCorpus(t *testing.T) {
	ix := buildIndex(t)
	r := New(&fakeEmbedder{vec: []float32{0, 1}}, fixedStore{ix}, 5, log.NewNop())

	hits, err := r.Retrieve(context.Background(), "q", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != ix.Count() {
		t.Errorf("len(hits) = %d, want corpus size %d", len(hits), ix.Count())
	}
}

func TestRetrieve_EmbedderError(t *testing.T) {
	ix := buildIndex(t)
	wantErr := errors.New("backend down")
	r := New(&fakeEmbedder{err: wantErr}, fixedStore{ix}, 5, log.NewNop())

	if _, err := r.Retrieve(context.Background(), "q", 3); !errors.Is(err, wantErr) {
		t.Fatalf("Retrieve() error = %v, want wrapped %v", err, wantErr)
	}
}

func TestFormatContext(t *testing.T) {
	hits := []Hit{
		{Text: "Sleep apnea is more common.", Meta: index.Chunk{Title: "Sleep disorders in Down Syndrome", Authors: "Breslin et al.", Year: "2014"}},
		{Text: "Untitled chunk.", Meta: index.Chunk{}},
	}

	got := FormatContext(hits)

	if !strings.Contains(got, "[Title: Sleep disorders in Down Syndrome | Authors: Breslin et al. | Year: 2014]\nSleep apnea is more common.") {
		t.Errorf("formatted context missing provenance block:\n%s", got)
	}
	if !strings.Contains(got, "[Title: N/A | Authors: N/A | Year: ]\nUntitled chunk.") {
		t.Errorf("missing-field fallbacks not applied:\n%s", got)
	}
	if !strings.Contains(got, "\n\n[") {
		t.Errorf("blocks not joined by a blank line:\n%s", got)
	}
}

func TestFormatContext_Empty(t *testing.T) {
	if got := FormatContext(nil); got != "" {
		t.Errorf("FormatContext(nil) = %q, want empty", got)
	}
}
