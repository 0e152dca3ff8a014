package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/iddcare/carebot/internal/log"
)

const testModel = "test-embed-v1"

// writeFixture builds a small index: three 2-d unit vectors.
func writeFixture(t *testing.T, dir string) {
	t.Helper()

	vectors := [][]float32{
		{1, 0},
		{0, 1},
		{0.7071, 0.7071},
	}
	meta := []Chunk{
		{Title: "Sleep disorders in Down Syndrome", Authors: "Breslin et al.", Year: "2014", Abstract: "Sleep problems are common.", SourceFile: "sleep.csv", ChunkID: 0},
		{Title: "Feeding problems", Authors: "Field et al.", Abstract: "Feeding challenges.", SourceFile: "feeding.csv", ChunkID: 0},
		{Title: "Transition supports", Authors: "Dettmer et al.", Abstract: "Routine changes.", SourceFile: "transitions.csv", ChunkID: 1},
	}
	if err := Write(dir, testModel, vectors, meta); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
}

func TestLoad_OK(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)

	ix, err := Load(dir, testModel)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ix.Count() != 3 {
		t.Errorf("Count() = %d, want 3", ix.Count())
	}
	if ix.Dimension() != 2 {
		t.Errorf("Dimension() = %d, want 2", ix.Dimension())
	}
	if ix.Model() != testModel {
		t.Errorf("Model() = %q, want %q", ix.Model(), testModel)
	}
	if got := ix.Meta(0).Title; got != "Sleep disorders in Down Syndrome" {
		t.Errorf("Meta(0).Title = %q", got)
	}
}

func TestLoad_ModelMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)

	if _, err := Load(dir, "some-other-model"); !errors.Is(err, ErrModelMismatch) {
		t.Fatalf("Load() error = %v, want ErrModelMismatch", err)
	}
}

func TestLoad_MissingDir(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope"), testModel); err == nil {
		t.Fatal("Load() error = nil, want error for missing directory")
	}
}

func TestLoad_MetadataOutOfLockstep(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)

	// Drop one metadata record; the parallel-array invariant must fail load.
	if err := os.WriteFile(filepath.Join(dir, MetaFile), []byte(`[{"title":"only one","authors":"a","abstract":"x","source_file":"f","chunk_id":0}]`), 0o640); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir, testModel); !errors.Is(err, ErrCorruptIndex) {
		t.Fatalf("Load() error = %v, want ErrCorruptIndex", err)
	}
}

func TestLoad_TruncatedVectors(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)

	data, err := os.ReadFile(filepath.Join(dir, VectorsFile))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, VectorsFile), data[:len(data)-5], 0o640); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir, testModel); !errors.Is(err, ErrCorruptIndex) {
		t.Fatalf("Load() error = %v, want ErrCorruptIndex", err)
	}
}

func TestSearch_DescendingOrder(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	ix, err := Load(dir, testModel)
	if err != nil {
		t.Fatal(err)
	}

	ids, scores, err := ix.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("len(ids) = %d, want 3", len(ids))
	}
	if ids[0] != 0 {
		t.Errorf("top hit id = %d, want 0 (exact match)", ids[0])
	}
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[i-1] {
			t.Errorf("scores not descending: %v", scores)
		}
	}
}

func TestSearch_KLargerThanCorpus(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	ix, err := Load(dir, testModel)
	if err != nil {
		t.Fatal(err)
	}

	ids, _, err := ix.Search([]float32{0, 1}, 50)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(ids) != ix.Count() {
		t.Errorf("len(ids) = %d, want corpus size %d", len(ids), ix.Count())
	}
}

func TestSearch_DimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	ix, err := Load(dir, testModel)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := ix.Search([]float32{1, 0, 0}, 3); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("Search() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestStore_Reload(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)

	store, err := NewStore(dir, testModel, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	before := store.Get()

	// Republish with an extra chunk.
	vectors := [][]float32{{1, 0}, {0, 1}, {0.7071, 0.7071}, {-1, 0}}
	meta := make([]Chunk, 4)
	for i := range meta {
		meta[i] = Chunk{Title: "t", Authors: "a", Abstract: "x", SourceFile: "f", ChunkID: i}
	}
	if err := Write(dir, testModel, vectors, meta); err != nil {
		t.Fatal(err)
	}

	if err := store.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	after := store.Get()

	if before.Count() != 3 || after.Count() != 4 {
		t.Errorf("counts = %d -> %d, want 3 -> 4", before.Count(), after.Count())
	}
	// The old snapshot stays valid for in-flight readers.
	if _, _, err := before.Search([]float32{1, 0}, 1); err != nil {
		t.Errorf("old snapshot Search() error = %v", err)
	}
}

func TestStore_ReloadFailureKeepsSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)

	store, err := NewStore(dir, testModel, log.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte("{"), 0o640); err != nil {
		t.Fatal(err)
	}

	if err := store.Reload(); err == nil {
		t.Fatal("Reload() error = nil, want error for corrupt manifest")
	}
	if store.Get() == nil || store.Get().Count() != 3 {
		t.Error("failed reload should keep the previous snapshot")
	}
}

func TestWatcher_ReloadsOnRepublish(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	writeFixture(t, dir)

	store, err := NewStore(dir, testModel, log.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(store, log.NewNop())
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	vectors := [][]float32{{1, 0}, {0, 1}}
	meta := []Chunk{
		{Title: "t", Authors: "a", Abstract: "x", SourceFile: "f", ChunkID: 0},
		{Title: "t", Authors: "a", Abstract: "y", SourceFile: "f", ChunkID: 1},
	}
	if err := Write(dir, testModel, vectors, meta); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(10 * time.Second)
	for store.Get().Count() != 2 {
		select {
		case <-deadline:
			t.Fatal("watcher did not reload the republished index")
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	<-done
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
