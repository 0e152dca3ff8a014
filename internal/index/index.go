// Package index loads and searches the persisted vector index produced by
// the offline ingestion job.
//
// The on-disk contract is a directory holding three files:
//
//	vectors.bin    flat inner-product index: "CBVX" magic, format version,
//	               dimension and count (uint32 little-endian), then
//	               count×dimension float32 vector components
//	meta.json      ordered JSON array of chunk records
//	manifest.json  {model, dimension, count} stamp written by the ingester
//
// Row i of meta.json describes the chunk embedded into vector i; the two
// sequences must stay in lockstep, and vectors must be unit-normalized so
// inner product equals cosine similarity. Load verifies all of it, including
// that the ingestion-time embedding model matches the configured query-time
// model — a mismatch would not error at runtime, it would silently return
// garbage neighbors.
//
// The index is immutable after Load. Store adds atomic hot-reload on top for
// when the ingester republishes the directory.
package index

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"
)

// On-disk constants for vectors.bin.
const (
	vectorsMagic   = "CBVX"
	vectorsVersion = uint32(1)
)

// File names inside the index directory.
const (
	VectorsFile  = "vectors.bin"
	MetaFile     = "meta.json"
	ManifestFile = "manifest.json"

	// LockFile is held exclusively by the ingester while republishing and
	// shared by readers, so a reload never observes a half-written pair.
	LockFile = ".publish.lock"
)

var (
	// ErrCorruptIndex indicates the persisted files are unreadable or
	// internally inconsistent.
	ErrCorruptIndex = errors.New("corrupt index")

	// ErrModelMismatch indicates the index was built with a different
	// embedding model than the one configured for queries.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrDimensionMismatch indicates a query vector of the wrong length.
	ErrDimensionMismatch = errors.New("query dimension mismatch")
)

// Chunk is one corpus record, produced by ingestion and immutable thereafter.
// Year and URL are optional and may be empty.
type Chunk struct {
	Text       string `json:"text,omitempty"`
	Title      string `json:"title"`
	Authors    string `json:"authors"`
	Abstract   string `json:"abstract"`
	SourceFile string `json:"source_file"`
	ChunkID    int    `json:"chunk_id"`
	Year       string `json:"year,omitempty"`
	URL        string `json:"url,omitempty"`
}

// Body returns the retrievable text of the chunk. Ingestion stores the
// chunked abstract; Text is only set when a chunk diverges from its abstract.
func (c Chunk) Body() string {
	if c.Text != "" {
		return c.Text
	}
	return c.Abstract
}

// Manifest is the compatibility stamp written next to the index.
type Manifest struct {
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
	Count     int    `json:"count"`
}

// Index is an exact inner-product index over unit-normalized vectors with its
// parallel chunk metadata. Read-only after Load; safe for concurrent use.
type Index struct {
	model   string
	dim     int
	count   int
	vectors []float32 // flattened, count*dim
	meta    []Chunk
}

// Load reads the index directory and validates it against wantModel.
// It fails fast on any missing, corrupt, or incompatible file — serving with
// a silently empty or mismatched index would produce ungrounded answers.
func Load(dir, wantModel string) (*Index, error) {
	lock := flock.New(filepath.Join(dir, LockFile))
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("locking index dir: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	manifest, err := readManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	if wantModel != "" && manifest.Model != wantModel {
		return nil, fmt.Errorf("%w: index built with %q, queries configured for %q",
			ErrModelMismatch, manifest.Model, wantModel)
	}

	meta, err := readMeta(filepath.Join(dir, MetaFile))
	if err != nil {
		return nil, err
	}

	dim, count, vectors, err := readVectors(filepath.Join(dir, VectorsFile))
	if err != nil {
		return nil, err
	}

	if count != len(meta) {
		return nil, fmt.Errorf("%w: %d vectors but %d metadata records", ErrCorruptIndex, count, len(meta))
	}
	if manifest.Count != count || manifest.Dimension != dim {
		return nil, fmt.Errorf("%w: manifest says %dx%d, vectors file has %dx%d",
			ErrCorruptIndex, manifest.Count, manifest.Dimension, count, dim)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: index is empty", ErrCorruptIndex)
	}

	return &Index{
		model:   manifest.Model,
		dim:     dim,
		count:   count,
		vectors: vectors,
		meta:    meta,
	}, nil
}

// Model returns the embedding model the index was built with.
func (ix *Index) Model() string { return ix.model }

// Dimension returns the vector dimensionality.
func (ix *Index) Dimension() int { return ix.dim }

// Count returns the number of indexed chunks.
func (ix *Index) Count() int { return ix.count }

// Meta returns the chunk record at position i.
func (ix *Index) Meta(i int) Chunk { return ix.meta[i] }

// Search returns the ids and inner-product scores of the k nearest vectors to
// query, in descending score order. k larger than the corpus returns every
// chunk; k <= 0 is an error at the caller (the retriever applies the default).
func (ix *Index) Search(query []float32, k int) ([]int, []float32, error) {
	if len(query) != ix.dim {
		return nil, nil, fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(query), ix.dim)
	}
	if k > ix.count {
		k = ix.count
	}
	if k <= 0 {
		return nil, nil, nil
	}

	scores := make([]float32, ix.count)
	for i := range ix.count {
		row := ix.vectors[i*ix.dim : (i+1)*ix.dim]
		var dot float32
		for j, q := range query {
			dot += row[j] * q
		}
		scores[i] = dot
	}

	ids := make([]int, ix.count)
	for i := range ids {
		ids[i] = i
	}
	// Ties break on position so results stay deterministic.
	sort.SliceStable(ids, func(a, b int) bool {
		return scores[ids[a]] > scores[ids[b]]
	})

	ids = ids[:k]
	topScores := make([]float32, k)
	for i, id := range ids {
		topScores[i] = scores[id]
	}
	return ids, topScores, nil
}

func readManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("reading manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("%w: manifest: %v", ErrCorruptIndex, err)
	}
	if m.Model == "" || m.Dimension <= 0 || m.Count < 0 {
		return m, fmt.Errorf("%w: manifest has empty model or non-positive shape", ErrCorruptIndex)
	}
	return m, nil
}

func readMeta(path string) ([]Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	var meta []Chunk
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", ErrCorruptIndex, err)
	}
	return meta, nil
}

func readVectors(path string) (dim, count int, vectors []float32, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("reading vectors: %w", err)
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: vectors header: %v", ErrCorruptIndex, err)
	}
	if string(magic[:]) != vectorsMagic {
		return 0, 0, nil, fmt.Errorf("%w: bad magic %q", ErrCorruptIndex, magic)
	}

	var header struct {
		Version uint32
		Dim     uint32
		Count   uint32
	}
	if err := binary.Read(f, binary.LittleEndian, &header); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: vectors header: %v", ErrCorruptIndex, err)
	}
	if header.Version != vectorsVersion {
		return 0, 0, nil, fmt.Errorf("%w: unsupported vectors version %d", ErrCorruptIndex, header.Version)
	}
	if header.Dim == 0 || header.Dim > 1<<16 || header.Count > 1<<24 {
		return 0, 0, nil, fmt.Errorf("%w: implausible shape %dx%d", ErrCorruptIndex, header.Count, header.Dim)
	}

	vectors = make([]float32, int(header.Dim)*int(header.Count))
	if err := binary.Read(f, binary.LittleEndian, vectors); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: vectors payload: %v", ErrCorruptIndex, err)
	}

	return int(header.Dim), int(header.Count), vectors, nil
}

// Write persists an index directory in the serving contract's format.
// The ingestion job is the primary writer; tests use it to build fixtures.
// Callers should hold the publish lock exclusively while writing.
func Write(dir string, model string, vectors [][]float32, meta []Chunk) error {
	if len(vectors) != len(meta) {
		return fmt.Errorf("%d vectors but %d metadata records", len(vectors), len(meta))
	}
	if len(vectors) == 0 {
		return errors.New("refusing to write an empty index")
	}
	dim := len(vectors[0])

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating index dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, VectorsFile))
	if err != nil {
		return fmt.Errorf("creating vectors file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write([]byte(vectorsMagic)); err != nil {
		return fmt.Errorf("writing vectors header: %w", err)
	}
	header := []uint32{vectorsVersion, uint32(dim), uint32(len(vectors))} // #nosec G115 -- shape validated above
	if err := binary.Write(f, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("writing vectors header: %w", err)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("writing vector %d: %w", i, err)
		}
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetaFile), metaJSON, 0o640); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}

	manifestJSON, err := json.Marshal(Manifest{Model: model, Dimension: dim, Count: len(vectors)})
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), manifestJSON, 0o640); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}

	return nil
}
