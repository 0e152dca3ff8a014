package index

import (
	"fmt"
	"sync/atomic"

	"github.com/iddcare/carebot/internal/log"
)

// Store owns the current index snapshot and supports atomic hot-reload when
// the ingestion job republishes the directory.
//
// Readers call Get and keep the snapshot they were handed for the whole
// request; a concurrent reload swaps the pointer without disturbing them.
type Store struct {
	dir       string
	wantModel string
	logger    log.Logger
	current   atomic.Pointer[Index]
}

// NewStore loads the index from dir and fails fast if it is missing, corrupt,
// or built with a different embedding model than wantModel.
func NewStore(dir, wantModel string, logger log.Logger) (*Store, error) {
	s := &Store{dir: dir, wantModel: wantModel, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, fmt.Errorf("initial index load: %w", err)
	}
	return s, nil
}

// Get returns the current index snapshot.
func (s *Store) Get() *Index {
	return s.current.Load()
}

// Reload re-reads the index directory and atomically swaps the snapshot.
// On failure the previous snapshot stays in place, so a half-finished
// republish never takes the server down.
func (s *Store) Reload() error {
	ix, err := Load(s.dir, s.wantModel)
	if err != nil {
		return err
	}
	s.current.Store(ix)
	s.logger.Info("index loaded",
		"dir", s.dir,
		"model", ix.Model(),
		"chunks", ix.Count(),
		"dimension", ix.Dimension(),
	)
	return nil
}
