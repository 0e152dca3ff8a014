package index

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/iddcare/carebot/internal/log"
)

// reloadDebounce batches the burst of fsnotify events a republish produces
// (three files rewritten) into a single reload.
const reloadDebounce = 2 * time.Second

// Watcher reloads a Store when the ingestion job rewrites the index files.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	logger  log.Logger
}

// NewWatcher creates a watcher over the store's index directory.
func NewWatcher(store *Store, logger log.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(store.dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	return &Watcher{store: store, watcher: w, logger: logger}, nil
}

// Run consumes filesystem events until ctx is canceled. Writes to any of the
// contract files schedule a debounced reload; the publish lock inside Load
// keeps the reload from racing the ingester.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isContractFile(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerC = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			if err := w.store.Reload(); err != nil {
				// Keep serving the previous snapshot.
				w.logger.Error("index reload failed", "error", err)
				continue
			}
			w.logger.Info("index reloaded after republish")

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("index watcher error", "error", err)
		}
	}
}

// Close releases the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func isContractFile(path string) bool {
	switch filepath.Base(path) {
	case VectorsFile, MetaFile, ManifestFile:
		return true
	}
	return false
}
