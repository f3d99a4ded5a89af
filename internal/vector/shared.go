package vector

import (
	"context"
	"sync"

	"github.com/hyperjump/ozlaw/internal/models"
)

// Shared opens the store on first use and hands every caller the same instance, so
// ingestion and queries in one process see each other's writes. Ingest creates the store
// directory; Query and Count only open a store that already exists.
type Shared struct {
	opts  Options
	mu    sync.Mutex
	store Store
}

// NewShared returns a Shared store for opts. Nothing is opened yet.
func NewShared(opts Options) *Shared {
	return &Shared{opts: opts}
}

func (s *Shared) get(ctx context.Context, create bool) (Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		return s.store, nil
	}
	var (
		store Store
		err   error
	)
	if create {
		store, err = Open(ctx, s.opts)
	} else {
		store, err = OpenExisting(ctx, s.opts)
	}
	if err != nil {
		return nil, err
	}
	s.store = store
	return store, nil
}

// Ingest opens or creates the store and appends the chunks.
func (s *Shared) Ingest(ctx context.Context, chunks []*models.Chunk) error {
	store, err := s.get(ctx, true)
	if err != nil {
		return err
	}
	return store.Ingest(ctx, chunks)
}

// Query searches the store. A missing store directory is a configuration error.
func (s *Shared) Query(ctx context.Context, embedding []float32, k int) ([]*models.ScoredChunk, error) {
	store, err := s.get(ctx, false)
	if err != nil {
		return nil, err
	}
	return store.Query(ctx, embedding, k)
}

// Count returns the number of stored entries, or 0 when the store does not exist yet.
func (s *Shared) Count() int {
	store, err := s.get(context.Background(), false)
	if err != nil {
		return 0
	}
	return store.Count()
}

// Path returns the store directory.
func (s *Shared) Path() string {
	return s.opts.Path
}

// Close closes the store if it was opened. A later call reopens it.
func (s *Shared) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}
