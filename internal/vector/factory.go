package vector

import (
	"context"
	"fmt"
	"os"

	"github.com/hyperjump/ozlaw/internal/embedding"
	"github.com/hyperjump/ozlaw/internal/errs"
	"go.uber.org/zap"
)

// StoreType selects the Store implementation.
type StoreType string

const (
	// StoreTypeChromem uses chromem-go with one gob file per entry. The default.
	StoreTypeChromem StoreType = "chromem"
	// StoreTypeMemory uses brute-force search over a single binary index file.
	StoreTypeMemory StoreType = "memory"
)

// Options configures Open and OpenExisting.
type Options struct {
	Type       StoreType
	Path       string
	Collection string
	Compress   bool
	Embedder   embedding.Embedder
	Logger     *zap.Logger
}

// Open opens the store at opts.Path, creating the directory if needed. Used by ingestion.
func Open(ctx context.Context, opts Options) (Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Path == "" {
		return nil, errs.Errorf(errs.KindConfiguration, "open vector store", "vector store path is empty")
	}
	switch opts.Type {
	case StoreTypeChromem, "":
		return NewChromemStore(opts.Path, opts.Collection, opts.Compress, opts.Embedder, opts.Logger)
	case StoreTypeMemory:
		return NewMemoryStore(opts.Path, opts.Embedder, opts.Logger)
	default:
		return nil, errs.Errorf(errs.KindConfiguration, "open vector store", "unknown vector store type: %s (supported: chromem, memory)", opts.Type)
	}
}

// OpenExisting opens a store that ingestion already created. A missing directory is a
// configuration error: querying an empty, freshly created store would hide the mistake.
func OpenExisting(ctx context.Context, opts Options) (Store, error) {
	if err := CheckExists(opts.Path); err != nil {
		return nil, err
	}
	return Open(ctx, opts)
}

// CheckExists reports a configuration error when the store directory at path is missing.
func CheckExists(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return errs.E(errs.KindConfiguration, "open vector store",
			fmt.Errorf("vector store directory not found at %s. Please ensure documents have been processed.", path))
	}
	return nil
}
