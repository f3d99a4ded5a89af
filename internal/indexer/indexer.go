// Package indexer turns document files into chunks in the vector store.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/ozlaw/internal/config"
	"github.com/hyperjump/ozlaw/internal/errs"
	"github.com/hyperjump/ozlaw/internal/extract"
	"github.com/hyperjump/ozlaw/internal/fileid"
	"github.com/hyperjump/ozlaw/internal/models"
	"github.com/hyperjump/ozlaw/internal/storage"
	"github.com/hyperjump/ozlaw/internal/vector"
	"go.uber.org/zap"
)

// Indexer ingests files into the vector store and records them in the registry.
type Indexer struct {
	store         vector.Store
	registry      storage.Storage // optional; when nil nothing is recorded or skipped
	chunker       *Chunker
	extractor     *extract.Extractor
	logger        *zap.Logger
	skipUnchanged bool
	recursive     bool
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for per-file events and failures.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithSkipUnchanged controls whether files already recorded with the same size and mtime
// are skipped. On by default; turning it off forces re-ingestion.
func WithSkipUnchanged(skip bool) IndexerOption {
	return func(idx *Indexer) { idx.skipUnchanged = skip }
}

// WithRecursive makes IngestDirectory descend into subdirectories.
func WithRecursive(recursive bool) IndexerOption {
	return func(idx *Indexer) { idx.recursive = recursive }
}

// FileResult is the outcome of ingesting one file.
type FileResult struct {
	Path    string
	Chunks  int
	Skipped bool
}

// NewIndexer creates an indexer writing to store. registry may be nil.
// extractor may be nil; a default extractor is used then.
func NewIndexer(store vector.Store, registry storage.Storage, cfg config.ChunkingConfig, extractor *extract.Extractor, opts ...IndexerOption) *Indexer {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	idx := &Indexer{
		store:         store,
		registry:      registry,
		chunker:       NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		extractor:     extractor,
		logger:        zap.NewNop(),
		skipUnchanged: true,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IngestFile extracts, chunks and stores the file at path. If allowedExts is non-empty the
// file's extension must be in it (case-insensitive). A file whose text is empty after
// preprocessing is recorded with zero chunks.
func (idx *Indexer) IngestFile(ctx context.Context, path string, allowedExts []string) (*FileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	absPath := fileid.Source(path)
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return nil, errs.Errorf(errs.KindValidation, "ingest "+absPath, "extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, errs.E(errs.KindExtraction, "ingest "+absPath, fmt.Errorf("stat file: %w", err))
	}
	if !info.Mode().IsRegular() {
		return nil, errs.Errorf(errs.KindValidation, "ingest "+absPath, "not a regular file")
	}

	docID := fileid.DocumentID(absPath)
	res := &FileResult{Path: absPath}
	if idx.skipUnchanged && idx.unchanged(ctx, docID, absPath, info) {
		idx.logger.Debug("skipping unchanged file", zap.String("path", absPath))
		res.Skipped = true
		return res, nil
	}

	text, err := idx.extractor.Extract(absPath)
	if err != nil {
		return nil, err
	}
	chunks := idx.chunker.Chunk(absPath, Preprocess(text))
	for _, ch := range chunks {
		ch.Metadata[models.MetaDocID] = docID
	}
	if len(chunks) > 0 {
		if err := idx.store.Ingest(ctx, chunks); err != nil {
			return nil, err
		}
	}
	res.Chunks = len(chunks)

	if idx.registry != nil {
		rec := &models.IngestRecord{
			ID:         docID,
			Path:       absPath,
			Format:     extract.FormatOf(absPath),
			Size:       info.Size(),
			ModTime:    info.ModTime().UnixNano(),
			ChunkCount: len(chunks),
			IngestedAt: time.Now().UTC(),
		}
		if err := idx.registry.RecordDocument(ctx, rec); err != nil {
			// The chunks are already stored; a lost record only means the file is
			// re-ingested next time.
			idx.logger.Warn("failed to record ingested document", zap.String("path", absPath), zap.Error(err))
		}
	}
	idx.logger.Debug("file ingested", zap.String("path", absPath), zap.Int("chunks", len(chunks)))
	return res, nil
}

// unchanged reports whether the registry already holds path with the same size and mtime.
func (idx *Indexer) unchanged(ctx context.Context, docID, absPath string, info os.FileInfo) bool {
	if idx.registry == nil {
		return false
	}
	rec, err := idx.registry.GetDocument(ctx, docID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			idx.logger.Warn("registry lookup failed", zap.String("path", absPath), zap.Error(err))
		}
		return false
	}
	return rec.Path == absPath && rec.Size == info.Size() && rec.ModTime == info.ModTime().UnixNano()
}

// IngestDirectory ingests every regular file in dir whose extension is in allowedExts
// (all files when allowedExts is empty), in name order. A failing file is logged and
// reported; the remaining files are still ingested. The error is non-nil only when dir
// cannot be read or ctx is cancelled.
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string, allowedExts []string) (*models.IngestReport, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, errs.E(errs.KindConfiguration, "ingest directory", fmt.Errorf("stat directory: %w", err))
	}
	if !info.IsDir() {
		return nil, errs.Errorf(errs.KindConfiguration, "ingest directory", "not a directory: %s", absDir)
	}
	paths, err := idx.collect(absDir, allowedExts)
	if err != nil {
		return nil, err
	}

	report := &models.IngestReport{Ingested: []string{}}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := idx.IngestFile(ctx, path, allowedExts)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			idx.logger.Warn("failed to ingest file",
				zap.String("path", path),
				zap.String("kind", errs.KindOf(err).String()),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, models.FileError{
				Path:  path,
				Kind:  errs.KindOf(err).String(),
				Error: err.Error(),
			})
			continue
		}
		if res.Skipped {
			report.Skipped = append(report.Skipped, res.Path)
			continue
		}
		report.Ingested = append(report.Ingested, res.Path)
		report.Chunks += res.Chunks
	}
	idx.logger.Info("directory ingested",
		zap.String("dir", absDir),
		zap.Int("ingested", len(report.Ingested)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("chunks", report.Chunks),
	)
	return report, nil
}

// collect lists candidate files under dir, sorted. Symlinks are followed to regular files.
func (idx *Indexer) collect(dir string, allowedExts []string) ([]string, error) {
	var paths []string
	keep := func(path string) {
		if len(allowedExts) > 0 && !extensionAllowed(filepath.Ext(path), allowedExts) {
			return
		}
		if finfo, err := os.Stat(path); err != nil || !finfo.Mode().IsRegular() {
			return
		}
		paths = append(paths, path)
	}

	if !idx.recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, errs.E(errs.KindConfiguration, "ingest directory", fmt.Errorf("read directory: %w", err))
		}
		for _, e := range entries {
			if !e.IsDir() {
				keep(filepath.Join(dir, e.Name()))
			}
		}
		return paths, nil
	}

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == dir {
				return walkErr
			}
			idx.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(walkErr))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			keep(path)
		}
		return nil
	})
	if err != nil {
		return nil, errs.E(errs.KindConfiguration, "ingest directory", fmt.Errorf("walk directory: %w", err))
	}
	sort.Strings(paths)
	return paths, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// Forget removes path from the registry so the next run ingests it again. Chunks already
// in the vector store are kept.
func (idx *Indexer) Forget(ctx context.Context, path string) error {
	if idx.registry == nil {
		return nil
	}
	err := idx.registry.DeleteDocument(ctx, fileid.DocumentID(fileid.Source(path)))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("forget document: %w", err)
	}
	return nil
}
