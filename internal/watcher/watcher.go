// Package watcher keeps the vector store in step with the input directory: files dropped into
// it are ingested after a short quiet period.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hyperjump/ozlaw/internal/indexer"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Ingester is the part of the indexer the watcher drives.
type Ingester interface {
	IngestFile(ctx context.Context, path string, allowedExts []string) (*indexer.FileResult, error)
	Forget(ctx context.Context, path string) error
}

// Watcher watches the input directory and ingests created or rewritten documents.
type Watcher struct {
	root        string
	extensions  []string
	recursive   bool
	ingester    Ingester
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	ctx         context.Context
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	inflight    sync.WaitGroup
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for watch events and ingestion failures.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a file must stay quiet before it is ingested.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher over root. extensions filter which files are ingested
// (empty means all); recursive also watches subdirectories.
func NewWatcher(root string, extensions []string, recursive bool, ingester Ingester, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		root:        filepath.Clean(root),
		extensions:  extensions,
		recursive:   recursive,
		ingester:    ingester,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
// The root is created if it does not exist.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fw
	if err := w.addTreeLocked(w.root); err != nil {
		_ = fw.Close()
		w.watcher = nil
		return err
	}
	w.ctx = ctx
	w.started = true
	w.logger.Info("watching input directory",
		zap.String("root", w.root),
		zap.Strings("extensions", w.extensions),
		zap.Bool("recursive", w.recursive),
	)
	go w.run(ctx, fw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !inDir(w.root, path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if matchExtension(path, w.extensions) {
			w.debounceIngest(path)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancelDebounce(path)
		if matchExtension(path, w.extensions) {
			w.forget(path)
		}
	}
}

// handleNewDirectory starts watching a directory created under the root and ingests its
// files. Without recursion, subdirectories are ignored.
func (w *Watcher) handleNewDirectory(dir string) {
	if !w.recursive {
		return
	}
	w.mu.Lock()
	if w.watcher == nil {
		w.mu.Unlock()
		return
	}
	if err := w.addTreeLocked(dir); err != nil {
		w.logger.Warn("failed to watch new directory", zap.String("path", dir), zap.Error(err))
	}
	w.mu.Unlock()
	w.syncDirectory(dir)
}

// addTreeLocked adds root, and with recursion every directory below it, to the fsnotify watcher.
func (w *Watcher) addTreeLocked(root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	if !w.recursive {
		return w.watcher.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func matchExtension(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	if len(extensions) == 0 {
		return true
	}
	for _, e := range extensions {
		eNorm := strings.TrimPrefix(strings.ToLower(e), ".")
		extNorm := strings.TrimPrefix(strings.ToLower(ext), ".")
		if eNorm == extNorm {
			return true
		}
	}
	return false
}

func (w *Watcher) debounceIngest(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		if !w.started {
			w.mu.Unlock()
			return
		}
		ctx := w.ctx
		w.inflight.Add(1)
		w.mu.Unlock()
		defer w.inflight.Done()
		w.ingest(ctx, path)
	})
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	if ctx == nil || ctx.Err() != nil {
		return
	}
	res, err := w.ingester.IngestFile(ctx, path, w.extensions)
	if err != nil {
		w.logger.Warn("failed to ingest file", zap.String("path", path), zap.Error(err))
		return
	}
	if res.Skipped {
		w.logger.Debug("file unchanged", zap.String("path", path))
		return
	}
	w.logger.Info("file ingested", zap.String("path", path), zap.Int("chunks", res.Chunks))
}

// forget drops a removed file from the registry so it is ingested again if it comes back.
func (w *Watcher) forget(path string) {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil {
		return
	}
	if err := w.ingester.Forget(ctx, path); err != nil {
		w.logger.Warn("failed to forget removed file", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Info("file removed", zap.String("path", path))
}

func (w *Watcher) syncDirectory(root string) {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && !w.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if matchExtension(path, w.extensions) {
			w.ingest(ctx, path)
		}
		return nil
	})
}

// SyncExistingFiles ingests the files already present in the root. Call it after Start;
// unchanged files are skipped by the indexer.
func (w *Watcher) SyncExistingFiles() {
	w.logger.Debug("syncing existing files", zap.String("root", w.root))
	w.syncDirectory(w.root)
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Stop stops the watcher, drops pending ingestions and waits for running ones to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
	w.inflight.Wait()
}
