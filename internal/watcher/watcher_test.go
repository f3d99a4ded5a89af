package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/ozlaw/internal/indexer"
)

type recordingIngester struct {
	mu        sync.Mutex
	ingested  []string
	forgotten []string
}

func (r *recordingIngester) IngestFile(_ context.Context, path string, _ []string) (*indexer.FileResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingested = append(r.ingested, path)
	return &indexer.FileResult{Path: path, Chunks: 1}, nil
}

func (r *recordingIngester) Forget(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forgotten = append(r.forgotten, path)
	return nil
}

func (r *recordingIngester) snapshot() (ingested, forgotten []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ingested...), append([]string(nil), r.forgotten...)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func hasSuffix(paths []string, suffix string) bool {
	for _, p := range paths {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

func startWatcher(t *testing.T, root string, recursive bool, ing Ingester) *Watcher {
	t.Helper()
	w := NewWatcher(root, []string{".txt", ".pdf"}, recursive, ing, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_DebounceAndExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	ing := &recordingIngester{}
	startWatcher(t, dir, false, ing)

	fPath := filepath.Join(dir, "f.txt")
	for i := 0; i < 3; i++ {
		if err := writeFile(fPath, strings.Repeat("hello ", i+1)); err != nil {
			t.Fatal(err)
		}
	}
	if err := writeFile(filepath.Join(dir, "skip.xyz"), "x"); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { in, _ := ing.snapshot(); return len(in) >= 1 }) {
		t.Fatal("expected f.txt to be ingested")
	}
	time.Sleep(200 * time.Millisecond)
	in, _ := ing.snapshot()
	if len(in) != 1 || in[0] != fPath {
		t.Errorf("expected a single debounced ingestion of f.txt, got %v", in)
	}
}

func TestWatcher_RemoveForgetsFile(t *testing.T) {
	dir := t.TempDir()
	fPath := filepath.Join(dir, "gone.txt")
	if err := writeFile(fPath, "bye"); err != nil {
		t.Fatal(err)
	}
	ing := &recordingIngester{}
	startWatcher(t, dir, false, ing)

	if err := os.Remove(fPath); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { _, f := ing.snapshot(); return hasSuffix(f, "gone.txt") }) {
		t.Error("removed file should be forgotten")
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.PDF", []string{".pdf"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	tests := []struct {
		name      string
		recursive bool
		wantDeep  bool
	}{
		{"flat", false, false},
		{"recursive", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := writeFile(filepath.Join(dir, "a.txt"), "hello"); err != nil {
				t.Fatal(err)
			}
			if err := writeFile(filepath.Join(dir, "ignore.xyz"), "x"); err != nil {
				t.Fatal(err)
			}
			if err := mkdirAll(filepath.Join(dir, "sub")); err != nil {
				t.Fatal(err)
			}
			if err := writeFile(filepath.Join(dir, "sub", "deep.txt"), "deep"); err != nil {
				t.Fatal(err)
			}
			ing := &recordingIngester{}
			w := startWatcher(t, dir, tt.recursive, ing)
			w.SyncExistingFiles()

			in, _ := ing.snapshot()
			if !hasSuffix(in, "a.txt") || hasSuffix(in, "ignore.xyz") {
				t.Errorf("unexpected ingested files: %v", in)
			}
			if got := hasSuffix(in, "deep.txt"); got != tt.wantDeep {
				t.Errorf("deep.txt ingested = %v, want %v (%v)", got, tt.wantDeep, in)
			}
		})
	}
}

func TestWatcher_Start_createsMissingRootDirectory(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "watch", "me")
	w := startWatcher(t, root, true, &recordingIngester{})
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
	if w.Root() != root {
		t.Errorf("Root() = %q", w.Root())
	}
}

func TestWatcher_NewDirectoryIngestedWhenRecursive(t *testing.T) {
	dir := t.TempDir()
	ing := &recordingIngester{}
	startWatcher(t, dir, true, ing)

	nested := filepath.Join(dir, "level1", "level2")
	if err := mkdirAll(nested); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "deep.txt"), "deep content"); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { in, _ := ing.snapshot(); return hasSuffix(in, "deep.txt") }) {
		in, _ := ing.snapshot()
		t.Errorf("expected deep.txt to be ingested, got %v", in)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := NewWatcher(t.TempDir(), nil, false, &recordingIngester{})
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
