package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/ozlaw/internal/config"
	"github.com/hyperjump/ozlaw/internal/models"
	"go.uber.org/zap"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after question are moved first",
			args:     []string{"what is a tort", "-output", "json"},
			expected: []string{"-output", "json", "what is a tort"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-output", "json", "what is a tort"},
			expected: []string{"-output", "json", "what is a tort"},
		},
		{
			name:     "question only returns unchanged",
			args:     []string{"what is a tort"},
			expected: []string{"what is a tort"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"define", "estoppel", "-top-k", "2"},
			expected: []string{"-top-k", "2", "define", "estoppel"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuestion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"estoppel"}, "estoppel"},
		{"multiple words", []string{"define", "estoppel"}, "define estoppel"},
		{"quoted phrase", []string{"define estoppel"}, "define estoppel"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuestion(tt.args); got != tt.expected {
				t.Errorf("buildQuestion(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolvedCanon, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func offlineConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Embedding.Provider = providerMock
	cfg.Embedding.Dimensions = 64
	cfg.Storage.VectorStoreType = "memory"
	cfg.Storage.VectorStorePath = filepath.Join(dir, "chroma_db")
	cfg.Storage.DatabasePath = filepath.Join(dir, "documents.db")
	cfg.Ingest.DataDir = filepath.Join(dir, "data")
	if err := os.MkdirAll(cfg.Ingest.DataDir, 0755); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestMissingKeyError(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	err := missingKeyError(cfg)
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("missing key: got %v", err)
	}
	cfg.Provider.APIKey = "sk-test"
	if err := missingKeyError(cfg); err != nil {
		t.Errorf("key present: got %v", err)
	}
	cfg.Provider.APIKey = ""
	cfg.Embedding.Provider = providerMock
	if err := missingKeyError(cfg); err != nil {
		t.Errorf("offline: got %v", err)
	}
}

func TestAnswerLocally_offline(t *testing.T) {
	cfg := offlineConfig(t)
	c, err := initializeComponents(cfg, zap.NewNop(), componentOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	req := &models.AnswerRequest{Question: "What is the notice period?"}
	resp := answerLocally(ctx, c.Pipeline, req, zap.NewNop())
	if resp.ErrorKind != "configuration" || !strings.Contains(resp.Answer, "not found") {
		t.Errorf("before ingest: got kind %q answer %q", resp.ErrorKind, resp.Answer)
	}
	if len(resp.History) != 1 || resp.History[0].Answer != resp.Answer {
		t.Errorf("error answers should be recorded in history: %+v", resp.History)
	}

	path := filepath.Join(cfg.Ingest.DataDir, "lease.txt")
	if err := os.WriteFile(path, []byte("The tenant must give one month notice."), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Indexer.IngestFile(ctx, path, cfg.Ingest.Extensions); err != nil {
		t.Fatal(err)
	}
	resp = answerLocally(ctx, c.Pipeline, req, zap.NewNop())
	if resp.ErrorKind != "" {
		t.Fatalf("unexpected error: %s", resp.Answer)
	}
	if resp.Answer != offlineAnswer {
		t.Errorf("answer: got %q", resp.Answer)
	}
	if len(resp.Sources) != 1 || !strings.HasSuffix(resp.Sources[0].Source, "lease.txt") {
		t.Errorf("sources: got %+v", resp.Sources)
	}
}

func TestLocalStatus(t *testing.T) {
	cfg := offlineConfig(t)
	c, err := initializeComponents(cfg, zap.NewNop(), componentOptions{})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfg.Ingest.DataDir, "a.txt")
	if err := os.WriteFile(path, []byte("Short text."), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Indexer.IngestDirectory(context.Background(), cfg.Ingest.DataDir, cfg.Ingest.Extensions); err != nil {
		t.Fatal(err)
	}
	c.Close()

	status, err := localStatus(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if status.Documents != 1 || status.Chunks != 1 || status.VectorStoreEntries != 1 {
		t.Errorf("unexpected status: %+v", status)
	}
	if status.Config["api_key_present"] != false {
		t.Errorf("api_key_present: got %v", status.Config["api_key_present"])
	}

	var buf bytes.Buffer
	writeStatusText(&buf, status)
	for _, want := range []string{"documents:", "vector_store_entries:  1", "# configuration", "llm_model:"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("status text missing %q:\n%s", want, buf.String())
		}
	}
}

func TestViaHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/status":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"documents": 3, "chunks": 7, "vector_store_entries": 7})
		case "/api/v1/answer":
			var req models.AnswerRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			_ = json.NewEncoder(w).Encode(models.AnswerResponse{
				Answer:  "echo: " + req.Question,
				History: req.History.Append(req.Question, "echo: "+req.Question),
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	status, err := statusViaHTTP(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	if status.Documents != 3 || status.Chunks != 7 || status.VectorStoreEntries != 7 {
		t.Errorf("unexpected status: %+v", status)
	}

	resp, err := askViaHTTP(ts.URL, &models.AnswerRequest{Question: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "echo: hi" || len(resp.History) != 1 {
		t.Errorf("unexpected answer: %+v", resp)
	}

	if _, err := statusViaHTTP(ts.URL + "/missing"); err == nil {
		t.Error("expected error for non-200 status")
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")
	if err := writeDefaultConfig(path, false); err != nil {
		t.Fatal(err)
	}
	if err := writeDefaultConfig(path, false); err == nil {
		t.Error("expected error when the file exists")
	}
	if err := writeDefaultConfig(path, true); err != nil {
		t.Errorf("overwrite: %v", err)
	}

	cfg, _, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	wantData := filepath.Join(filepath.Dir(path), "data")
	if cfg.Ingest.DataDir != wantData {
		t.Errorf("data dir: got %s, want %s", cfg.Ingest.DataDir, wantData)
	}
	if cfg.Chunking.ChunkSize != config.DefaultChunkSize || cfg.Retrieval.TopK != config.DefaultTopK {
		t.Errorf("defaults not written: %+v %+v", cfg.Chunking, cfg.Retrieval)
	}
}
