package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/ozlaw/internal/config"
	"github.com/hyperjump/ozlaw/internal/embedding"
	"github.com/hyperjump/ozlaw/internal/errs"
	"github.com/hyperjump/ozlaw/internal/indexer"
	"github.com/hyperjump/ozlaw/internal/llm"
	"github.com/hyperjump/ozlaw/internal/models"
	"github.com/hyperjump/ozlaw/internal/rag"
	"github.com/hyperjump/ozlaw/internal/storage"
	"github.com/hyperjump/ozlaw/internal/vector"
)

type testServer struct {
	srv       *Server
	handler   http.Handler
	cfg       *config.Config
	generator *llm.MockGenerator
	store     *vector.Shared
}

func newTestServer(t *testing.T, apiKey string) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.VectorStorePath = filepath.Join(dir, "chroma_db")
	cfg.Storage.VectorStoreType = string(vector.StoreTypeMemory)
	cfg.Storage.DatabasePath = filepath.Join(dir, "documents.db")
	cfg.Ingest.DataDir = filepath.Join(dir, "data")
	cfg.Provider.APIKey = apiKey
	if err := os.MkdirAll(cfg.Ingest.DataDir, 0755); err != nil {
		t.Fatal(err)
	}

	embedder := embedding.NewMockEmbedder(128)
	store := vector.NewShared(vector.Options{
		Type:     vector.StoreTypeMemory,
		Path:     cfg.Storage.VectorStorePath,
		Embedder: embedder,
	})
	t.Cleanup(func() { _ = store.Close() })
	registry, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = registry.Close() })

	generator := &llm.MockGenerator{Responses: []string{`{"answer": "Fourteen days."}`}}
	pipeline := rag.New(rag.Options{
		APIKey:    cfg.Provider.APIKey,
		StorePath: cfg.Storage.VectorStorePath,
		TopK:      cfg.Retrieval.TopK,
	}, embedder, generator, func(context.Context) (vector.Store, error) { return store, nil })
	idx := indexer.NewIndexer(store, registry, cfg.Chunking, nil)

	srv := NewServer(pipeline, idx, registry, store, cfg, nil)
	return &testServer{srv: srv, handler: srv.Router(), cfg: cfg, generator: generator, store: store}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)
	return w
}

func (ts *testServer) writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(ts.cfg.Ingest.DataDir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v\n%s", err, w.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t, "sk-test")
	w := ts.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleIngestThenAnswer(t *testing.T) {
	ts := newTestServer(t, "sk-test")
	ts.writeDoc(t, "lease.txt", "The landlord must return the security deposit within fourteen days.")
	ts.writeDoc(t, "broken.pdf", "not a pdf")

	w := ts.do(t, http.MethodPost, "/api/v1/ingest", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ingest status: got %d: %s", w.Code, w.Body.String())
	}
	var report models.IngestReport
	decode(t, w, &report)
	if len(report.Ingested) != 1 || len(report.Failed) != 1 || report.Chunks != 1 {
		t.Errorf("unexpected report: %+v", report)
	}

	history := models.History{{Question: "Hi", Answer: "Hello."}}
	w = ts.do(t, http.MethodPost, "/api/v1/answer", models.AnswerRequest{
		Question: "When is the security deposit returned?",
		History:  history,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("answer status: got %d: %s", w.Code, w.Body.String())
	}
	var resp models.AnswerResponse
	decode(t, w, &resp)
	if resp.Answer != "Fourteen days." {
		t.Errorf("answer: got %q", resp.Answer)
	}
	if len(resp.History) != 2 || resp.History[1].Question != "When is the security deposit returned?" || resp.History[1].Answer != "Fourteen days." {
		t.Errorf("history: got %+v", resp.History)
	}
	if len(resp.Sources) != 1 || !strings.HasSuffix(resp.Sources[0].Source, "lease.txt") {
		t.Errorf("sources: got %+v", resp.Sources)
	}
	if resp.ErrorKind != "" {
		t.Errorf("error kind: got %q", resp.ErrorKind)
	}
}

func TestHandleIngest_singleFile(t *testing.T) {
	ts := newTestServer(t, "sk-test")
	path := ts.writeDoc(t, "a.txt", "Some statute text.")

	for i, want := range []struct{ ingested, skipped int }{{1, 0}, {0, 1}} {
		w := ts.do(t, http.MethodPost, "/api/v1/ingest", map[string]string{"path": path})
		if w.Code != http.StatusOK {
			t.Fatalf("run %d: status %d: %s", i, w.Code, w.Body.String())
		}
		var report models.IngestReport
		decode(t, w, &report)
		if len(report.Ingested) != want.ingested || len(report.Skipped) != want.skipped {
			t.Errorf("run %d: report %+v", i, report)
		}
	}
}

func TestHandleIngest_errors(t *testing.T) {
	ts := newTestServer(t, "sk-test")
	bad := ts.writeDoc(t, "bad.pdf", "garbage")
	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"invalid body", "{not json", http.StatusBadRequest},
		{"missing path", map[string]string{"path": filepath.Join(ts.cfg.Ingest.DataDir, "absent.txt")}, http.StatusNotFound},
		{"extraction failure", map[string]string{"path": bad}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/ingest", tt.body)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestHandleAnswer_errorStatuses(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		ingest   bool
		genErr   error
		question string
		want     int
		kind     string
		contains string
	}{
		{"empty question", "sk-test", true, nil, "   ", http.StatusBadRequest, "validation", "empty"},
		{"missing key", "", true, nil, "q", http.StatusServiceUnavailable, "configuration", "API key"},
		{"missing store", "sk-test", false, nil, "q", http.StatusServiceUnavailable, "configuration", "not found"},
		{"provider failure", "sk-test", true, errors.New("rate limited"), "q", http.StatusBadGateway, "provider", "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.apiKey)
			if tt.ingest {
				ts.writeDoc(t, "a.txt", "Some text.")
				if w := ts.do(t, http.MethodPost, "/api/v1/ingest", nil); w.Code != http.StatusOK {
					t.Fatalf("ingest: %d", w.Code)
				}
			}
			ts.generator.Err = tt.genErr
			w := ts.do(t, http.MethodPost, "/api/v1/answer", models.AnswerRequest{Question: tt.question})
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d", w.Code, tt.want)
			}
			var resp models.AnswerResponse
			decode(t, w, &resp)
			if resp.ErrorKind != tt.kind {
				t.Errorf("error kind: got %q, want %q", resp.ErrorKind, tt.kind)
			}
			if !strings.Contains(resp.Answer, tt.contains) {
				t.Errorf("answer %q does not contain %q", resp.Answer, tt.contains)
			}
		})
	}
}

func TestHandleAnswer_invalidBody(t *testing.T) {
	ts := newTestServer(t, "sk-test")
	w := ts.do(t, http.MethodPost, "/api/v1/answer", "not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleStatusAndDocuments(t *testing.T) {
	ts := newTestServer(t, "sk-test")
	ts.writeDoc(t, "a.txt", "First document.")
	ts.writeDoc(t, "b.txt", "Second document.")
	if w := ts.do(t, http.MethodPost, "/api/v1/ingest", nil); w.Code != http.StatusOK {
		t.Fatalf("ingest: %d", w.Code)
	}

	w := ts.do(t, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var status struct {
		Documents int64 `json:"documents"`
		Chunks    int64 `json:"chunks"`
		Entries   int   `json:"vector_store_entries"`
		Config    struct {
			APIKeyPresent bool `json:"api_key_present"`
		} `json:"config"`
	}
	decode(t, w, &status)
	if status.Documents != 2 || status.Chunks != 2 || status.Entries != 2 || !status.Config.APIKeyPresent {
		t.Errorf("unexpected status: %+v", status)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/documents?limit=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("documents: got %d", w.Code)
	}
	var list struct {
		Documents []models.IngestRecord `json:"documents"`
		Total     int64                 `json:"total"`
	}
	decode(t, w, &list)
	if len(list.Documents) != 1 || list.Total != 2 || !strings.HasSuffix(list.Documents[0].Path, "a.txt") {
		t.Errorf("unexpected list: %+v", list)
	}

	if w := ts.do(t, http.MethodGet, "/api/v1/documents?offset=-1", nil); w.Code != http.StatusBadRequest {
		t.Errorf("negative offset: got %d", w.Code)
	}
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind errs.Kind
		want int
	}{
		{errs.KindValidation, http.StatusBadRequest},
		{errs.KindConfiguration, http.StatusServiceUnavailable},
		{errs.KindProvider, http.StatusBadGateway},
		{errs.KindExtraction, http.StatusUnprocessableEntity},
		{errs.KindUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusForKind(tt.kind); got != tt.want {
			t.Errorf("statusForKind(%v) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}
