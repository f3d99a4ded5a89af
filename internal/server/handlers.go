package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hyperjump/ozlaw/internal/errs"
	"github.com/hyperjump/ozlaw/internal/models"
	"github.com/hyperjump/ozlaw/internal/rag"
	"github.com/hyperjump/ozlaw/internal/storage"
	"github.com/hyperjump/ozlaw/pkg/utils"
	"go.uber.org/zap"
)

const (
	excerptLen       = 240
	defaultListLimit = 50
	maxListLimit     = 500
)

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req models.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	start := time.Now()
	if err := req.Validate(); err != nil {
		verr := errs.E(errs.KindValidation, "answer", err)
		s.respondJSON(w, http.StatusBadRequest, &models.AnswerResponse{
			Answer:    rag.UserMessage(verr),
			History:   req.History,
			ErrorKind: errs.KindValidation.String(),
		})
		return
	}
	s.logger.Debug("answer request", zap.Int("history_turns", len(req.History)), zap.Int("top_k", req.TopK))

	res, err := s.answerer.RunK(r.Context(), req.Question, req.History, req.TopK)
	if err != nil {
		kind := errs.KindOf(err)
		s.logger.Warn("answer failed", zap.String("kind", kind.String()), zap.Error(err))
		answer := rag.UserMessage(err)
		s.respondJSON(w, statusForKind(kind), &models.AnswerResponse{
			Answer:    answer,
			History:   req.History.Append(req.Question, answer),
			ErrorKind: kind.String(),
			QueryTime: time.Since(start).Milliseconds(),
		})
		return
	}
	s.respondJSON(w, http.StatusOK, &models.AnswerResponse{
		Answer:             res.Answer,
		History:            req.History.Append(req.Question, res.Answer),
		StandaloneQuestion: res.StandaloneQuestion,
		Sources:            ToSources(res.Sources),
		QueryTime:          time.Since(start).Milliseconds(),
	})
}

// ToSources turns retrieval hits into response sources with short excerpts.
func ToSources(hits []*models.ScoredChunk) []models.Source {
	out := make([]models.Source, 0, len(hits))
	for _, h := range hits {
		out = append(out, models.Source{
			Source:     h.Chunk.Source,
			ChunkIndex: h.Chunk.Index,
			Score:      h.Score,
			Excerpt:    utils.Excerpt(h.Chunk.Content, excerptLen),
		})
	}
	return out
}

// statusForKind maps error kinds to HTTP status codes.
func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindConfiguration:
		return http.StatusServiceUnavailable
	case errs.KindProvider:
		return http.StatusBadGateway
	case errs.KindExtraction:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type ingestRequest struct {
	// Path is a file or directory; empty means the configured data directory.
	Path string `json:"path"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	path := req.Path
	if path == "" {
		path = s.config.Ingest.DataDir
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "path not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	exts := s.config.Ingest.Extensions
	s.logger.Debug("ingest request", zap.String("path", abs), zap.Bool("dir", info.IsDir()))

	if info.IsDir() {
		report, err := s.ingester.IngestDirectory(r.Context(), abs, exts)
		if err != nil {
			s.logger.Error("ingestion failed", zap.Error(err))
			s.respondError(w, statusForKind(errs.KindOf(err)), err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, report)
		return
	}

	report := &models.IngestReport{Ingested: []string{}}
	res, err := s.ingester.IngestFile(r.Context(), abs, exts)
	switch {
	case err != nil:
		report.Failed = append(report.Failed, models.FileError{
			Path:  abs,
			Kind:  errs.KindOf(err).String(),
			Error: err.Error(),
		})
		s.respondJSON(w, statusForKind(errs.KindOf(err)), report)
		return
	case res.Skipped:
		report.Skipped = append(report.Skipped, res.Path)
	default:
		report.Ingested = append(report.Ingested, res.Path)
		report.Chunks = res.Chunks
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]interface{}{}
	if s.registry != nil {
		docCount, err := s.registry.CountDocuments(ctx)
		if err != nil {
			s.logger.Error("status: count documents failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		chunkCount, err := s.registry.CountChunks(ctx)
		if err != nil {
			s.logger.Error("status: count chunks failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["documents"] = docCount
		resp["chunks"] = chunkCount
	}
	if s.store != nil {
		resp["vector_store_entries"] = s.store.Count()
	}

	cfg := s.config
	resp["config"] = map[string]interface{}{
		"vector_store_type": cfg.Storage.VectorStoreType,
		"vector_store_path": cfg.Storage.VectorStorePath,
		"database_path":     cfg.Storage.DatabasePath,
		"data_dir":          cfg.Ingest.DataDir,
		"chunk_size":        cfg.Chunking.ChunkSize,
		"chunk_overlap":     cfg.Chunking.ChunkOverlap,
		"embedding_model":   cfg.Embedding.Model,
		"llm_model":         cfg.LLM.Model,
		"top_k":             cfg.Retrieval.TopK,
		"api_key_present":   cfg.Provider.APIKey != "",
	}
	if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.VectorStorePath, cfg.Storage.DatabasePath); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		s.respondError(w, http.StatusNotImplemented, "document registry not enabled")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil || limit <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	docs, err := s.registry.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.registry.CountDocuments(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.IngestRecord{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"total":     total,
		"offset":    offset,
		"limit":     limit,
	})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
