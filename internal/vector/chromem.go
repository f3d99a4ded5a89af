package vector

import (
	"context"
	"fmt"
	"os"

	"github.com/hyperjump/ozlaw/internal/embedding"
	"github.com/hyperjump/ozlaw/internal/errs"
	"github.com/hyperjump/ozlaw/internal/models"
	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// DefaultCollection is the chromem collection used when none is configured.
const DefaultCollection = "legal_documents"

// ChromemStore keeps entries in a persistent chromem-go database. Every added document is
// written to the store directory immediately, so there is nothing to flush on Close.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embedding.Embedder
	logger     *zap.Logger
}

// NewChromemStore opens (or creates) the chromem database in dir and the named collection.
func NewChromemStore(dir, collection string, compress bool, embedder embedding.Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if collection == "" {
		collection = DefaultCollection
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", dir, err)
	}
	db, err := chromem.NewPersistentDB(dir, compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}
	s := &ChromemStore{db: db, embedder: embedder, logger: logger}
	coll, err := db.GetOrCreateCollection(collection, nil, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", collection, err)
	}
	s.collection = coll
	logger.Debug("chromem store opened",
		zap.String("path", dir),
		zap.String("collection", collection),
		zap.Int("entries", coll.Count()),
	)
	return s, nil
}

// embeddingFunc lets chromem embed text itself; Ingest and Query pass precomputed
// embeddings, so it only runs if chromem is handed a document without one.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		if s.embedder == nil {
			return nil, fmt.Errorf("no embedder configured")
		}
		return s.embedder.Embed(ctx, text)
	}
}

// Ingest embeds the chunks in one batch and adds them to the collection.
func (s *ChromemStore) Ingest(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	vecs, err := embedChunks(ctx, s.embedder, chunks)
	if err != nil {
		return err
	}
	docs := make([]chromem.Document, len(chunks))
	for i, ch := range chunks {
		docs[i] = chromem.Document{
			ID:        ch.ID,
			Content:   ch.Content,
			Metadata:  chunkMetadata(ch),
			Embedding: vecs[i],
		}
	}
	// Concurrency of 1: embeddings are already computed.
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	s.logger.Debug("added chunks to chromem", zap.Int("count", len(docs)), zap.Int("total", s.collection.Count()))
	return nil
}

// Query returns the top-k entries nearest to embedding.
func (s *ChromemStore) Query(ctx context.Context, embedding []float32, k int) ([]*models.ScoredChunk, error) {
	// chromem requires nResults <= document count.
	k = effectiveK(k, s.collection.Count())
	if k == 0 {
		return []*models.ScoredChunk{}, nil
	}
	results, err := s.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, errs.E(errs.KindProvider, "query vector store", err)
	}
	out := make([]*models.ScoredChunk, len(results))
	for i, r := range results {
		out[i] = &models.ScoredChunk{
			Chunk: chunkFromEntry(r.ID, r.Content, r.Metadata),
			Score: float64(r.Similarity),
		}
	}
	return out, nil
}

// Count returns the number of entries in the collection.
func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

// Close releases nothing; chromem persists on write.
func (s *ChromemStore) Close() error {
	return nil
}
