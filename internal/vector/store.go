// Package vector stores embedded chunks and answers nearest-neighbour queries over them.
package vector

import (
	"context"
	"strconv"

	"github.com/hyperjump/ozlaw/internal/embedding"
	"github.com/hyperjump/ozlaw/internal/errs"
	"github.com/hyperjump/ozlaw/internal/models"
)

// DefaultTopK is the number of chunks returned when a query asks for k <= 0.
const DefaultTopK = 4

// Store is a persistent, append-only collection of embedded chunks.
type Store interface {
	// Ingest embeds every chunk's content and appends one entry per chunk. Entries are never
	// deduplicated: ingesting the same chunks twice stores them twice.
	Ingest(ctx context.Context, chunks []*models.Chunk) error
	// Query returns up to k entries nearest to embedding by cosine similarity, best first.
	// An empty store yields an empty result and no error.
	Query(ctx context.Context, embedding []float32, k int) ([]*models.ScoredChunk, error)
	Count() int
	Close() error
}

// embedChunks embeds the chunk contents in one batch.
func embedChunks(ctx context.Context, e embedding.Embedder, chunks []*models.Chunk) ([][]float32, error) {
	if e == nil {
		return nil, errs.Errorf(errs.KindConfiguration, "embed chunks", "no embedder configured")
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vecs, err := e.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, errs.E(errs.KindProvider, "embed chunks", err)
	}
	if len(vecs) != len(chunks) {
		return nil, errs.Errorf(errs.KindProvider, "embed chunks", "got %d embeddings for %d chunks", len(vecs), len(chunks))
	}
	return vecs, nil
}

// effectiveK applies the default to k and caps it at the number of entries.
func effectiveK(k, count int) int {
	if k <= 0 {
		k = DefaultTopK
	}
	if k > count {
		k = count
	}
	return k
}

// chunkMetadata returns the metadata persisted with a chunk's entry. Source and index are
// always present so a chunk can be rebuilt from its entry alone.
func chunkMetadata(ch *models.Chunk) map[string]string {
	md := make(map[string]string, len(ch.Metadata)+2)
	for k, v := range ch.Metadata {
		md[k] = v
	}
	md[models.MetaSource] = ch.Source
	md[models.MetaChunkIndex] = strconv.Itoa(ch.Index)
	return md
}

// chunkFromEntry rebuilds a chunk from a stored entry.
func chunkFromEntry(id, content string, md map[string]string) *models.Chunk {
	idx, _ := strconv.Atoi(md[models.MetaChunkIndex])
	return &models.Chunk{
		ID:       id,
		Source:   md[models.MetaSource],
		Index:    idx,
		Content:  content,
		Metadata: md,
	}
}
