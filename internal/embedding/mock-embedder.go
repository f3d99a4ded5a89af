package embedding

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/hyperjump/ozlaw/pkg/utils"
)

// MockEmbedder is a deterministic offline embedder. Each lowercased word is hashed into one
// of the vector's buckets, so texts sharing words end up close under cosine similarity and
// the same text always gets the same embedding.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a unit-length bag-of-words embedding for text.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		emb[HashString(w)%e.dimensions] += 1
	}
	if len(words) == 0 {
		// No words: fall back to a hash of the raw text so distinct inputs still differ.
		h := HashString(text)
		for i := range emb {
			emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
		}
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}

// HashString returns a deterministic non-negative hash of s.
func HashString(s string) int {
	var h uint32
	for _, c := range s {
		h = 31*h + uint32(c)
	}
	return int(h)
}
