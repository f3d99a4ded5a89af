package embedding

import (
	"context"
	"errors"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
	if c.Len() != 2 {
		t.Errorf("Len: got %d", c.Len())
	}
}

// countingEmbedder records how many texts reached the wrapped embedder.
type countingEmbedder struct {
	*MockEmbedder
	embedded int
	err      error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.embedded++
	return c.MockEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.embedded += len(texts)
	return c.MockEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_Embed(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8)}
	e := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	v1, err := e.Embed(ctx, "what is consideration?")
	if err != nil {
		t.Fatal(err)
	}
	v2, err := e.Embed(ctx, "what is consideration?")
	if err != nil {
		t.Fatal(err)
	}
	if inner.embedded != 1 {
		t.Errorf("expected 1 call to the wrapped embedder, got %d", inner.embedded)
	}
	if len(v1) != len(v2) || v1[0] != v2[0] {
		t.Error("cached embedding differs")
	}
	if e.Dimensions() != 8 {
		t.Errorf("Dimensions: got %d", e.Dimensions())
	}
}

func TestCachedEmbedder_EmbedBatchOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8)}
	e := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	if _, err := e.Embed(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	out, err := e.EmbedBatch(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 || out[1] == nil {
		t.Fatalf("unexpected batch result: %v", out)
	}
	if inner.embedded != 3 {
		t.Errorf("expected 3 texts embedded in total, got %d", inner.embedded)
	}
	want, _ := inner.MockEmbedder.Embed(ctx, "c")
	if out[2][0] != want[0] {
		t.Error("batch results out of order")
	}
}

func TestCachedEmbedder_errorNotCached(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8), err: errors.New("rate limited")}
	e := NewCachedEmbedder(inner, 10)
	if _, err := e.Embed(context.Background(), "q"); err == nil {
		t.Fatal("expected error")
	}
	if e.cache.Len() != 0 {
		t.Error("failed embedding should not be cached")
	}
}
