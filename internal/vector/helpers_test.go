package vector

import (
	"context"
	"errors"
)

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("provider unavailable")
}

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("provider unavailable")
}

func (failingEmbedder) Dimensions() int { return 8 }

func (failingEmbedder) Close() error { return nil }
