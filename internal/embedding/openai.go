package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/ozlaw/internal/errs"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// OpenAIConfig configures an OpenAI-compatible embedding endpoint.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
	BatchSize  int
}

// OpenAIEmbedder implements Embedder with langchaingo's embeddings over the OpenAI client.
type OpenAIEmbedder struct {
	embedder   embeddings.Embedder
	dimensions int
	logger     *zap.Logger
}

// OpenAIOption configures an OpenAIEmbedder.
type OpenAIOption func(*OpenAIEmbedder)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) OpenAIOption {
	return func(e *OpenAIEmbedder) { e.logger = l }
}

// NewOpenAIEmbedder creates an embedder for cfg. A missing API key is a configuration error.
func NewOpenAIEmbedder(cfg OpenAIConfig, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errs.Errorf(errs.KindConfiguration, "embedding", "OpenAI API key not found")
	}
	clientOpts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(clientOpts...)
	if err != nil {
		return nil, errs.E(errs.KindConfiguration, "embedding", fmt.Errorf("creating OpenAI client: %w", err))
	}

	embedderOpts := []embeddings.Option{embeddings.WithStripNewLines(true)}
	if cfg.BatchSize > 0 {
		embedderOpts = append(embedderOpts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, embedderOpts...)
	if err != nil {
		return nil, errs.E(errs.KindConfiguration, "embedding", fmt.Errorf("creating embedder: %w", err))
	}

	e := &OpenAIEmbedder{
		embedder:   embedder,
		dimensions: cfg.Dimensions,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Embed returns the embedding of a query text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("embedding query", zap.Int("length", len(text)))
	v, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, errs.E(errs.KindProvider, "embed query", err)
	}
	return v, nil
}

// EmbedBatch returns one embedding per text, in order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	e.logger.Debug("embedding documents", zap.Int("count", len(texts)))
	vs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, errs.E(errs.KindProvider, "embed documents", err)
	}
	if len(vs) != len(texts) {
		return nil, errs.Errorf(errs.KindProvider, "embed documents", "got %d embeddings for %d texts", len(vs), len(texts))
	}
	return vs, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the HTTP client needs no teardown.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
