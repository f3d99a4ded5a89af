package main

import (
	"context"
	"fmt"

	"github.com/hyperjump/ozlaw/internal/config"
	"github.com/hyperjump/ozlaw/internal/embedding"
	"github.com/hyperjump/ozlaw/internal/errs"
	"github.com/hyperjump/ozlaw/internal/extract"
	"github.com/hyperjump/ozlaw/internal/indexer"
	"github.com/hyperjump/ozlaw/internal/llm"
	"github.com/hyperjump/ozlaw/internal/rag"
	"github.com/hyperjump/ozlaw/internal/storage"
	"github.com/hyperjump/ozlaw/internal/vector"
	"go.uber.org/zap"
)

// providerMock runs without network access: a hashing embedder and a canned model reply.
const providerMock = "mock"

const offlineAnswer = "Offline mode: no language model is configured. See the retrieved sources for relevant passages."

// Components holds initialized services.
type Components struct {
	Registry  storage.Storage
	Embedder  embedding.Embedder
	Store     *vector.Shared
	Generator llm.Generator
	Pipeline  *rag.Pipeline
	Indexer   *indexer.Indexer
}

// Close releases everything that was opened.
func (c *Components) Close() {
	if c.Pipeline != nil {
		_ = c.Pipeline.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Registry != nil {
		_ = c.Registry.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// componentOptions tweak initializeComponents per command.
type componentOptions struct {
	// force re-ingests files the registry already knows.
	force bool
}

func offline(cfg *config.Config) bool {
	return cfg.Embedding.Provider == providerMock
}

// initializeComponents wires the registry, embedder, store, model, pipeline and indexer.
// A missing API key is not an error here: the pipeline reports it per question and the
// indexer per file.
func initializeComponents(cfg *config.Config, logger *zap.Logger, opts componentOptions) (*Components, error) {
	registry, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize document registry: %w", err)
	}
	c := &Components{Registry: registry}

	apiKey := cfg.Provider.APIKey
	switch {
	case offline(cfg):
		apiKey = providerMock
		c.Embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
		c.Generator = &llm.MockGenerator{Responses: []string{offlineAnswer}}
		logger.Info("offline mode: using mock embedder and model")
	case apiKey != "":
		e, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:     apiKey,
			Model:      cfg.Embedding.Model,
			BaseURL:    cfg.Embedding.BaseURL,
			Dimensions: cfg.Embedding.Dimensions,
			BatchSize:  cfg.Embedding.BatchSize,
		}, embedding.WithLogger(logger))
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Embedder = e
		g, err := llm.NewOpenAIGenerator(llm.OpenAIConfig{
			APIKey:      apiKey,
			Model:       cfg.LLM.Model,
			BaseURL:     cfg.LLM.BaseURL,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		}, llm.WithLogger(logger))
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Generator = g
	default:
		logger.Warn("no API key found; questions and ingestion will fail until it is set",
			zap.String("env", cfg.Provider.APIKeyEnv))
	}
	if c.Embedder != nil && cfg.Embedding.CacheSize > 0 {
		c.Embedder = embedding.NewCachedEmbedder(c.Embedder, cfg.Embedding.CacheSize)
	}

	c.Store = vector.NewShared(vector.Options{
		Type:       vector.StoreType(cfg.Storage.VectorStoreType),
		Path:       cfg.Storage.VectorStorePath,
		Collection: cfg.Storage.Collection,
		Compress:   cfg.Storage.Compress,
		Embedder:   c.Embedder,
		Logger:     logger,
	})

	store := c.Store
	c.Pipeline = rag.New(rag.Options{
		APIKey:           apiKey,
		APIKeyEnv:        cfg.Provider.APIKeyEnv,
		StorePath:        cfg.Storage.VectorStorePath,
		TopK:             cfg.Retrieval.TopK,
		CondenseQuestion: cfg.Retrieval.CondenseQuestionOrDefault(),
		Timeout:          cfg.LLM.Timeout,
	}, c.Embedder, c.Generator, func(context.Context) (vector.Store, error) {
		return store, nil
	}, rag.WithLogger(logger))

	c.Indexer = indexer.NewIndexer(store, registry, cfg.Chunking, extract.NewExtractor(),
		indexer.WithLogger(logger),
		indexer.WithSkipUnchanged(cfg.Ingest.SkipUnchangedOrDefault() && !opts.force),
		indexer.WithRecursive(cfg.Ingest.Recursive),
	)
	return c, nil
}

// missingKeyError is reported by commands that cannot do anything useful without a key.
func missingKeyError(cfg *config.Config) error {
	if offline(cfg) || cfg.Provider.APIKey != "" {
		return nil
	}
	return errs.Errorf(errs.KindConfiguration, "",
		"OpenAI API key not found. Please set %s in your .env file.", cfg.Provider.APIKeyEnv)
}
