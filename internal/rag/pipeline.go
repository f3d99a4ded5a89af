// Package rag answers questions over the ingested documents: it replays the conversation,
// retrieves the most relevant chunks, and asks the language model with both in the prompt.
package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/ozlaw/internal/embedding"
	"github.com/hyperjump/ozlaw/internal/errs"
	"github.com/hyperjump/ozlaw/internal/llm"
	"github.com/hyperjump/ozlaw/internal/memory"
	"github.com/hyperjump/ozlaw/internal/models"
	"github.com/hyperjump/ozlaw/internal/vector"
	"go.uber.org/zap"
)

// DefaultAPIKeyEnv is the environment variable named in the missing-credential message.
const DefaultAPIKeyEnv = "OPENAI_API_KEY"

// Options configures a Pipeline.
type Options struct {
	// APIKey is the provider credential. Empty means it was not found.
	APIKey    string
	APIKeyEnv string
	// StorePath is the vector store directory; it must exist before questions are answered.
	StorePath string
	TopK      int
	// CondenseQuestion rewrites follow-ups into standalone questions before retrieval.
	CondenseQuestion bool
	// Timeout bounds each model call; 0 means no limit.
	Timeout time.Duration
}

// StoreOpener opens the vector store. It is called on the first question and the store is
// reused afterwards.
type StoreOpener func(ctx context.Context) (vector.Store, error)

// Result is a successful answer with the material it was based on.
type Result struct {
	Answer string
	// StandaloneQuestion is the question used for retrieval: the condensed follow-up, or the
	// question itself.
	StandaloneQuestion string
	Sources            []*models.ScoredChunk
}

// Pipeline is the retrieval-QA orchestrator. It holds no conversation state; history is
// passed in on every call.
type Pipeline struct {
	opts      Options
	embedder  embedding.Embedder
	generator llm.Generator
	openStore StoreOpener
	logger    *zap.Logger

	mu    sync.Mutex
	store vector.Store
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used to record failures and debug events.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline. embedder and generator may be nil when no credential is
// configured; Run then reports the configuration error instead of failing later.
func New(opts Options, embedder embedding.Embedder, generator llm.Generator, openStore StoreOpener, options ...Option) *Pipeline {
	if opts.APIKeyEnv == "" {
		opts.APIKeyEnv = DefaultAPIKeyEnv
	}
	if opts.TopK <= 0 {
		opts.TopK = vector.DefaultTopK
	}
	p := &Pipeline{
		opts:      opts,
		embedder:  embedder,
		generator: generator,
		openStore: openStore,
		logger:    zap.NewNop(),
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// Answer returns the answer to question given the earlier turns. It never fails: any error
// is logged with its kind and returned as a user-facing message.
func (p *Pipeline) Answer(ctx context.Context, question string, history models.History) string {
	res, err := p.Run(ctx, question, history)
	if err != nil {
		p.logger.Warn("answer failed",
			zap.String("kind", errs.KindOf(err).String()),
			zap.Error(err),
		)
		return UserMessage(err)
	}
	return res.Answer
}

// Run answers question and returns kinded errors. k <= 0 uses the configured top-k.
func (p *Pipeline) Run(ctx context.Context, question string, history models.History) (*Result, error) {
	return p.RunK(ctx, question, history, 0)
}

// RunK is Run with an explicit number of chunks to retrieve.
func (p *Pipeline) RunK(ctx context.Context, question string, history models.History, k int) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("recovered panic in answer pipeline", zap.Any("panic", r))
			res = nil
			err = errs.Errorf(errs.KindProvider, "answer", "unexpected failure: %v", r)
		}
	}()

	start := time.Now()
	question = strings.TrimSpace(question)
	if err := p.validate(question); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = p.opts.TopK
	}

	mem, err := memory.Load(ctx, history)
	if err != nil {
		return nil, errs.E(errs.KindValidation, "load history", err)
	}
	transcript, err := mem.Buffer(ctx)
	if err != nil {
		return nil, errs.E(errs.KindValidation, "load history", err)
	}

	standalone := question
	if p.opts.CondenseQuestion && mem.Len() > 0 {
		standalone, err = p.condense(ctx, transcript, question)
		if err != nil {
			return nil, err
		}
	}

	hits, err := p.retrieve(ctx, standalone, k)
	if err != nil {
		return nil, err
	}

	prompt, err := buildQAPrompt(hits, transcript, question)
	if err != nil {
		return nil, errs.E(errs.KindProvider, "build prompt", err)
	}
	completion, err := p.generate(ctx, "answer", prompt)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("answered question",
		zap.Int("history_turns", mem.Len()),
		zap.Int("retrieved", len(hits)),
		zap.Bool("condensed", standalone != question),
		zap.Duration("took", time.Since(start)),
	)
	return &Result{
		Answer:             completion.Answer,
		StandaloneQuestion: standalone,
		Sources:            hits,
	}, nil
}

// validate checks the credential, the store directory, the question and the wiring, in that order.
func (p *Pipeline) validate(question string) error {
	if strings.TrimSpace(p.opts.APIKey) == "" {
		return errs.Errorf(errs.KindConfiguration, "validate",
			"OpenAI API key not found. Please set %s in your .env file.", p.opts.APIKeyEnv)
	}
	if err := vector.CheckExists(p.opts.StorePath); err != nil {
		return err
	}
	if question == "" {
		return errs.Errorf(errs.KindValidation, "validate", "question cannot be empty")
	}
	if p.embedder == nil || p.generator == nil || p.openStore == nil {
		return errs.Errorf(errs.KindConfiguration, "validate", "answer pipeline is not fully configured")
	}
	return nil
}

// condense asks the model to rewrite a follow-up into a standalone question. An empty
// rewrite falls back to the original question.
func (p *Pipeline) condense(ctx context.Context, transcript, question string) (string, error) {
	prompt, err := buildCondensePrompt(transcript, question)
	if err != nil {
		return "", errs.E(errs.KindProvider, "build condense prompt", err)
	}
	c, err := p.generate(ctx, "condense question", prompt)
	if err != nil {
		return "", err
	}
	standalone := strings.TrimSpace(c.Answer)
	if standalone == "" {
		return question, nil
	}
	p.logger.Debug("condensed follow-up question", zap.String("standalone", standalone))
	return standalone, nil
}

func (p *Pipeline) retrieve(ctx context.Context, question string, k int) ([]*models.ScoredChunk, error) {
	store, err := p.vectorStore(ctx)
	if err != nil {
		return nil, err
	}
	emb, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return nil, errs.E(errs.KindProvider, "embed question", err)
	}
	hits, err := store.Query(ctx, emb, k)
	if err != nil {
		return nil, errs.E(errs.KindProvider, "retrieve", err)
	}
	return hits, nil
}

func (p *Pipeline) generate(ctx context.Context, op, prompt string) (*llm.Completion, error) {
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}
	c, err := p.generator.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleHuman, Content: prompt},
	})
	if err != nil {
		return nil, errs.E(errs.KindProvider, op, err)
	}
	if c == nil {
		return nil, errs.E(errs.KindProvider, op, llm.ErrEmptyResponse)
	}
	return c, nil
}

// vectorStore opens the store on first use. A failed open is not cached.
func (p *Pipeline) vectorStore(ctx context.Context) (vector.Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.store != nil {
		return p.store, nil
	}
	store, err := p.openStore(ctx)
	if err != nil {
		if errs.KindOf(err) == errs.KindUnknown {
			err = errs.E(errs.KindConfiguration, "open vector store", err)
		}
		return nil, err
	}
	p.store = store
	return store, nil
}

// Close closes the vector store if it was opened.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.store == nil {
		return nil
	}
	err := p.store.Close()
	p.store = nil
	if err != nil {
		return fmt.Errorf("close vector store: %w", err)
	}
	return nil
}
