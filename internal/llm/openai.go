package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/ozlaw/internal/errs"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// OpenAIConfig configures an OpenAI-compatible chat endpoint.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// OpenAIGenerator implements Generator with langchaingo's OpenAI client.
type OpenAIGenerator struct {
	client llms.Model
	cfg    OpenAIConfig
	logger *zap.Logger
}

// GeneratorOption configures an OpenAIGenerator.
type GeneratorOption func(*OpenAIGenerator)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) GeneratorOption {
	return func(g *OpenAIGenerator) { g.logger = l }
}

// NewOpenAIGenerator creates a generator for cfg. A missing API key is a configuration error.
func NewOpenAIGenerator(cfg OpenAIConfig, opts ...GeneratorOption) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errs.Errorf(errs.KindConfiguration, "llm", "OpenAI API key not found")
	}
	clientOpts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(clientOpts...)
	if err != nil {
		return nil, errs.E(errs.KindConfiguration, "llm", fmt.Errorf("creating OpenAI client: %w", err))
	}
	g := &OpenAIGenerator{client: client, cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate sends messages to the model and normalizes the reply.
func (g *OpenAIGenerator) Generate(ctx context.Context, messages []Message) (*Completion, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.MessageContent{
			Role:  chatMessageType(m.Role),
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		})
	}
	callOpts := []llms.CallOption{llms.WithTemperature(g.cfg.Temperature)}
	if g.cfg.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(g.cfg.MaxTokens))
	}

	start := time.Now()
	resp, err := g.client.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return nil, errs.E(errs.KindProvider, "generate", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errs.E(errs.KindProvider, "generate", ErrEmptyResponse)
	}
	raw := resp.Choices[0].Content
	g.logger.Debug("model responded",
		zap.String("model", g.cfg.Model),
		zap.Duration("took", time.Since(start)),
		zap.Int("length", len(raw)),
	)
	answer, err := ParseAnswer(raw)
	if err != nil {
		return nil, errs.E(errs.KindProvider, "generate", err)
	}
	return &Completion{Answer: answer, Raw: raw}, nil
}

func chatMessageType(r Role) llms.ChatMessageType {
	switch r {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAI:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
