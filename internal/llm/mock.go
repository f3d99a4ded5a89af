package llm

import (
	"context"
	"sync"

	"github.com/hyperjump/ozlaw/internal/errs"
)

// MockGenerator returns canned responses in order, repeating the last one. Responses go
// through ParseAnswer, so they may be plain text or JSON objects. Used for tests and offline runs.
type MockGenerator struct {
	Responses []string
	// Err, when set, is returned by every call.
	Err error
	// Panic, when set, makes every call panic with this value.
	Panic any

	mu    sync.Mutex
	calls [][]Message
}

// Generate records the prompt and returns the next canned response.
func (m *MockGenerator) Generate(ctx context.Context, messages []Message) (*Completion, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]Message(nil), messages...))
	n := len(m.calls)
	m.mu.Unlock()

	if m.Panic != nil {
		panic(m.Panic)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.E(errs.KindProvider, "generate", err)
	}
	if len(m.Responses) == 0 {
		return nil, errs.E(errs.KindProvider, "generate", ErrEmptyResponse)
	}
	i := n - 1
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	raw := m.Responses[i]
	answer, err := ParseAnswer(raw)
	if err != nil {
		return nil, errs.E(errs.KindProvider, "generate", err)
	}
	return &Completion{Answer: answer, Raw: raw}, nil
}

// Calls returns the prompts received so far.
func (m *MockGenerator) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]Message(nil), m.calls...)
}
