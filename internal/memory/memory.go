// Package memory rebuilds the conversation transcript for a single question from the
// caller's history. Nothing is kept between calls.
package memory

import (
	"context"
	"fmt"

	"github.com/hyperjump/ozlaw/internal/models"
	"github.com/tmc/langchaingo/llms"
	lcmemory "github.com/tmc/langchaingo/memory"
)

// Prefixes used when the transcript is rendered as text.
const (
	HumanPrefix = "Human"
	AIPrefix    = "AI"
)

// Memory is a chat message history replayed from a models.History.
type Memory struct {
	history *lcmemory.ChatMessageHistory
	turns   int
}

// Load replays h into a fresh chat history: for every turn, in order, the question
// as a user message followed by the answer as an AI message.
func Load(ctx context.Context, h models.History) (*Memory, error) {
	history := lcmemory.NewChatMessageHistory()
	for i, turn := range h {
		if err := history.AddUserMessage(ctx, turn.Question); err != nil {
			return nil, fmt.Errorf("replay turn %d question: %w", i, err)
		}
		if err := history.AddAIMessage(ctx, turn.Answer); err != nil {
			return nil, fmt.Errorf("replay turn %d answer: %w", i, err)
		}
	}
	return &Memory{history: history, turns: len(h)}, nil
}

// Messages returns the transcript in order.
func (m *Memory) Messages(ctx context.Context) ([]llms.ChatMessage, error) {
	return m.history.Messages(ctx)
}

// Buffer renders the transcript as "Human: ..." and "AI: ..." lines.
// An empty history renders as "".
func (m *Memory) Buffer(ctx context.Context) (string, error) {
	msgs, err := m.history.Messages(ctx)
	if err != nil {
		return "", err
	}
	return llms.GetBufferString(msgs, HumanPrefix, AIPrefix)
}

// Len returns the number of replayed turns.
func (m *Memory) Len() int {
	return m.turns
}
