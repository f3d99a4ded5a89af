// Package llm is the boundary to the language model provider. Whatever shape the provider
// answers in, callers receive a Completion holding the answer text.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Role is the author of a prompt message.
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
)

// Message is one message of a prompt.
type Message struct {
	Role    Role
	Content string
}

// Completion is a normalized model response.
type Completion struct {
	Answer string
	// Raw is the unparsed response text.
	Raw string
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (*Completion, error)
}

// ErrEmptyResponse is returned when the model produced no usable text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Output keys a response may carry its answer under, in order of preference.
const (
	KeyAnswer = "answer"
	KeyResult = "result"
)

// FromOutputs extracts the answer from a response map, preferring "answer" over "result".
func FromOutputs(outputs map[string]any) (string, error) {
	for _, key := range []string{KeyAnswer, KeyResult} {
		v, ok := outputs[key]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("response field %q is %T, not a string", key, v)
		}
		return s, nil
	}
	return "", fmt.Errorf("response has neither %q nor %q", KeyAnswer, KeyResult)
}

// ParseAnswer normalizes raw model output. Markdown code fences are stripped; a JSON object
// yields its "answer" or "result" field; anything else is returned as plain text.
func ParseAnswer(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	if strings.HasPrefix(text, "{") {
		var outputs map[string]any
		if err := json.Unmarshal([]byte(text), &outputs); err == nil {
			answer, err := FromOutputs(outputs)
			if err != nil {
				return "", err
			}
			if strings.TrimSpace(answer) == "" {
				return "", ErrEmptyResponse
			}
			return strings.TrimSpace(answer), nil
		}
	}
	return text, nil
}
