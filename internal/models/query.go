package models

import (
	"fmt"
	"strings"
)

// Turn is one question/answer exchange of a conversation.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// History is the ordered list of prior turns. Turn i was asked before turn i+1.
type History []Turn

// Append returns a copy of h with the new turn at the end; h itself is left untouched.
func (h History) Append(question, answer string) History {
	out := make(History, len(h), len(h)+1)
	copy(out, h)
	return append(out, Turn{Question: question, Answer: answer})
}

// AnswerRequest is a question plus the caller-owned conversation history.
type AnswerRequest struct {
	Question string  `json:"question"`
	History  History `json:"history,omitempty"`
	TopK     int     `json:"top_k,omitempty"`
}

// Validate trims the question and rejects empty ones. TopK is capped at 50.
func (r *AnswerRequest) Validate() error {
	r.Question = strings.TrimSpace(r.Question)
	if r.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if r.TopK < 0 {
		r.TopK = 0
	}
	if r.TopK > 50 {
		r.TopK = 50
	}
	return nil
}
