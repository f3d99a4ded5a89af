package rag

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hyperjump/ozlaw/internal/errs"
	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			"configuration",
			errs.Errorf(errs.KindConfiguration, "validate", "vector store directory not found at /x"),
			"Sorry, I'm unable to process your question at the moment: vector store directory not found at /x",
		},
		{
			"provider wrapped twice",
			errs.E(errs.KindProvider, "answer", errs.E(errs.KindProvider, "generate", errors.New("rate limited"))),
			"Sorry, I encountered an error while processing your question: rate limited",
		},
		{
			"plain error",
			fmt.Errorf("boom"),
			"Sorry, I encountered an error while processing your question: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}
