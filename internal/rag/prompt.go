package rag

import (
	"fmt"
	"strings"

	"github.com/hyperjump/ozlaw/internal/models"
	"github.com/tmc/langchaingo/prompts"
)

const systemPrompt = "You are a legal research assistant. Answer using only the provided context and conversation. " +
	"Cite the source documents you relied on. If the context does not contain the answer, say so plainly."

const condenseTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
{{.chat_history}}
Follow Up Input: {{.question}}
Standalone question:`

const qaTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

{{.context}}

{{if .chat_history}}Conversation so far:
{{.chat_history}}

{{end}}Question: {{.question}}
Helpful Answer:`

// noContext stands in for the context block when retrieval found nothing.
const noContext = "No relevant documents were found for this question."

var (
	condensePrompt = prompts.NewPromptTemplate(condenseTemplate, []string{"chat_history", "question"})
	qaPrompt       = prompts.NewPromptTemplate(qaTemplate, []string{"context", "chat_history", "question"})
)

// formatContext renders retrieved chunks, each under a "[Source: path]" line, best first.
func formatContext(hits []*models.ScoredChunk) string {
	if len(hits) == 0 {
		return noContext
	}
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, fmt.Sprintf("[Source: %s]\n%s", h.Chunk.Source, strings.TrimSpace(h.Chunk.Content)))
	}
	return strings.Join(parts, "\n\n")
}

func buildCondensePrompt(transcript, question string) (string, error) {
	return condensePrompt.Format(map[string]any{
		"chat_history": transcript,
		"question":     question,
	})
}

func buildQAPrompt(hits []*models.ScoredChunk, transcript, question string) (string, error) {
	return qaPrompt.Format(map[string]any{
		"context":      formatContext(hits),
		"chat_history": transcript,
		"question":     question,
	})
}
