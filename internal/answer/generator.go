// Package answer turns retrieved evidence into a reply, either with a chat model or with an
// extractive fallback when no model is configured.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/contexter/internal/models"
	"github.com/hyperjump/contexter/pkg/utils"
)

// NoEvidenceMessage is returned when there is nothing to answer from.
const NoEvidenceMessage = "I don't have enough information in my knowledge base to answer your question. Please upload some documents first."

const (
	fallbackEvidenceCount = 2
	fallbackEvidenceChars = 200
	fallbackSummaryChars  = 300
)

// Generator answers a question from evidence. Answer always returns a displayable string.
type Generator interface {
	Answer(ctx context.Context, query string, evidence []models.Evidence) string
}

// FallbackGenerator answers without a model by quoting the best evidence.
type FallbackGenerator struct{}

// Answer echoes the question with the start of the top evidence texts.
func (FallbackGenerator) Answer(_ context.Context, query string, evidence []models.Evidence) string {
	if len(evidence) == 0 {
		return NoEvidenceMessage
	}
	parts := make([]string, 0, fallbackEvidenceCount)
	for _, e := range evidence[:min(len(evidence), fallbackEvidenceCount)] {
		parts = append(parts, utils.Prefix(e.Text, fallbackEvidenceChars))
	}
	summary := utils.Prefix(strings.Join(parts, " "), fallbackSummaryChars)

	return fmt.Sprintf("Based on the documents in my knowledge base, here's what I found related to your question: \"%s\"\n\n"+
		"%s...\n\n"+
		"Note: This is a fallback response. To get AI-generated answers, please configure your OpenAI API key in the environment variables.",
		query, summary)
}

// errorMessage is the reply when the model call fails.
func errorMessage(err error) string {
	return fmt.Sprintf("I apologize, but I encountered an error while generating a response: %v", err)
}
