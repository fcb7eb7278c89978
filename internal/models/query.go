package models

import (
	"fmt"
	"strings"
)

// ChatRequest is the body of a chat request.
type ChatRequest struct {
	Message string `json:"message"`
}

// Validate trims the message and rejects an empty one.
func (r *ChatRequest) Validate() error {
	r.Message = strings.TrimSpace(r.Message)
	if r.Message == "" {
		return fmt.Errorf("message cannot be empty")
	}
	return nil
}

// Search modes for KeywordQuery.
const (
	ModeKeyword = "keyword"
	ModeHybrid  = "hybrid"
)

// KeywordQuery is a search over chunk texts. Hybrid mode fuses keyword and vector scores.
type KeywordQuery struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
	Mode  string `json:"mode,omitempty"`
	Fuzzy bool   `json:"fuzzy,omitempty"`

	// Rerank orders hits by how well the query matches chunk text and source name.
	Rerank bool `json:"rerank,omitempty"`
}

// Validate ensures the query is non-empty, defaults the mode and normalizes the limit into
// [1, 100].
func (q *KeywordQuery) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	switch q.Mode {
	case "":
		q.Mode = ModeKeyword
	case ModeKeyword, ModeHybrid:
	default:
		return fmt.Errorf("unknown search mode %q (supported: keyword, hybrid)", q.Mode)
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}
