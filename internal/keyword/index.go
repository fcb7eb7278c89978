// Package keyword provides a BM25 keyword index over chunk texts, kept beside the vector index
// and rebuilt whenever the knowledge base is saved.
package keyword

import "errors"

// ErrNotBuilt is returned when opening an index directory that holds no keyword index.
var ErrNotBuilt = errors.New("keyword index not built")

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// PhraseBoost multiplies the score when the query appears as a phrase. Values <= 1 disable it.
	PhraseBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits.
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance for fuzzy matching (1 or 2). Default 2.
	Fuzziness int
}

// Result is a single keyword hit. Position is the chunk's position in the knowledge base.
type Result struct {
	Position int
	Score    float64
}
