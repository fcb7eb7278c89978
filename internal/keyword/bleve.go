package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/contexter/internal/models"
)

const (
	textField   = "text"
	sourceField = "source"
	batchSize   = 500
)

type chunkDoc struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// BleveIndex is a keyword index over chunk texts.
type BleveIndex struct {
	index bleve.Index
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so exact words match.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(textField, textFieldMapping)
	sourceFieldMapping := bleve.NewTextFieldMapping()
	sourceFieldMapping.Analyzer = keywordanalyzer.Name
	docMapping.AddFieldMappingsAt(sourceField, sourceFieldMapping)
	im.DefaultMapping = docMapping
	return im
}

// Rebuild replaces any index at path with one holding chunks, keyed by position.
func Rebuild(ctx context.Context, path string, chunks []models.Chunk) (*BleveIndex, error) {
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("failed to remove old keyword index: %w", err)
	}
	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	b := &BleveIndex{index: index}
	// A partial index must not be left for Open to find.
	fail := func(err error) (*BleveIndex, error) {
		_ = b.Close()
		_ = os.RemoveAll(path)
		return nil, err
	}

	batch := index.NewBatch()
	for i, c := range chunks {
		if err := batch.Index(strconv.Itoa(i), chunkDoc{Text: c.Text, Source: c.Metadata.Source}); err != nil {
			return fail(err)
		}
		if batch.Size() >= batchSize || i == len(chunks)-1 {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			if err := index.Batch(batch); err != nil {
				return fail(fmt.Errorf("failed to index batch: %w", err))
			}
			batch.Reset()
		}
	}
	return b, nil
}

// Open opens the index at path read-only. It returns ErrNotBuilt when path does not exist.
func Open(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, ErrNotBuilt
	}
	index, err := bleve.OpenUsing(path, map[string]interface{}{"read_only": true})
	if err != nil {
		return nil, fmt.Errorf("failed to open Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Search runs a match query over chunk texts and returns up to limit results, best first.
// Multi-term queries penalize chunks that miss terms; opts can add fuzzy matching and a phrase
// boost.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error) {
	if limit <= 0 {
		return nil, nil
	}
	fuzzy, fuzziness, phraseBoost := false, 2, 1.0
	if opts != nil {
		fuzzy = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
		if opts.PhraseBoost > 0 {
			phraseBoost = opts.PhraseBoost
		}
	}

	reqSize := max(limit*2, 50)
	terms := tokenizeQuery(query)

	req := bleve.NewSearchRequest(b.buildQuery(query, terms, fuzzy, fuzziness))
	req.Size = reqSize
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	scores := make(map[string]float64, len(results.Hits))
	for _, hit := range results.Hits {
		scores[hit.ID] = hit.Score
	}

	if len(terms) > 1 {
		coverage := b.termCoverage(ctx, terms, reqSize, fuzzy, fuzziness)
		for id := range scores {
			matched := max(coverage[id], 1)
			c := float64(matched) / float64(len(terms))
			scores[id] *= c * c
		}
		if phraseBoost > 1 {
			for id := range b.phraseMatches(ctx, query, reqSize) {
				if _, ok := scores[id]; ok {
					scores[id] *= phraseBoost
				}
			}
		}
	}

	out := make([]*Result, 0, len(scores))
	for id, score := range scores {
		pos, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		out = append(out, &Result{Position: pos, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Position < out[j].Position
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *BleveIndex) buildQuery(query string, terms []string, fuzzy bool, fuzziness int) blevequery.Query {
	if !fuzzy || len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(textField)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(textField)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// termCoverage counts how many query terms each chunk matches.
func (b *BleveIndex) termCoverage(ctx context.Context, terms []string, reqSize int, fuzzy bool, fuzziness int) map[string]int {
	coverage := make(map[string]int)
	for _, term := range terms {
		req := bleve.NewSearchRequest(b.buildQuery(term, []string{term}, fuzzy, fuzziness))
		req.Size = reqSize
		results, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			continue
		}
		for _, hit := range results.Hits {
			coverage[hit.ID]++
		}
	}
	return coverage
}

func (b *BleveIndex) phraseMatches(ctx context.Context, query string, reqSize int) map[string]struct{} {
	matches := make(map[string]struct{})
	pq := bleve.NewMatchPhraseQuery(query)
	pq.SetField(textField)
	req := bleve.NewSearchRequest(pq)
	req.Size = reqSize
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return matches
	}
	for _, hit := range results.Hits {
		matches[hit.ID] = struct{}{}
	}
	return matches
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// TermCounts returns every indexed term with the number of chunks containing it.
func (b *BleveIndex) TermCounts() (map[string]int, error) {
	dict, err := b.index.FieldDict(textField)
	if err != nil {
		return nil, err
	}
	defer dict.Close()

	counts := make(map[string]int)
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, err
		}
		if entry == nil {
			break
		}
		counts[entry.Term] = int(entry.Count)
	}
	return counts, nil
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
