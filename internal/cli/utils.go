// Package cli formats command output for the contexter CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/hyperjump/contexter/internal/models"
	"github.com/hyperjump/contexter/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const snippetWidth = 200

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	case "":
		return OutputText, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.KeywordResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms (%s)\n\n", response.Total, response.QueryTime, response.Mode)
	if response.Suggestion != "" {
		fmt.Fprintf(w, "Did you mean: %s\n\n", response.Suggestion)
	}
	for i, hit := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		if response.Mode == models.ModeHybrid {
			fmt.Fprintf(w, "Rank: %d | Score: %.4f (Keyword: %.4f, Semantic: %.4f)\n",
				i+1, hit.Score, hit.KeywordScore, hit.SemanticScore)
		} else {
			fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", i+1, hit.Score)
		}
		if hit.RankScore > 0 {
			fmt.Fprintf(w, "Relevance: %.1f\n", hit.RankScore)
		}
		fmt.Fprintf(w, "Source: %s (chunk %d of %d)\n", hit.Metadata.Source, hit.Metadata.ChunkID+1, hit.Metadata.TotalChunks)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(hit.Snippet, snippetWidth))
	}
	return nil
}

// WriteIngestStats writes the summary of an ingestion run.
func WriteIngestStats(w io.Writer, stats *models.IngestStats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	fmt.Fprintf(w, "files_seen:      %d\n", stats.FilesSeen)
	fmt.Fprintf(w, "files_ingested:  %d\n", stats.FilesIngested)
	fmt.Fprintf(w, "files_reused:    %d\n", stats.FilesReused)
	fmt.Fprintf(w, "files_removed:   %d\n", stats.FilesRemoved)
	fmt.Fprintf(w, "files_skipped:   %d   # unsupported or unreadable\n", stats.FilesSkipped)
	fmt.Fprintf(w, "new_chunks:      %d\n", stats.NewChunks)
	fmt.Fprintf(w, "total_chunks:    %d\n", stats.TotalChunks)
	fmt.Fprintf(w, "rebuilt:         %t\n", stats.Rebuilt)
	fmt.Fprintf(w, "duration_ms:     %d\n", stats.DurationMS)
	return nil
}

// WriteStatus writes knowledge base statistics. Sources are listed by name.
func WriteStatus(w io.Writer, stats *models.KnowledgeBaseStats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	if stats.TotalChunks == 0 {
		fmt.Fprintln(w, "No knowledge base found.")
		return nil
	}
	fmt.Fprintf(w, "documents:          %d   # sources with chunks\n", stats.TotalDocuments)
	fmt.Fprintf(w, "chunks:             %d   # vectors in the index\n", stats.TotalChunks)
	fmt.Fprintf(w, "dimensions:         %d\n", stats.Dimensions)
	fmt.Fprintf(w, "disk_usage_bytes:   %d\n", stats.IndexSizeBytes)

	names := make([]string, 0, len(stats.Sources))
	for name := range stats.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# sources")
	for _, name := range names {
		fmt.Fprintf(w, "%6d  %s\n", stats.Sources[name], name)
	}
	return nil
}
