package answer

import (
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const fallbackEncoding = "cl100k_base"

// TokenCounter counts model tokens in text.
type TokenCounter interface {
	Count(text string) int
}

// EstimateCounter assumes four characters per token.
type EstimateCounter struct{}

// Count returns the rounded-up estimate.
func (EstimateCounter) Count(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (t tiktokenCounter) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// NewTokenCounter returns a tiktoken counter for model, falling back to cl100k_base for unknown
// models and to EstimateCounter when no encoding can be loaded.
func NewTokenCounter(model string) TokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return EstimateCounter{}
		}
	}
	return tiktokenCounter{enc: enc}
}

// BuildContext joins evidence texts with blank lines, best first, stopping before the total
// would exceed maxTokens. The first text is always included, trimmed to fit when needed.
// maxTokens <= 0 means unbounded.
func BuildContext(texts []string, maxTokens int, counter TokenCounter) string {
	if counter == nil {
		counter = EstimateCounter{}
	}
	const sep = "\n\n"
	var parts []string
	used := 0
	for i, t := range texts {
		n := counter.Count(t)
		if i > 0 {
			n += counter.Count(sep)
		}
		if maxTokens > 0 && used+n > maxTokens {
			if i == 0 {
				parts = append(parts, trimToTokens(t, maxTokens, counter))
			}
			break
		}
		parts = append(parts, t)
		used += n
	}
	return strings.Join(parts, sep)
}

// trimToTokens cuts text on a rune boundary until it fits in maxTokens.
func trimToTokens(text string, maxTokens int, counter TokenCounter) string {
	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if counter.Count(string(runes[:mid])) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo])
}
