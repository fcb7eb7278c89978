// Package extract provides text extraction from document formats.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for extensions with no extractor. Callers treat it as a
// warning: the document yields no text.
var ErrUnsupportedFormat = errors.New("unsupported document format")

type extractFunc func(content []byte) (string, error)

var handlers = map[string]extractFunc{
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".doc":  extractDOC,
	".xlsx": extractExcel,
	".txt":  extractPlain,
	".md":   extractPlain,
	".rst":  extractPlain,
	".csv":  extractPlain,
}

// Extractor extracts plain text from document files of an enabled set of extensions.
type Extractor struct {
	enabled map[string]bool
}

// NewExtractor returns an Extractor for the given extensions (leading dot optional, case
// insensitive). Extensions without a known handler are ignored.
func NewExtractor(extensions []string) *Extractor {
	e := &Extractor{enabled: make(map[string]bool)}
	for _, ext := range extensions {
		ext = normalizeExt(ext)
		if _, ok := handlers[ext]; ok {
			e.enabled[ext] = true
		}
	}
	return e
}

// Supports reports whether the file name has an enabled extension.
func (e *Extractor) Supports(name string) bool {
	return e.enabled[normalizeExt(filepath.Ext(name))]
}

// Extensions returns the enabled extensions.
func (e *Extractor) Extensions() []string {
	out := make([]string, 0, len(e.enabled))
	for ext := range e.enabled {
		out = append(out, ext)
	}
	return out
}

// Extract reads the file at path and returns its text content.
// Unsupported extensions return "" and ErrUnsupportedFormat without reading the file.
func (e *Extractor) Extract(path string) (string, error) {
	ext := normalizeExt(filepath.Ext(path))
	if !e.enabled[ext] {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	ext = normalizeExt(ext)
	if !e.enabled[ext] {
		return "", fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
	}
	return handlers[ext](content)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
