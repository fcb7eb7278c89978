package extract

import (
	"bytes"
	"fmt"

	"github.com/lu4p/cat"
)

var zipMagic = []byte("PK\x03\x04")

// extractDOC handles files saved with a .doc extension. Word 2007+ content renamed to .doc is
// parsed as DOCX; RTF, ODT and plain text are delegated to lu4p/cat. Legacy binary Word
// documents are not supported and return an error.
func extractDOC(content []byte) (string, error) {
	if bytes.HasPrefix(content, zipMagic) {
		if text, err := extractDOCX(content); err == nil {
			return text, nil
		}
	}
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("extract DOC: %w", err)
	}
	return text, nil
}
