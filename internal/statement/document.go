package statement

import (
	"os"
	"strings"

	"tpv-reconciliation-service/pkg/errors"
)

// LoadDocument reads a pre-extracted settlement text file into a Document.
// Pages are separated by form-feed characters; lines are trimmed and empty
// lines dropped, matching what the parser expects from the extraction step.
// A file that cannot be opened is the fatal input-unavailable class and is
// propagated unchanged.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.InputError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.InputError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.InputError(errors.CodeFileUnreadable, path, err)
	}

	return NewDocumentFromText(string(data)), nil
}

// NewDocumentFromText builds a Document from raw extracted text, splitting
// pages on form-feed and normalizing lines. Useful when the caller already
// holds the extracted text in memory.
func NewDocumentFromText(text string) *Document {
	doc := &Document{}
	for _, rawPage := range strings.Split(text, "\f") {
		var page []string
		for _, rawLine := range strings.Split(rawPage, "\n") {
			line := strings.TrimSpace(rawLine)
			if line == "" {
				continue
			}
			page = append(page, line)
		}
		if len(page) > 0 {
			doc.Pages = append(doc.Pages, page)
		}
	}
	return doc
}
