// internal/document/pdf.go
package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// Extraction is the result of pulling text out of a PDF. Text-based PDFs
// only: scanned or handwritten documents yield ErrNoText.
type Extraction struct {
	Text      string
	PageCount int
	Filename  string
}

// ErrNoText is returned when a PDF contains no extractable text, which
// usually means it is scanned or image-based.
var ErrNoText = fmt.Errorf("no extractable text found")

// Extractor extracts text from PDF documents.
type Extractor struct{}

// NewExtractor returns a PDF text extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract pulls text from all pages of a PDF, tagging each page so chunk
// provenance survives chunking.
func (e *Extractor) Extract(data []byte, filename string) (*Extraction, error) {
	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("failed to read page count: %w", err)
	}

	var parts []string
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i, err)
		}

		ex, err := extractor.New(page)
		if err != nil {
			return nil, fmt.Errorf("failed to create extractor for page %d: %w", i, err)
		}

		text, err := ex.ExtractText()
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}

		if strings.TrimSpace(text) != "" {
			parts = append(parts, fmt.Sprintf("[Page %d]\n%s", i, strings.TrimSpace(text)))
		}
	}

	full := strings.Join(parts, "\n\n")
	if strings.TrimSpace(full) == "" {
		return nil, fmt.Errorf("%w: document may be scanned or image-based", ErrNoText)
	}

	return &Extraction{
		Text:      full,
		PageCount: len(parts),
		Filename:  filename,
	}, nil
}
