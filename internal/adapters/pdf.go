package adapters

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"cloud-indexer/internal/doctypes"
)

// PDFAdapter extracts plain text from PDF documents. Other binary document
// formats (doc, odt, ...) are declared but not parsed yet; they come back as
// extraction errors and get recorded as skipped for the pass.
type PDFAdapter struct{}

// NewPDFAdapter creates a PDFAdapter.
func NewPDFAdapter() *PDFAdapter { return &PDFAdapter{} }

// Name implements ContentAdapter.
func (p *PDFAdapter) Name() string { return "pdf" }

// Supports implements ContentAdapter.
func (p *PDFAdapter) Supports(dt doctypes.DocType) bool {
	return dt == doctypes.DocTypeDocument
}

// Extract pulls the text layer out of a PDF.
func (p *PDFAdapter) Extract(ctx context.Context, path string) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}

	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return Extraction{}, fmt.Errorf("unsupported document format: %s", path)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return Extraction{}, fmt.Errorf("opening PDF %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	totalPages := r.NumPage()

	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return Extraction{}, err
		}

		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single mangled page should not lose the rest of the document.
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return Extraction{Text: sb.String()}, nil
}
