package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
	"github.com/kirillkom/claim-verifier/internal/core/ports"
	"github.com/kirillkom/claim-verifier/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/claim-verifier/internal/infrastructure/extractor/plaintext"
)

// Composite routes extraction by document type: PDFs go through the PDF
// parser, everything else is treated as plain text.
type Composite struct {
	plain ports.TextExtractor
	pdf   ports.TextExtractor
}

func NewComposite(storage ports.ObjectStorage) *Composite {
	return &Composite{
		plain: plaintext.NewExtractor(storage),
		pdf:   pdf.NewExtractor(storage),
	}
}

func (c *Composite) Extract(ctx context.Context, doc *domain.EvidenceDocument) (string, error) {
	if isPDF(doc) {
		return c.pdf.Extract(ctx, doc)
	}
	return c.plain.Extract(ctx, doc)
}

func isPDF(doc *domain.EvidenceDocument) bool {
	if strings.EqualFold(doc.MimeType, "application/pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(doc.Filename), ".pdf")
}
