package loaders

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"pdf_rag/backend/go/internal/rag_service/rag/interfaces"
	"pdf_rag/backend/go/internal/rag_service/rag/ragerr"
	"pdf_rag/backend/go/internal/rag_service/rag/schema"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

// PageSeparator joins the text of consecutive pages.
const PageSeparator = "\f"

// PdfLoader implements the Loader interface for reading PDF files.
type PdfLoader struct{}

// NewPdfLoader creates a new PdfLoader.
func NewPdfLoader() *PdfLoader {
	return &PdfLoader{}
}

// Load reads a PDF file and returns a single Document holding the plain text
// of every page. Anything that is not a readable PDF is a conversion error.
func (l *PdfLoader) Load(ctx context.Context, path string) (docs []*schema.Document, err error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, ragerr.New(ragerr.Conversion, "load pdf", err)
	}
	if !mtype.Is("application/pdf") {
		return nil, ragerr.Newf(ragerr.Conversion, "load pdf", "%s is %s, not a PDF", filepath.Base(path), mtype.String())
	}

	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = ragerr.Newf(ragerr.Conversion, "load pdf", "malformed pdf %s: %v", filepath.Base(path), r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, ragerr.New(ragerr.Conversion, "load pdf", err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, ragerr.New(ragerr.Conversion, "load pdf", fmt.Errorf("page %d: %w", i, err))
		}
		pages = append(pages, text)
	}

	doc := &schema.Document{
		ID:   uuid.New().String(),
		Text: strings.Join(pages, PageSeparator),
		Metadata: map[string]interface{}{
			schema.MetadataKeyFileName:  filepath.Base(path),
			schema.MetadataKeySource:    path,
			schema.MetadataKeyPageCount: numPages,
		},
	}
	return []*schema.Document{doc}, nil
}

// compile-time check to ensure PdfLoader implements the Loader interface
var _ interfaces.Loader = (*PdfLoader)(nil)
