package loaders

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pdf_rag/backend/go/internal/rag_service/rag/loaders/pdftest"
	"pdf_rag/backend/go/internal/rag_service/rag/ragerr"
	"pdf_rag/backend/go/internal/rag_service/rag/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, body []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, body, 0o644))
	return path
}

func TestPdfLoader_Load(t *testing.T) {
	path := writeFile(t, "paper.pdf", pdftest.Build("First page. Has two sentences.", "Second page."))

	docs, err := NewPdfLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	pages := strings.Split(doc.Text, PageSeparator)
	require.Len(t, pages, 2)
	assert.Contains(t, pages[0], "First page. Has two sentences.")
	assert.Contains(t, pages[1], "Second page.")
	assert.Equal(t, "paper.pdf", doc.MetaString(schema.MetadataKeyFileName))
	assert.Equal(t, path, doc.MetaString(schema.MetadataKeySource))
	assert.Equal(t, 2, doc.Metadata[schema.MetadataKeyPageCount])
	assert.NotEmpty(t, doc.ID)
}

func TestPdfLoader_NotAPDF(t *testing.T) {
	path := writeFile(t, "notes.pdf", []byte("just some plain text, not a pdf"))

	_, err := NewPdfLoader().Load(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ragerr.Conversion)
}

func TestPdfLoader_TruncatedPDF(t *testing.T) {
	body := pdftest.Build("Some text.")
	path := writeFile(t, "broken.pdf", body[:len(body)/2])

	_, err := NewPdfLoader().Load(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ragerr.Conversion)
}

func TestPdfLoader_MissingFile(t *testing.T) {
	_, err := NewPdfLoader().Load(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ragerr.Conversion)
}
