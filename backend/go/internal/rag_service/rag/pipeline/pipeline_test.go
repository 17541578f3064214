package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"pdf_rag/backend/go/internal/config"
	"pdf_rag/backend/go/internal/rag_service/rag/interfaces"
	"pdf_rag/backend/go/internal/rag_service/rag/loaders"
	"pdf_rag/backend/go/internal/rag_service/rag/loaders/pdftest"
	"pdf_rag/backend/go/internal/rag_service/rag/ragerr"
	"pdf_rag/backend/go/internal/rag_service/rag/schema"
	"pdf_rag/backend/go/internal/rag_service/rag/splitters"
	"pdf_rag/backend/go/internal/rag_service/rag/storages/vectorstore"
	"pdf_rag/backend/go/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder maps each text to a fixed-size vector derived from its bytes.
type fakeEmbedder struct {
	dim   int
	err   error
	mu    sync.Mutex
	calls [][]string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, texts)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, f.dim)
		v[0] = 1
		for j, b := range []byte(t) {
			v[j%f.dim] += float32(b) / 255
		}
		out[i] = v
	}
	return out, nil
}

type fakeLLM struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeLLM) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func openStore(t *testing.T, dim int) interfaces.VectorStore {
	t.Helper()
	cfg := config.VectorStoreConfig{
		Provider:       vectorstore.ProviderMemory,
		CollectionName: "haystack",
		Namespace:      "default",
		Dimension:      dim,
		TopK:           10,
		Metric:         vectorstore.MetricCosine,
	}
	s, err := vectorstore.Open(context.Background(), cfg,
		vectorstore.WithMemoryBackend(vectorstore.NewMemoryBackend()),
		vectorstore.WithLogger(logger.Discard()))
	require.NoError(t, err)
	return s
}

func writePDF(t *testing.T, pages ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(path, pdftest.Build(pages...), 0o644))
	return path
}

func newIndexing(emb interfaces.EmbeddingModel) *IndexingPipeline {
	return NewIndexingPipeline(loaders.NewPdfLoader(), splitters.NewSentenceSplitter(2), emb, logger.Discard())
}

func TestIndexingPipeline_Run(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, 4)
	emb := &fakeEmbedder{dim: 4}
	path := writePDF(t, "Cats sleep a lot. Dogs bark. Birds sing.", "Fish swim. Frogs jump.")

	res, err := newIndexing(emb).Run(ctx, store, path, WithSource("https://bucket.example/uploads/x.pdf"))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, "paper.pdf", res.FileName)
	assert.Equal(t, "https://bucket.example/uploads/x.pdf", res.Source)
	assert.NotEmpty(t, res.SourceID)
	require.Len(t, emb.calls, 1, "all chunks are embedded in one call")
	assert.Len(t, emb.calls[0], 3)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestIndexingPipeline_RunTwiceAppends(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, 4)
	path := writePDF(t, "One. Two. Three. Four.")
	p := newIndexing(&fakeEmbedder{dim: 4})

	_, err := p.Run(ctx, store, path)
	require.NoError(t, err)
	_, err = p.Run(ctx, store, path)
	require.NoError(t, err)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestIndexingPipeline_DimensionMismatchWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, 4)
	path := writePDF(t, "This is fine. So is this.")

	_, err := newIndexing(&fakeEmbedder{dim: 3}).Run(ctx, store, path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ragerr.Embedding)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIndexingPipeline_StageErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("not a pdf", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "notes.pdf")
		require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))
		emb := &fakeEmbedder{dim: 4}

		_, err := newIndexing(emb).Run(ctx, openStore(t, 4), path)
		assert.ErrorIs(t, err, ragerr.Conversion)
		assert.Empty(t, emb.calls, "embedding is not reached")
	})

	t.Run("embedder fails", func(t *testing.T) {
		boom := errors.New("model unavailable")
		store := openStore(t, 4)

		_, err := newIndexing(&fakeEmbedder{dim: 4, err: boom}).Run(ctx, store, writePDF(t, "A sentence."))
		assert.ErrorIs(t, err, ragerr.Embedding)
		assert.ErrorIs(t, err, boom)

		n, _ := store.Count(ctx)
		assert.Zero(t, n)
	})

	t.Run("no text", func(t *testing.T) {
		_, err := newIndexing(&fakeEmbedder{dim: 4}).Run(ctx, openStore(t, 4), writePDF(t, "   "))
		assert.ErrorIs(t, err, ragerr.Conversion)
	})
}

func TestQueryPipeline_Answer(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, 4)
	emb := &fakeEmbedder{dim: 4}
	_, err := newIndexing(emb).Run(ctx, store, writePDF(t, "Paris is the capital of France. It is large. Rome is in Italy."))
	require.NoError(t, err)

	llm := &fakeLLM{reply: "  Paris.  "}
	q := NewQueryPipeline(
		NewRetrievalPipeline(emb, store, 10, logger.Discard()),
		NewQAPipeline(llm, logger.Discard()),
	)

	ans, err := q.Answer(ctx, "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", ans.Text)
	assert.False(t, ans.NoAnswer())
	assert.Len(t, ans.Sources, 2)

	require.Len(t, llm.prompts, 1)
	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "Query: What is the capital of France?")
	assert.Contains(t, prompt, "Paris is the capital of France.")
	assert.Contains(t, prompt, "Rome is in Italy.")
	assert.True(t, strings.HasSuffix(prompt, "Answer:"))
}

func TestQueryPipeline_EmptyCollectionSkipsModel(t *testing.T) {
	llm := &fakeLLM{reply: "should not be used"}
	emb := &fakeEmbedder{dim: 4}
	q := NewQueryPipeline(
		NewRetrievalPipeline(emb, openStore(t, 4), 10, logger.Discard()),
		NewQAPipeline(llm, logger.Discard()),
	)

	ans, err := q.Answer(context.Background(), "anything?")
	require.NoError(t, err)
	assert.Equal(t, NoAnswer, ans.Text)
	assert.True(t, ans.NoAnswer())
	assert.Empty(t, llm.prompts)
}

func TestQueryPipeline_Errors(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, 4)
	emb := &fakeEmbedder{dim: 4}
	_, err := newIndexing(emb).Run(ctx, store, writePDF(t, "Some indexed text."))
	require.NoError(t, err)

	q := NewQueryPipeline(NewRetrievalPipeline(emb, store, 0, logger.Discard()), NewQAPipeline(&fakeLLM{}, logger.Discard()))
	_, err = q.Answer(ctx, "   ")
	assert.ErrorIs(t, err, ragerr.Validation)

	_, err = q.Answer(ctx, "question")
	assert.ErrorIs(t, err, ragerr.Generation, "empty model reply")

	boom := errors.New("rate limited")
	q = NewQueryPipeline(NewRetrievalPipeline(emb, store, 0, logger.Discard()), NewQAPipeline(&fakeLLM{err: boom}, logger.Discard()))
	_, err = q.Answer(ctx, "question")
	assert.ErrorIs(t, err, ragerr.Generation)
	assert.ErrorIs(t, err, boom)

	q = NewQueryPipeline(NewRetrievalPipeline(&fakeEmbedder{dim: 4, err: boom}, store, 0, logger.Discard()), NewQAPipeline(&fakeLLM{}, logger.Discard()))
	_, err = q.Answer(ctx, "question")
	assert.ErrorIs(t, err, ragerr.Embedding)

	q = NewQueryPipeline(NewRetrievalPipeline(&fakeEmbedder{dim: 3}, store, 0, logger.Discard()), NewQAPipeline(&fakeLLM{}, logger.Discard()))
	_, err = q.Answer(ctx, "question")
	assert.ErrorIs(t, err, ragerr.Embedding, "query vector of the wrong dimension")
}

func TestRetrievalPipeline_DefaultTopK(t *testing.T) {
	assert.Equal(t, DefaultTopK, NewRetrievalPipeline(&fakeEmbedder{dim: 4}, nil, -1, nil).TopK())
	assert.Equal(t, 3, NewRetrievalPipeline(&fakeEmbedder{dim: 4}, nil, 3, nil).TopK())
}

func TestBuildPrompt(t *testing.T) {
	docs := []*schema.Document{{Text: " first chunk "}, {Text: "second chunk"}}

	got := BuildPrompt("why?", docs)

	want := "Answer the following query based on the provided context. If the context does\n" +
		"not include an answer, reply with 'I don't know'.\n\n" +
		"Query: why?\n" +
		"Documents:\n" +
		"first chunk\n" +
		"second chunk\n" +
		"Answer:"
	assert.Equal(t, want, got)
}

func TestIsNoAnswer(t *testing.T) {
	assert.True(t, IsNoAnswer("I don't know"))
	assert.True(t, IsNoAnswer("i DON'T know."))
	assert.False(t, IsNoAnswer("Paris"))
}
