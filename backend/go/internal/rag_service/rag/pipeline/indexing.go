package pipeline

import (
	"context"
	"fmt"

	"pdf_rag/backend/go/internal/rag_service/rag/interfaces"
	"pdf_rag/backend/go/internal/rag_service/rag/ragerr"
	"pdf_rag/backend/go/internal/rag_service/rag/schema"
	"pdf_rag/backend/go/pkg/logger"
)

// IndexResult summarises one successful ingestion run.
type IndexResult struct {
	SourceID string
	FileName string
	Source   string
	Chunks   int
}

// IndexingPipeline orchestrates the process of loading, splitting, embedding, and storing documents.
// Stages run strictly in order and the first failure aborts the run.
type IndexingPipeline struct {
	loader   interfaces.Loader
	splitter interfaces.Splitter
	embedder interfaces.EmbeddingModel
	log      *logger.Logger
}

// NewIndexingPipeline creates a new IndexingPipeline.
func NewIndexingPipeline(
	loader interfaces.Loader,
	splitter interfaces.Splitter,
	embedder interfaces.EmbeddingModel,
	log *logger.Logger,
) *IndexingPipeline {
	if log == nil {
		log = logger.New("indexing")
	}
	return &IndexingPipeline{
		loader:   loader,
		splitter: splitter,
		embedder: embedder,
		log:      log,
	}
}

type runOptions struct {
	source string
}

// RunOption customises a single Run.
type RunOption func(*runOptions)

// WithSource records reference as the source of every chunk instead of the local path.
func WithSource(reference string) RunOption {
	return func(o *runOptions) { o.source = reference }
}

// Run converts the file at path, splits it into sentence groups, embeds every
// group and writes the chunks to store. Re-running on the same file appends
// a second copy of its chunks.
func (p *IndexingPipeline) Run(ctx context.Context, store interfaces.VectorStore, path string, opts ...RunOption) (*IndexResult, error) {
	var o runOptions
	for _, fn := range opts {
		fn(&o)
	}
	log := p.log.WithField("path", path)
	log.Info(fmt.Sprintf("Starting indexing for path: %s", path))

	// 1. Convert
	docs, err := p.loader.Load(ctx, path)
	if err != nil {
		log.Error(fmt.Sprintf("Failed to load data: %v", err))
		return nil, ragerr.New(ragerr.Conversion, "convert", err)
	}
	if len(docs) == 0 {
		return nil, ragerr.Newf(ragerr.Conversion, "convert", "no document produced from %s", path)
	}
	if o.source != "" {
		for _, d := range docs {
			if d.Metadata == nil {
				d.Metadata = make(map[string]interface{})
			}
			d.Metadata[schema.MetadataKeySource] = o.source
		}
	}
	log.Info(fmt.Sprintf("Loaded %d documents", len(docs)))

	// 2. Split
	chunks, err := p.splitter.Split(ctx, docs)
	if err != nil {
		log.Error(fmt.Sprintf("Failed to split documents: %v", err))
		return nil, ragerr.New(ragerr.Conversion, "split", err)
	}
	if len(chunks) == 0 {
		return nil, ragerr.Newf(ragerr.Conversion, "split", "no text could be extracted from %s", path)
	}
	log.Info(fmt.Sprintf("Split into %d chunks", len(chunks)))

	// 3. Embed
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		log.Error(fmt.Sprintf("Failed to embed chunks: %v", err))
		return nil, ragerr.New(ragerr.Embedding, "embed", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, ragerr.Newf(ragerr.Embedding, "embed", "got %d embeddings for %d chunks", len(embeddings), len(chunks))
	}
	for i, chunk := range chunks {
		chunk.Embedding = embeddings[i]
	}
	log.Info("Successfully embedded all chunks")

	// 4. Write
	if err := store.Write(ctx, chunks); err != nil {
		log.Error(fmt.Sprintf("Failed to write chunks to vector store: %v", err))
		return nil, ragerr.New(ragerr.Storage, "write", err)
	}

	res := &IndexResult{
		SourceID: docs[0].ID,
		FileName: docs[0].MetaString(schema.MetadataKeyFileName),
		Source:   docs[0].MetaString(schema.MetadataKeySource),
		Chunks:   len(chunks),
	}
	log.Info(fmt.Sprintf("Successfully finished indexing %d chunks for: %s", res.Chunks, path))
	return res, nil
}
