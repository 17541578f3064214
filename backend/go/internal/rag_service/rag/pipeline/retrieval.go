package pipeline

import (
	"context"
	"fmt"

	"pdf_rag/backend/go/internal/rag_service/rag/interfaces"
	"pdf_rag/backend/go/internal/rag_service/rag/ragerr"
	"pdf_rag/backend/go/internal/rag_service/rag/schema"
	"pdf_rag/backend/go/pkg/logger"
)

// DefaultTopK is used when a non-positive topK is configured.
const DefaultTopK = 10

// RetrievalPipeline orchestrates the process of retrieving relevant documents for a given query.
type RetrievalPipeline struct {
	embedder    interfaces.EmbeddingModel
	vectorStore interfaces.VectorStore
	topK        int
	log         *logger.Logger
}

// NewRetrievalPipeline creates a new RetrievalPipeline.
func NewRetrievalPipeline(
	embedder interfaces.EmbeddingModel,
	vectorStore interfaces.VectorStore,
	topK int,
	log *logger.Logger,
) *RetrievalPipeline {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if log == nil {
		log = logger.New("retrieval")
	}
	return &RetrievalPipeline{
		embedder:    embedder,
		vectorStore: vectorStore,
		topK:        topK,
		log:         log,
	}
}

// TopK is the number of chunks requested per query.
func (p *RetrievalPipeline) TopK() int { return p.topK }

// Run embeds the query with the ingestion model and returns the nearest chunks, best first.
func (p *RetrievalPipeline) Run(ctx context.Context, query string) ([]*schema.Document, error) {
	p.log.Info(fmt.Sprintf("Starting retrieval for query: '%s'", query))

	// 1. Embed the query
	queryEmbeddings, err := p.embedder.Embed(ctx, []string{query})
	if err != nil {
		p.log.Error(fmt.Sprintf("Failed to embed query: %v", err))
		return nil, ragerr.New(ragerr.Embedding, "embed query", err)
	}
	if len(queryEmbeddings) != 1 {
		return nil, ragerr.Newf(ragerr.Embedding, "embed query", "got %d embeddings for one query", len(queryEmbeddings))
	}

	// 2. Query the VectorStore
	retrievedDocs, err := p.vectorStore.Query(ctx, queryEmbeddings[0], p.topK)
	if err != nil {
		p.log.Error(fmt.Sprintf("Failed to query vector store: %v", err))
		return nil, ragerr.New(ragerr.Retrieval, "retrieve", err)
	}
	if len(retrievedDocs) == 0 {
		p.log.Info("No documents found in vector store for the given query.")
		return []*schema.Document{}, nil
	}

	p.log.Info(fmt.Sprintf("Retrieved %d documents", len(retrievedDocs)))
	return retrievedDocs, nil
}
