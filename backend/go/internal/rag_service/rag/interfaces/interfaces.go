package interfaces

import (
	"context"

	"pdf_rag/backend/go/internal/rag_service/rag/schema"
)

// Loader converts a local file into structured text documents.
type Loader interface {
	Load(ctx context.Context, path string) ([]*schema.Document, error)
}

// Splitter is the interface for splitting a list of Documents into smaller chunks.
type Splitter interface {
	Split(ctx context.Context, docs []*schema.Document) ([]*schema.Document, error)
}

// VectorStore is a handle bound to one (collection, namespace) pair.
type VectorStore interface {
	// Write persists chunks. Every chunk must carry an embedding of Dimension() length.
	Write(ctx context.Context, docs []*schema.Document) error
	// Query returns at most topK chunks nearest to embedding, best first.
	Query(ctx context.Context, embedding []float32, topK int) ([]*schema.Document, error)
	// Count returns the number of chunks stored in the namespace.
	Count(ctx context.Context) (int, error)
	// Dimension is the embedding dimension of the collection.
	Dimension() int
	Close() error
}

// HealthChecker is implemented by backends that can verify their connection
// without reading or writing data.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingModel is the interface for a text embedding model.
type EmbeddingModel interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// LLM is the interface for a large language model that can generate text.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ObjectStore uploads documents to durable blob storage and brings them back
// to local scratch space.
type ObjectStore interface {
	Store(ctx context.Context, content []byte, originalName string) (reference string, err error)
	Fetch(ctx context.Context, reference string) (localPath string, err error)
}
