package embeddings

import (
	"context"
	"fmt"

	"pdf_rag/backend/go/internal/embedding"
	"pdf_rag/backend/go/internal/rag_service/rag/interfaces"
	"pdf_rag/backend/go/internal/rag_service/rag/ragerr"
)

// Adapter adapts a provider client to the generic EmbeddingModel interface.
// Every provider failure, a count mismatch, and a vector of the wrong
// dimension are reported as embedding errors.
type Adapter struct {
	client    embedding.Embedding
	dimension int
	batchSize int
}

// NewAdapter creates a new adapter. A dimension of 0 disables the length check.
func NewAdapter(client embedding.Embedding, dimension int) *Adapter {
	return &Adapter{client: client, dimension: dimension}
}

// WithBatchSize splits Embed calls into provider requests of at most n texts.
// By default all texts go in one request.
func (a *Adapter) WithBatchSize(n int) *Adapter {
	if n > 0 {
		a.batchSize = n
	}
	return a
}

// Embed returns one vector per text, in input order.
func (a *Adapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	const op = "embed"
	out := make([][]float32, 0, len(texts))
	size := a.batchSize
	if size <= 0 {
		size = len(texts)
	}

	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}

		vecs, err := a.client.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, ragerr.New(ragerr.Embedding, op, err)
		}
		if len(vecs) != end-start {
			return nil, ragerr.Newf(ragerr.Embedding, op, "provider returned %d vectors for %d texts", len(vecs), end-start)
		}
		for i, v := range vecs {
			if a.dimension > 0 && len(v) != a.dimension {
				return nil, ragerr.New(ragerr.Embedding, op, fmt.Errorf("vector %d has dimension %d, expected %d", start+i, len(v), a.dimension))
			}
		}
		out = append(out, vecs...)
	}

	return out, nil
}

// compile-time check to ensure Adapter implements the EmbeddingModel interface
var _ interfaces.EmbeddingModel = (*Adapter)(nil)
