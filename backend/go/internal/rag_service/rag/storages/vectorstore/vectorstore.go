// Package vectorstore opens handles onto a (collection, namespace) pair held
// by Milvus, Chroma or process memory.
package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"pdf_rag/backend/go/internal/config"
	"pdf_rag/backend/go/internal/rag_service/rag/interfaces"
	"pdf_rag/backend/go/internal/rag_service/rag/ragerr"
	"pdf_rag/backend/go/internal/rag_service/rag/schema"
	"pdf_rag/backend/go/pkg/logger"
)

// Supported providers.
const (
	ProviderMilvus = "milvus"
	ProviderChroma = "chroma"
	ProviderMemory = "memory"
)

// Supported metrics.
const (
	MetricCosine = "COSINE"
	MetricL2     = "L2"
	MetricIP     = "IP"
)

type options struct {
	log    *logger.Logger
	memory *MemoryBackend
}

// Option customises Open.
type Option func(*options)

// WithLogger sets the logger used by the handle.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMemoryBackend makes the memory provider use b instead of the process-wide backend.
func WithMemoryBackend(b *MemoryBackend) Option {
	return func(o *options) { o.memory = b }
}

// Open validates cfg and returns a handle onto the configured collection and
// namespace, creating either if it does not exist. Bad configuration is a
// configuration error, an unreachable backend a storage error.
func Open(ctx context.Context, cfg config.VectorStoreConfig, opts ...Option) (interfaces.VectorStore, error) {
	const op = "open vector store"

	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = logger.New("vectorstore")
	}

	if err := cfg.Validate(); err != nil {
		return nil, ragerr.New(ragerr.Configuration, op, err)
	}
	switch strings.ToUpper(cfg.Metric) {
	case MetricCosine, MetricL2, MetricIP:
		cfg.Metric = strings.ToUpper(cfg.Metric)
	default:
		return nil, ragerr.Newf(ragerr.Configuration, op, "unsupported metric %q", cfg.Metric)
	}

	log := o.log.WithField("provider", cfg.Provider).
		WithField("collection", cfg.CollectionName).
		WithField("namespace", cfg.Namespace)

	switch cfg.Provider {
	case ProviderMilvus:
		return openMilvus(ctx, cfg, log)
	case ProviderChroma:
		return openChroma(ctx, cfg, log)
	case ProviderMemory:
		b := o.memory
		if b == nil {
			b = defaultMemory
		}
		s, err := b.open(cfg, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, ragerr.Newf(ragerr.Configuration, op, "unsupported provider %q", cfg.Provider)
	}
}

// checkWrite rejects the whole batch before anything is written if any chunk
// lacks an embedding of the collection's dimension.
func checkWrite(docs []*schema.Document, dim int) error {
	for i, d := range docs {
		if d == nil {
			return ragerr.Newf(ragerr.Validation, "write", "chunk %d is nil", i)
		}
		if len(d.Embedding) != dim {
			return ragerr.Newf(ragerr.Embedding, "write", "chunk %d (%s) has embedding dimension %d, collection expects %d", i, d.ID, len(d.Embedding), dim)
		}
	}
	return nil
}

// checkTextLength rejects chunks whose text is longer than limit bytes.
func checkTextLength(docs []*schema.Document, limit int) error {
	for i, d := range docs {
		if len(d.Text) > limit {
			return ragerr.Newf(ragerr.Validation, "write", "chunk %d (%s) has %d bytes of text, the limit is %d", i, d.ID, len(d.Text), limit)
		}
	}
	return nil
}

func checkQuery(embedding []float32, topK, dim int) error {
	if topK <= 0 {
		return ragerr.Newf(ragerr.Validation, "query", "topK must be positive, got %d", topK)
	}
	if len(embedding) != dim {
		return ragerr.Newf(ragerr.Embedding, "query", "query embedding has dimension %d, collection expects %d", len(embedding), dim)
	}
	return nil
}

// chunkIndex reads the chunk index metadata regardless of its numeric type.
func chunkIndex(d *schema.Document) int64 {
	switch v := d.Metadata[schema.MetadataKeyChunkIndex].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func describe(cfg config.VectorStoreConfig) string {
	return fmt.Sprintf("%s/%s", cfg.CollectionName, cfg.Namespace)
}
