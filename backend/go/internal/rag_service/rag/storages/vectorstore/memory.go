package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"pdf_rag/backend/go/internal/config"
	"pdf_rag/backend/go/internal/rag_service/rag/interfaces"
	"pdf_rag/backend/go/internal/rag_service/rag/ragerr"
	"pdf_rag/backend/go/internal/rag_service/rag/schema"
	"pdf_rag/backend/go/pkg/logger"
)

var defaultMemory = NewMemoryBackend()

// MemoryBackend is a thread-safe, in-memory set of collections. Handles opened
// on the same backend with the same collection and namespace share data.
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dimension  int
	namespaces map[string][]*schema.Document
}

// NewMemoryBackend creates a new, empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: make(map[string]*memoryCollection)}
}

func (b *MemoryBackend) open(cfg config.VectorStoreConfig, log *logger.Logger) (*MemoryStore, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	coll, ok := b.collections[cfg.CollectionName]
	if !ok {
		coll = &memoryCollection{dimension: cfg.Dimension, namespaces: make(map[string][]*schema.Document)}
		b.collections[cfg.CollectionName] = coll
		log.Debug("created in-memory collection")
	} else if coll.dimension != cfg.Dimension {
		return nil, ragerr.Newf(ragerr.Configuration, "open vector store", "collection %s has dimension %d, configured %d", cfg.CollectionName, coll.dimension, cfg.Dimension)
	}

	return &MemoryStore{backend: b, collection: coll, namespace: cfg.Namespace, metric: cfg.Metric, log: log}, nil
}

// MemoryStore is a handle onto one namespace of a MemoryBackend collection.
// Query is a brute-force scan.
type MemoryStore struct {
	backend    *MemoryBackend
	collection *memoryCollection
	namespace  string
	metric     string
	log        *logger.Logger
}

// Write appends chunks to the namespace. Chunks are copied so later changes by
// the caller are not visible to queries.
func (s *MemoryStore) Write(ctx context.Context, docs []*schema.Document) error {
	if err := checkWrite(docs, s.collection.dimension); err != nil {
		return err
	}

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	for _, d := range docs {
		s.collection.namespaces[s.namespace] = append(s.collection.namespaces[s.namespace], cloneDocument(d))
	}
	return nil
}

// Query returns at most topK chunks ordered by the collection metric, best first.
// Equal scores keep write order.
func (s *MemoryStore) Query(ctx context.Context, embedding []float32, topK int) ([]*schema.Document, error) {
	if err := checkQuery(embedding, topK, s.collection.dimension); err != nil {
		return nil, err
	}

	s.backend.mu.RLock()
	stored := s.collection.namespaces[s.namespace]
	type scored struct {
		doc   *schema.Document
		score float32
	}
	hits := make([]scored, len(stored))
	for i, d := range stored {
		hits[i] = scored{doc: d, score: score(s.metric, d.Embedding, embedding)}
	}
	s.backend.mu.RUnlock()

	lowerIsBetter := s.metric == MetricL2
	sort.SliceStable(hits, func(i, j int) bool {
		if lowerIsBetter {
			return hits[i].score < hits[j].score
		}
		return hits[i].score > hits[j].score
	})

	if topK > len(hits) {
		topK = len(hits)
	}
	results := make([]*schema.Document, 0, topK)
	for _, h := range hits[:topK] {
		doc := cloneDocument(h.doc)
		doc.Metadata[schema.MetadataKeyScore] = h.score
		results = append(results, doc)
	}
	return results, nil
}

// Count returns the number of chunks in the namespace.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	return len(s.collection.namespaces[s.namespace]), nil
}

// Dimension is the embedding dimension of the collection.
func (s *MemoryStore) Dimension() int { return s.collection.dimension }

// Close is a no-op; the data lives as long as the backend.
func (s *MemoryStore) Close() error { return nil }

func score(metric string, a, b []float32) float32 {
	switch metric {
	case MetricL2:
		var sum float64
		for i := range a {
			d := float64(a[i] - b[i])
			sum += d * d
		}
		return float32(sum)
	case MetricIP:
		return float32(dot(a, b))
	default:
		na, nb := math.Sqrt(dot(a, a)), math.Sqrt(dot(b, b))
		if na == 0 || nb == 0 {
			return 0
		}
		return float32(dot(a, b) / (na * nb))
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func cloneDocument(d *schema.Document) *schema.Document {
	md := make(map[string]interface{}, len(d.Metadata)+1)
	for k, v := range d.Metadata {
		md[k] = v
	}
	emb := make([]float32, len(d.Embedding))
	copy(emb, d.Embedding)
	return &schema.Document{ID: d.ID, Text: d.Text, Embedding: emb, Metadata: md}
}

// compile-time check to ensure MemoryStore implements the VectorStore interface
var _ interfaces.VectorStore = (*MemoryStore)(nil)
