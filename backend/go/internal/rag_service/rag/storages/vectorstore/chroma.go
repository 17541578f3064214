package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"pdf_rag/backend/go/internal/config"
	"pdf_rag/backend/go/internal/rag_service/rag/interfaces"
	"pdf_rag/backend/go/internal/rag_service/rag/ragerr"
	"pdf_rag/backend/go/internal/rag_service/rag/schema"
	"pdf_rag/backend/go/pkg/logger"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
)

var invalidChromaChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// ChromaCollectionName folds the namespace into the collection name. Chroma
// has no partitions, so each namespace is its own collection.
func ChromaCollectionName(collection, namespace string) string {
	name := invalidChromaChars.ReplaceAllString(collection+"_"+namespace, "_")
	name = strings.Trim(name, "._-")
	if len(name) > 63 {
		name = strings.TrimRight(name[:63], "._-")
	}
	for len(name) < 3 {
		name += "0"
	}
	return name
}

// chromaSpace maps a metric onto the hnsw:space collection setting.
func chromaSpace(metric string) string {
	switch metric {
	case MetricL2:
		return "l2"
	case MetricIP:
		return "ip"
	default:
		return "cosine"
	}
}

var errPrecomputed = errors.New("chunks are embedded before they reach the vector store")

// precomputedEmbeddings stands in for the collection embedding function.
// Write and Query always pass vectors, so it is never called.
type precomputedEmbeddings struct{}

func (precomputedEmbeddings) EmbedDocuments(context.Context, []string) ([]embeddings.Embedding, error) {
	return nil, errPrecomputed
}

func (precomputedEmbeddings) EmbedQuery(context.Context, string) (embeddings.Embedding, error) {
	return nil, errPrecomputed
}

// ChromaStore is a handle onto one Chroma collection.
type ChromaStore struct {
	log        *logger.Logger
	client     chromago.Client
	collection chromago.Collection
	dimension  int
	metric     string
}

func openChroma(ctx context.Context, cfg config.VectorStoreConfig, log *logger.Logger) (interfaces.VectorStore, error) {
	const op = "open vector store"

	var opts []chromago.ClientOption
	if cfg.Chroma.URL != "" {
		opts = append(opts, chromago.WithBaseURL(cfg.Chroma.URL))
	}
	c, err := chromago.NewHTTPClient(opts...)
	if err != nil {
		return nil, ragerr.New(ragerr.Configuration, op, fmt.Errorf("failed to create chroma client: %w", err))
	}

	name := ChromaCollectionName(cfg.CollectionName, cfg.Namespace)
	collection, err := c.GetOrCreateCollection(ctx, name,
		chromago.WithEmbeddingFunctionCreate(precomputedEmbeddings{}),
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("hnsw:space", chromaSpace(cfg.Metric)),
				chromago.NewStringAttribute("collection", cfg.CollectionName),
				chromago.NewStringAttribute("namespace", cfg.Namespace),
				chromago.NewIntAttribute("dimension", int64(cfg.Dimension)),
			),
		),
	)
	if err != nil {
		_ = c.Close()
		return nil, ragerr.New(ragerr.Storage, op, fmt.Errorf("failed to get or create chroma collection %s: %w", name, err))
	}

	log.Info(fmt.Sprintf("opened chroma collection %s", name))
	return &ChromaStore{log: log, client: c, collection: collection, dimension: cfg.Dimension, metric: cfg.Metric}, nil
}

// Write adds chunks to the collection.
func (s *ChromaStore) Write(ctx context.Context, docs []*schema.Document) error {
	if err := checkWrite(docs, s.dimension); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	ids := make([]chromago.DocumentID, len(docs))
	texts := make([]string, len(docs))
	embs := make([]embeddings.Embedding, len(docs))
	metas := make([]chromago.DocumentMetadata, len(docs))
	for i, d := range docs {
		ids[i] = chromago.DocumentID(d.ID)
		texts[i] = d.Text
		embs[i] = embeddings.NewEmbeddingFromFloat32(d.Embedding)
		metas[i] = chromago.NewDocumentMetadata(
			chromago.NewStringAttribute(schema.MetadataKeySource, d.MetaString(schema.MetadataKeySource)),
			chromago.NewStringAttribute(schema.MetadataKeyFileName, d.MetaString(schema.MetadataKeyFileName)),
			chromago.NewStringAttribute(schema.MetadataKeySourceID, d.MetaString(schema.MetadataKeySourceID)),
			chromago.NewIntAttribute(schema.MetadataKeyChunkIndex, chunkIndex(d)),
		)
	}

	err := s.collection.Add(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(embs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		return ragerr.New(ragerr.Storage, "write", fmt.Errorf("failed to add chunks to chromadb: %w", err))
	}
	return nil
}

// Query returns the nearest chunks. The score is 1 - distance for the cosine
// space and the raw distance otherwise.
func (s *ChromaStore) Query(ctx context.Context, embedding []float32, topK int) ([]*schema.Document, error) {
	const op = "query"
	if err := checkQuery(embedding, topK, s.dimension); err != nil {
		return nil, err
	}

	results, err := s.collection.Query(ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(embedding)),
		chromago.WithNResults(topK),
	)
	if err != nil {
		return nil, ragerr.New(ragerr.Retrieval, op, fmt.Errorf("failed to query chromadb: %w", err))
	}

	idGroups := results.GetIDGroups()
	docGroups := results.GetDocumentsGroups()
	metaGroups := results.GetMetadatasGroups()
	distGroups := results.GetDistancesGroups()
	if len(idGroups) == 0 {
		return nil, nil
	}

	var out []*schema.Document
	for i, id := range idGroups[0] {
		doc := &schema.Document{ID: string(id), Metadata: map[string]interface{}{}}
		if len(docGroups) > 0 && i < len(docGroups[0]) && docGroups[0][i] != nil {
			doc.Text = docGroups[0][i].ContentString()
		}
		if len(metaGroups) > 0 && i < len(metaGroups[0]) && metaGroups[0][i] != nil {
			if err := decodeChromaMetadata(metaGroups[0][i], doc.Metadata); err != nil {
				s.log.Warn(fmt.Sprintf("could not decode metadata for %s: %v", id, err))
			}
		}
		if len(distGroups) > 0 && i < len(distGroups[0]) {
			d := float32(distGroups[0][i])
			if s.metric == MetricCosine {
				d = 1 - d
			}
			doc.Metadata[schema.MetadataKeyScore] = d
		}
		out = append(out, doc)
	}
	return out, nil
}

// decodeChromaMetadata copies document metadata into dst through its JSON form.
func decodeChromaMetadata(md chromago.DocumentMetadata, dst map[string]interface{}) error {
	raw, err := json.Marshal(md)
	if err != nil {
		return err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	for k, v := range m {
		if k == schema.MetadataKeyChunkIndex {
			if f, ok := v.(float64); ok {
				v = int(f)
			}
		}
		dst[k] = v
	}
	return nil
}

// Count returns the number of chunks in the collection.
func (s *ChromaStore) Count(ctx context.Context) (int, error) {
	n, err := s.collection.Count(ctx)
	if err != nil {
		return 0, ragerr.New(ragerr.Storage, "count", err)
	}
	return n, nil
}

// Dimension is the embedding dimension of the collection.
func (s *ChromaStore) Dimension() int { return s.dimension }

// HealthCheck calls the Chroma heartbeat endpoint.
func (s *ChromaStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Heartbeat(ctx); err != nil {
		return ragerr.New(ragerr.Storage, "vector store health", fmt.Errorf("chroma heartbeat failed: %w", err))
	}
	return nil
}

// Close releases the HTTP client.
func (s *ChromaStore) Close() error { return s.client.Close() }

// compile-time check to ensure ChromaStore implements the VectorStore interface
var _ interfaces.VectorStore = (*ChromaStore)(nil)
var _ interfaces.HealthChecker = (*ChromaStore)(nil)
