package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"pdf_rag/backend/go/internal/config"
	"pdf_rag/backend/go/internal/database/milvus"
	"pdf_rag/backend/go/internal/rag_service/rag/interfaces"
	"pdf_rag/backend/go/internal/rag_service/rag/ragerr"
	"pdf_rag/backend/go/internal/rag_service/rag/schema"
	"pdf_rag/backend/go/pkg/logger"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// MilvusStore is a handle onto one partition of a Milvus collection.
// The namespace is the partition name.
type MilvusStore struct {
	log       *logger.Logger
	db        *milvus.MilvusClient
	partition string
	search    entity.SearchParam
}

func openMilvus(ctx context.Context, cfg config.VectorStoreConfig, log *logger.Logger) (interfaces.VectorStore, error) {
	const op = "open vector store"

	sp, err := milvus.SearchParam(cfg.Milvus.IndexType)
	if err != nil {
		return nil, ragerr.New(ragerr.Configuration, op, err)
	}
	if _, err := milvus.BuildIndex(cfg.Milvus.IndexType, entity.MetricType(cfg.Metric)); err != nil {
		return nil, ragerr.New(ragerr.Configuration, op, err)
	}

	db, err := milvus.Connect(ctx, cfg, log)
	if err != nil {
		return nil, ragerr.New(ragerr.Storage, op, err)
	}

	if err := db.EnsureCollection(ctx); err != nil {
		db.Close()
		var dm *milvus.DimensionMismatchError
		if errors.As(err, &dm) {
			return nil, ragerr.New(ragerr.Configuration, op, err)
		}
		return nil, ragerr.New(ragerr.Storage, op, err)
	}

	partition, err := db.EnsurePartition(ctx, cfg.Namespace)
	if err != nil {
		db.Close()
		return nil, ragerr.New(ragerr.Storage, op, err)
	}

	log.Info(fmt.Sprintf("opened milvus collection %s partition %s", db.Collection, partition))
	return &MilvusStore{log: log, db: db, partition: partition, search: sp}, nil
}

// Write inserts chunks into the partition and flushes so they are
// immediately visible to Query and Count.
func (s *MilvusStore) Write(ctx context.Context, docs []*schema.Document) error {
	const op = "write"
	if err := checkWrite(docs, s.db.Dimension); err != nil {
		return err
	}
	if err := checkTextLength(docs, milvus.MaxTextLength); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	n := len(docs)
	var (
		ids        = make([]string, n)
		texts      = make([]string, n)
		sources    = make([]string, n)
		fileNames  = make([]string, n)
		sourceIDs  = make([]string, n)
		indexes    = make([]int64, n)
		embeddings = make([][]float32, n)
	)
	for i, doc := range docs {
		ids[i] = doc.ID
		texts[i] = doc.Text
		sources[i] = doc.MetaString(schema.MetadataKeySource)
		fileNames[i] = doc.MetaString(schema.MetadataKeyFileName)
		sourceIDs[i] = doc.MetaString(schema.MetadataKeySourceID)
		indexes[i] = chunkIndex(doc)
		embeddings[i] = doc.Embedding
	}

	columns := []entity.Column{
		entity.NewColumnVarChar(milvus.FieldID, ids),
		entity.NewColumnVarChar(milvus.FieldText, texts),
		entity.NewColumnVarChar(milvus.FieldSource, sources),
		entity.NewColumnVarChar(milvus.FieldFileName, fileNames),
		entity.NewColumnVarChar(milvus.FieldSourceID, sourceIDs),
		entity.NewColumnInt64(milvus.FieldChunkIndex, indexes),
		entity.NewColumnFloatVector(milvus.FieldEmbedding, s.db.Dimension, embeddings),
	}

	s.log.Info(fmt.Sprintf("Inserting %d chunks into Milvus collection %s", n, s.db.Collection))
	if _, err := s.db.Client.Insert(ctx, s.db.Collection, s.partition, columns...); err != nil {
		s.log.Error(fmt.Sprintf("Failed to insert data into Milvus: %v", err))
		return ragerr.New(ragerr.Storage, op, fmt.Errorf("failed to insert data into Milvus: %w", err))
	}
	if err := s.db.Flush(ctx); err != nil {
		return ragerr.New(ragerr.Storage, op, err)
	}
	return nil
}

// Query performs a vector search in the partition.
func (s *MilvusStore) Query(ctx context.Context, embedding []float32, topK int) ([]*schema.Document, error) {
	const op = "query"
	if err := checkQuery(embedding, topK, s.db.Dimension); err != nil {
		return nil, err
	}

	searchResults, err := s.db.Client.Search(
		ctx, s.db.Collection, []string{s.partition}, "", milvus.OutputFields,
		[]entity.Vector{entity.FloatVector(embedding)},
		milvus.FieldEmbedding, s.db.Metric, topK, s.search,
		client.WithSearchQueryConsistencyLevel(entity.ClStrong),
	)
	if err != nil {
		s.log.Error(fmt.Sprintf("Failed to search in Milvus: %v", err))
		return nil, ragerr.New(ragerr.Retrieval, op, fmt.Errorf("failed to search in Milvus: %w", err))
	}

	var results []*schema.Document
	for _, res := range searchResults {
		if res.Err != nil {
			return nil, ragerr.New(ragerr.Retrieval, op, res.Err)
		}
		for i := 0; i < res.ResultCount; i++ {
			doc, err := milvusDocument(res, i)
			if err != nil {
				return nil, ragerr.New(ragerr.Retrieval, op, err)
			}
			results = append(results, doc)
		}
	}
	return results, nil
}

func milvusDocument(res client.SearchResult, i int) (*schema.Document, error) {
	id, err := res.IDs.GetAsString(i)
	if err != nil {
		return nil, fmt.Errorf("search result %d: id: %w", i, err)
	}
	doc := &schema.Document{
		ID:       id,
		Metadata: map[string]interface{}{schema.MetadataKeyScore: res.Scores[i]},
	}

	str := func(field string) (string, error) {
		col := res.Fields.GetColumn(field)
		if col == nil {
			return "", nil
		}
		return col.GetAsString(i)
	}
	if doc.Text, err = str(milvus.FieldText); err != nil {
		return nil, err
	}
	for field, key := range map[string]string{
		milvus.FieldSource:   schema.MetadataKeySource,
		milvus.FieldFileName: schema.MetadataKeyFileName,
		milvus.FieldSourceID: schema.MetadataKeySourceID,
	} {
		v, err := str(field)
		if err != nil {
			return nil, err
		}
		doc.Metadata[key] = v
	}
	if col := res.Fields.GetColumn(milvus.FieldChunkIndex); col != nil {
		idx, err := col.GetAsInt64(i)
		if err != nil {
			return nil, err
		}
		doc.Metadata[schema.MetadataKeyChunkIndex] = int(idx)
	}
	return doc, nil
}

// Count returns the number of rows in the partition.
func (s *MilvusStore) Count(ctx context.Context) (int, error) {
	rs, err := s.db.Client.Query(ctx, s.db.Collection, []string{s.partition}, "", []string{"count(*)"},
		client.WithSearchQueryConsistencyLevel(entity.ClStrong))
	if err != nil {
		return 0, ragerr.New(ragerr.Storage, "count", err)
	}
	col := rs.GetColumn("count(*)")
	if col == nil || col.Len() == 0 {
		return 0, nil
	}
	n, err := col.GetAsInt64(0)
	if err != nil {
		return 0, ragerr.New(ragerr.Storage, "count", err)
	}
	return int(n), nil
}

// Dimension is the embedding dimension of the collection.
func (s *MilvusStore) Dimension() int { return s.db.Dimension }

// Close releases the connection.
func (s *MilvusStore) Close() error { return s.db.Close() }

// HealthCheck lists collections on the server.
func (s *MilvusStore) HealthCheck(ctx context.Context) error {
	if err := s.db.HealthCheck(ctx); err != nil {
		return ragerr.New(ragerr.Storage, "vector store health", err)
	}
	return nil
}

// compile-time check to ensure MilvusStore implements the VectorStore interface
var _ interfaces.VectorStore = (*MilvusStore)(nil)
var _ interfaces.HealthChecker = (*MilvusStore)(nil)
