package service

import (
	"context"
	"fmt"
	"strings"

	"pdf_rag/backend/go/internal/rag_service/rag/interfaces"
	"pdf_rag/backend/go/internal/rag_service/rag/pipeline"
	"pdf_rag/backend/go/internal/rag_service/rag/ragerr"
	"pdf_rag/backend/go/internal/rag_service/rag/schema"
	"pdf_rag/backend/go/pkg/logger"
)

// UnsupportedFileMessage is returned for uploads whose name does not end in .pdf.
const UnsupportedFileMessage = "Only PDF files are supported."

// Deps are the collaborators of a Service. VectorStore is opened for every
// request and closed when the request is done; the others are built once.
type Deps struct {
	Objects     Factory[interfaces.ObjectStore]
	VectorStore Factory[interfaces.VectorStore]
	Embedder    Factory[interfaces.EmbeddingModel]
	LLM         Factory[interfaces.LLM]
	Loader      interfaces.Loader
	Splitter    interfaces.Splitter
	TopK        int
	Info        HealthInfo
}

// HealthInfo describes the configured backends in health responses.
type HealthInfo struct {
	VectorStore string `json:"vector_store"`
	Collection  string `json:"collection"`
	Namespace   string `json:"namespace"`
	Embedding   string `json:"embedding_model"`
	LLM         string `json:"llm"`
}

// Health statuses.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Health is the body of GET /health. Checks is only filled by a deep check
// and maps each backend to "ok" or the error it returned.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	HealthInfo
}

// Service implements the indexing and query operations behind the HTTP API.
// It owns no persistent state.
type Service struct {
	deps Deps
	log  *logger.Logger
}

// NewService creates a new Service.
func NewService(deps Deps, log *logger.Logger) *Service {
	if log == nil {
		log = logger.New("rag_service")
	}
	return &Service{deps: deps, log: log}
}

// IsPDFName reports whether name ends in .pdf, ignoring case.
func IsPDFName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}

// IndexPDF uploads file to the object store, downloads it back to scratch
// space and runs the ingestion pipeline on the local copy.
func (s *Service) IndexPDF(ctx context.Context, file schema.SourceFile) Result {
	log := s.log.WithField("file", file.FileName)
	log.Info(fmt.Sprintf("Received IndexPDF request for %s (%d bytes)", file.FileName, len(file.Content)))

	if !IsPDFName(file.FileName) {
		return Err(ragerr.Newf(ragerr.Validation, "index pdf", UnsupportedFileMessage))
	}

	objects, err := s.deps.Objects(ctx)
	if err != nil {
		return Err(ragerr.New(ragerr.Configuration, "object store", err))
	}
	ref, err := objects.Store(ctx, file.Content, file.FileName)
	if err != nil {
		return Err(err)
	}
	log.Info(fmt.Sprintf("Stored upload at %s", ref))

	localPath, err := objects.Fetch(ctx, ref)
	if err != nil {
		return Err(err)
	}

	store, err := s.deps.VectorStore(ctx)
	if err != nil {
		return Err(ragerr.New(ragerr.Configuration, "vector store", err))
	}
	defer s.closeStore(store)

	embedder, err := s.deps.Embedder(ctx)
	if err != nil {
		return Err(ragerr.New(ragerr.Configuration, "embedding model", err))
	}

	indexing := pipeline.NewIndexingPipeline(s.deps.Loader, s.deps.Splitter, embedder, log)
	res, err := indexing.Run(ctx, store, localPath, pipeline.WithSource(ref))
	if err != nil {
		return Err(err)
	}

	return Ok(fmt.Sprintf("PDF indexed successfully from %s", ref), res.Chunks)
}

// Query answers query from the indexed chunks.
func (s *Service) Query(ctx context.Context, query string) Result {
	s.log.Info(fmt.Sprintf("Received Query request: '%s'", query))

	if strings.TrimSpace(query) == "" {
		return Err(ragerr.Newf(ragerr.Validation, "query", "query must not be empty"))
	}

	store, err := s.deps.VectorStore(ctx)
	if err != nil {
		return Err(ragerr.New(ragerr.Configuration, "vector store", err))
	}
	defer s.closeStore(store)

	embedder, err := s.deps.Embedder(ctx)
	if err != nil {
		return Err(ragerr.New(ragerr.Configuration, "embedding model", err))
	}
	model, err := s.deps.LLM(ctx)
	if err != nil {
		return Err(ragerr.New(ragerr.Configuration, "llm", err))
	}

	q := pipeline.NewQueryPipeline(
		pipeline.NewRetrievalPipeline(embedder, store, s.deps.TopK, s.log),
		pipeline.NewQAPipeline(model, s.log),
	)
	answer, err := q.Answer(ctx, query)
	if err != nil {
		return Err(err)
	}
	return Answered(answer)
}

// Health reports liveness. Without deep it contacts no backend; with deep it
// checks the object store and the vector store and reports degraded if
// either fails.
func (s *Service) Health(ctx context.Context, deep bool) Health {
	h := Health{Status: StatusHealthy, HealthInfo: s.deps.Info}
	if !deep {
		return h
	}

	h.Checks = map[string]string{
		"object_store": checkResult(s.checkObjects(ctx)),
		"vector_store": checkResult(s.checkVectorStore(ctx)),
	}
	for name, result := range h.Checks {
		if result != "ok" {
			h.Status = StatusDegraded
			s.log.Warn(fmt.Sprintf("Health check %s failed: %s", name, result))
		}
	}
	return h
}

func (s *Service) checkObjects(ctx context.Context) error {
	objects, err := s.deps.Objects(ctx)
	if err != nil {
		return err
	}
	if hc, ok := objects.(interfaces.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// checkVectorStore opens the store and, if it has no dedicated check, counts
// the namespace.
func (s *Service) checkVectorStore(ctx context.Context) error {
	store, err := s.deps.VectorStore(ctx)
	if err != nil {
		return err
	}
	defer s.closeStore(store)
	if hc, ok := store.(interfaces.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	_, err = store.Count(ctx)
	return err
}

func checkResult(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}

func (s *Service) closeStore(store interfaces.VectorStore) {
	if err := store.Close(); err != nil {
		s.log.Warn(fmt.Sprintf("Failed to close vector store: %v", err))
	}
}
