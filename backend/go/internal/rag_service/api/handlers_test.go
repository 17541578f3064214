package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pdf_rag/backend/go/internal/models"
	"pdf_rag/backend/go/internal/rag_service/rag/pipeline"
	"pdf_rag/backend/go/internal/rag_service/rag/ragerr"
	"pdf_rag/backend/go/internal/rag_service/rag/schema"
	"pdf_rag/backend/go/internal/rag_service/service"
	"pdf_rag/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	indexed  []schema.SourceFile
	queries  []string
	index    service.Result
	query    service.Result
	deep     []bool
	degraded bool
}

func (f *fakeService) IndexPDF(_ context.Context, file schema.SourceFile) service.Result {
	f.indexed = append(f.indexed, file)
	return f.index
}

func (f *fakeService) Query(_ context.Context, q string) service.Result {
	f.queries = append(f.queries, q)
	return f.query
}

func (f *fakeService) Health(_ context.Context, deep bool) service.Health {
	f.deep = append(f.deep, deep)
	if deep && f.degraded {
		return service.Health{
			Status:     service.StatusDegraded,
			Checks:     map[string]string{"object_store": "ok", "vector_store": "connection refused"},
			HealthInfo: service.HealthInfo{VectorStore: "milvus"},
		}
	}
	return service.Health{Status: service.StatusHealthy, HealthInfo: service.HealthInfo{VectorStore: "memory"}}
}

func newRouter(svc *fakeService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRouter(NewHandler(svc), logger.Discard(), RouterOptions{MaxUploadMB: 32})
}

func uploadRequest(t *testing.T, name string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/index_pdf", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestIndexPDF_UploadTooLarge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	big := bytes.Repeat([]byte("x"), 2<<20)

	t.Run("declared length", func(t *testing.T) {
		svc := &fakeService{}
		router := SetupRouter(NewHandler(svc), logger.Discard(), RouterOptions{MaxUploadMB: 1})
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, uploadRequest(t, "big.pdf", big))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), `"kind":"validation"`)
		assert.Empty(t, svc.indexed)
	})

	t.Run("unknown length", func(t *testing.T) {
		svc := &fakeService{}
		router := SetupRouter(NewHandler(svc), logger.Discard(), RouterOptions{MaxUploadMB: 1})
		rec := httptest.NewRecorder()
		req := uploadRequest(t, "big.pdf", big)
		req.ContentLength = -1

		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Empty(t, svc.indexed)
	})

	t.Run("under the limit", func(t *testing.T) {
		svc := &fakeService{index: service.Ok("ok", 1)}
		router := SetupRouter(NewHandler(svc), logger.Discard(), RouterOptions{MaxUploadMB: 1})
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, uploadRequest(t, "small.pdf", []byte("%PDF-1.4")))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, svc.indexed, 1)
	})
}

func TestIndexPDF_Success(t *testing.T) {
	svc := &fakeService{index: service.Ok("PDF indexed successfully from https://b/uploads/1.pdf", 7)}
	rec := httptest.NewRecorder()

	newRouter(svc).ServeHTTP(rec, uploadRequest(t, "paper.pdf", []byte("%PDF-1.4")))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp models.IndexPDFResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PDF indexed successfully from https://b/uploads/1.pdf", resp.Message)
	assert.Equal(t, 7, resp.Chunks)
	assert.Empty(t, resp.Error)

	require.Len(t, svc.indexed, 1)
	assert.Equal(t, "paper.pdf", svc.indexed[0].FileName)
	assert.Equal(t, []byte("%PDF-1.4"), svc.indexed[0].Content)
}

func TestIndexPDF_RejectsNonPDF(t *testing.T) {
	svc := &fakeService{}
	rec := httptest.NewRecorder()

	newRouter(svc).ServeHTTP(rec, uploadRequest(t, "notes.txt", []byte("hello")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp models.IndexPDFResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Only PDF files are supported.", resp.Error)
	assert.Equal(t, "notes.txt", resp.File)
	assert.Empty(t, svc.indexed, "service is not called")
}

func TestIndexPDF_MissingFile(t *testing.T) {
	svc := &fakeService{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/index_pdf", strings.NewReader(""))

	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.indexed)
}

func TestIndexPDF_FailureKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"storage", ragerr.WithStatus(ragerr.Storage, "fetch", 403, errors.New("forbidden")), http.StatusBadGateway},
		{"configuration", ragerr.Newf(ragerr.Configuration, "open", "missing address"), http.StatusInternalServerError},
		{"conversion", ragerr.Newf(ragerr.Conversion, "convert", "not a pdf"), http.StatusBadGateway},
		{"embedding", ragerr.Newf(ragerr.Embedding, "embed", "dimension 3, want 768"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{index: service.Err(tc.err)}
			rec := httptest.NewRecorder()

			newRouter(svc).ServeHTTP(rec, uploadRequest(t, "a.pdf", []byte("x")))

			assert.Equal(t, tc.code, rec.Code)
			var resp models.IndexPDFResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.True(t, strings.HasPrefix(resp.Error, "An error occurred during indexing: "), resp.Error)
			assert.Equal(t, tc.name, resp.Kind)
		})
	}
}

func TestGetResult(t *testing.T) {
	svc := &fakeService{query: service.Answered(&pipeline.Answer{
		Text: "Paris.",
		Sources: []*schema.Document{{
			ID:   "c1",
			Text: "Paris is the capital of France.",
			Metadata: map[string]interface{}{
				schema.MetadataKeyFileName: "geo.pdf",
				schema.MetadataKeyScore:    float32(0.9),
			},
		}},
	})}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/get_result", strings.NewReader(`{"query":"capital of France?"}`))
	req.Header.Set("Content-Type", "application/json")

	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp models.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Paris.", resp.Answer)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "c1", resp.Sources[0].ID)
	assert.InDelta(t, 0.9, resp.Sources[0].Score, 1e-6)
	assert.Equal(t, "geo.pdf", resp.Sources[0].Metadata["file_name"])
	_, hasScore := resp.Sources[0].Metadata["score"]
	assert.False(t, hasScore)
	assert.Equal(t, []string{"capital of France?"}, svc.queries)
}

func TestGetResult_NoSourcesOmitted(t *testing.T) {
	svc := &fakeService{query: service.Answered(&pipeline.Answer{Text: pipeline.NoAnswer})}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/get_result", strings.NewReader(`{"query":"?"}`))

	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"answer":"I don't know"}`, rec.Body.String())
}

func TestGetResult_Errors(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/get_result", strings.NewReader(`{"query":`))
	svc := &fakeService{}
	newRouter(svc).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.queries)

	svc = &fakeService{query: service.Err(ragerr.Newf(ragerr.Generation, "generate", "model returned an empty answer"))}
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/get_result", strings.NewReader(`{"query":"q"}`))
	newRouter(svc).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "generation", resp.Kind)
}

func TestHealthAndCORS(t *testing.T) {
	router := newRouter(&fakeService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/get_result", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHealth_Deep(t *testing.T) {
	svc := &fakeService{degraded: true}
	router := newRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health?deep=1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body service.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, service.StatusDegraded, body.Status)
	assert.Equal(t, "connection refused", body.Checks["vector_store"])
	assert.Equal(t, []bool{false, true}, svc.deep)
}

func TestRequestTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestTimeout(time.Minute))
	var deadline bool
	r.GET("/x", func(c *gin.Context) {
		_, deadline = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.True(t, deadline)
}
