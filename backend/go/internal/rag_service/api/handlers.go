package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"pdf_rag/backend/go/internal/models"
	"pdf_rag/backend/go/internal/rag_service/rag/schema"
	"pdf_rag/backend/go/internal/rag_service/service"

	"github.com/gin-gonic/gin"
)

// RAGService 是处理函数依赖的服务接口。
type RAGService interface {
	IndexPDF(ctx context.Context, file schema.SourceFile) service.Result
	Query(ctx context.Context, query string) service.Result
	Health(ctx context.Context, deep bool) service.Health
}

// Handler 封装了所有 API endpoint 的处理函数。
type Handler struct {
	service RAGService
}

// NewHandler 创建一个新的 Handler 实例。
func NewHandler(s RAGService) *Handler {
	return &Handler{service: s}
}

// IndexPDF 处理 POST /index_pdf: 上传 multipart 字段 "file" 中的 PDF 并建立索引。
func (h *Handler) IndexPDF(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, models.IndexPDFResponse{
				Error: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
				Kind:  "validation",
			})
			return
		}
		c.JSON(http.StatusBadRequest, models.IndexPDFResponse{Error: "multipart field 'file' is required", Kind: "validation"})
		return
	}

	// 扩展名检查在读取内容之前完成。
	if !service.IsPDFName(fh.Filename) {
		c.JSON(http.StatusBadRequest, models.IndexPDFResponse{Error: service.UnsupportedFileMessage, File: fh.Filename})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.IndexPDFResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.IndexPDFResponse{Error: err.Error(), Kind: "validation"})
		return
	}

	res := h.service.IndexPDF(c.Request.Context(), schema.SourceFile{FileName: fh.Filename, Content: content})
	if !res.OK() {
		c.Error(res.Err)
		c.JSON(res.HTTPStatus(), models.IndexPDFResponse{
			Error: fmt.Sprintf("An error occurred during indexing: %v", res.Err),
			Kind:  string(res.Kind()),
		})
		return
	}

	c.JSON(http.StatusOK, models.IndexPDFResponse{Message: res.Message, Chunks: res.Chunks})
}

// GetResult 处理 POST /get_result: 根据已索引的文档回答问题。
func (h *Handler) GetResult(c *gin.Context) {
	var req models.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error(), Kind: "validation"})
		return
	}

	res := h.service.Query(c.Request.Context(), req.Query)
	if !res.OK() {
		c.Error(res.Err)
		c.JSON(res.HTTPStatus(), models.ErrorResponse{Error: res.Err.Error(), Kind: string(res.Kind())})
		return
	}

	resp := models.QueryResponse{Answer: res.Answer.Text}
	for _, doc := range res.Answer.Sources {
		metadata := make(map[string]string)
		for k, v := range doc.Metadata {
			if k == schema.MetadataKeyScore {
				continue
			}
			metadata[k] = fmt.Sprintf("%v", v)
		}
		resp.Sources = append(resp.Sources, models.SourceDocument{
			ID: doc.ID, Text: doc.Text, Score: doc.Score(), Metadata: metadata,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// Health 处理 GET /health。带 ?deep=1 时检查对象存储和向量库, 任一失败返回 503。
func (h *Handler) Health(c *gin.Context) {
	deep, _ := strconv.ParseBool(c.DefaultQuery("deep", "false"))
	health := h.service.Health(c.Request.Context(), deep)
	if health.Status != service.StatusHealthy {
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}
	c.JSON(http.StatusOK, health)
}
