package api

import (
	"time"

	"pdf_rag/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RouterOptions 定义了路由器的可选限制。零值表示不限制。
type RouterOptions struct {
	MaxUploadMB    int64         // /index_pdf 请求体的最大大小, 超出返回 413
	RequestTimeout time.Duration // 单个请求的超时时间
}

// SetupRouter 配置和返回一个 Gin 引擎实例。
func SetupRouter(h *Handler, log *logger.Logger, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log), CORS())
	if opts.RequestTimeout > 0 {
		r.Use(RequestTimeout(opts.RequestTimeout))
	}
	upload := []gin.HandlerFunc{h.IndexPDF}
	if opts.MaxUploadMB > 0 {
		limit := opts.MaxUploadMB << 20
		r.MaxMultipartMemory = limit
		upload = append([]gin.HandlerFunc{MaxBodySize(limit)}, upload...)
	}

	r.POST("/index_pdf", upload...)
	r.POST("/get_result", h.GetResult)
	r.GET("/health", h.Health)

	return r
}
