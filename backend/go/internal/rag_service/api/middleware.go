package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"pdf_rag/backend/go/internal/models"
	"pdf_rag/backend/go/internal/rag_service/rag/ragerr"
	"pdf_rag/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger 创建一个 Gin 中间件，用 logrus 记录每个请求。
// 处理函数通过 c.Error 附加的错误会写入日志的 error 字段。
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		l := log.WithRequest(models.RequestInfo{
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			RemoteAddr: c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			Status:     c.Writer.Status(),
			LatencyMS:  time.Since(start).Milliseconds(),
		})

		if err := c.Errors.Last(); err != nil {
			l = l.WithError(models.ErrorInfo{
				Message:    err.Error(),
				Type:       string(ragerr.KindOf(err.Err)),
				StatusCode: c.Writer.Status(),
			})
		}

		msg := fmt.Sprintf("%s %s %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			l.Error(msg)
		case c.Writer.Status() >= http.StatusBadRequest:
			l.Warn(msg)
		default:
			l.Info(msg)
		}
	}
}

// CORS 允许浏览器客户端跨域调用 API。
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestTimeout 为请求上下文设置截止时间，下游调用在超时后被取消。
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// MaxBodySize 限制请求体的大小。声明的长度超出时直接返回 413,
// 否则请求体读到 limit 字节后报 *http.MaxBytesError。
func MaxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
				Error: fmt.Sprintf("request body exceeds %d bytes", limit),
				Kind:  "validation",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
