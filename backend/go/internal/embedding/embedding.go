package embedding

import (
	"context"
	"fmt"

	"pdf_rag/backend/go/internal/config"
	pkghttp "pdf_rag/backend/go/pkg/http"
)

// NewEmdModel 根据配置创建并返回一个新的 Embedding 模型实例。
//
// 参数:
//
//	ctx: 上下文，部分 SDK 在初始化时需要。
//	cfg: 提供商、模型、API 密钥和基础 URL。
//	hc: 访问托管服务时使用的 HTTP 客户端 (可带熔断器)。
//
// 返回值:
//
//	Embedding: 新创建的 Embedding 模型实例。
//	error: 如果提供商不支持或模型初始化失败，则返回错误。
func NewEmdModel(ctx context.Context, cfg config.EmbeddingConfig, hc *pkghttp.Client) (Embedding, error) {
	if hc == nil {
		hc = pkghttp.NewClientWith(nil)
	}
	switch ModelType(cfg.Provider) {
	case Google:
		return NewGoogleModel(ctx, cfg.APIKey, cfg.Model)
	case OpenAI:
		return NewOpenAIModel(cfg.APIKey, cfg.Model, cfg.BaseURL, hc)
	case HuggingFace:
		return NewHuggingFaceModel(cfg.APIKey, cfg.Model, cfg.BaseURL, hc)
	case Ollama:
		return NewOllamaModel(cfg.Model, cfg.BaseURL, hc)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
