package llm

import (
	"context"
	"fmt"

	"pdf_rag/backend/go/internal/config"
	pkghttp "pdf_rag/backend/go/pkg/http"
)

// LLM 定义了所有大型语言模型客户端必须实现的通用接口。
// Generate 返回模型给出的全部候选回复, 至少一条。
type LLM interface {
	Generate(ctx context.Context, prompt string) ([]string, error)
}

// NewClient 是一个工厂函数，根据提供的配置创建并返回一个实现了 LLM 接口的客户端。
func NewClient(ctx context.Context, cfg config.LLMConfig, hc *pkghttp.Client) (LLM, error) {
	if hc == nil {
		hc = pkghttp.NewClientWith(nil)
	}
	switch cfg.Provider {
	case "huggingface":
		return NewHuggingFace(cfg, hc)
	case "gemini":
		return NewGemini(ctx, cfg.Model, cfg.APIKey, cfg.MaxNewTokens)
	case "ollama":
		return NewOllama(cfg.Model, cfg.BaseURL, cfg.MaxNewTokens, hc)
	case "openai":
		return NewOpenAI(cfg.Model, cfg.APIKey, cfg.BaseURL, cfg.MaxNewTokens, hc)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
