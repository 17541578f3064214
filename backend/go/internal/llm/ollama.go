package llm

import (
	"context"
	"fmt"
	"net/url"

	pkghttp "pdf_rag/backend/go/pkg/http"

	olla "github.com/ollama/ollama/api"
)

// Ollama 是一个用于与 Ollama API 交互的客户端。
type Ollama struct {
	client  *olla.Client // Ollama 客户端实例。
	model   string       // 要使用的模型名称。
	options map[string]interface{}
}

// NewOllama 创建一个新的 Ollama 客户端。baseURL 为空时使用 "http://localhost:11434"。
func NewOllama(model, baseURL string, maxNewTokens int, hc *pkghttp.Client) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if hc == nil {
		hc = pkghttp.NewClientWith(nil)
	}

	o := &Ollama{client: olla.NewClient(parsedURL, hc.HTTPClient()), model: model}
	if maxNewTokens > 0 {
		o.options = map[string]interface{}{"num_predict": maxNewTokens}
	}
	return o, nil
}

// Generate 使用 Ollama API 以非流式方式生成一条回复。
func (o *Ollama) Generate(ctx context.Context, prompt string) ([]string, error) {
	stream := false
	var result string

	err := o.client.Generate(ctx, &olla.GenerateRequest{
		Model:   o.model,
		Prompt:  prompt,
		Stream:  &stream,
		Options: o.options,
	}, func(resp olla.GenerateResponse) error {
		result += resp.Response
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate content from ollama: %w", err)
	}

	return []string{result}, nil
}
