package embedding

import (
	"context"
	"fmt"
	"net/url"

	pkghttp "pdf_rag/backend/go/pkg/http"

	ollama "github.com/ollama/ollama/api"
)

// DefaultOllamaURL 是本地 Ollama 服务的默认地址。
const DefaultOllamaURL = "http://localhost:11434"

// OllamaModel 是一个用于 Ollama API 的 Embedding 模型客户端。
type OllamaModel struct {
	client *ollama.Client // Ollama 客户端实例。
	model  string         // 要使用的模型名称。
}

// NewOllamaModel 创建一个新的 OllamaModel 客户端。baseURL 为空时使用 DefaultOllamaURL。
func NewOllamaModel(model, baseURL string, hc *pkghttp.Client) (*OllamaModel, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if hc == nil {
		hc = pkghttp.NewClientWith(nil)
	}

	return &OllamaModel{client: ollama.NewClient(parsedURL, hc.HTTPClient()), model: model}, nil
}

// Embed 为单个文本生成嵌入向量。
func (m *OllamaModel) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return embeddings[0], nil
}

// EmbedBatch 使用 Ollama 的批量嵌入功能为一批文本生成嵌入向量。
func (m *OllamaModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := m.client.Embed(ctx, &ollama.EmbedRequest{
		Model: m.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get batch embeddings from ollama: %w", err)
	}

	return resp.Embeddings, nil
}
