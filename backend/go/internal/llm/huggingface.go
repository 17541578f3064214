package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"pdf_rag/backend/go/internal/config"
	pkghttp "pdf_rag/backend/go/pkg/http"
)

const (
	// DefaultHuggingFaceURL 是 serverless inference API 的默认前缀, 模型名直接拼接在后面。
	DefaultHuggingFaceURL = "https://api-inference.huggingface.co/models/"

	// APITypeServerless 通过 DefaultHuggingFaceURL + 模型名调用。
	APITypeServerless = "serverless_inference_api"
	// APITypeEndpoint 直接调用 BaseURL 指向的专用推理端点。
	APITypeEndpoint = "inference_endpoints"
)

// HuggingFace 是一个用于 Hugging Face Inference API 的 LLM 客户端。
type HuggingFace struct {
	client       *pkghttp.Client // HTTP 客户端实例。
	url          string          // 完整的请求地址。
	apiKey       string          // Hugging Face API 密钥。
	maxNewTokens int             // 生成的最大 token 数, 0 表示使用服务端默认值。
}

// NewHuggingFace 创建一个新的 HuggingFace 客户端。
//
// 参数:
//
//	cfg: 模型配置。APIType 为 inference_endpoints 时 BaseURL 必填且直接作为请求地址,
//	     否则请求地址为 BaseURL (默认 DefaultHuggingFaceURL) + Model。
//	hc: HTTP 客户端。
func NewHuggingFace(cfg config.LLMConfig, hc *pkghttp.Client) (*HuggingFace, error) {
	var url string
	switch cfg.APIType {
	case APITypeEndpoint:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("huggingface: baseURL is required for %s", APITypeEndpoint)
		}
		url = cfg.BaseURL
	case APITypeServerless, "":
		if cfg.Model == "" {
			return nil, fmt.Errorf("huggingface: missing model name")
		}
		base := cfg.BaseURL
		if base == "" {
			base = DefaultHuggingFaceURL
		}
		url = base + cfg.Model
	default:
		return nil, fmt.Errorf("huggingface: unsupported api type %q", cfg.APIType)
	}
	if hc == nil {
		hc = pkghttp.NewClientWith(nil)
	}

	return &HuggingFace{
		client:       hc,
		url:          url,
		apiKey:       cfg.APIKey,
		maxNewTokens: cfg.MaxNewTokens,
	}, nil
}

type hfGenerateRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
	Options    hfOptions    `json:"options"`
}

type hfParameters struct {
	ReturnFullText bool `json:"return_full_text"`
	MaxNewTokens   int  `json:"max_new_tokens,omitempty"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// Generate 使用 Hugging Face Inference API 生成回复。回复中不包含提示词本身。
func (h *HuggingFace) Generate(ctx context.Context, prompt string) ([]string, error) {
	jsonReq, err := json.Marshal(hfGenerateRequest{
		Inputs:     prompt,
		Parameters: hfParameters{ReturnFullText: false, MaxNewTokens: h.maxNewTokens},
		Options:    hfOptions{WaitForModel: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(jsonReq))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if h.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("huggingface returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var hfResp []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&hfResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(hfResp) == 0 {
		return nil, fmt.Errorf("no generated text returned")
	}

	replies := make([]string, 0, len(hfResp))
	for _, item := range hfResp {
		replies = append(replies, item.GeneratedText)
	}
	return replies, nil
}
