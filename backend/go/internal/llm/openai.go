package llm

import (
	"context"
	"fmt"

	pkghttp "pdf_rag/backend/go/pkg/http"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAI 是一个用于 OpenAI 兼容 Chat Completions API 的客户端。
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAI 创建一个新的 OpenAI 客户端。baseURL 非空时指向其他兼容服务。
func NewOpenAI(model, apiKey, baseURL string, maxTokens int, hc *pkghttp.Client) (*OpenAI, error) {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if hc != nil {
		config.HTTPClient = hc.HTTPClient()
	}
	return &OpenAI{client: openai.NewClientWithConfig(config), model: model, maxTokens: maxTokens}, nil
}

// Generate 以单条 user 消息发送提示词, 每个 choice 对应一条回复。
func (o *OpenAI) Generate(ctx context.Context, prompt string) ([]string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: o.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}
	replies := make([]string, 0, len(resp.Choices))
	for _, c := range resp.Choices {
		replies = append(replies, c.Message.Content)
	}
	return replies, nil
}
