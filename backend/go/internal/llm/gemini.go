package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini 是一个实现了 LLM 接口的结构体，用于与 Gemini API 交互。
// 每次调用都是单轮请求, 不保留会话历史。
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel // Gemini 生成模型实例。
}

// NewGemini 创建一个新的 Gemini 客户端。maxNewTokens 大于 0 时限制输出长度。
func NewGemini(ctx context.Context, model, apiKey string, maxNewTokens int) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	generativeModel := client.GenerativeModel(model)
	if maxNewTokens > 0 {
		generativeModel.SetMaxOutputTokens(int32(maxNewTokens))
	}

	return &Gemini{client: client, model: generativeModel}, nil
}

// Generate 向 Gemini API 发送提示词, 每个候选项对应一条回复。
func (g *Gemini) Generate(ctx context.Context, prompt string) ([]string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, err
	}

	var replies []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		replies = append(replies, sb.String())
	}
	if len(replies) == 0 {
		return nil, fmt.Errorf("no candidates returned")
	}
	return replies, nil
}

// Close 释放底层连接。
func (g *Gemini) Close() error {
	return g.client.Close()
}
