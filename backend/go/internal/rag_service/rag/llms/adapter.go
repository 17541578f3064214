package llms

import (
	"context"
	"strings"

	"pdf_rag/backend/go/internal/llm"
	"pdf_rag/backend/go/internal/rag_service/rag/interfaces"
	"pdf_rag/backend/go/internal/rag_service/rag/ragerr"
)

// Adapter adapts a provider client to the generic LLM interface by
// returning the first non-empty reply.
type Adapter struct {
	client llm.LLM
}

// NewAdapter creates a new adapter.
func NewAdapter(client llm.LLM) *Adapter {
	return &Adapter{client: client}
}

// Generate returns the trimmed first non-empty reply. Provider failures and
// an all-empty response are generation errors.
func (a *Adapter) Generate(ctx context.Context, prompt string) (string, error) {
	const op = "generate"
	replies, err := a.client.Generate(ctx, prompt)
	if err != nil {
		return "", ragerr.New(ragerr.Generation, op, err)
	}
	for _, r := range replies {
		if r = strings.TrimSpace(r); r != "" {
			return r, nil
		}
	}
	return "", ragerr.Newf(ragerr.Generation, op, "model returned no text")
}

// compile-time check to ensure Adapter implements the LLM interface
var _ interfaces.LLM = (*Adapter)(nil)
