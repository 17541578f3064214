package pipeline

import (
	"context"
	"strings"

	"pdf_rag/backend/go/internal/rag_service/rag/ragerr"
	"pdf_rag/backend/go/internal/rag_service/rag/schema"
)

// Answer is the result of one query.
type Answer struct {
	Text    string
	Sources []*schema.Document
}

// NoAnswer reports whether the answer is the "I don't know" sentinel.
func (a *Answer) NoAnswer() bool {
	return a == nil || IsNoAnswer(a.Text)
}

// QueryPipeline answers a question from the indexed chunks. Each call is
// independent; nothing is cached between calls.
type QueryPipeline struct {
	retrieval *RetrievalPipeline
	qa        *QAPipeline
}

// NewQueryPipeline creates a new QueryPipeline.
func NewQueryPipeline(retrieval *RetrievalPipeline, qa *QAPipeline) *QueryPipeline {
	return &QueryPipeline{retrieval: retrieval, qa: qa}
}

// Answer embeds query, retrieves the nearest chunks and asks the model.
// When nothing is retrieved the model is not called and the answer is NoAnswer.
func (p *QueryPipeline) Answer(ctx context.Context, query string) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ragerr.Newf(ragerr.Validation, "answer", "query must not be empty")
	}

	docs, err := p.retrieval.Run(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return &Answer{Text: NoAnswer, Sources: docs}, nil
	}

	text, err := p.qa.Run(ctx, query, docs)
	if err != nil {
		return nil, err
	}
	return &Answer{Text: text, Sources: docs}, nil
}
