package pipeline

import (
	"context"
	"fmt"
	"strings"

	"pdf_rag/backend/go/internal/rag_service/rag/interfaces"
	"pdf_rag/backend/go/internal/rag_service/rag/ragerr"
	"pdf_rag/backend/go/internal/rag_service/rag/schema"
	"pdf_rag/backend/go/pkg/logger"
)

// NoAnswer is the reply the model is told to give when the context does not
// contain an answer.
const NoAnswer = "I don't know"

// IsNoAnswer reports whether answer contains the NoAnswer sentinel, ignoring case.
func IsNoAnswer(answer string) bool {
	return strings.Contains(strings.ToLower(answer), strings.ToLower(NoAnswer))
}

// QAPipeline is responsible for generating an answer based on a query and retrieved documents.
type QAPipeline struct {
	llm interfaces.LLM
	log *logger.Logger
}

// NewQAPipeline creates a new QAPipeline.
func NewQAPipeline(llm interfaces.LLM, log *logger.Logger) *QAPipeline {
	if log == nil {
		log = logger.New("qa")
	}
	return &QAPipeline{
		llm: llm,
		log: log,
	}
}

// Run takes a query and a list of documents, builds a prompt, and calls the LLM to generate an answer.
func (p *QAPipeline) Run(ctx context.Context, query string, documents []*schema.Document) (string, error) {
	p.log.Info(fmt.Sprintf("Building prompt for query: '%s' with %d documents", query, len(documents)))

	prompt := BuildPrompt(query, documents)

	answer, err := p.llm.Generate(ctx, prompt)
	if err != nil {
		p.log.Error(fmt.Sprintf("LLM failed to generate answer: %v", err))
		return "", ragerr.New(ragerr.Generation, "generate", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", ragerr.Newf(ragerr.Generation, "generate", "model returned an empty answer")
	}

	p.log.Info("Successfully generated answer from LLM.")
	return answer, nil
}

// BuildPrompt renders the fixed question-answering prompt: the instruction,
// the query, the text of every document, then the answer cue.
func BuildPrompt(query string, documents []*schema.Document) string {
	var sb strings.Builder

	sb.WriteString("Answer the following query based on the provided context. If the context does\n")
	sb.WriteString("not include an answer, reply with '" + NoAnswer + "'.\n\n")
	sb.WriteString("Query: " + query + "\n")
	sb.WriteString("Documents:\n")
	for _, doc := range documents {
		sb.WriteString(strings.TrimSpace(doc.Text))
		sb.WriteString("\n")
	}
	sb.WriteString("Answer:")

	return sb.String()
}
