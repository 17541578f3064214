package splitters

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"pdf_rag/backend/go/internal/rag_service/rag/interfaces"
	"pdf_rag/backend/go/internal/rag_service/rag/schema"

	"github.com/google/uuid"
)

// DefaultSentencesPerChunk is used when the configured group size is not positive.
const DefaultSentencesPerChunk = 2

// DefaultMaxChunkBytes matches the text field limit of the Milvus collection.
const DefaultMaxChunkBytes = 65535

// A sentence runs up to and including its terminal punctuation. Text after the
// last terminator is kept as a final sentence.
var sentencePattern = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)

// SentenceSplitter implements the Splitter interface by grouping consecutive
// sentences. Groups do not overlap and a short trailing group is kept.
//
// No chunk is longer than MaxChunkBytes. A sentence over the limit is cut at
// word boundaries, and a group is closed early when the next sentence would
// push it over.
type SentenceSplitter struct {
	SentencesPerChunk int
	MaxChunkBytes     int
}

// NewSentenceSplitter creates a new SentenceSplitter.
func NewSentenceSplitter(sentencesPerChunk int) *SentenceSplitter {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = DefaultSentencesPerChunk
	}
	return &SentenceSplitter{SentencesPerChunk: sentencesPerChunk, MaxChunkBytes: DefaultMaxChunkBytes}
}

// Split splits every document into chunks of SentencesPerChunk sentences.
// Documents with no sentences produce no chunks.
func (s *SentenceSplitter) Split(ctx context.Context, docs []*schema.Document) ([]*schema.Document, error) {
	var chunks []*schema.Document
	limit := s.MaxChunkBytes
	if limit <= 0 {
		limit = DefaultMaxChunkBytes
	}
	perChunk := s.SentencesPerChunk
	if perChunk <= 0 {
		perChunk = DefaultSentencesPerChunk
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			group []string
			size  int
			idx   int
		)
		emit := func() {
			if len(group) == 0 {
				return
			}
			newDoc := &schema.Document{
				ID:       uuid.New().String(),
				Text:     strings.Join(group, " "),
				Metadata: copyMetadata(doc.Metadata),
			}
			delete(newDoc.Metadata, schema.MetadataKeyPageCount)
			newDoc.Metadata[schema.MetadataKeySourceID] = doc.ID
			newDoc.Metadata[schema.MetadataKeyChunkIndex] = idx
			newDoc.Metadata[schema.MetadataKeySentences] = len(group)

			chunks = append(chunks, newDoc)
			idx++
			group, size = nil, 0
		}

		for _, sentence := range Sentences(doc.Text) {
			for _, piece := range cutToLimit(sentence, limit) {
				if len(group) > 0 && size+1+len(piece) > limit {
					emit()
				}
				if len(group) > 0 {
					size++
				}
				group = append(group, piece)
				size += len(piece)
				if len(group) == perChunk {
					emit()
				}
			}
		}
		emit()
	}

	return chunks, nil
}

// cutToLimit splits s into pieces of at most limit bytes, preferring the last
// space before the limit and never cutting inside a UTF-8 sequence.
func cutToLimit(s string, limit int) []string {
	var pieces []string
	for len(s) > limit {
		cut := strings.LastIndexByte(s[:limit+1], ' ')
		next := cut + 1
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
			if cut == 0 {
				_, cut = utf8.DecodeRuneInString(s)
			}
			next = cut
		}
		pieces = append(pieces, s[:cut])
		s = strings.TrimLeft(s[next:], " ")
	}
	if s != "" {
		pieces = append(pieces, s)
	}
	return pieces
}

// Sentences returns the trimmed, non-empty sentences of text in order.
// Runs of whitespace, including page breaks, collapse to a single space.
func Sentences(text string) []string {
	matches := sentencePattern.FindAllString(text, -1)
	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.Join(strings.Fields(m), " ")
		if m == "" || strings.Trim(m, ".!?") == "" {
			continue
		}
		sentences = append(sentences, m)
	}
	return sentences
}

func copyMetadata(md map[string]interface{}) map[string]interface{} {
	if md == nil {
		return make(map[string]interface{})
	}
	newMd := make(map[string]interface{}, len(md))
	for k, v := range md {
		newMd[k] = v
	}
	return newMd
}

// compile-time check to ensure SentenceSplitter implements the Splitter interface
var _ interfaces.Splitter = (*SentenceSplitter)(nil)
