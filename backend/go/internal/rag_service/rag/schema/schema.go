package schema

const (
	// MetadataKeyFileName is the key for the source file name.
	MetadataKeyFileName = "file_name"
	// MetadataKeyPageCount is the number of pages the converter read.
	MetadataKeyPageCount = "page_count"
	// MetadataKeySource is the key for the storage reference or local path a chunk came from.
	MetadataKeySource = "source"
	// MetadataKeySourceID is the ID of the converted document a chunk was split from.
	MetadataKeySourceID = "source_id"
	// MetadataKeyChunkIndex is the zero-based position of a chunk within its source.
	MetadataKeyChunkIndex = "chunk_index"
	// MetadataKeySentences is the number of sentences grouped into a chunk.
	MetadataKeySentences = "sentences"
	// MetadataKeyScore is the similarity score set on retrieved chunks.
	MetadataKeyScore = "score"
)

// Document is the central data structure representing a piece of text and its associated data.
// It is the primary data carrier throughout the RAG pipeline: the converter emits one per
// source file, the splitter emits one per chunk.
type Document struct {
	// ID is the unique identifier for this document chunk.
	ID string

	// Text is the string content of the document chunk.
	Text string

	// Embedding is the vector representation of the text.
	Embedding []float32

	// Metadata holds arbitrary data about the document.
	Metadata map[string]interface{}
}

// MetaString returns the metadata value for key as a string, or "".
func (d *Document) MetaString(key string) string {
	if d == nil || d.Metadata == nil {
		return ""
	}
	if s, ok := d.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// Score returns the similarity score attached by a vector store query.
func (d *Document) Score() float32 {
	if d == nil || d.Metadata == nil {
		return 0
	}
	switch v := d.Metadata[MetadataKeyScore].(type) {
	case float32:
		return v
	case float64:
		return float32(v)
	}
	return 0
}

// SourceFile is an uploaded PDF as it moves through the API layer.
type SourceFile struct {
	// FileName is the name the client uploaded.
	FileName string
	// Content is the full upload.
	Content []byte
}
