// Package chunk implements boundary-aware text splitting for embedding.
//
// Raw document text is split into overlapping chunks bounded by a token
// budget, using a separator cascade (section break, paragraph, line,
// sentence, clause, word, character). Every chunk carries a deterministic
// content-addressed ID and provenance metadata, which makes re-indexing
// idempotent: the same content always produces the same vector record.
package chunk

import (
	"strconv"

	"docpipe/internal/document"
)

// Chunk is a bounded-size slice of source text ready for embedding.
// Chunks are immutable after creation.
type Chunk struct {
	// ID is content-addressed: hash(source_id, chunk_index, text prefix).
	ID string

	// Text is the chunk content. Token count stays within the splitter's
	// budget except for atomic runs with no split point.
	Text string

	// TokenCount is computed once at creation time and never recomputed
	// downstream.
	TokenCount int

	// Metadata carries provenance: source filename, source kind, category,
	// object type, chunk index, total chunks, page number where present.
	// Always non-nil.
	Metadata map[string]string
}

// Document splits a normalized document into chunks, attaching provenance
// metadata to each. A document whose text fits the budget yields exactly
// one chunk with the text unmodified; empty text yields zero chunks.
func (s *Splitter) Document(doc document.Document) []Chunk {
	pieces := s.Split(doc.Text)
	if len(pieces) == 0 {
		return nil
	}

	chunks := make([]Chunk, 0, len(pieces))
	for i, text := range pieces {
		md := make(map[string]string, len(doc.Metadata)+4)
		for k, v := range doc.Metadata {
			md[k] = v
		}
		md["source_file"] = doc.Filename
		md["source_type"] = doc.Kind.String()
		md["chunk_index"] = strconv.Itoa(i)
		md["total_chunks"] = strconv.Itoa(len(pieces))

		chunks = append(chunks, Chunk{
			ID:         ID(doc.SourceID, i, text),
			Text:       text,
			TokenCount: s.counter.Count(text),
			Metadata:   md,
		})
	}
	return chunks
}
