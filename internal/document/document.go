// Package document turns heterogeneous source material into a uniform
// representation for the indexing pipeline.
//
// Each normalizer handles one source family (PDF manuals, connector source
// code, research notes) and emits Documents carrying cleaned text plus
// provenance metadata. Normalizers skip individual items that fail to parse
// instead of aborting the whole run: one corrupt file must not block a
// batch of hundreds.
package document

import "context"

// Kind identifies the source family a document came from. The value is
// stored in vector metadata as source_type and drives retrieval boosts.
type Kind string

const (
	KindDoc      Kind = "doc"
	KindCode     Kind = "code"
	KindResearch Kind = "research"
	KindWeb      Kind = "web"
)

func (k Kind) String() string { return string(k) }

// Document is a normalized unit of text ready for chunking. For paged
// sources (PDF) each page is its own Document so chunk IDs stay stable
// when unrelated pages change.
type Document struct {
	// SourceID uniquely identifies the document within its source, e.g.
	// "suitetalk.pdf:p12" or "src/CustomerSearch.java". Chunk IDs derive
	// from it, so it must be stable across runs.
	SourceID string

	// Filename is the base name of the originating file.
	Filename string

	// Text is the cleaned content.
	Text string

	// Kind is the source family.
	Kind Kind

	// Metadata holds provenance fields (doc_category, object_type,
	// page_number, language, ...) copied onto every chunk.
	Metadata map[string]string
}

// Normalizer converts source material under a path into documents.
// Implementations log and skip items they cannot parse; a returned error
// means the path itself was unusable.
type Normalizer interface {
	Normalize(ctx context.Context, path string) ([]Document, error)
}
