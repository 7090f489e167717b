package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/internal/document"
)

func TestID_Deterministic(t *testing.T) {
	a := ID("guide.pdf:p3", 0, "some chunk text")
	b := ID("guide.pdf:p3", 0, "some chunk text")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestID_DistinguishesInputs(t *testing.T) {
	base := ID("guide.pdf:p3", 0, "some chunk text")

	assert.NotEqual(t, base, ID("guide.pdf:p4", 0, "some chunk text"))
	assert.NotEqual(t, base, ID("guide.pdf:p3", 1, "some chunk text"))
	assert.NotEqual(t, base, ID("guide.pdf:p3", 0, "other chunk text"))
}

func TestID_HashesTextPrefixOnly(t *testing.T) {
	shared := strings.Repeat("x", idPrefixLen)
	a := ID("src", 0, shared+" tail one")
	b := ID("src", 0, shared+" tail two")
	// Divergence past the prefix does not change the ID; the index does.
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, ID("src", 1, shared+" tail one"))
}

func TestDocument_AttachesMetadata(t *testing.T) {
	s, err := NewSplitter(wordCounter{}, 1000, 200)
	require.NoError(t, err)

	doc := document.Document{
		SourceID: "guide.pdf:p3",
		Filename: "guide.pdf",
		Text:     paragraphs(250, 10),
		Kind:     document.KindDoc,
		Metadata: map[string]string{
			"doc_category": "GOVERNANCE",
			"page_number":  "3",
		},
	}

	chunks := s.Document(doc)
	require.Len(t, chunks, 3)

	for i, c := range chunks {
		assert.Equal(t, ID("guide.pdf:p3", i, c.Text), c.ID)
		assert.Equal(t, "guide.pdf", c.Metadata["source_file"])
		assert.Equal(t, "doc", c.Metadata["source_type"])
		assert.Equal(t, "GOVERNANCE", c.Metadata["doc_category"])
		assert.Equal(t, "3", c.Metadata["page_number"])
		assert.Equal(t, "3", c.Metadata["total_chunks"])
		assert.Positive(t, c.TokenCount)
	}
	assert.Equal(t, "0", chunks[0].Metadata["chunk_index"])
	assert.Equal(t, "2", chunks[2].Metadata["chunk_index"])
}

func TestDocument_SmallDocSingleChunk(t *testing.T) {
	s, err := NewSplitter(wordCounter{}, 1000, 200)
	require.NoError(t, err)

	doc := document.Document{
		SourceID: "notes.md",
		Filename: "notes.md",
		Text:     "a handful of words",
		Kind:     document.KindResearch,
	}

	chunks := s.Document(doc)
	require.Len(t, chunks, 1)
	assert.Equal(t, "a handful of words", chunks[0].Text)
	assert.Equal(t, "1", chunks[0].Metadata["total_chunks"])
	assert.Equal(t, "research", chunks[0].Metadata["source_type"])
}

func TestDocument_EmptyText(t *testing.T) {
	s, err := NewSplitter(wordCounter{}, 1000, 200)
	require.NoError(t, err)

	assert.Empty(t, s.Document(document.Document{SourceID: "empty.md"}))
}

func TestDocument_DoesNotMutateSourceMetadata(t *testing.T) {
	s, err := NewSplitter(wordCounter{}, 1000, 200)
	require.NoError(t, err)

	md := map[string]string{"doc_category": "RECORD"}
	doc := document.Document{
		SourceID: "r.md",
		Filename: "r.md",
		Text:     "short text",
		Kind:     document.KindDoc,
		Metadata: md,
	}

	_ = s.Document(doc)
	assert.Equal(t, map[string]string{"doc_category": "RECORD"}, md)
}
