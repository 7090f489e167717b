package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/internal/config"
	"docpipe/internal/log"
	"docpipe/internal/vecstore"
)

var defaultBoosts = config.BoostConfig{Code: 1.3, Research: 1.25, Web: 1.1, Doc: 1.0}

// staticEmbedder returns a fixed vector and records the last embedded text.
type staticEmbedder struct {
	vector   []float32
	err      error
	lastText string
	calls    int
}

func (e *staticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	e.lastText = text
	if e.err != nil {
		return nil, e.err
	}
	return e.vector, nil
}

// mockIndex serves preset matches and records the query arguments.
type mockIndex struct {
	matches     []vecstore.Match
	queryErr    error
	stats       vecstore.Stats
	statsErr    error
	lastTopK    int
	lastFilters []vecstore.Filter
}

func (m *mockIndex) Upsert(context.Context, []vecstore.Record) error { return nil }

func (m *mockIndex) Query(_ context.Context, _ []float32, topK int, filters ...vecstore.Filter) ([]vecstore.Match, error) {
	m.lastTopK = topK
	m.lastFilters = filters
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.matches, nil
}

func (m *mockIndex) Fetch(context.Context, []string) ([]vecstore.Record, error) { return nil, nil }
func (m *mockIndex) DeleteAll(context.Context) error                           { return nil }

func (m *mockIndex) Stats(context.Context) (vecstore.Stats, error) {
	if m.statsErr != nil {
		return vecstore.Stats{}, m.statsErr
	}
	return m.stats, nil
}

func match(id string, score float64, md map[string]string) vecstore.Match {
	return vecstore.Match{
		Record: vecstore.Record{ID: id, Text: "text of " + id, Metadata: md},
		Score:  score,
	}
}

func TestNew_Validation(t *testing.T) {
	idx := &mockIndex{}
	emb := &staticEmbedder{vector: []float32{1}}

	_, err := New(nil, idx, defaultBoosts, log.NewNop())
	assert.Error(t, err)

	_, err = New(emb, nil, defaultBoosts, log.NewNop())
	assert.Error(t, err)

	_, err = New(emb, idx, defaultBoosts, log.NewNop(), WithSummarizer(&mockSummarizer{}, 3, 0))
	assert.Error(t, err)

	_, err = New(emb, idx, defaultBoosts, nil)
	assert.NoError(t, err)
}

func TestSearch_BoostAndResort(t *testing.T) {
	idx := &mockIndex{matches: []vecstore.Match{
		match("doc-hit", 0.80, map[string]string{"source_type": "doc", "source_file": "a.pdf"}),
		match("web-hit", 0.75, map[string]string{"source_type": "web", "url": "https://x.test"}),
		match("code-hit", 0.70, map[string]string{"source_type": "code", "source_file": "a.go"}),
		match("research-hit", 0.90, map[string]string{"source_type": "research"}),
	}}
	s, err := New(&staticEmbedder{vector: []float32{1}}, idx, defaultBoosts, log.NewNop())
	require.NoError(t, err)

	resp, err := s.Search(context.Background(), "query")
	require.NoError(t, err)
	require.Equal(t, 4, resp.Total)

	// 0.90*1.25 clamps to 1.0, 0.70*1.3 = 0.91, 0.75*1.1 = 0.825, doc unchanged.
	ids := []string{resp.Results[0].ChunkID, resp.Results[1].ChunkID, resp.Results[2].ChunkID, resp.Results[3].ChunkID}
	assert.Equal(t, []string{"research-hit", "code-hit", "web-hit", "doc-hit"}, ids)

	assert.Equal(t, 1.0, resp.Results[0].Score)
	assert.InDelta(t, 0.91, resp.Results[1].Score, 1e-9)
	assert.InDelta(t, 0.825, resp.Results[2].Score, 1e-9)
	assert.Equal(t, 0.80, resp.Results[3].Score)
	for _, r := range resp.Results {
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestSearch_BoostMonotonicOnTies(t *testing.T) {
	idx := &mockIndex{matches: []vecstore.Match{
		match("plain", 0.5, map[string]string{"source_type": "doc"}),
		match("boosted", 0.5, map[string]string{"source_type": "code"}),
	}}
	s, err := New(&staticEmbedder{vector: []float32{1}}, idx, defaultBoosts, log.NewNop())
	require.NoError(t, err)

	resp, err := s.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "boosted", resp.Results[0].ChunkID)
}

func TestSearch_ZeroBoostConfigIsNeutral(t *testing.T) {
	idx := &mockIndex{matches: []vecstore.Match{
		match("a", 0.9, map[string]string{"source_type": "code"}),
		match("b", 0.8, map[string]string{"source_type": "web"}),
	}}
	s, err := New(&staticEmbedder{vector: []float32{1}}, idx, config.BoostConfig{}, log.NewNop())
	require.NoError(t, err)

	resp, err := s.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 0.9, resp.Results[0].Score)
	assert.Equal(t, 0.8, resp.Results[1].Score)
}

func TestSearch_DefaultsMissingSourceTypeToDoc(t *testing.T) {
	idx := &mockIndex{matches: []vecstore.Match{
		match("bare", 0.5, map[string]string{}),
	}}
	s, err := New(&staticEmbedder{vector: []float32{1}}, idx, defaultBoosts, log.NewNop())
	require.NoError(t, err)

	resp, err := s.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "doc", resp.Results[0].SourceType)
	assert.Equal(t, 0.5, resp.Results[0].Score)
}

func TestSearch_OptionsReachIndex(t *testing.T) {
	idx := &mockIndex{}
	s, err := New(&staticEmbedder{vector: []float32{1}}, idx, defaultBoosts, log.NewNop())
	require.NoError(t, err)

	_, err = s.Search(context.Background(), "q",
		WithTopK(3),
		WithFilter(vecstore.Eq("doc_category", "GOVERNANCE")))
	require.NoError(t, err)

	assert.Equal(t, 3, idx.lastTopK)
	require.Len(t, idx.lastFilters, 1)
	assert.Equal(t, vecstore.Eq("doc_category", "GOVERNANCE"), idx.lastFilters[0])
}

func TestSearchDocsOnly_ExcludesWeb(t *testing.T) {
	idx := &mockIndex{}
	s, err := New(&staticEmbedder{vector: []float32{1}}, idx, defaultBoosts, log.NewNop())
	require.NoError(t, err)

	_, err = s.SearchDocsOnly(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, idx.lastFilters, 1)
	assert.Equal(t, vecstore.Ne("source_type", "web"), idx.lastFilters[0])
}

func TestSearchWebOnly_RestrictsToWeb(t *testing.T) {
	idx := &mockIndex{}
	s, err := New(&staticEmbedder{vector: []float32{1}}, idx, defaultBoosts, log.NewNop())
	require.NoError(t, err)

	_, err = s.SearchWebOnly(context.Background(), "q", WithFilter(vecstore.Eq("doc_category", "WEB")))
	require.NoError(t, err)
	require.Len(t, idx.lastFilters, 2)
	assert.Contains(t, idx.lastFilters, vecstore.Eq("source_type", "web"))
}

func TestSearch_EmptyResultsIsNotAnError(t *testing.T) {
	s, err := New(&staticEmbedder{vector: []float32{1}}, &mockIndex{}, defaultBoosts, log.NewNop())
	require.NoError(t, err)

	resp, err := s.Search(context.Background(), "nothing matches")
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Total)
	assert.Empty(t, resp.Results)
}

func TestSearch_EmbedderFailure(t *testing.T) {
	emb := &staticEmbedder{err: errors.New("provider down")}
	s, err := New(emb, &mockIndex{}, defaultBoosts, log.NewNop())
	require.NoError(t, err)

	_, err = s.Search(context.Background(), "q")
	assert.ErrorContains(t, err, "embedding query")
}

func TestResponse_ContextString(t *testing.T) {
	resp := &Response{
		Query: "limits",
		Results: []Result{
			{SourceType: "doc", SourceFile: "governance.pdf", Text: "Concurrency is capped."},
			{SourceType: "web", Title: "Release Notes", URL: "https://example.test/notes", Text: "New limits apply."},
		},
	}

	want := "[Doc Source: governance.pdf]\nConcurrency is capped." +
		"\n\n---\n\n" +
		"[Web Source: Release Notes]\nURL: https://example.test/notes\nNew limits apply."
	assert.Equal(t, want, resp.ContextString())
}

func TestResponse_ContextStringPrefersSummaries(t *testing.T) {
	resp := &Response{Results: []Result{
		{SourceType: "doc", SourceFile: "a.pdf", Text: "long text", Summary: "short summary"},
		{SourceType: "doc", SourceFile: "b.pdf", Text: "kept text", Summary: SummaryUnavailable},
	}}

	got := resp.ContextString()
	assert.Contains(t, got, "short summary")
	assert.NotContains(t, got, "long text")
	assert.Contains(t, got, "kept text")
	assert.NotContains(t, got, SummaryUnavailable)
}

func TestResponse_SplitsBySourceType(t *testing.T) {
	resp := &Response{Results: []Result{
		{ChunkID: "d1", SourceType: "doc"},
		{ChunkID: "w1", SourceType: "web"},
		{ChunkID: "c1", SourceType: "code"},
	}}

	docs := resp.DocResults()
	require.Len(t, docs, 2)
	assert.Equal(t, "d1", docs[0].ChunkID)
	assert.Equal(t, "c1", docs[1].ChunkID)

	web := resp.WebResults()
	require.Len(t, web, 1)
	assert.Equal(t, "w1", web[0].ChunkID)
}

func TestIndexStats(t *testing.T) {
	idx := &mockIndex{stats: vecstore.Stats{VectorCount: 42, Dimension: 1536}}
	s, err := New(&staticEmbedder{vector: []float32{1}}, idx, defaultBoosts, log.NewNop())
	require.NoError(t, err)

	report := s.IndexStats(context.Background())
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, 42, report.TotalVectors)
	assert.Equal(t, 1536, report.Dimension)
	assert.Equal(t, Categories, report.Categories)
}

func TestIndexStats_DegradesOnError(t *testing.T) {
	idx := &mockIndex{statsErr: errors.New("connection refused")}
	s, err := New(&staticEmbedder{vector: []float32{1}}, idx, defaultBoosts, log.NewNop())
	require.NoError(t, err)

	report := s.IndexStats(context.Background())
	assert.Equal(t, "error", report.Status)
	assert.Contains(t, report.Error, "connection refused")
	assert.Equal(t, Categories, report.Categories)
}

func TestSearchConnectors(t *testing.T) {
	ctx := context.Background()
	registry := vecstore.NewRegistry(vecstore.MemoryOpener())

	seed := func(connector, id string, vector []float32) {
		idx, err := registry.Get(ctx, vecstore.ConnectorIndexName(connector))
		require.NoError(t, err)
		require.NoError(t, idx.Upsert(ctx, []vecstore.Record{{
			ID: id, Vector: vector, Text: "text of " + id,
			Metadata: map[string]string{"source_type": "doc"},
		}}))
	}
	seed("alpha", "close", []float32{1, 0})
	seed("beta", "far", []float32{0.6, 0.8})

	s, err := New(&staticEmbedder{vector: []float32{1, 0}}, &mockIndex{}, config.BoostConfig{}, log.NewNop(),
		WithRegistry(registry))
	require.NoError(t, err)

	resp, err := s.SearchConnectors(ctx, "q", []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Total)

	assert.Equal(t, "close", resp.Results[0].ChunkID)
	assert.Equal(t, "alpha", resp.Results[0].Metadata["connector"])
	assert.Equal(t, "far", resp.Results[1].ChunkID)
	assert.Equal(t, "beta", resp.Results[1].Metadata["connector"])
}

func TestSearchConnectors_TopKAppliesGlobally(t *testing.T) {
	ctx := context.Background()
	registry := vecstore.NewRegistry(vecstore.MemoryOpener())
	for i, c := range []string{"a", "b", "c"} {
		idx, err := registry.Get(ctx, vecstore.ConnectorIndexName(c))
		require.NoError(t, err)
		v := []float32{1, float32(i) * 0.5}
		require.NoError(t, idx.Upsert(ctx, []vecstore.Record{
			{ID: c + "-1", Vector: v, Metadata: map[string]string{}},
		}))
	}

	s, err := New(&staticEmbedder{vector: []float32{1, 0}}, &mockIndex{}, config.BoostConfig{}, log.NewNop(),
		WithRegistry(registry))
	require.NoError(t, err)

	resp, err := s.SearchConnectors(ctx, "q", []string{"a", "b", "c"}, WithTopK(2))
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, "a-1", resp.Results[0].ChunkID)
}

func TestSearchConnectors_SkipsBrokenConnector(t *testing.T) {
	ctx := context.Background()
	memOpener := vecstore.MemoryOpener()
	opener := func(ctx context.Context, name string) (vecstore.Index, error) {
		if name == vecstore.ConnectorIndexName("broken") {
			return nil, errors.New("index offline")
		}
		return memOpener(ctx, name)
	}
	registry := vecstore.NewRegistry(opener)

	idx, err := registry.Get(ctx, vecstore.ConnectorIndexName("healthy"))
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []vecstore.Record{
		{ID: "h-1", Vector: []float32{1, 0}, Metadata: map[string]string{}},
	}))

	s, err := New(&staticEmbedder{vector: []float32{1, 0}}, &mockIndex{}, config.BoostConfig{}, log.NewNop(),
		WithRegistry(registry))
	require.NoError(t, err)

	resp, err := s.SearchConnectors(ctx, "q", []string{"broken", "healthy"})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "h-1", resp.Results[0].ChunkID)
}

func TestSearchConnectors_RequiresRegistry(t *testing.T) {
	s, err := New(&staticEmbedder{vector: []float32{1}}, &mockIndex{}, defaultBoosts, log.NewNop())
	require.NoError(t, err)

	_, err = s.SearchConnectors(context.Background(), "q", []string{"a"})
	assert.Error(t, err)
}
