package websearch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/internal/log"
	"docpipe/internal/vecstore"
)

// fixedNow anchors staleness checks in tests. Midnight keeps date
// arithmetic exact: stored dates parse to midnight UTC.
var fixedNow = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

// hashEmbedder produces a deterministic unit-ish vector per text.
type hashEmbedder struct {
	calls int
	fail  bool
}

func (e *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.fail {
		return nil, errors.New("embedding down")
	}
	var sum float32
	for _, r := range text {
		sum += float32(r % 13)
	}
	return []float32{sum + 1, 1}, nil
}

// mockProvider serves canned results and records calls. ignoreLimit
// mimics engines that over-deliver past the requested maximum.
type mockProvider struct {
	results     []Result
	err         error
	calls       int
	ignoreLimit bool
}

func (p *mockProvider) Search(_ context.Context, query string, maxResults int) ([]Result, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if !p.ignoreLimit && len(p.results) > maxResults {
		return p.results[:maxResults], nil
	}
	return p.results, nil
}

func newService(t *testing.T, provider Provider, index vecstore.Index) (*Service, *hashEmbedder) {
	t.Helper()
	embedder := &hashEmbedder{}
	s := NewService(provider, embedder, index, 7, log.NewNop())
	s.now = func() time.Time { return fixedNow }
	return s, embedder
}

func liveResult(url, title string, score float64) Result {
	return Result{
		URL:        url,
		Title:      title,
		Content:    "content for " + title,
		Score:      score,
		SearchDate: fixedNow.Format(dateLayout),
	}
}

// seedCache stores a web result dated daysAgo days before fixedNow.
func seedCache(t *testing.T, s *Service, index vecstore.Index, url, title string, daysAgo int) {
	t.Helper()
	date := fixedNow.AddDate(0, 0, -daysAgo).Format(dateLayout)
	vec, err := s.embedder.Embed(context.Background(), "content for "+title)
	require.NoError(t, err)
	require.NoError(t, index.Upsert(context.Background(), []vecstore.Record{{
		ID:     URLID(url),
		Vector: vec,
		Text:   "content for " + title,
		Metadata: map[string]string{
			"text":        "content for " + title,
			"source_type": "web",
			"url":         url,
			"title":       title,
			"search_date": date,
		},
	}}))
}

func TestSearch_ServesFreshCacheWithoutLiveCall(t *testing.T) {
	index := vecstore.NewMemory()
	provider := &mockProvider{}
	s, _ := newService(t, provider, index)

	for i := 0; i < 5; i++ {
		seedCache(t, s, index, urlN(i), titleN(i), 2)
	}

	resp, err := s.Search(context.Background(), "query", WithTopK(5))
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, 5, resp.CachedCount)
	assert.Equal(t, 0, resp.FreshCount)
	assert.Equal(t, 0, provider.calls, "cache satisfied the request; no live search")
	for _, r := range resp.Results {
		assert.True(t, r.Cached)
	}
}

func TestSearch_StaleEntriesTriggerLiveSearch(t *testing.T) {
	index := vecstore.NewMemory()
	provider := &mockProvider{results: []Result{
		liveResult("https://x.test/new", "New Page", 0.9),
	}}
	s, _ := newService(t, provider, index)

	// 8 days old with a 7 day TTL: stale, strictly past the boundary.
	seedCache(t, s, index, "https://x.test/old", "Old Page", 8)

	resp, err := s.Search(context.Background(), "query", WithTopK(5))
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, 0, resp.CachedCount)
	assert.Equal(t, 1, resp.FreshCount)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "https://x.test/new", resp.Results[0].URL)
	assert.False(t, resp.Results[0].Cached)
}

func TestSearch_TTLBoundaryIsFresh(t *testing.T) {
	index := vecstore.NewMemory()
	s, _ := newService(t, nil, index)

	// Exactly 7 days old: still fresh under a strict comparison.
	seedCache(t, s, index, "https://x.test/edge", "Edge", 7)

	resp, err := s.Search(context.Background(), "query", WithTopK(1))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.CachedCount)
}

func TestSearch_DeduplicatesByURL(t *testing.T) {
	index := vecstore.NewMemory()
	provider := &mockProvider{results: []Result{
		liveResult("https://x.test/cached", "Cached Page", 0.99),
		liveResult("https://x.test/new", "New Page", 0.5),
	}}
	s, _ := newService(t, provider, index)

	seedCache(t, s, index, "https://x.test/cached", "Cached Page", 1)

	resp, err := s.Search(context.Background(), "query", WithTopK(5))
	require.NoError(t, err)
	// The cached URL appears once; only the genuinely new one is stored.
	assert.Equal(t, 1, resp.FreshCount)
	urls := make(map[string]int)
	for _, r := range resp.Results {
		urls[r.URL]++
	}
	assert.Equal(t, 1, urls["https://x.test/cached"])
	assert.Equal(t, 1, urls["https://x.test/new"])
}

func TestSearch_StoresLiveResults(t *testing.T) {
	index := vecstore.NewMemory()
	provider := &mockProvider{results: []Result{
		liveResult("https://x.test/a", "Page A", 0.9),
	}}
	s, _ := newService(t, provider, index)

	_, err := s.Search(context.Background(), "the query", WithTopK(5))
	require.NoError(t, err)

	records, err := index.Fetch(context.Background(), []string{URLID("https://x.test/a")})
	require.NoError(t, err)
	require.Len(t, records, 1)
	meta := records[0].Metadata
	assert.Equal(t, "web", meta["source_type"])
	assert.Equal(t, "WEB", meta["doc_category"])
	assert.Equal(t, "web_search", meta["source_file"])
	assert.Equal(t, "the query", meta["search_query"])
	assert.Equal(t, fixedNow.Format(dateLayout), meta["search_date"])
}

func TestSearch_RefetchRefreshesDate(t *testing.T) {
	index := vecstore.NewMemory()
	provider := &mockProvider{results: []Result{
		liveResult("https://x.test/page", "Page", 0.9),
	}}
	s, _ := newService(t, provider, index)

	seedCache(t, s, index, "https://x.test/page", "Page", 30)

	_, err := s.Search(context.Background(), "query", WithTopK(5))
	require.NoError(t, err)

	records, err := index.Fetch(context.Background(), []string{URLID("https://x.test/page")})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, fixedNow.Format(dateLayout), records[0].Metadata["search_date"])

	stats, err := index.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.VectorCount, "refetch overwrote, did not duplicate")
}

func TestSearch_NilProviderCachedOnly(t *testing.T) {
	index := vecstore.NewMemory()
	s, _ := newService(t, nil, index)

	seedCache(t, s, index, "https://x.test/a", "A", 1)

	resp, err := s.Search(context.Background(), "query", WithTopK(5))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 1, resp.CachedCount)
	assert.Equal(t, 0, resp.FreshCount)
	assert.True(t, s.Available())
	assert.False(t, s.LiveEnabled())
}

func TestSearch_ForceRefreshSkipsCache(t *testing.T) {
	index := vecstore.NewMemory()
	provider := &mockProvider{results: []Result{
		liveResult("https://x.test/new", "New", 0.9),
	}}
	s, _ := newService(t, provider, index)

	seedCache(t, s, index, "https://x.test/old", "Old", 1)

	resp, err := s.Search(context.Background(), "query", WithTopK(5), WithForceRefresh())
	require.NoError(t, err)
	assert.Equal(t, 0, resp.CachedCount)
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, 1, resp.FreshCount)
}

func TestSearch_ProviderFailureDegradesToCache(t *testing.T) {
	index := vecstore.NewMemory()
	provider := &mockProvider{err: errors.New("search engine down")}
	s, _ := newService(t, provider, index)

	seedCache(t, s, index, "https://x.test/a", "A", 1)

	resp, err := s.Search(context.Background(), "query", WithTopK(5))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 1, resp.CachedCount)
}

func TestSearch_SortsByScoreAndTruncates(t *testing.T) {
	provider := &mockProvider{ignoreLimit: true, results: []Result{
		liveResult("https://x.test/low", "Low", 0.1),
		liveResult("https://x.test/high", "High", 0.9),
		liveResult("https://x.test/mid", "Mid", 0.5),
	}}
	s, _ := newService(t, provider, vecstore.NewMemory())

	resp, err := s.Search(context.Background(), "query", WithTopK(2))
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, "High", resp.Results[0].Title)
	assert.Equal(t, "Mid", resp.Results[1].Title)
}

func TestSearch_CachedCountReflectsReturnedResults(t *testing.T) {
	index := vecstore.NewMemory()
	// Live scores above the cosine ceiling guarantee the cached hit is
	// outranked and truncated away.
	provider := &mockProvider{ignoreLimit: true, results: []Result{
		liveResult("https://x.test/a", "A", 2.0),
		liveResult("https://x.test/b", "B", 1.5),
		liveResult("https://x.test/c", "C", 1.2),
	}}
	s, _ := newService(t, provider, index)

	seedCache(t, s, index, "https://x.test/cached", "Cached", 1)

	resp, err := s.Search(context.Background(), "query", WithTopK(2))
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 0, resp.CachedCount, "cached hit dropped from the returned set")
	assert.Equal(t, 3, resp.FreshCount, "every live result was stored")
	for _, r := range resp.Results {
		assert.False(t, r.Cached)
	}
}

func TestStale(t *testing.T) {
	s, _ := newService(t, nil, nil)

	assert.False(t, s.stale(fixedNow.Format(dateLayout)))
	assert.False(t, s.stale(fixedNow.AddDate(0, 0, -7).Format(dateLayout)))
	assert.True(t, s.stale(fixedNow.AddDate(0, 0, -8).Format(dateLayout)))
	assert.True(t, s.stale("not-a-date"))
	assert.True(t, s.stale(""))
}

func TestURLID(t *testing.T) {
	id := URLID("https://example.com/page")
	assert.Len(t, id, len("web_")+24)
	assert.Equal(t, id, URLID("https://example.com/page"))
	assert.NotEqual(t, id, URLID("https://example.com/other"))
	assert.Equal(t, "web_", id[:4])
}

func TestResponse_ContextString(t *testing.T) {
	resp := Response{Results: []Result{
		{URL: "https://a.test", Title: "A", Content: "alpha"},
		{URL: "https://b.test", Title: "B", Content: "beta"},
	}}

	got := resp.ContextString(5)
	assert.Equal(t, "[Web Source: A]\nURL: https://a.test\nalpha\n\n---\n\n[Web Source: B]\nURL: https://b.test\nbeta", got)

	assert.Equal(t, "[Web Source: A]\nURL: https://a.test\nalpha", resp.ContextString(1))
	assert.Empty(t, Response{}.ContextString(3))
}

func urlN(i int) string {
	return "https://x.test/p" + string(rune('a'+i))
}

func titleN(i int) string {
	return "Page " + string(rune('A'+i))
}
