// Package websearch provides web search with a vector-backed cache.
//
// Live results are embedded and stored alongside the documentation
// vectors under source_type "web", so past searches keep serving answers
// after the search provider goes away. Cached entries age out after a
// configurable TTL; re-fetching a stale URL overwrites its record and
// refreshes the date.
package websearch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"docpipe/internal/log"
	"docpipe/internal/vecstore"
)

const (
	// dateLayout is how search dates are stored in vector metadata.
	dateLayout = "2006-01-02"

	// embedLimit bounds how much page content feeds the embedding.
	embedLimit = 8000

	// storedTextLimit bounds page content kept in metadata.
	storedTextLimit = 1000

	defaultTopK = 5
)

// Result is a single web search hit, live or cached.
type Result struct {
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	SearchDate string  `json:"search_date"`
	Cached     bool    `json:"is_cached"`
}

// Response is a complete search outcome with cache accounting.
// CachedCount counts cache hits among the returned Results; FreshCount
// counts live results stored during the call, whether or not they made
// the returned set.
type Response struct {
	Query       string   `json:"query"`
	Results     []Result `json:"results"`
	Total       int      `json:"total_results"`
	CachedCount int      `json:"cached_count"`
	FreshCount  int      `json:"fresh_count"`
}

// Provider performs live web searches.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Embedder turns one text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Service is the cache-through search orchestrator. A nil Provider puts
// the service in cached-only mode: still answering from stored vectors,
// never hitting the network.
type Service struct {
	provider Provider
	embedder Embedder
	index    vecstore.Index
	ttl      time.Duration
	log      log.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// NewService builds the search service. provider may be nil for
// cached-only mode; embedder and index may be nil, disabling the cache
// side.
func NewService(provider Provider, embedder Embedder, index vecstore.Index, ttlDays int, logger log.Logger) *Service {
	return &Service{
		provider: provider,
		embedder: embedder,
		index:    index,
		ttl:      time.Duration(ttlDays) * 24 * time.Hour,
		log:      logger,
		now:      time.Now,
	}
}

// Available reports whether the service can answer at all, live or from
// cache.
func (s *Service) Available() bool {
	return s.provider != nil || s.index != nil
}

// LiveEnabled reports whether a live provider is configured.
func (s *Service) LiveEnabled() bool { return s.provider != nil }

type searchConfig struct {
	topK         int
	forceRefresh bool
	cachedOnly   bool
}

// SearchOption adjusts one Search call.
type SearchOption func(*searchConfig)

// WithTopK caps the number of returned results.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithForceRefresh skips the cache and always performs a live search.
func WithForceRefresh() SearchOption {
	return func(c *searchConfig) { c.forceRefresh = true }
}

// WithCachedOnly answers from the cache even when a provider is
// configured.
func WithCachedOnly() SearchOption {
	return func(c *searchConfig) { c.cachedOnly = true }
}

// Search runs the cache-through flow: query the cache, drop stale
// entries, go live when fresh coverage is short, store what came back,
// and return the merged set sorted by score.
func (s *Service) Search(ctx context.Context, query string, opts ...SearchOption) (Response, error) {
	cfg := searchConfig{topK: defaultTopK}
	for _, opt := range opts {
		opt(&cfg)
	}

	var results []Result
	if !cfg.forceRefresh {
		for _, r := range s.searchCached(ctx, query, cfg.topK) {
			if s.stale(r.SearchDate) {
				continue
			}
			results = append(results, r)
		}
	}

	freshCount := 0
	needLive := cfg.forceRefresh || len(results) < cfg.topK
	if needLive && s.provider != nil && !cfg.cachedOnly {
		live, err := s.provider.Search(ctx, query, cfg.topK)
		if err != nil {
			// Degrade to whatever the cache produced.
			s.log.Warn("live web search failed", "query", query, "error", err)
		} else {
			seen := make(map[string]bool, len(results))
			for _, r := range results {
				seen[r.URL] = true
			}
			var fresh []Result
			for _, r := range live {
				if r.URL == "" || seen[r.URL] {
					continue
				}
				seen[r.URL] = true
				fresh = append(fresh, r)
			}
			freshCount = s.store(ctx, fresh, query)
			results = append(results, fresh...)
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > cfg.topK {
		results = results[:cfg.topK]
	}

	// Counted after truncation so the accounting matches what the caller
	// actually receives.
	cachedCount := 0
	for _, r := range results {
		if r.Cached {
			cachedCount++
		}
	}

	return Response{
		Query:       query,
		Results:     results,
		Total:       len(results),
		CachedCount: cachedCount,
		FreshCount:  freshCount,
	}, nil
}

// searchCached pulls previously stored web results by similarity. Cache
// failures degrade to an empty slice; the live path still runs.
func (s *Service) searchCached(ctx context.Context, query string, topK int) []Result {
	if s.index == nil || s.embedder == nil {
		return nil
	}

	vector, err := s.embedder.Embed(ctx, truncateText(query, embedLimit))
	if err != nil {
		s.log.Warn("cache lookup embedding failed", "error", err)
		return nil
	}
	matches, err := s.index.Query(ctx, vector, topK, vecstore.Eq("source_type", "web"))
	if err != nil {
		s.log.Warn("cache lookup failed", "error", err)
		return nil
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, Result{
			URL:        m.Metadata["url"],
			Title:      m.Metadata["title"],
			Content:    m.Metadata["text"],
			Score:      m.Score,
			SearchDate: m.Metadata["search_date"],
			Cached:     true,
		})
	}
	return results
}

// store embeds and upserts live results, returning how many were stored.
// A result that fails to embed is skipped; storage failures lose the
// cache write but never the response.
func (s *Service) store(ctx context.Context, results []Result, query string) int {
	if s.index == nil || s.embedder == nil {
		return 0
	}

	records := make([]vecstore.Record, 0, len(results))
	for _, r := range results {
		if r.Content == "" {
			continue
		}
		vector, err := s.embedder.Embed(ctx, truncateText(r.Content, embedLimit))
		if err != nil {
			s.log.Warn("embedding web result failed", "url", r.URL, "error", err)
			continue
		}
		records = append(records, vecstore.Record{
			ID:     URLID(r.URL),
			Vector: vector,
			Text:   truncateText(r.Content, storedTextLimit),
			Metadata: map[string]string{
				"text":         truncateText(r.Content, storedTextLimit),
				"source_type":  "web",
				"source_file":  "web_search",
				"url":          r.URL,
				"title":        r.Title,
				"search_query": query,
				"search_date":  r.SearchDate,
				"doc_category": "WEB",
				"object_type":  "General",
			},
		})
	}
	if len(records) == 0 {
		return 0
	}
	if err := s.index.Upsert(ctx, records); err != nil {
		s.log.Warn("storing web results failed", "error", err)
		return 0
	}
	return len(records)
}

// stale reports whether a cached search date has aged past the TTL.
// Unparsable dates count as stale. The comparison is strict: an entry
// exactly at the TTL boundary is still fresh.
func (s *Service) stale(searchDate string) bool {
	d, err := time.Parse(dateLayout, searchDate)
	if err != nil {
		return true
	}
	return s.now().Sub(d) > s.ttl
}

// URLID derives the deterministic record ID for a URL, so re-fetching a
// page overwrites its cache entry instead of duplicating it.
func URLID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "web_" + hex.EncodeToString(sum[:])[:24]
}

// ContextString renders the top results as a context block for answer
// synthesis.
func (r Response) ContextString(maxResults int) string {
	if maxResults <= 0 || maxResults > len(r.Results) {
		maxResults = len(r.Results)
	}
	parts := make([]string, 0, maxResults)
	for _, res := range r.Results[:maxResults] {
		parts = append(parts, fmt.Sprintf("[Web Source: %s]\nURL: %s\n%s", res.Title, res.URL, res.Content))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func truncateText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
