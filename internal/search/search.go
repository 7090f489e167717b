// Package search ranks vector-index matches for retrieval.
//
// A Searcher embeds the query once, fans it out to the vector index (and
// optionally to per-connector indexes), applies the per-source-type score
// boost policy, and re-sorts by boosted score. Boosting is a deliberate
// re-ranking bias toward source kinds judged more information-dense per
// token; the multipliers live in configuration, not here.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"docpipe/internal/config"
	"docpipe/internal/log"
	"docpipe/internal/vecstore"
)

const defaultTopK = 10

// Categories lists every document category the index may carry, including
// the synthetic GENERAL and WEB buckets. Exposed through index stats so
// callers can build filter UIs without scanning the index.
var Categories = []string{
	"SOAP", "REST", "GOVERNANCE", "PERMISSION", "RECORD",
	"SEARCH", "CUSTOM", "GENERAL", "WEB",
}

// Embedder produces the query vector. Consumers define the interface;
// embed.Client satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Result is one ranked hit, query-scoped and ephemeral. Score is the
// boosted similarity in [0, 1].
type Result struct {
	ChunkID     string            `json:"chunk_id"`
	Score       float64           `json:"score"`
	Text        string            `json:"text"`
	SourceFile  string            `json:"source_file"`
	SourceType  string            `json:"source_type"`
	DocCategory string            `json:"doc_category"`
	ObjectType  string            `json:"object_type"`
	URL         string            `json:"url,omitempty"`
	Title       string            `json:"title,omitempty"`
	Summary     string            `json:"summary,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Response is a full ranked answer to one query.
type Response struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
	Total   int      `json:"total_results"`
}

// DocResults returns the results that did not originate from web search.
func (r *Response) DocResults() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.SourceType != "web" {
			out = append(out, res)
		}
	}
	return out
}

// WebResults returns the web-originated results.
func (r *Response) WebResults() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.SourceType == "web" {
			out = append(out, res)
		}
	}
	return out
}

// ContextString renders the results as an LLM prompt context block. Web
// results carry their URL so the model can attribute claims; document
// results carry the source filename.
func (r *Response) ContextString() string {
	parts := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		text := res.Text
		if res.Summary != "" && res.Summary != SummaryUnavailable {
			text = res.Summary
		}
		if res.SourceType == "web" {
			parts = append(parts, fmt.Sprintf("[Web Source: %s]\nURL: %s\n%s", res.Title, res.URL, text))
		} else {
			parts = append(parts, fmt.Sprintf("[Doc Source: %s]\n%s", res.SourceFile, text))
		}
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// StatsReport describes the index for callers. Status is "ok" or "error";
// stats collection degrades to an error report rather than failing.
type StatsReport struct {
	Status       string   `json:"status"`
	TotalVectors int      `json:"total_vectors"`
	Dimension    int      `json:"dimension"`
	Categories   []string `json:"categories"`
	Error        string   `json:"error,omitempty"`
}

// Searcher ranks index matches for a query.
type Searcher struct {
	embedder Embedder
	index    vecstore.Index
	registry *vecstore.Registry
	boosts   config.BoostConfig

	summarizer   Summarizer
	maxSummaries int
	workers      int

	log log.Logger
}

// ServiceOption configures a Searcher at construction time.
type ServiceOption func(*Searcher)

// WithSummarizer enables the summarization fan-out. max bounds how many
// top results get a summary per query; workers bounds the concurrent
// summarization calls.
func WithSummarizer(s Summarizer, max, workers int) ServiceOption {
	return func(sr *Searcher) {
		sr.summarizer = s
		sr.maxSummaries = max
		sr.workers = workers
	}
}

// WithRegistry enables per-connector search through the given registry.
func WithRegistry(r *vecstore.Registry) ServiceOption {
	return func(sr *Searcher) { sr.registry = r }
}

// New creates a Searcher over the given index.
func New(embedder Embedder, index vecstore.Index, boosts config.BoostConfig, logger log.Logger, opts ...ServiceOption) (*Searcher, error) {
	if embedder == nil {
		return nil, fmt.Errorf("search: embedder is nil")
	}
	if index == nil {
		return nil, fmt.Errorf("search: index is nil")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	s := &Searcher{
		embedder:     embedder,
		index:        index,
		boosts:       boosts,
		maxSummaries: 5,
		workers:      summaryWorkers,
		log:          logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxSummaries < 0 {
		return nil, fmt.Errorf("search: max summaries must be >= 0, got %d", s.maxSummaries)
	}
	if s.workers < 1 {
		return nil, fmt.Errorf("search: summary workers must be >= 1, got %d", s.workers)
	}
	return s, nil
}

type searchOptions struct {
	topK      int
	filters   []vecstore.Filter
	summaries bool
}

// Option configures one Search call.
type Option func(*searchOptions)

// WithTopK sets the maximum number of results. Defaults to 10.
func WithTopK(k int) Option {
	return func(o *searchOptions) { o.topK = k }
}

// WithFilter adds metadata filters to the index query.
func WithFilter(filters ...vecstore.Filter) Option {
	return func(o *searchOptions) { o.filters = append(o.filters, filters...) }
}

// WithSummaries requests the summarization pass for the top results.
// Ignored when no summarizer is configured.
func WithSummaries() Option {
	return func(o *searchOptions) { o.summaries = true }
}

func buildOptions(opts []Option) searchOptions {
	o := searchOptions{topK: defaultTopK}
	for _, opt := range opts {
		opt(&o)
	}
	if o.topK < 1 {
		o.topK = defaultTopK
	}
	return o
}

// Search embeds the query, queries the index, boosts and re-sorts.
func (s *Searcher) Search(ctx context.Context, query string, opts ...Option) (*Response, error) {
	o := buildOptions(opts)
	results, err := s.rank(ctx, s.index, query, o)
	if err != nil {
		return nil, err
	}
	if o.summaries && s.summarizer != nil {
		s.summarize(ctx, query, results)
	}
	return &Response{Query: query, Results: results, Total: len(results)}, nil
}

// SearchDocsOnly excludes web-originated records from the query.
func (s *Searcher) SearchDocsOnly(ctx context.Context, query string, opts ...Option) (*Response, error) {
	opts = append(opts, WithFilter(vecstore.Ne("source_type", "web")))
	return s.Search(ctx, query, opts...)
}

// SearchWebOnly restricts the query to web-originated records.
func (s *Searcher) SearchWebOnly(ctx context.Context, query string, opts ...Option) (*Response, error) {
	opts = append(opts, WithFilter(vecstore.Eq("source_type", "web")))
	return s.Search(ctx, query, opts...)
}

// SearchConnectors ranks each named connector's index independently, then
// merges by boosted score and truncates globally. A connector whose index
// cannot be opened or queried is logged and skipped; the merged response
// still covers the rest.
func (s *Searcher) SearchConnectors(ctx context.Context, query string, connectors []string, opts ...Option) (*Response, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("search: connector search requires a registry")
	}
	o := buildOptions(opts)

	var merged []Result
	for _, name := range connectors {
		idx, err := s.registry.Get(ctx, vecstore.ConnectorIndexName(name))
		if err != nil {
			s.log.Warn("connector index unavailable", "connector", name, "error", err)
			continue
		}
		results, err := s.rank(ctx, idx, query, o)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			s.log.Warn("connector query failed", "connector", name, "error", err)
			continue
		}
		for i := range results {
			if results[i].Metadata == nil {
				results[i].Metadata = map[string]string{}
			}
			results[i].Metadata["connector"] = name
		}
		merged = append(merged, results...)
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > o.topK {
		merged = merged[:o.topK]
	}
	if o.summaries && s.summarizer != nil {
		s.summarize(ctx, query, merged)
	}
	return &Response{Query: query, Results: merged, Total: len(merged)}, nil
}

// IndexStats reports index size and the known category list. Failures
// degrade to an error-status report; callers always get a usable value.
func (s *Searcher) IndexStats(ctx context.Context) StatsReport {
	report := StatsReport{Status: "ok", Categories: Categories}
	stats, err := s.index.Stats(ctx)
	if err != nil {
		s.log.Warn("index stats failed", "error", err)
		report.Status = "error"
		report.Error = err.Error()
		return report
	}
	report.TotalVectors = stats.VectorCount
	report.Dimension = stats.Dimension
	return report
}

func (s *Searcher) rank(ctx context.Context, idx vecstore.Index, query string, o searchOptions) ([]Result, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	matches, err := idx.Query(ctx, vector, o.topK, o.filters...)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, s.fromMatch(m))
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

func (s *Searcher) fromMatch(m vecstore.Match) Result {
	md := m.Metadata
	r := Result{
		ChunkID:     m.ID,
		Score:       boost(m.Score, s.boostFor(md["source_type"])),
		Text:        m.Text,
		SourceFile:  md["source_file"],
		SourceType:  md["source_type"],
		DocCategory: md["doc_category"],
		ObjectType:  md["object_type"],
		URL:         md["url"],
		Title:       md["title"],
		Metadata:    md,
	}
	if r.SourceType == "" {
		r.SourceType = "doc"
	}
	return r
}

func (s *Searcher) boostFor(sourceType string) float64 {
	var b float64
	switch sourceType {
	case "code":
		b = s.boosts.Code
	case "research":
		b = s.boosts.Research
	case "web":
		b = s.boosts.Web
	default:
		b = s.boosts.Doc
	}
	if b <= 0 {
		return 1.0
	}
	return b
}

// boost multiplies a raw similarity by the source-type policy constant
// and caps at the maximum valid similarity.
func boost(score, multiplier float64) float64 {
	boosted := score * multiplier
	if boosted > 1.0 {
		return 1.0
	}
	return boosted
}
