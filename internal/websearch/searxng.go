package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const searxngTimeout = 20 * time.Second

// SearXNG queries a SearXNG instance's JSON API as the live search
// provider.
type SearXNG struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewSearXNG builds a provider for the instance at baseURL.
func NewSearXNG(baseURL string) (*SearXNG, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("websearch: searxng base URL is empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("websearch: invalid searxng base URL: %w", err)
	}
	return &SearXNG{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: searxngTimeout},
		now:        time.Now,
	}, nil
}

type searxngResponse struct {
	Results []struct {
		URL     string  `json:"url"`
		Title   string  `json:"title"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search runs one query and returns at most maxResults hits, stamped
// with today's date.
func (p *SearXNG) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = defaultTopK
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searxng request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searxng request: %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out searxngResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	today := p.now().Format(dateLayout)
	results := make([]Result, 0, maxResults)
	for i, r := range out.Results {
		if i >= maxResults {
			break
		}
		score := r.Score
		if score == 0 {
			// Engines that report no score get a rank-based one so
			// merged sorting stays meaningful.
			score = 1 - float64(i)*0.05
		}
		results = append(results, Result{
			URL:        r.URL,
			Title:      r.Title,
			Content:    r.Content,
			Score:      score,
			SearchDate: today,
		})
	}
	return results, nil
}

// String identifies the provider in logs.
func (p *SearXNG) String() string {
	return "searxng(" + p.baseURL + ")"
}

var _ Provider = (*SearXNG)(nil)
