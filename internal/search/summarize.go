package search

import (
	"context"
	"fmt"
	"sync"
)

// summaryWorkers bounds concurrent summarization calls so one query can
// never flood the LLM provider.
const summaryWorkers = 5

// SummaryUnavailable marks a result whose summarization call failed. The
// failure is isolated to that result; the rest of the response is intact.
const SummaryUnavailable = "summary unavailable"

const summarySystemPrompt = "You summarize technical documentation excerpts. " +
	"Condense the excerpt into 2-3 sentences, keeping only what is relevant to the user's question. " +
	"Preserve exact identifiers, field names and limits."

// Summarizer produces a completion from a system and user prompt.
// llm.Client satisfies it.
type Summarizer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// summarize attaches a summary to the top maxSummaries results in place.
// Calls run on a fixed-size worker pool; each summary lands on the result
// that produced it, and a failed call degrades that one result to the
// SummaryUnavailable marker.
func (s *Searcher) summarize(ctx context.Context, query string, results []Result) {
	n := len(results)
	if n > s.maxSummaries {
		n = s.maxSummaries
	}
	if n == 0 {
		return
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i].Summary = s.summarizeOne(ctx, query, results[i])
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

func (s *Searcher) summarizeOne(ctx context.Context, query string, r Result) string {
	user := fmt.Sprintf("Question: %s\n\nExcerpt from %s:\n%s", query, r.SourceFile, r.Text)
	summary, err := s.summarizer.Complete(ctx, summarySystemPrompt, user)
	if err != nil {
		s.log.Warn("summarization failed", "chunk_id", r.ChunkID, "error", err)
		return SummaryUnavailable
	}
	return summary
}
