package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docpipe/internal/log"
	"docpipe/internal/websearch"
)

// sectionPause is the cooperative delay between section generations so
// one research run cannot saturate the LLM provider.
const sectionPause = time.Second

const agentSystemPrompt = `You are an expert technical writer specializing in data integration and ETL connector development.
Your task is to write detailed, production-grade documentation for connector research.

Requirements:
- Write 8-10 detailed sentences per subsection
- Include exact values from documentation (OAuth scopes, permissions, rate limits)
- Use markdown tables where appropriate
- Include inline citations like [web:1], [web:2] referencing web search results
- Focus on data extraction (read operations), not write operations
- If information is not available, explicitly state "N/A - not documented" or "N/A - not supported"`

// Completer generates section text. llm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// WebSearcher supplies supporting web context for a section. Optional;
// websearch.Service satisfies it.
type WebSearcher interface {
	Search(ctx context.Context, query string, opts ...websearch.SearchOption) (websearch.Response, error)
}

// ResearchVectorizer stores a finished research document in the
// connector's vector partition. Optional; *Vectorizer satisfies it.
type ResearchVectorizer interface {
	VectorizeResearch(ctx context.Context, c Connector, content string) (int, error)
}

// Agent generates the full research document for a connector, one
// section at a time. Cancellation is observed between sections only; an
// in-flight completion call finishes (or fails) before the cancel takes
// effect.
type Agent struct {
	store      *Store
	completer  Completer
	web        WebSearcher
	vectorizer ResearchVectorizer
	pause      time.Duration
	log        log.Logger
	now        func() time.Time
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithWebSearcher enables web-search context for section generation.
func WithWebSearcher(w WebSearcher) AgentOption {
	return func(a *Agent) { a.web = w }
}

// WithSectionPause overrides the delay between sections.
func WithSectionPause(d time.Duration) AgentOption {
	return func(a *Agent) { a.pause = d }
}

// WithVectorizer enables vectorization of the finished document into the
// connector's index. Without it research completes with a vector count
// of zero.
func WithVectorizer(v ResearchVectorizer) AgentOption {
	return func(a *Agent) { a.vectorizer = v }
}

// NewAgent creates a research agent writing through the given store.
func NewAgent(store *Store, completer Completer, logger log.Logger, opts ...AgentOption) (*Agent, error) {
	if store == nil {
		return nil, fmt.Errorf("research: store is nil")
	}
	if completer == nil {
		return nil, fmt.Errorf("research: completer is nil")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	a := &Agent{
		store:     store,
		completer: completer,
		pause:     sectionPause,
		log:       logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Generate produces every section of the connector's research document.
// A section whose completion call fails degrades to an error block in
// the document and is recorded as failed; generation continues. Store
// I/O failures abort the run with a failed status. Context cancellation
// between sections leaves the connector in the terminal cancelled state
// and returns the context error.
func (a *Agent) Generate(ctx context.Context, connectorID string) error {
	c, ok := a.store.Get(connectorID)
	if !ok {
		return fmt.Errorf("research: connector %q not found", connectorID)
	}

	if _, err := a.store.Update(connectorID, func(c *Connector) {
		c.Status = StatusResearching
		c.Progress = Progress{TotalSections: len(Sections)}
	}); err != nil {
		return err
	}

	for _, section := range Sections {
		if err := ctx.Err(); err != nil {
			a.markCancelled(connectorID, section.Number)
			return err
		}

		if _, err := a.store.Update(connectorID, func(c *Connector) {
			c.Progress.CurrentSection = section.Number
			c.Progress.CurrentPhase = section.Phase
			c.Progress.CurrentSectionName = section.Name
		}); err != nil {
			return a.fail(connectorID, err)
		}

		block, genErr := a.generateSection(ctx, c, section)
		if err := a.store.AppendResearch(connectorID, block); err != nil {
			return a.fail(connectorID, err)
		}

		if _, err := a.store.Update(connectorID, func(c *Connector) {
			if genErr != nil {
				c.Progress.SectionsFailed = append(c.Progress.SectionsFailed, section.Number)
			} else {
				c.Progress.SectionsCompleted = append(c.Progress.SectionsCompleted, section.Number)
			}
		}); err != nil {
			return a.fail(connectorID, err)
		}
		if genErr != nil {
			a.log.Warn("section generation failed", "connector", connectorID,
				"section", section.Number, "error", genErr)
		}

		if a.pause > 0 {
			select {
			case <-ctx.Done():
				a.markCancelled(connectorID, section.Number)
				return ctx.Err()
			case <-time.After(a.pause):
			}
		}
	}

	if err := a.store.AppendResearch(connectorID, a.closingBlock()); err != nil {
		return a.fail(connectorID, err)
	}

	vectors := 0
	if a.vectorizer != nil {
		content, err := a.store.ResearchDocument(connectorID)
		if err != nil {
			return a.fail(connectorID, err)
		}
		vectors, err = a.vectorizer.VectorizeResearch(ctx, *c, content)
		if err != nil {
			return a.fail(connectorID, fmt.Errorf("vectorizing research: %w", err))
		}
	}

	_, err := a.store.Update(connectorID, func(c *Connector) {
		c.Status = StatusComplete
		c.VectorCount = vectors
		t := a.now().UTC()
		c.CompletedAt = &t
	})
	if err != nil {
		return err
	}
	a.log.Info("research generation complete", "connector", connectorID, "vectors", vectors)
	return nil
}

func (a *Agent) markCancelled(connectorID string, section int) {
	if _, err := a.store.Update(connectorID, func(c *Connector) {
		c.Status = StatusCancelled
	}); err != nil {
		a.log.Error("marking research cancelled failed", "connector", connectorID, "error", err)
		return
	}
	a.log.Info("research generation cancelled", "connector", connectorID, "at_section", section)
}

func (a *Agent) fail(connectorID string, cause error) error {
	if _, err := a.store.Update(connectorID, func(c *Connector) {
		c.Status = StatusFailed
	}); err != nil {
		a.log.Error("marking research failed failed", "connector", connectorID, "error", err)
	}
	return cause
}

func (a *Agent) generateSection(ctx context.Context, c *Connector, section Section) (string, error) {
	webContext := a.webContext(ctx, fmt.Sprintf("%s API %s documentation", c.Name, section.Name))

	prompts := make([]string, 0, len(section.Prompts))
	for _, p := range section.Prompts {
		prompts = append(prompts, "- "+strings.ReplaceAll(p, "{connector}", c.Name))
	}

	userPrompt := fmt.Sprintf(`Generate Section %d: %s for the %s connector research document.

Connector Type: %s
Phase: %s

Questions to answer:
%s

Web Search Results:
%s

Generate comprehensive markdown content for this section. Include:
1. Clear subsection headers (e.g., %d.1, %d.2)
2. Detailed explanations with citations
3. Tables where appropriate (objects, limits, permissions)
4. Code examples if relevant
5. Exact values from documentation (no placeholders)`,
		section.Number, section.Name, c.Name, c.Type, section.PhaseName,
		strings.Join(prompts, "\n"), webContext, section.Number, section.Number)

	content, err := a.completer.Complete(ctx, agentSystemPrompt, userPrompt)
	if err != nil {
		block := fmt.Sprintf("## %d. %s\n\n**Error generating section:** %v\n\n---",
			section.Number, section.Name, err)
		return block, err
	}

	block := fmt.Sprintf(`# Phase %d - %s

## %d. %s

%s

---
*Section generated on %s using web search*`,
		section.Phase, section.PhaseName, section.Number, section.Name, content,
		a.now().UTC().Format("2006-01-02 15:04 UTC"))
	return block, nil
}

// webContext renders web search results for the prompt. Absence of a
// provider or a failed search degrades to a note; sections still
// generate from the model's own knowledge.
func (a *Agent) webContext(ctx context.Context, query string) string {
	if a.web == nil {
		return "Web search not available"
	}
	resp, err := a.web.Search(ctx, query, websearch.WithTopK(5))
	if err != nil {
		return fmt.Sprintf("Web search error: %v", err)
	}
	if len(resp.Results) == 0 {
		return "No results found"
	}
	var b strings.Builder
	for i, r := range resp.Results {
		fmt.Fprintf(&b, "[web:%d] %s\nURL: %s\nContent: %s\n\n", i+1, r.Title, r.URL, truncate(r.Content, 500))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a *Agent) closingBlock() string {
	return fmt.Sprintf(`# Final Deliverables

## Production Recommendations

1. Implement exponential backoff for rate limit handling
2. Use incremental sync with a last-modified cursor where available
3. Implement proper OAuth token refresh before expiration
4. Handle pagination consistently across all objects
5. Implement delete detection via soft delete flags or audit logs
6. Use bulk APIs for historical loads when available
7. Implement proper error categorization (retryable vs non-retryable)
8. Monitor API usage against quotas
9. Implement proper parent-child load ordering

---

*Document generated by the connector research agent on %s*`,
		a.now().UTC().Format("2006-01-02 15:04 UTC"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
