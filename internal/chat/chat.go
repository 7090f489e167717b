// Package chat answers questions over the indexed documentation using
// retrieval-augmented generation: retrieve ranked context, assemble it
// into a prompt, and hand it to the completion provider.
package chat

import (
	"context"
	"fmt"

	"docpipe/internal/log"
	"docpipe/internal/search"
)

const (
	// defaultTopK is how many context chunks back one answer.
	defaultTopK = 5

	// contextPreviewLimit bounds the context echo in the response;
	// callers get a preview, not the full prompt payload.
	contextPreviewLimit = 500
)

const systemPrompt = `You are a technical documentation expert assistant. Your role is to answer questions about the indexed APIs, record types, integrations and best practices based on the provided documentation context.

Guidelines:
1. Only answer based on the provided context. If the context doesn't contain relevant information, say so.
2. Be specific and cite the source documents when possible.
3. For technical questions, provide code examples when relevant.
4. Highlight any important warnings, limitations, or governance considerations.
5. If asked about API limits or permissions, be precise about the requirements.

Format your responses in a clear, structured manner using:
- Headers for different sections
- Bullet points for lists
- Code blocks for API examples
- Tables for comparing options when appropriate`

const noContextAnswer = "I couldn't find relevant documentation to answer this question. " +
	"Please try rephrasing or ensure the documentation has been indexed."

// Retriever supplies ranked context for a question. search.Searcher
// satisfies it.
type Retriever interface {
	Search(ctx context.Context, query string, opts ...search.Option) (*search.Response, error)
}

// Completer generates the answer text. llm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Response is one answered question with its source attribution.
type Response struct {
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	Sources     []string `json:"sources"`
	ContextUsed string   `json:"context_used"`
	Model       string   `json:"model"`
}

// Service is the RAG question-answering orchestrator.
type Service struct {
	retriever Retriever
	completer Completer
	model     string
	log       log.Logger
}

// New creates a chat service. model is recorded on responses for
// attribution only; the completer decides what actually runs.
func New(retriever Retriever, completer Completer, model string, logger log.Logger) (*Service, error) {
	if retriever == nil {
		return nil, fmt.Errorf("chat: retriever is nil")
	}
	if completer == nil {
		return nil, fmt.Errorf("chat: completer is nil")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{retriever: retriever, completer: completer, model: model, log: logger}, nil
}

// Ask retrieves context for the question and generates an answer. An
// empty retrieval produces a canned "nothing indexed" answer without
// calling the completion provider.
func (s *Service) Ask(ctx context.Context, question string, opts ...search.Option) (*Response, error) {
	opts = append([]search.Option{search.WithTopK(defaultTopK)}, opts...)
	retrieved, err := s.retriever.Search(ctx, question, opts...)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	if len(retrieved.Results) == 0 {
		s.log.Info("no context retrieved", "question", question)
		return &Response{
			Question: question,
			Answer:   noContextAnswer,
			Sources:  []string{},
			Model:    s.model,
		}, nil
	}

	contextBlock := retrieved.ContextString()
	answer, err := s.completer.Complete(ctx, systemPrompt, userPrompt(question, contextBlock))
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	return &Response{
		Question:    question,
		Answer:      answer,
		Sources:     sources(retrieved.Results),
		ContextUsed: preview(contextBlock),
		Model:       s.model,
	}, nil
}

func userPrompt(question, contextBlock string) string {
	return fmt.Sprintf(`Based on the following documentation context, please answer the question.

DOCUMENTATION CONTEXT:
%s

QUESTION: %s

Please provide a comprehensive answer based on the documentation above.`, contextBlock, question)
}

// sources deduplicates attribution labels preserving first-seen order.
// Web results are attributed by URL, everything else by source file.
func sources(results []search.Result) []string {
	seen := make(map[string]struct{}, len(results))
	out := make([]string, 0, len(results))
	for _, r := range results {
		label := r.SourceFile
		if r.SourceType == "web" && r.URL != "" {
			label = r.URL
		}
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

func preview(s string) string {
	if len(s) > contextPreviewLimit {
		return s[:contextPreviewLimit] + "..."
	}
	return s
}
