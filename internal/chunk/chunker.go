package chunk

import (
	"fmt"
	"strings"
)

// separators in descending boundary strength. The empty string is the
// terminal fallback: split by character when no natural boundary exists.
var separators = []string{"\n\n\n", "\n\n", "\n", ". ", ", ", " ", ""}

// TokenCounter measures text length in model tokens.
type TokenCounter interface {
	Count(text string) int
}

// Splitter cuts text into chunks of at most chunkSize tokens, with
// adjacent chunks sharing roughly overlap tokens of content. Splitting is
// deterministic: identical input yields identical chunks.
type Splitter struct {
	counter   TokenCounter
	chunkSize int
	overlap   int
}

// NewSplitter builds a Splitter. chunkSize must be positive and overlap
// must be non-negative and smaller than chunkSize.
func NewSplitter(counter TokenCounter, chunkSize, overlap int) (*Splitter, error) {
	if counter == nil {
		return nil, fmt.Errorf("chunk: token counter is required")
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk: chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("chunk: overlap %d must be in [0, %d)", overlap, chunkSize)
	}
	return &Splitter{counter: counter, chunkSize: chunkSize, overlap: overlap}, nil
}

// Split cuts text into chunks within the token budget. Text that already
// fits the budget comes back as a single chunk, unmodified. Empty or
// whitespace-only text yields no chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if s.counter.Count(text) <= s.chunkSize {
		return []string{text}
	}
	return s.split(text, separators)
}

// split recursively divides text at the strongest separator that applies,
// then merges the resulting pieces back into budget-sized chunks with
// overlap. Pieces still over budget descend to weaker separators.
func (s *Splitter) split(text string, seps []string) []string {
	sep, rest := pickSeparator(text, seps)
	parts := cut(text, sep)

	var chunks []string
	var pending []string
	for _, part := range parts {
		if s.counter.Count(part) <= s.chunkSize {
			pending = append(pending, part)
			continue
		}
		// Oversized piece: flush what we have, then recurse on it with
		// the weaker separators.
		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending, sep)...)
			pending = nil
		}
		if len(rest) == 0 {
			// No weaker boundary left; emit the atomic run as-is.
			chunks = append(chunks, part)
			continue
		}
		chunks = append(chunks, s.split(part, rest)...)
	}
	if len(pending) > 0 {
		chunks = append(chunks, s.merge(pending, sep)...)
	}
	return chunks
}

// merge packs pieces into chunks of at most chunkSize tokens, joined with
// the separator they were cut at. When a chunk fills up, leading pieces
// are dropped from the window until at most overlap tokens remain; the
// retained tail becomes the head of the next chunk, so adjacent chunks
// share that content verbatim.
func (s *Splitter) merge(pieces []string, sep string) []string {
	sepTokens := s.counter.Count(sep)

	var chunks []string
	var window []string
	total := 0

	for _, piece := range pieces {
		size := s.counter.Count(piece)
		cost := size
		if len(window) > 0 {
			cost += sepTokens
		}
		if len(window) > 0 && total+cost > s.chunkSize {
			if c := join(window, sep); c != "" {
				chunks = append(chunks, c)
			}
			// Retain the overlap tail, and keep popping if the incoming
			// piece still would not fit.
			for len(window) > 0 && (total > s.overlap || total+size+sepTokens > s.chunkSize) {
				total -= s.counter.Count(window[0])
				if len(window) > 1 {
					total -= sepTokens
				}
				window = window[1:]
			}
		}
		if len(window) > 0 {
			total += sepTokens
		}
		window = append(window, piece)
		total += size
	}
	if c := join(window, sep); c != "" {
		chunks = append(chunks, c)
	}
	return chunks
}

// pickSeparator returns the strongest separator present in text together
// with the weaker separators remaining below it. The empty-string
// fallback always matches.
func pickSeparator(text string, seps []string) (string, []string) {
	for i, sep := range seps {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, seps[i+1:]
		}
	}
	return "", nil
}

// cut splits text at sep without discarding it: the separator is
// re-attached when pieces are merged back. The empty separator splits
// into individual characters.
func cut(text, sep string) []string {
	if sep == "" {
		runes := []rune(text)
		parts := make([]string, len(runes))
		for i, r := range runes {
			parts[i] = string(r)
		}
		return parts
	}
	return strings.Split(text, sep)
}

// join reassembles pieces with their separator and trims surrounding
// whitespace from the result. Returns "" when nothing remains.
func join(pieces []string, sep string) string {
	return strings.TrimSpace(strings.Join(pieces, sep))
}
