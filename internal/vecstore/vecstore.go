// Package vecstore abstracts vector index storage.
//
// The pipeline talks to the Index interface only; Postgres with pgvector
// backs production and an in-process implementation backs tests and
// single-binary runs. Indexes are created lazily on first write, so
// read-only paths never mutate storage.
package vecstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable signals that the backing store cannot be reached.
// Callers degrade (cached-only mode, 503) rather than crash.
var ErrUnavailable = errors.New("vecstore: store unavailable")

// Record is one stored vector with its source text and metadata.
type Record struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]string
}

// Match is a query hit. Score is cosine similarity in [-1, 1]; higher is
// closer.
type Match struct {
	Record
	Score float64
}

// Op is a filter comparison operator.
type Op string

const (
	OpEq Op = "eq"
	OpNe Op = "ne"
)

// Filter restricts query results by a metadata field.
type Filter struct {
	Key   string
	Op    Op
	Value string
}

// Eq builds an equality filter.
func Eq(key, value string) Filter { return Filter{Key: key, Op: OpEq, Value: value} }

// Ne builds an inequality filter.
func Ne(key, value string) Filter { return Filter{Key: key, Op: OpNe, Value: value} }

func (f Filter) validate() error {
	if f.Key == "" {
		return fmt.Errorf("vecstore: filter key is empty")
	}
	switch f.Op {
	case OpEq, OpNe:
		return nil
	default:
		return fmt.Errorf("vecstore: unknown filter op %q", f.Op)
	}
}

// Stats describes an index.
type Stats struct {
	VectorCount int `json:"vector_count"`
	Dimension   int `json:"dimension"`
}

// Index is a named vector collection. Implementations are safe for
// concurrent use.
type Index interface {
	// Upsert inserts records, overwriting any existing record with the
	// same ID. Inserting all-new and re-inserting identical records are
	// both valid; the operation is idempotent.
	Upsert(ctx context.Context, records []Record) error

	// Query returns up to topK matches ordered by descending similarity,
	// after applying all filters. Fewer than topK stored vectors is not
	// an error.
	Query(ctx context.Context, vector []float32, topK int, filters ...Filter) ([]Match, error)

	// Fetch returns the records for the given IDs. Unknown IDs are
	// silently absent from the result.
	Fetch(ctx context.Context, ids []string) ([]Record, error)

	// DeleteAll removes every record in the index.
	DeleteAll(ctx context.Context) error

	// Stats reports the record count and vector dimension.
	Stats(ctx context.Context) (Stats, error)
}

// Opener creates or connects to the named index. The Registry uses it to
// partition storage per connector.
type Opener func(ctx context.Context, name string) (Index, error)
