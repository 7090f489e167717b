package vecstore

import (
	"context"
	"fmt"
	"sync"
)

// Registry hands out one Index per name and caches them, so every caller
// asking for "connector-netsuite" shares the same underlying index.
// Safe for concurrent use.
type Registry struct {
	opener Opener

	mu      sync.Mutex
	indexes map[string]Index
}

// NewRegistry wraps an Opener with per-name caching.
func NewRegistry(opener Opener) *Registry {
	return &Registry{opener: opener, indexes: make(map[string]Index)}
}

// Get returns the index for name, opening it on first request.
func (r *Registry) Get(ctx context.Context, name string) (Index, error) {
	if name == "" {
		return nil, fmt.Errorf("vecstore: empty index name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.indexes[name]; ok {
		return idx, nil
	}
	idx, err := r.opener(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open index %q: %w", name, err)
	}
	r.indexes[name] = idx
	return idx, nil
}

// ConnectorIndexName derives the index name that partitions a
// connector's documents away from the shared documentation index.
func ConnectorIndexName(connector string) string {
	return "connector-" + connector
}
