package vecstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is an in-process Index. It backs tests and single-binary runs
// where Postgres is not available; contents are lost on exit.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemory creates an empty in-process index.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

// MemoryOpener returns an Opener whose indexes live for the life of the
// process. The same name always yields the same index.
func MemoryOpener() Opener {
	var mu sync.Mutex
	indexes := make(map[string]*Memory)
	return func(_ context.Context, name string) (Index, error) {
		mu.Lock()
		defer mu.Unlock()
		idx, ok := indexes[name]
		if !ok {
			idx = NewMemory()
			indexes[name] = idx
		}
		return idx, nil
	}
}

func (m *Memory) Upsert(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("vecstore: record with empty ID")
		}
		stored := r
		stored.Vector = append([]float32(nil), r.Vector...)
		stored.Metadata = cloneMeta(r.Metadata)
		m.records[r.ID] = stored
	}
	return nil
}

func (m *Memory) Query(_ context.Context, vector []float32, topK int, filters ...Filter) ([]Match, error) {
	for _, f := range filters {
		if err := f.validate(); err != nil {
			return nil, err
		}
	}
	if topK <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Match, 0, len(m.records))
	for _, r := range m.records {
		if !matchesFilters(r.Metadata, filters) {
			continue
		}
		matches = append(matches, Match{Record: r, Score: cosine(vector, r.Vector)})
	}

	// Ties break on ID so results are stable across runs.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *Memory) Fetch(_ context.Context, ids []string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := m.records[id]; ok {
			records = append(records, r)
		}
	}
	return records, nil
}

func (m *Memory) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]Record)
	return nil
}

func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{VectorCount: len(m.records)}
	for _, r := range m.records {
		stats.Dimension = len(r.Vector)
		break
	}
	return stats, nil
}

func matchesFilters(meta map[string]string, filters []Filter) bool {
	for _, f := range filters {
		v, ok := meta[f.Key]
		switch f.Op {
		case OpEq:
			if !ok || v != f.Value {
				return false
			}
		case OpNe:
			if ok && v == f.Value {
				return false
			}
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func cloneMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
