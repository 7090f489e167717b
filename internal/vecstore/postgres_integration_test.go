//go:build integration

package vecstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/internal/log"
	"docpipe/internal/testutil"
)

func TestPostgres_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	idx, err := NewPostgres(db.Pool, "connector-docs", 3, log.NewNop())
	require.NoError(t, err)

	records := []Record{
		{ID: "a", Vector: []float32{1, 0, 0}, Text: "doc a", Metadata: map[string]string{"source_type": "doc"}},
		{ID: "b", Vector: []float32{0.9, 0.1, 0}, Text: "doc b", Metadata: map[string]string{"source_type": "doc"}},
		{ID: "c", Vector: []float32{0, 1, 0}, Text: "web c", Metadata: map[string]string{"source_type": "web"}},
	}

	t.Run("lazy creation and upsert", func(t *testing.T) {
		require.NoError(t, idx.Upsert(ctx, records))

		stats, err := idx.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.VectorCount)
		assert.Equal(t, 3, stats.Dimension)
	})

	t.Run("upsert is idempotent", func(t *testing.T) {
		require.NoError(t, idx.Upsert(ctx, records))

		stats, err := idx.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.VectorCount)
	})

	t.Run("query orders by similarity", func(t *testing.T) {
		matches, err := idx.Query(ctx, []float32{1, 0, 0}, 10)
		require.NoError(t, err)
		require.Len(t, matches, 3)
		assert.Equal(t, "a", matches[0].ID)
		assert.Equal(t, "b", matches[1].ID)
		assert.InDelta(t, 1.0, matches[0].Score, 1e-4)
	})

	t.Run("query with filters", func(t *testing.T) {
		matches, err := idx.Query(ctx, []float32{1, 0, 0}, 10, Eq("source_type", "web"))
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "c", matches[0].ID)

		matches, err = idx.Query(ctx, []float32{1, 0, 0}, 10, Ne("source_type", "web"))
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})

	t.Run("fetch", func(t *testing.T) {
		got, err := idx.Fetch(ctx, []string{"a", "missing"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "doc a", got[0].Text)
		assert.Equal(t, "doc", got[0].Metadata["source_type"])
		assert.Len(t, got[0].Vector, 3)
	})

	t.Run("dimension mismatch rejected", func(t *testing.T) {
		err := idx.Upsert(ctx, []Record{{ID: "bad", Vector: []float32{1, 2}}})
		assert.ErrorContains(t, err, "dimension")
	})

	t.Run("per-connector partitioning", func(t *testing.T) {
		other, err := NewPostgres(db.Pool, "connector-other", 3, log.NewNop())
		require.NoError(t, err)
		require.NoError(t, other.Upsert(ctx, []Record{
			{ID: "z", Vector: []float32{0, 0, 1}, Text: "other"},
		}))

		stats, err := other.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.VectorCount)

		stats, err = idx.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.VectorCount)
	})

	t.Run("delete all", func(t *testing.T) {
		require.NoError(t, idx.DeleteAll(ctx))
		stats, err := idx.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.VectorCount)
	})
}
