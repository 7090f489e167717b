// Package pipeline drives documents through chunking, embedding and
// vector upsert.
//
// The Indexer works in batches to respect embedding API limits and paces
// consecutive batches to avoid rate-limit churn. Because chunk IDs are
// content-addressed, re-running the pipeline over unchanged sources
// rewrites records in place instead of duplicating them.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"docpipe/internal/chunk"
	"docpipe/internal/document"
	"docpipe/internal/log"
	"docpipe/internal/vecstore"
)

// Splitter cuts a document into chunks.
type Splitter interface {
	Document(doc document.Document) []chunk.Chunk
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Stats summarizes an indexing run.
type Stats struct {
	DocumentsProcessed int           `json:"documents_processed"`
	ChunksCreated      int           `json:"chunks_created"`
	VectorsUpserted    int           `json:"vectors_upserted"`
	Errors             int           `json:"errors"`
	Duration           time.Duration `json:"duration"`
}

// Indexer turns normalized documents into stored vectors.
type Indexer struct {
	splitter  Splitter
	embedder  Embedder
	index     vecstore.Index
	batchSize int
	pause     time.Duration
	log       log.Logger
}

// New builds an Indexer. batchSize must be positive; pause may be zero
// to disable pacing.
func New(splitter Splitter, embedder Embedder, index vecstore.Index, batchSize int, pause time.Duration, logger log.Logger) (*Indexer, error) {
	if splitter == nil || embedder == nil || index == nil {
		return nil, fmt.Errorf("pipeline: splitter, embedder and index are required")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("pipeline: batch size must be positive, got %d", batchSize)
	}
	if pause < 0 {
		return nil, fmt.Errorf("pipeline: pause must not be negative")
	}
	return &Indexer{
		splitter:  splitter,
		embedder:  embedder,
		index:     index,
		batchSize: batchSize,
		pause:     pause,
		log:       logger,
	}, nil
}

// IndexAll processes every document, isolating failures: a document whose
// embedding or upsert fails is counted in Stats.Errors and the run moves
// on. The only returned error is context cancellation.
func (ix *Indexer) IndexAll(ctx context.Context, docs []document.Document) (Stats, error) {
	start := time.Now()
	var stats Stats

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			stats.Duration = time.Since(start)
			return stats, err
		}

		chunks, vectors, err := ix.IndexDocument(ctx, doc)
		stats.ChunksCreated += chunks
		stats.VectorsUpserted += vectors
		if err != nil {
			if ctx.Err() != nil {
				stats.Duration = time.Since(start)
				return stats, ctx.Err()
			}
			stats.Errors++
			ix.log.Error("indexing document failed", "source", doc.SourceID, "error", err)
			continue
		}
		stats.DocumentsProcessed++
	}

	stats.Duration = time.Since(start)
	ix.log.Info("indexing run complete",
		"documents", stats.DocumentsProcessed,
		"chunks", stats.ChunksCreated,
		"vectors", stats.VectorsUpserted,
		"errors", stats.Errors,
		"duration", stats.Duration)
	return stats, nil
}

// IndexDocument chunks, embeds and upserts one document. It returns the
// number of chunks created and vectors upserted; on error the counts
// cover what was stored before the failure.
func (ix *Indexer) IndexDocument(ctx context.Context, doc document.Document) (chunksCreated, vectorsUpserted int, err error) {
	chunks := ix.splitter.Document(doc)
	chunksCreated = len(chunks)
	if chunksCreated == 0 {
		return 0, 0, nil
	}

	for i := 0; i < len(chunks); i += ix.batchSize {
		if i > 0 && ix.pause > 0 {
			if err := sleep(ctx, ix.pause); err != nil {
				return chunksCreated, vectorsUpserted, err
			}
		}

		end := i + ix.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]

		n, err := ix.upsertBatch(ctx, batch)
		vectorsUpserted += n
		if err != nil {
			return chunksCreated, vectorsUpserted, err
		}
	}
	return chunksCreated, vectorsUpserted, nil
}

func (ix *Indexer) upsertBatch(ctx context.Context, batch []chunk.Chunk) (int, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed batch: %w", err)
	}

	records := make([]vecstore.Record, len(batch))
	for i, c := range batch {
		records[i] = vecstore.Record{
			ID:       c.ID,
			Vector:   vectors[i],
			Text:     c.Text,
			Metadata: c.Metadata,
		}
	}
	if err := ix.index.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("upsert batch: %w", err)
	}
	return len(records), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
