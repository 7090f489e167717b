package research

import (
	"context"
	"fmt"
	"time"

	"docpipe/internal/document"
	"docpipe/internal/log"
	"docpipe/internal/pipeline"
	"docpipe/internal/vecstore"
)

// Vectorizer chunks and embeds a finished research document into the
// connector's own vector partition, so connector search queries an index
// that actually holds the report.
type Vectorizer struct {
	splitter  pipeline.Splitter
	embedder  pipeline.Embedder
	registry  *vecstore.Registry
	batchSize int
	pause     time.Duration
	log       log.Logger
}

// NewVectorizer builds a Vectorizer over the given registry. batchSize
// and pause follow the same batching rules as the indexing pipeline.
func NewVectorizer(splitter pipeline.Splitter, embedder pipeline.Embedder, registry *vecstore.Registry,
	batchSize int, pause time.Duration, logger log.Logger) (*Vectorizer, error) {
	if splitter == nil {
		return nil, fmt.Errorf("research: splitter is nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("research: embedder is nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("research: registry is nil")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Vectorizer{
		splitter:  splitter,
		embedder:  embedder,
		registry:  registry,
		batchSize: batchSize,
		pause:     pause,
		log:       logger,
	}, nil
}

// VectorizeResearch stores content in the connector's index and returns
// the number of vectors written. Re-running over the same content
// overwrites records in place; the count stays stable.
func (v *Vectorizer) VectorizeResearch(ctx context.Context, c Connector, content string) (int, error) {
	indexName := c.IndexName
	if indexName == "" {
		indexName = vecstore.ConnectorIndexName(c.ID)
	}
	index, err := v.registry.Get(ctx, indexName)
	if err != nil {
		return 0, fmt.Errorf("opening connector index %s: %w", indexName, err)
	}

	ix, err := pipeline.New(v.splitter, v.embedder, index, v.batchSize, v.pause, v.log)
	if err != nil {
		return 0, err
	}

	doc := document.Document{
		SourceID: c.ID + "-research",
		Filename: c.ID + "-research.md",
		Text:     content,
		Kind:     document.KindResearch,
		Metadata: map[string]string{
			"connector":      c.ID,
			"connector_name": c.Name,
			"doc_category":   "GENERAL",
		},
	}
	_, vectors, err := ix.IndexDocument(ctx, doc)
	if err != nil {
		return vectors, fmt.Errorf("indexing research document: %w", err)
	}
	v.log.Info("research document vectorized", "connector", c.ID, "index", indexName, "vectors", vectors)
	return vectors, nil
}
