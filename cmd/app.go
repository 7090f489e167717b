package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"docpipe/internal/chat"
	"docpipe/internal/chunk"
	"docpipe/internal/config"
	"docpipe/internal/embed"
	"docpipe/internal/llm"
	"docpipe/internal/log"
	"docpipe/internal/pipeline"
	"docpipe/internal/research"
	"docpipe/internal/search"
	"docpipe/internal/token"
	"docpipe/internal/vecstore"
	"docpipe/internal/websearch"
)

// app holds the wired services. Any field may be nil: a component whose
// configuration is missing is simply unavailable, and commands report
// that instead of crashing at startup.
type app struct {
	cfg *config.Config
	log log.Logger

	pool      *pgxpool.Pool
	embedder  *embed.Client
	llmClient *llm.Client
	registry  *vecstore.Registry
	index     vecstore.Index

	searcher *search.Searcher
	chatSvc  *chat.Service
	webSvc   *websearch.Service
	store    *research.Store
	manager  *research.Manager
}

// setup wires every service the configuration allows. Only an invalid
// configuration is fatal; a missing credential or unreachable database
// degrades the affected services and is logged.
func setup(ctx context.Context, logger log.Logger) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	a := &app{cfg: cfg, log: logger}

	if err := cfg.ValidateEmbeddingCredentials(); err != nil {
		logger.Warn("embedding service unavailable", "error", err)
	} else {
		a.embedder, err = embed.NewClient(embed.Config{
			BaseURL:           cfg.Embedding.BaseURL,
			APIKey:            cfg.Embedding.APIKey,
			Model:             cfg.Embedding.Model,
			Dimension:         cfg.Embedding.Dimension,
			RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		}, logger.With("component", "embed"))
		if err != nil {
			logger.Warn("embedding service unavailable", "error", err)
		}
	}

	if err := cfg.ValidateLLMCredentials(); err != nil {
		logger.Warn("LLM service unavailable", "error", err)
	} else {
		a.llmClient, err = llm.NewClient(llm.Config{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		})
		if err != nil {
			logger.Warn("LLM service unavailable", "error", err)
		}
	}

	a.connectVectorStore(ctx)
	a.buildSearch(ctx)
	a.buildResearch()

	return a, nil
}

func (a *app) connectVectorStore(ctx context.Context) {
	pool, err := pgxpool.New(ctx, a.cfg.PostgresDSN())
	if err != nil {
		a.log.Warn("vector store unavailable", "error", err)
		return
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		a.log.Warn("vector store unavailable", "error", err)
		return
	}
	a.pool = pool
	a.registry = vecstore.NewRegistry(vecstore.PostgresOpener(pool, a.cfg.Embedding.Dimension,
		a.log.With("component", "vecstore")))

	index, err := a.registry.Get(ctx, a.cfg.IndexName)
	if err != nil {
		a.log.Warn("opening vector index failed", "index", a.cfg.IndexName, "error", err)
		return
	}
	a.index = index
}

func (a *app) buildSearch(_ context.Context) {
	if a.embedder == nil || a.index == nil {
		return
	}

	opts := []search.ServiceOption{}
	if a.registry != nil {
		opts = append(opts, search.WithRegistry(a.registry))
	}
	if a.llmClient != nil {
		opts = append(opts, search.WithSummarizer(a.llmClient, a.cfg.MaxSummaries, a.cfg.SummaryWorkers))
	}
	searcher, err := search.New(a.embedder, a.index, a.cfg.Boosts,
		a.log.With("component", "search"), opts...)
	if err != nil {
		a.log.Warn("search service unavailable", "error", err)
		return
	}
	a.searcher = searcher

	if a.llmClient != nil {
		chatSvc, err := chat.New(searcher, a.llmClient, a.cfg.LLM.Model,
			a.log.With("component", "chat"))
		if err != nil {
			a.log.Warn("chat service unavailable", "error", err)
		} else {
			a.chatSvc = chatSvc
		}
	}

	var provider websearch.Provider
	if a.cfg.WebSearch.BaseURL != "" {
		p, err := websearch.NewSearXNG(a.cfg.WebSearch.BaseURL)
		if err != nil {
			a.log.Warn("live web search unavailable", "error", err)
		} else {
			provider = p
		}
	}
	a.webSvc = websearch.NewService(provider, a.embedder, a.index,
		a.cfg.WebSearch.CacheTTLDays, a.log.With("component", "websearch"))
}

func (a *app) buildResearch() {
	store, err := research.NewStore(a.cfg.ConnectorBaseDir)
	if err != nil {
		a.log.Warn("connector store unavailable", "error", err)
		return
	}
	a.store = store

	if a.llmClient == nil {
		a.log.Warn("research agent unavailable", "error", "no LLM client")
		return
	}
	agentOpts := []research.AgentOption{}
	if a.webSvc != nil {
		agentOpts = append(agentOpts, research.WithWebSearcher(a.webSvc))
	}
	if a.embedder != nil && a.registry != nil {
		splitter, err := a.newSplitter()
		if err != nil {
			a.log.Warn("research vectorization unavailable", "error", err)
		} else {
			vec, err := research.NewVectorizer(splitter, a.embedder, a.registry,
				a.cfg.BatchSize, time.Duration(a.cfg.BatchPauseMs)*time.Millisecond,
				a.log.With("component", "research"))
			if err != nil {
				a.log.Warn("research vectorization unavailable", "error", err)
			} else {
				agentOpts = append(agentOpts, research.WithVectorizer(vec))
			}
		}
	}
	agent, err := research.NewAgent(store, a.llmClient,
		a.log.With("component", "research"), agentOpts...)
	if err != nil {
		a.log.Warn("research agent unavailable", "error", err)
		return
	}
	manager, err := research.NewManager(agent, store, a.log.With("component", "research"))
	if err != nil {
		a.log.Warn("research manager unavailable", "error", err)
		return
	}
	a.manager = manager
}

// newIndexer builds the write-path pipeline. Fails when embedding or the
// vector index is unavailable; indexing has no degraded mode.
func (a *app) newIndexer() (*pipeline.Indexer, error) {
	if a.embedder == nil {
		return nil, fmt.Errorf("embedding service unavailable (set OPENAI_API_KEY)")
	}
	if a.index == nil {
		return nil, fmt.Errorf("vector index unavailable (check postgres settings)")
	}

	splitter, err := a.newSplitter()
	if err != nil {
		return nil, err
	}
	return pipeline.New(splitter, a.embedder, a.index,
		a.cfg.BatchSize, time.Duration(a.cfg.BatchPauseMs)*time.Millisecond,
		a.log.With("component", "indexer"))
}

func (a *app) newSplitter() (*chunk.Splitter, error) {
	counter, err := token.NewCounter(a.cfg.Tokenizer)
	if err != nil {
		a.log.Warn("token counter degraded to character estimate", "error", err)
	}
	return chunk.NewSplitter(counter, a.cfg.ChunkSize, a.cfg.ChunkOverlap)
}

// close releases shared resources, stopping background research first.
func (a *app) close(ctx context.Context) {
	if a.manager != nil {
		if err := a.manager.Shutdown(ctx); err != nil {
			a.log.Warn("research shutdown incomplete", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
