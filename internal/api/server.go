// Package api exposes the documentation pipeline over HTTP.
//
// Endpoints:
//
//	GET  /health                            liveness + per-service availability
//	POST /api/search                        semantic search over the index
//	POST /api/web-search                    cached/live web search
//	POST /api/refresh-web                   force-refresh web results
//	POST /api/chat                          RAG question answering
//	GET  /api/stats                         index statistics
//	GET  /api/categories                    known document categories
//	GET  /api/web-search-status             web search availability detail
//	GET  /api/connectors                    list connector projects
//	POST /api/connectors                    create a connector project
//	GET  /api/connectors/{id}               connector detail
//	DELETE /api/connectors/{id}             remove a connector project
//	POST /api/connectors/{id}/generate      start background research
//	GET  /api/connectors/{id}/status        research progress
//	POST /api/connectors/{id}/cancel        cancel running research
//	GET  /api/connectors/{id}/research      research document content
//	POST /api/connectors/{id}/search        search one connector index
//	POST /api/connectors/search-all         search all complete connectors
//
// Every service is optional. A request against an unconfigured service
// answers 503; the rest of the API keeps working.
package api

import (
	"context"
	"net/http"
	"time"

	"docpipe/internal/chat"
	"docpipe/internal/log"
	"docpipe/internal/research"
	"docpipe/internal/search"
	"docpipe/internal/websearch"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout guards against slow-header clients (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	ReadTimeout  = 30 * time.Second
	WriteTimeout = 120 * time.Second
	IdleTimeout  = 120 * time.Second
)

// SearchService is the slice of search.Searcher the API consumes.
type SearchService interface {
	Search(ctx context.Context, query string, opts ...search.Option) (*search.Response, error)
	SearchDocsOnly(ctx context.Context, query string, opts ...search.Option) (*search.Response, error)
	SearchConnectors(ctx context.Context, query string, connectors []string, opts ...search.Option) (*search.Response, error)
	IndexStats(ctx context.Context) search.StatsReport
}

// ChatService answers questions with retrieved context.
type ChatService interface {
	Ask(ctx context.Context, question string, opts ...search.Option) (*chat.Response, error)
}

// WebSearchService serves cached and live web results.
type WebSearchService interface {
	Search(ctx context.Context, query string, opts ...websearch.SearchOption) (websearch.Response, error)
	Available() bool
	LiveEnabled() bool
}

// Services carries the backing services. Any nil field marks that part
// of the API unavailable (503), not broken.
type Services struct {
	Search     SearchService
	Chat       ChatService
	WebSearch  WebSearchService
	Connectors *research.Store
	Research   *research.Manager
}

// Server is the HTTP server for the pipeline's REST API.
type Server struct {
	mux *http.ServeMux
	log log.Logger

	health     *healthHandler
	search     *searchHandler
	webSearch  *webSearchHandler
	chat       *chatHandler
	connectors *connectorHandler
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(svcs Services, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	mux := http.NewServeMux()
	s := &Server{
		mux:        mux,
		log:        logger,
		health:     &healthHandler{svcs: svcs},
		search:     &searchHandler{svc: svcs.Search, log: logger},
		webSearch:  &webSearchHandler{svc: svcs.WebSearch, log: logger},
		chat:       &chatHandler{svc: svcs.Chat, log: logger},
		connectors: &connectorHandler{store: svcs.Connectors, manager: svcs.Research, search: svcs.Search, log: logger},
	}
	s.health.registerRoutes(mux)
	s.search.registerRoutes(mux)
	s.webSearch.registerRoutes(mux)
	s.chat.registerRoutes(mux)
	s.connectors.registerRoutes(mux)
	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery, then logging, then the mux.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, s.recoveryMiddleware, s.loggingMiddleware)
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
