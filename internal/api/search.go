package api

import (
	"net/http"

	"docpipe/internal/log"
	"docpipe/internal/search"
	"docpipe/internal/vecstore"
)

type searchHandler struct {
	svc SearchService
	log log.Logger
}

func (h *searchHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/search", h.search)
	mux.HandleFunc("GET /api/stats", h.stats)
	mux.HandleFunc("GET /api/categories", h.categories)
}

type searchRequest struct {
	Query            string `json:"query"`
	TopK             int    `json:"top_k"`
	Category         string `json:"category"`
	ObjectType       string `json:"object_type"`
	IncludeWeb       bool   `json:"include_web"`
	IncludeSummaries bool   `json:"include_summaries"`
}

// search answers a semantic search over the documentation index. With
// include_web unset, web-cached records are excluded.
func (h *searchHandler) search(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		serviceUnavailable(w, "search service")
		return
	}

	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "invalid request", "query is required")
		return
	}

	opts := searchOpts(req)
	var (
		resp *search.Response
		err  error
	)
	if req.IncludeWeb {
		resp, err = h.svc.Search(r.Context(), req.Query, opts...)
	} else {
		resp, err = h.svc.SearchDocsOnly(r.Context(), req.Query, opts...)
	}
	if err != nil {
		h.log.Error("search failed", "query", req.Query, "error", err)
		writeError(w, http.StatusInternalServerError, "search failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func searchOpts(req searchRequest) []search.Option {
	var opts []search.Option
	if req.TopK > 0 {
		opts = append(opts, search.WithTopK(req.TopK))
	}
	if req.Category != "" {
		opts = append(opts, search.WithFilter(vecstore.Eq("doc_category", req.Category)))
	}
	if req.ObjectType != "" {
		opts = append(opts, search.WithFilter(vecstore.Eq("object_type", req.ObjectType)))
	}
	if req.IncludeSummaries {
		opts = append(opts, search.WithSummaries())
	}
	return opts
}

// stats reports index statistics. The underlying report degrades rather
// than errors, so this endpoint only 503s when search never initialized.
func (h *searchHandler) stats(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		serviceUnavailable(w, "search service")
		return
	}
	writeJSON(w, http.StatusOK, h.svc.IndexStats(r.Context()))
}

type categoryInfo struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

var categoryCatalog = []categoryInfo{
	{"SOAP", "SOAP API", "SOAP web services documentation"},
	{"REST", "REST API", "REST web services documentation"},
	{"GOVERNANCE", "Governance", "API limits and governance"},
	{"PERMISSION", "Permissions", "Roles and permissions"},
	{"RECORD", "Records", "Record types and entities"},
	{"SEARCH", "Search", "Search and query languages"},
	{"CUSTOM", "Customization", "Custom records and fields"},
	{"WEB", "Web", "Cached web search results"},
	{"GENERAL", "General", "General documentation"},
}

func (h *searchHandler) categories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]categoryInfo{"categories": categoryCatalog})
}
