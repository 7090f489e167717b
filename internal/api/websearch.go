package api

import (
	"fmt"
	"net/http"

	"docpipe/internal/log"
	"docpipe/internal/websearch"
)

type webSearchHandler struct {
	svc WebSearchService
	log log.Logger
}

func (h *webSearchHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/web-search", h.search)
	mux.HandleFunc("POST /api/refresh-web", h.refresh)
	mux.HandleFunc("GET /api/web-search-status", h.status)
}

type webSearchRequest struct {
	Query        string `json:"query"`
	TopK         int    `json:"top_k"`
	ForceRefresh bool   `json:"force_refresh"`
}

func (h *webSearchHandler) search(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.run(w, r, false)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// refresh forces a live search and re-caches the results.
func (h *webSearchHandler) refresh(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.run(w, r, true)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       fmt.Sprintf("refreshed %d web results", resp.FreshCount),
		"query":         resp.Query,
		"fresh_count":   resp.FreshCount,
		"total_results": resp.Total,
	})
}

func (h *webSearchHandler) run(w http.ResponseWriter, r *http.Request, forceRefresh bool) (websearch.Response, bool) {
	if h.svc == nil {
		serviceUnavailable(w, "web search service")
		return websearch.Response{}, false
	}

	var req webSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return websearch.Response{}, false
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "invalid request", "query is required")
		return websearch.Response{}, false
	}

	var opts []websearch.SearchOption
	if req.TopK > 0 {
		opts = append(opts, websearch.WithTopK(req.TopK))
	}
	if forceRefresh || req.ForceRefresh {
		opts = append(opts, websearch.WithForceRefresh())
	}

	resp, err := h.svc.Search(r.Context(), req.Query, opts...)
	if err != nil {
		h.log.Error("web search failed", "query", req.Query, "error", err)
		writeError(w, http.StatusInternalServerError, "web search failed", err.Error())
		return websearch.Response{}, false
	}
	return resp, true
}

func (h *webSearchHandler) status(w http.ResponseWriter, _ *http.Request) {
	if h.svc == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"available":    false,
			"live_enabled": false,
			"message":      "web search service not initialized",
		})
		return
	}
	message := "web search available (cached results only)"
	if h.svc.LiveEnabled() {
		message = "web search is fully available"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available":    h.svc.Available(),
		"live_enabled": h.svc.LiveEnabled(),
		"message":      message,
	})
}
