package api

import (
	"errors"
	"net/http"

	"docpipe/internal/log"
	"docpipe/internal/research"
	"docpipe/internal/search"
)

type connectorHandler struct {
	store   *research.Store
	manager *research.Manager
	search  SearchService
	log     log.Logger
}

func (h *connectorHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/connectors", h.list)
	mux.HandleFunc("POST /api/connectors", h.create)
	mux.HandleFunc("GET /api/connectors/{id}", h.get)
	mux.HandleFunc("DELETE /api/connectors/{id}", h.delete)
	mux.HandleFunc("POST /api/connectors/{id}/generate", h.generate)
	mux.HandleFunc("GET /api/connectors/{id}/status", h.status)
	mux.HandleFunc("POST /api/connectors/{id}/cancel", h.cancel)
	mux.HandleFunc("GET /api/connectors/{id}/research", h.research)
	mux.HandleFunc("POST /api/connectors/{id}/search", h.searchOne)
	mux.HandleFunc("POST /api/connectors/search-all", h.searchAll)
}

func (h *connectorHandler) list(w http.ResponseWriter, _ *http.Request) {
	if h.store == nil {
		serviceUnavailable(w, "connector store")
		return
	}
	connectors := h.store.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"connectors": connectors,
		"total":      len(connectors),
	})
}

type connectorCreateRequest struct {
	Name        string `json:"name"`
	Type        string `json:"connector_type"`
	Description string `json:"description"`
}

func (h *connectorHandler) create(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		serviceUnavailable(w, "connector store")
		return
	}
	var req connectorCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid request", "name is required")
		return
	}
	c, err := h.store.Create(req.Name, req.Type, req.Description)
	if err != nil {
		writeError(w, http.StatusBadRequest, "create failed", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *connectorHandler) get(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		serviceUnavailable(w, "connector store")
		return
	}
	c, ok := h.store.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not found", "connector "+r.PathValue("id")+" not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *connectorHandler) delete(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		serviceUnavailable(w, "connector store")
		return
	}
	id := r.PathValue("id")
	deleted, err := h.store.Delete(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed", err.Error())
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "not found", "connector "+id+" not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "connector deleted", "connector_id": id})
}

// generate starts background research for the connector and returns the
// job ID immediately.
func (h *connectorHandler) generate(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		serviceUnavailable(w, "connector store")
		return
	}
	if h.manager == nil {
		serviceUnavailable(w, "research manager")
		return
	}
	id := r.PathValue("id")
	if _, ok := h.store.Get(id); !ok {
		writeError(w, http.StatusNotFound, "not found", "connector "+id+" not found")
		return
	}

	jobID, err := h.manager.Start(id)
	if err != nil {
		if errors.Is(err, research.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "already running", err.Error())
			return
		}
		h.log.Error("starting research failed", "connector", id, "error", err)
		writeError(w, http.StatusInternalServerError, "start failed", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message":      "research generation started",
		"connector_id": id,
		"job_id":       jobID,
	})
}

func (h *connectorHandler) status(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		serviceUnavailable(w, "connector store")
		return
	}
	id := r.PathValue("id")
	c, ok := h.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not found", "connector "+id+" not found")
		return
	}

	running := false
	if h.manager != nil {
		_, running = h.manager.JobForConnector(id)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"connector_id": id,
		"status":       c.Status,
		"is_running":   running,
		"progress": map[string]any{
			"current_section":      c.Progress.CurrentSection,
			"total_sections":       c.Progress.TotalSections,
			"sections_completed":   c.Progress.SectionsCompleted,
			"percentage":           c.Progress.Percentage(),
			"current_section_name": c.Progress.CurrentSectionName,
		},
	})
}

func (h *connectorHandler) cancel(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil {
		serviceUnavailable(w, "research manager")
		return
	}
	id := r.PathValue("id")
	jobID, ok := h.manager.JobForConnector(id)
	if !ok {
		writeError(w, http.StatusBadRequest, "not running", "no research generation running for this connector")
		return
	}
	h.manager.Cancel(jobID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message":      "research generation cancelled",
		"connector_id": id,
	})
}

func (h *connectorHandler) research(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		serviceUnavailable(w, "connector store")
		return
	}
	id := r.PathValue("id")
	content, err := h.store.ResearchDocument(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found", "research document not found for "+id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"connector_id": id, "content": content})
}

type connectorSearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (h *connectorHandler) searchOne(w http.ResponseWriter, r *http.Request) {
	h.runSearch(w, r, []string{r.PathValue("id")}, true)
}

// searchAll queries every connector whose research completed.
func (h *connectorHandler) searchAll(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		serviceUnavailable(w, "connector store")
		return
	}
	var ids []string
	for _, c := range h.store.List() {
		if c.Status == research.StatusComplete {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) == 0 {
		writeJSON(w, http.StatusOK, &search.Response{Results: []search.Result{}})
		return
	}
	h.runSearch(w, r, ids, false)
}

func (h *connectorHandler) runSearch(w http.ResponseWriter, r *http.Request, ids []string, requireKnown bool) {
	if h.search == nil {
		serviceUnavailable(w, "search service")
		return
	}
	if requireKnown && h.store != nil {
		if _, ok := h.store.Get(ids[0]); !ok {
			writeError(w, http.StatusNotFound, "not found", "connector "+ids[0]+" not found")
			return
		}
	}

	var req connectorSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "invalid request", "query is required")
		return
	}
	var opts []search.Option
	if req.TopK > 0 {
		opts = append(opts, search.WithTopK(req.TopK))
	}

	resp, err := h.search.SearchConnectors(r.Context(), req.Query, ids, opts...)
	if err != nil {
		h.log.Error("connector search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
