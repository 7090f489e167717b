package api

import "net/http"

type healthHandler struct {
	svcs Services
}

func (h *healthHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)
}

type healthResponse struct {
	Status   string          `json:"status"`
	Services map[string]bool `json:"services"`
}

// health reports liveness and which services actually initialized. The
// process is healthy even when some services are down.
func (h *healthHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "healthy",
		Services: map[string]bool{
			"search":     h.svcs.Search != nil,
			"chat":       h.svcs.Chat != nil,
			"web_search": h.svcs.WebSearch != nil && h.svcs.WebSearch.Available(),
			"connectors": h.svcs.Connectors != nil,
			"research":   h.svcs.Research != nil,
		},
	})
}
