package api

import (
	"net/http"

	"docpipe/internal/log"
	"docpipe/internal/search"
	"docpipe/internal/vecstore"
)

type chatHandler struct {
	svc ChatService
	log log.Logger
}

func (h *chatHandler) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.chat)
}

type chatRequest struct {
	Message  string `json:"message"`
	TopK     int    `json:"top_k"`
	Category string `json:"category"`
}

func (h *chatHandler) chat(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		serviceUnavailable(w, "chat service")
		return
	}

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "invalid request", "message is required")
		return
	}

	var opts []search.Option
	if req.TopK > 0 {
		opts = append(opts, search.WithTopK(req.TopK))
	}
	if req.Category != "" {
		opts = append(opts, search.WithFilter(vecstore.Eq("doc_category", req.Category)))
	}

	resp, err := h.svc.Ask(r.Context(), req.Message, opts...)
	if err != nil {
		h.log.Error("chat failed", "error", err)
		writeError(w, http.StatusInternalServerError, "chat failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
