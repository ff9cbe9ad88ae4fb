package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/reybrally/order-pipeline/internal/adapters/search"
)

func (h *PipelineHandlers) GetDocumentHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	doc, err := h.index.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, search.ErrDocNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// SearchDocumentsHandler — ?field=customerId&value=cust-1&limit=20
func (h *PipelineHandlers) SearchDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")
	value := r.URL.Query().Get("value")
	if field == "" || value == "" {
		writeError(w, http.StatusBadRequest, "field and value are required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	docs, err := h.index.Search(r.Context(), field, value, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []search.IndexedDocument{}
	}
	writeJSON(w, http.StatusOK, docs)
}
