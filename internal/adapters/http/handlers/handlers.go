package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/reybrally/order-pipeline/internal/adapters/search"
	"github.com/reybrally/order-pipeline/internal/app/workflow"
	"github.com/reybrally/order-pipeline/internal/domain/attrvalue"
)

type orchestrator interface {
	StartAsync(name string, input attrvalue.Document)
	Status(ctx context.Context, name string) (workflow.Execution, error)
}

type documentIndex interface {
	Get(ctx context.Context, entityID string) (search.IndexedDocument, error)
	Search(ctx context.Context, field string, value any, limit int) ([]search.IndexedDocument, error)
}

type PipelineHandlers struct {
	engine orchestrator
	index  documentIndex
}

func NewPipelineHandlers(engine orchestrator, index documentIndex) *PipelineHandlers {
	return &PipelineHandlers{engine: engine, index: index}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
