package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reybrally/order-pipeline/internal/app/workflow"
	"github.com/reybrally/order-pipeline/internal/domain/attrvalue"
)

type startExecutionRequest struct {
	Name  string             `json:"name,omitempty"`
	Input attrvalue.Document `json:"input"`
}

type startExecutionResponse struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// StartExecutionHandler запускает исполнение вручную (операторский путь).
// Имя по умолчанию выводится из orderId входа и текущего момента — как это
// делает Workflow Starter для событий фида.
func (h *PipelineHandlers) StartExecutionHandler(w http.ResponseWriter, r *http.Request) {
	var req startExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Input) == 0 {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}

	name := req.Name
	if name == "" {
		entityID := req.Input.String("orderId")
		if entityID == "" {
			writeError(w, http.StatusBadRequest, "name or input.orderId is required")
			return
		}
		name = workflow.ExecutionName(entityID, time.Now())
	}

	h.engine.StartAsync(name, req.Input)
	writeJSON(w, http.StatusAccepted, startExecutionResponse{
		Name:  name,
		State: string(workflow.StateProcessOrder),
	})
}

func (h *PipelineHandlers) GetExecutionHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	exec, err := h.engine.Status(r.Context(), name)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			writeError(w, http.StatusNotFound, "execution not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, exec)
}
