package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reybrally/order-pipeline/internal/adapters/search"
	"github.com/reybrally/order-pipeline/internal/app/workflow"
	"github.com/reybrally/order-pipeline/internal/domain/attrvalue"
)

type fakeOrchestrator struct {
	started map[string]attrvalue.Document
	execs   map[string]workflow.Execution
}

func newFakeOrchestrator() *fakeOrchestrator {
	return &fakeOrchestrator{
		started: map[string]attrvalue.Document{},
		execs:   map[string]workflow.Execution{},
	}
}

func (f *fakeOrchestrator) StartAsync(name string, input attrvalue.Document) {
	f.started[name] = input
}

func (f *fakeOrchestrator) Status(_ context.Context, name string) (workflow.Execution, error) {
	e, ok := f.execs[name]
	if !ok {
		return workflow.Execution{}, workflow.ErrNotFound
	}
	return e, nil
}

type fakeIndex struct{}

func (fakeIndex) Get(_ context.Context, id string) (search.IndexedDocument, error) {
	return search.IndexedDocument{}, search.ErrDocNotFound
}

func (fakeIndex) Search(context.Context, string, any, int) ([]search.IndexedDocument, error) {
	return nil, nil
}

func newRouter(h *PipelineHandlers) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/executions", h.StartExecutionHandler)
	r.Get("/executions/{name}", h.GetExecutionHandler)
	r.Get("/documents/{id}", h.GetDocumentHandler)
	return r
}

func TestStartExecutionHandler(t *testing.T) {
	orch := newFakeOrchestrator()
	h := NewPipelineHandlers(orch, fakeIndex{})
	srv := httptest.NewServer(newRouter(h))
	defer srv.Close()

	body := `{"name":"ORD-1-100","input":{"orderId":"ORD-1","paymentStatus":"SUCCESS"}}`
	resp, err := http.Post(srv.URL+"/executions", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Contains(t, orch.started, "ORD-1-100")
	assert.Equal(t, "ORD-1", orch.started["ORD-1-100"].String("orderId"))
}

func TestStartExecutionHandlerDerivesName(t *testing.T) {
	orch := newFakeOrchestrator()
	h := NewPipelineHandlers(orch, fakeIndex{})
	srv := httptest.NewServer(newRouter(h))
	defer srv.Close()

	body := `{"input":{"orderId":"ORD-7"}}`
	resp, err := http.Post(srv.URL+"/executions", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, orch.started, 1)
	for name := range orch.started {
		assert.True(t, strings.HasPrefix(name, "ORD-7-"))
	}
}

func TestStartExecutionHandlerRejectsEmptyInput(t *testing.T) {
	h := NewPipelineHandlers(newFakeOrchestrator(), fakeIndex{})
	srv := httptest.NewServer(newRouter(h))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/executions", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetExecutionHandler(t *testing.T) {
	orch := newFakeOrchestrator()
	orch.execs["ORD-1-100"] = workflow.Execution{Name: "ORD-1-100", State: workflow.StateSucceeded}
	h := NewPipelineHandlers(orch, fakeIndex{})
	srv := httptest.NewServer(newRouter(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/executions/ORD-1-100")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/executions/unknown")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestGetDocumentHandlerMiss(t *testing.T) {
	h := NewPipelineHandlers(newFakeOrchestrator(), fakeIndex{})
	srv := httptest.NewServer(newRouter(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/documents/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
