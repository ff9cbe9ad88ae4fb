package workflowstore

import (
	"context"
	"sync"

	"github.com/reybrally/order-pipeline/internal/app/workflow"
)

// MemoryStore — потокобезопасное хранилище исполнений в памяти
// (dev-режим и тесты).
type MemoryStore struct {
	mu    sync.Mutex
	execs map[string]workflow.Execution
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{execs: make(map[string]workflow.Execution)}
}

// Create — атомарный claim имени: повтор даёт ErrAlreadyExists.
func (s *MemoryStore) Create(_ context.Context, e workflow.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.execs[e.Name]; ok {
		return workflow.ErrAlreadyExists
	}
	s.execs[e.Name] = e
	return nil
}

func (s *MemoryStore) Update(_ context.Context, e workflow.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.execs[e.Name]; !ok {
		return workflow.ErrNotFound
	}
	s.execs[e.Name] = e
	return nil
}

func (s *MemoryStore) Get(_ context.Context, name string) (workflow.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.execs[name]
	if !ok {
		return workflow.Execution{}, workflow.ErrNotFound
	}
	return e, nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.execs)
}
