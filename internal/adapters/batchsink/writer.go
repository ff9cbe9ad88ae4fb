package batchsink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ObjectWriter — конечное объектное хранилище для сброшенных батчей.
type ObjectWriter interface {
	Put(ctx context.Context, key string, data []byte) error
}

// FSWriter кладёт объекты в каталог на диске; ключ — относительный путь.
type FSWriter struct {
	base string
}

func NewFSWriter(base string) *FSWriter { return &FSWriter{base: base} }

func (w *FSWriter) Put(_ context.Context, key string, data []byte) error {
	path := filepath.Join(w.base, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// MemWriter — объектное хранилище в памяти (тесты).
type MemWriter struct {
	mu      sync.Mutex
	objects map[string][]byte
	// FailPuts — сколько первых Put завершить ошибкой
	FailPuts int
}

func NewMemWriter() *MemWriter {
	return &MemWriter{objects: make(map[string][]byte)}
}

func (w *MemWriter) Put(_ context.Context, key string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.FailPuts > 0 {
		w.FailPuts--
		return fmt.Errorf("put %s: simulated failure", key)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	w.objects[key] = cp
	return nil
}

func (w *MemWriter) Keys() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.objects))
	for k := range w.objects {
		out = append(out, k)
	}
	return out
}

func (w *MemWriter) Object(key string) []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.objects[key]
}
