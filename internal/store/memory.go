package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rickgao/ledger-notify/internal/model"
)

// Memory is an in-process ObjectStore.
type Memory struct {
	mu      sync.RWMutex
	objects map[model.ObjectID]json.RawMessage
	closed  bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[model.ObjectID]json.RawMessage)}
}

func (m *Memory) Fetch(_ context.Context, id model.ObjectID) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	return cloneBytes(m.objects[id]), nil
}

func (m *Memory) FetchMany(ctx context.Context, ids []model.ObjectID) ([]json.RawMessage, error) {
	return fetchEach(ctx, m, ids)
}

func (m *Memory) Apply(_ context.Context, upserts []Object, removals []model.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for _, o := range upserts {
		m.objects[o.ID] = cloneBytes(o.Value)
	}
	for _, id := range removals {
		delete(m.objects, id)
	}
	return nil
}

func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	return nil
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
