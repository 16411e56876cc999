package session

import (
	"context"
	"sync"

	"github.com/Joseda-hg/dashtrack/internal/model"
)

// Store is a key/document backend holding one snapshot per storage key.
// Set must reject a snapshot whose Version is not greater than the stored
// one with model.ErrStaleWrite.
type Store interface {
	Get(ctx context.Context, key string) (model.Snapshot, bool, error)
	Set(ctx context.Context, key string, snapshot model.Snapshot) error
}

type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]model.Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]model.Snapshot)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (model.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, ok := m.docs[key]
	if !ok {
		return model.Snapshot{}, false, nil
	}
	snapshot.Tasks = append([]model.Task(nil), snapshot.Tasks...)
	return snapshot, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, snapshot model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.docs[key]; ok && snapshot.Version <= current.Version {
		return model.ErrStaleWrite
	}
	snapshot.Tasks = append([]model.Task(nil), snapshot.Tasks...)
	m.docs[key] = snapshot
	return nil
}
