package session

import (
	"context"
	"sync"
)

// Manager hands out one loaded Bridge per storage key.
type Manager struct {
	store Store
	opts  []Option

	mu      sync.Mutex
	bridges map[string]*Bridge
}

func NewManager(store Store, opts ...Option) *Manager {
	return &Manager{store: store, opts: opts, bridges: make(map[string]*Bridge)}
}

func (m *Manager) Store() Store {
	return m.store
}

// Open returns the bridge for key, loading it on first use. A bridge whose
// load failed is handed back once and forgotten, so the next Open reads the
// store again.
func (m *Manager) Open(ctx context.Context, key string) *Bridge {
	m.mu.Lock()
	bridge, ok := m.bridges[key]
	if !ok {
		bridge = NewBridge(key, m.store, m.opts...)
		m.bridges[key] = bridge
	}
	m.mu.Unlock()

	bridge.Load(ctx)
	if bridge.State() == LoadFailed {
		m.mu.Lock()
		if m.bridges[key] == bridge {
			delete(m.bridges, key)
		}
		m.mu.Unlock()
		bridge.Close()
	}
	return bridge
}

// Holds reports whether a bridge for key is open.
func (m *Manager) Holds(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bridges[key]
	return ok
}

// Release flushes and drops the bridge for key, e.g. after sign-out.
func (m *Manager) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	bridge, ok := m.bridges[key]
	delete(m.bridges, key)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	err := bridge.Flush(ctx)
	bridge.Close()
	return err
}

func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	bridges := m.bridges
	m.bridges = make(map[string]*Bridge)
	m.mu.Unlock()

	var firstErr error
	for _, bridge := range bridges {
		if err := bridge.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		bridge.Close()
	}
	return firstErr
}
