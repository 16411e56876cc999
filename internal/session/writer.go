package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Joseda-hg/dashtrack/internal/model"
)

const saveTimeout = 10 * time.Second

// writer serves one storage key with a single goroutine. It holds at most one
// pending snapshot; enqueueing replaces whatever has not been sent yet.
type writer struct {
	key    string
	store  Store
	logger *log.Logger

	mu      sync.Mutex
	pending *model.Snapshot
	busy    bool
	closed  bool
	waiters []chan struct{}

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

func newWriter(key string, store Store, logger *log.Logger) *writer {
	w := &writer{
		key:     key,
		store:   store,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *writer) enqueue(snapshot model.Snapshot) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.pending = &snapshot
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

func (w *writer) run() {
	defer close(w.stopped)
	for {
		select {
		case <-w.done:
			w.drain()
			return
		case <-w.wake:
			w.drain()
		}
	}
}

func (w *writer) drain() {
	for {
		w.mu.Lock()
		snapshot := w.pending
		w.pending = nil
		if snapshot == nil {
			w.busy = false
			waiters := w.waiters
			w.waiters = nil
			w.mu.Unlock()
			for _, ch := range waiters {
				close(ch)
			}
			return
		}
		w.busy = true
		w.mu.Unlock()

		w.write(*snapshot)
	}
}

func (w *writer) write(snapshot model.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	err := w.store.Set(ctx, w.key, snapshot)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrStaleWrite):
		w.logger.Printf("[bridge] dropped stale save for %s (version %d)", w.key, snapshot.Version)
	default:
		w.logger.Printf("[bridge] save %s failed: %v", w.key, err)
	}
}

// flush blocks until nothing is pending or in flight.
func (w *writer) flush(ctx context.Context) error {
	w.mu.Lock()
	if w.pending == nil && !w.busy {
		w.mu.Unlock()
		return nil
	}
	if w.closed {
		w.mu.Unlock()
		select {
		case <-w.stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	ch := make(chan struct{})
	w.waiters = append(w.waiters, ch)
	w.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close writes whatever is still pending and stops the goroutine.
func (w *writer) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.stopped
		return
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	<-w.stopped
}
