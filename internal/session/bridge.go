package session

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/Joseda-hg/dashtrack/internal/model"
)

var (
	ErrNotLoaded  = errors.New("board is still loading")
	ErrLoadFailed = errors.New("board could not be loaded; changes are not saved")
	ErrClosed     = errors.New("board was closed; reload to continue")
)

type State int

const (
	Uninitialized State = iota
	Loading
	Loaded
	// LoadFailed holds an empty read-only board. Saving it would overwrite
	// whatever the store still has.
	LoadFailed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case LoadFailed:
		return "load failed"
	default:
		return "uninitialized"
	}
}

// Mutation turns the current board into the next one and reports whether
// anything changed.
type Mutation func(model.Board) (model.Board, bool, error)

type Option func(*Bridge)

func WithLogger(logger *log.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		if now != nil {
			b.now = now
		}
	}
}

// Bridge owns the board of one storage key for the length of a session. It
// loads the stored snapshot once and writes every change back through a
// single background writer.
type Bridge struct {
	key    string
	store  Store
	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	state   State
	board   model.Board
	version int64
	closed  bool
	loaded  chan struct{}

	writer *writer
}

func NewBridge(key string, store Store, opts ...Option) *Bridge {
	b := &Bridge{
		key:    key,
		store:  store,
		logger: log.New(io.Discard, "", 0),
		now:    time.Now,
		board:  model.Board{Tasks: []model.Task{}},
		loaded: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.writer = newWriter(key, store, b.logger)
	return b
}

func (b *Bridge) Key() string {
	return b.key
}

func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Load fetches the stored snapshot. A missing document leaves an empty board.
// A read error leaves an empty board in LoadFailed, which refuses writes.
// Only the first call does any work.
func (b *Bridge) Load(ctx context.Context) {
	b.mu.Lock()
	if b.state != Uninitialized {
		b.mu.Unlock()
		<-b.loaded
		return
	}
	b.state = Loading
	b.mu.Unlock()

	snapshot, ok, err := b.store.Get(ctx, b.key)

	b.mu.Lock()
	switch {
	case err != nil:
		b.logger.Printf("[bridge] load %s failed: %v", b.key, err)
		b.state = LoadFailed
	case ok:
		b.board = snapshot.Board()
		b.version = snapshot.Version
		b.state = Loaded
	default:
		b.state = Loaded
	}
	b.mu.Unlock()
	close(b.loaded)
}

// Board returns a copy of the current board.
func (b *Bridge) Board() model.Board {
	b.mu.Lock()
	defer b.mu.Unlock()
	return model.Board{Tasks: append([]model.Task{}, b.board.Tasks...), Counter: b.board.Counter}
}

// Apply runs fn against the current board. A reported change replaces the
// board and queues a snapshot for saving.
func (b *Bridge) Apply(fn Mutation) (model.Board, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Loaded:
	case LoadFailed:
		return b.board, false, ErrLoadFailed
	default:
		return b.board, false, ErrNotLoaded
	}
	if b.closed {
		return b.board, false, ErrClosed
	}

	next, changed, err := fn(b.board)
	if err != nil || !changed {
		return b.board, false, err
	}

	b.board = next
	b.version++
	b.writer.enqueue(model.Snapshot{
		Tasks:     next.Tasks,
		Counter:   next.Counter,
		UpdatedAt: b.now().UTC(),
		Version:   b.version,
	})
	return next, true, nil
}

// Flush waits for queued saves to reach the store.
func (b *Bridge) Flush(ctx context.Context) error {
	return b.writer.flush(ctx)
}

// Close writes what is pending and stops the writer. Later changes are
// refused with ErrClosed.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.writer.close()
}
