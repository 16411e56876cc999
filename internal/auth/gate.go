package auth

import (
	"context"
	"sync"
)

type GateState int

const (
	Resolving GateState = iota
	Authenticated
	Unauthenticated
)

func (s GateState) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "resolving"
	}
}

// Gate follows a Provider's notifications and keeps the board closed until
// the session is known. It never polls.
type Gate struct {
	onAuthenticated func(Identity)

	mu       sync.Mutex
	state    GateState
	identity Identity
	resolved chan struct{}
	watchers []func(GateState, Identity)
	unsub    func()
}

// NewGate starts in Resolving. onAuthenticated runs each time a new identity
// is authenticated.
func NewGate(provider Provider, onAuthenticated func(Identity)) *Gate {
	g := &Gate{
		onAuthenticated: onAuthenticated,
		resolved:        make(chan struct{}),
	}
	g.unsub = provider.OnSessionChange(g.handle)
	return g
}

func (g *Gate) State() (GateState, Identity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state, g.identity
}

// OnChange registers fn for every state transition.
func (g *Gate) OnChange(fn func(GateState, Identity)) {
	g.mu.Lock()
	g.watchers = append(g.watchers, fn)
	g.mu.Unlock()
}

// Wait blocks until the first notification arrives.
func (g *Gate) Wait(ctx context.Context) (GateState, error) {
	select {
	case <-g.resolved:
		state, _ := g.State()
		return state, nil
	case <-ctx.Done():
		return Resolving, ctx.Err()
	}
}

func (g *Gate) Close() {
	if g.unsub != nil {
		g.unsub()
	}
}

func (g *Gate) handle(change Change) {
	next := Unauthenticated
	identity := Identity{}
	if change.Authenticated {
		next = Authenticated
		identity = change.Identity
	}

	g.mu.Lock()
	first := g.state == Resolving
	if !first && g.state == next && g.identity == identity {
		g.mu.Unlock()
		return
	}
	g.state = next
	g.identity = identity
	watchers := append([]func(GateState, Identity){}, g.watchers...)
	g.mu.Unlock()

	if first {
		close(g.resolved)
	}
	if next == Authenticated && g.onAuthenticated != nil {
		g.onAuthenticated(identity)
	}
	for _, fn := range watchers {
		fn(next, identity)
	}
}
