package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Change is one session notification: either a signed-in identity or a
// sign-out.
type Change struct {
	Identity      Identity
	Authenticated bool
}

// Provider is the session source a single client observes.
type Provider interface {
	OnSessionChange(fn func(Change)) (unsubscribe func())
	Register(ctx context.Context, email, password string) error
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
}

// LocalProvider signs one client in against a Service and remembers its
// token in a file so the next start resumes the session.
type LocalProvider struct {
	service   *Service
	tokenPath string

	mu        sync.Mutex
	token     string
	listeners map[int]func(Change)
	nextID    int
	unsub     func()
}

func NewLocalProvider(service *Service, tokenPath string) *LocalProvider {
	p := &LocalProvider{
		service:   service,
		tokenPath: tokenPath,
		listeners: map[int]func(Change){},
	}
	p.unsub = service.Subscribe(p.onServiceEvent)
	return p
}

// Start resolves the remembered token and emits exactly one notification.
func (p *LocalProvider) Start(ctx context.Context) {
	token := p.readToken()
	if token == "" {
		p.notify(Change{})
		return
	}

	identity, _, err := p.service.Authenticate(ctx, token)
	if err != nil {
		if !errors.Is(err, ErrUnauthenticated) {
			p.service.logger.Printf("[auth] resume session: %v", err)
		}
		p.forgetToken()
		p.notify(Change{})
		return
	}

	p.mu.Lock()
	p.token = token
	p.mu.Unlock()
	p.notify(Change{Identity: identity, Authenticated: true})
}

func (p *LocalProvider) OnSessionChange(fn func(Change)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *LocalProvider) Register(ctx context.Context, email, password string) error {
	identity, token, _, err := p.service.Register(ctx, email, password)
	if err != nil {
		return err
	}
	p.adopt(identity, token)
	return nil
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) error {
	identity, token, _, err := p.service.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	p.adopt(identity, token)
	return nil
}

func (p *LocalProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	token := p.token
	p.token = ""
	p.mu.Unlock()

	err := p.service.SignOut(ctx, token)
	p.forgetToken()
	p.notify(Change{})
	return err
}

func (p *LocalProvider) Close() {
	if p.unsub != nil {
		p.unsub()
	}
}

func (p *LocalProvider) adopt(identity Identity, token string) {
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()

	if err := p.writeToken(token); err != nil {
		p.service.logger.Printf("[auth] remember session: %v", err)
	}
	p.notify(Change{Identity: identity, Authenticated: true})
}

// onServiceEvent catches sign-outs that did not come from this client, such
// as the expiry sweep.
func (p *LocalProvider) onServiceEvent(event Event) {
	if event.Kind != SignedOut {
		return
	}
	p.mu.Lock()
	ours := p.token != "" && HashToken(p.token) == event.TokenHash
	p.mu.Unlock()
	if !ours {
		return
	}
	p.forgetToken()
	p.notify(Change{})
}

func (p *LocalProvider) notify(change Change) {
	p.mu.Lock()
	fns := make([]func(Change), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

func (p *LocalProvider) readToken() string {
	if p.tokenPath == "" {
		return ""
	}
	data, err := os.ReadFile(p.tokenPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (p *LocalProvider) writeToken(token string) error {
	if p.tokenPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p.tokenPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p.tokenPath, []byte(token), 0o600)
}

func (p *LocalProvider) forgetToken() {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
	if p.tokenPath != "" {
		_ = os.Remove(p.tokenPath)
	}
}
