package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 6

var (
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrEmailInUse         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("not signed in")
)

type Option func(*Service)

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBcryptCost lowers hashing cost, for tests.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

type Service struct {
	repo   Repo
	logger *log.Logger
	now    func() time.Time

	cookieName string
	sessionTTL time.Duration
	bcryptCost int

	mu          sync.Mutex
	nextSubID   int
	subscribers map[int]func(Event)
}

func NewService(repo Repo, logger *log.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{
		repo:        repo,
		logger:      logger,
		now:         time.Now,
		cookieName:  "dashtrack_session",
		sessionTTL:  7 * 24 * time.Hour,
		bcryptCost:  bcrypt.DefaultCost,
		subscribers: map[int]func(Event){},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return ErrInvalidEmail
	}
	if strings.ToLower(addr.Address) != email {
		return ErrInvalidEmail
	}
	return nil
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}

func newUserID() string {
	return "usr_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, email, password string) (Identity, string, time.Time, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return Identity{}, "", time.Time{}, err
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return Identity{}, "", time.Time{}, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return Identity{}, "", time.Time{}, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:           newUserID(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return Identity{}, "", time.Time{}, err
	}
	s.logger.Printf("[auth] registered %s", email)

	return s.startSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Identity, string, time.Time, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return Identity{}, "", time.Time{}, err
	}

	user, ok, err := s.repo.UserByEmail(ctx, email)
	if err != nil {
		return Identity{}, "", time.Time{}, err
	}
	if !ok || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Identity{}, "", time.Time{}, ErrInvalidCredentials
	}

	return s.startSession(ctx, user)
}

func (s *Service) startSession(ctx context.Context, user User) (Identity, string, time.Time, error) {
	token, err := generateToken()
	if err != nil {
		return Identity{}, "", time.Time{}, err
	}

	now := s.now().UTC()
	session := Session{
		TokenHash: HashToken(token),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return Identity{}, "", time.Time{}, err
	}

	identity := user.Identity()
	s.publish(Event{Kind: SignedIn, Identity: identity, TokenHash: session.TokenHash})
	return identity, token, session.ExpiresAt, nil
}

// Authenticate resolves a session token. Expired sessions are removed.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, Session, error) {
	if token == "" {
		return Identity{}, Session{}, ErrUnauthenticated
	}

	session, ok, err := s.repo.SessionByTokenHash(ctx, HashToken(token))
	if err != nil {
		return Identity{}, Session{}, err
	}
	if !ok {
		return Identity{}, Session{}, ErrUnauthenticated
	}

	user, ok, err := s.repo.UserByID(ctx, session.UserID)
	if err != nil {
		return Identity{}, Session{}, err
	}
	if !ok {
		_ = s.repo.DeleteSession(ctx, session.TokenHash)
		return Identity{}, Session{}, ErrUnauthenticated
	}

	if !s.now().Before(session.ExpiresAt) {
		_ = s.repo.DeleteSession(ctx, session.TokenHash)
		s.publish(Event{Kind: SignedOut, Identity: user.Identity(), TokenHash: session.TokenHash})
		return Identity{}, Session{}, ErrUnauthenticated
	}

	return user.Identity(), session, nil
}

func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	tokenHash := HashToken(token)
	session, ok, err := s.repo.SessionByTokenHash(ctx, tokenHash)
	if err != nil || !ok {
		return err
	}
	if err := s.repo.DeleteSession(ctx, tokenHash); err != nil {
		return err
	}

	identity := Identity{ID: session.UserID}
	if user, ok, err := s.repo.UserByID(ctx, session.UserID); err == nil && ok {
		identity = user.Identity()
	}
	s.publish(Event{Kind: SignedOut, Identity: identity, TokenHash: tokenHash})
	return nil
}

// PruneExpired deletes expired sessions and reports how many went away.
func (s *Service) PruneExpired(ctx context.Context) (int, error) {
	expired, err := s.repo.DeleteExpiredSessions(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	for _, session := range expired {
		identity := Identity{ID: session.UserID}
		if user, ok, err := s.repo.UserByID(ctx, session.UserID); err == nil && ok {
			identity = user.Identity()
		}
		s.publish(Event{Kind: SignedOut, Identity: identity, TokenHash: session.TokenHash})
	}
	if len(expired) > 0 {
		s.logger.Printf("[auth] pruned %d expired sessions", len(expired))
	}
	return len(expired), nil
}

// LookupEmail finds a registered identity without signing in.
func (s *Service) LookupEmail(ctx context.Context, email string) (Identity, bool, error) {
	user, ok, err := s.repo.UserByEmail(ctx, normalizeEmail(email))
	if err != nil || !ok {
		return Identity{}, false, err
	}
	return user.Identity(), true, nil
}

// Subscribe registers fn for every session event. Call the returned func to
// stop receiving them.
func (s *Service) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Service) publish(event Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}
