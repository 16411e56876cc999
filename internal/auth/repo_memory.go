package auth

import (
	"context"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu             sync.RWMutex
	usersByID      map[string]User
	userIDByEmail  map[string]string
	sessionsByHash map[string]Session
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		usersByID:      map[string]User{},
		userIDByEmail:  map[string]string{},
		sessionsByHash: map[string]Session{},
	}
}

func (r *MemoryRepo) CreateUser(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.userIDByEmail[user.Email]; ok {
		return ErrEmailInUse
	}
	r.usersByID[user.ID] = user
	r.userIDByEmail[user.Email] = user.ID
	return nil
}

func (r *MemoryRepo) UserByEmail(_ context.Context, email string) (User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.userIDByEmail[email]
	if !ok {
		return User{}, false, nil
	}
	user, ok := r.usersByID[id]
	return user, ok, nil
}

func (r *MemoryRepo) UserByID(_ context.Context, id string) (User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.usersByID[id]
	return user, ok, nil
}

func (r *MemoryRepo) CreateSession(_ context.Context, session Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessionsByHash[session.TokenHash] = session
	return nil
}

func (r *MemoryRepo) SessionByTokenHash(_ context.Context, tokenHash string) (Session, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessionsByHash[tokenHash]
	return session, ok, nil
}

func (r *MemoryRepo) DeleteSession(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessionsByHash, tokenHash)
	return nil
}

func (r *MemoryRepo) DeleteExpiredSessions(_ context.Context, now time.Time) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expired := []Session{}
	for hash, session := range r.sessionsByHash {
		if !now.Before(session.ExpiresAt) {
			expired = append(expired, session)
			delete(r.sessionsByHash, hash)
		}
	}
	return expired, nil
}
