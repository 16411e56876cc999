package auth

import (
	"context"
	"time"
)

type Repo interface {
	// CreateUser fails with ErrEmailInUse when the email is taken.
	CreateUser(ctx context.Context, user User) error
	UserByEmail(ctx context.Context, email string) (User, bool, error)
	UserByID(ctx context.Context, id string) (User, bool, error)

	CreateSession(ctx context.Context, session Session) error
	SessionByTokenHash(ctx context.Context, tokenHash string) (Session, bool, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	// DeleteExpiredSessions removes and returns every session expired at now.
	DeleteExpiredSessions(ctx context.Context, now time.Time) ([]Session, error)
}
