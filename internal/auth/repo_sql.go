package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLRepo stores users and sessions in the users and auth_sessions tables
// created by db.Open.
type SQLRepo struct {
	db *sql.DB
}

func NewSQLRepo(db *sql.DB) *SQLRepo {
	return &SQLRepo{db: db}
}

func (r *SQLRepo) CreateUser(ctx context.Context, user User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM users WHERE email = ?", user.Email).Scan(&exists)
	if err == nil {
		return ErrEmailInUse
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		user.ID, user.Email, user.PasswordHash, user.CreatedAt.UTC(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLRepo) UserByEmail(ctx context.Context, email string) (User, bool, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM users WHERE email = ?", email))
}

func (r *SQLRepo) UserByID(ctx context.Context, id string) (User, bool, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM users WHERE id = ?", id))
}

func (r *SQLRepo) scanUser(row *sql.Row) (User, bool, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	return user, true, nil
}

func (r *SQLRepo) CreateSession(ctx context.Context, session Session) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO auth_sessions (token_hash, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)",
		session.TokenHash, session.UserID, session.CreatedAt.Unix(), session.ExpiresAt.Unix(),
	)
	return err
}

func (r *SQLRepo) SessionByTokenHash(ctx context.Context, tokenHash string) (Session, bool, error) {
	session, err := scanSession(r.db.QueryRowContext(ctx,
		"SELECT token_hash, user_id, created_at, expires_at FROM auth_sessions WHERE token_hash = ?", tokenHash))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	return session, true, nil
}

func (r *SQLRepo) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM auth_sessions WHERE token_hash = ?", tokenHash)
	return err
}

func (r *SQLRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) ([]Session, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx,
		"SELECT token_hash, user_id, created_at, expires_at FROM auth_sessions WHERE expires_at <= ?", now.Unix())
	if err != nil {
		return nil, err
	}
	expired := []Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		expired = append(expired, session)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, session := range expired {
		if _, err := tx.ExecContext(ctx, "DELETE FROM auth_sessions WHERE token_hash = ?", session.TokenHash); err != nil {
			return nil, err
		}
	}
	return expired, tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Session timestamps are stored as unix seconds so expiry can be compared in SQL.
func scanSession(row rowScanner) (Session, error) {
	var session Session
	var createdAt, expiresAt int64
	if err := row.Scan(&session.TokenHash, &session.UserID, &createdAt, &expiresAt); err != nil {
		return Session{}, err
	}
	session.CreatedAt = time.Unix(createdAt, 0).UTC()
	session.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return session, nil
}
