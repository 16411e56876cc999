package auth

import "time"

// Identity is the authenticated user as the rest of the app sees it. Its ID
// namespaces the user's board.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email}
}

type Session struct {
	TokenHash string    `json:"tokenHash"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type EventKind string

const (
	SignedIn  EventKind = "signed_in"
	SignedOut EventKind = "signed_out"
)

// Event is pushed to subscribers whenever a session starts or ends.
type Event struct {
	Kind      EventKind `json:"kind"`
	Identity  Identity  `json:"identity"`
	TokenHash string    `json:"-"`
}
