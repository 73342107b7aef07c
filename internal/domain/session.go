package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long a login session stays valid.
const DefaultSessionTTL = 30 * 24 * time.Hour

// Session is a login session backing the session cookie.
type Session struct {
	Token     string
	AccountID uuid.UUID
	ExpiresAt time.Time
}

// AuthStore provides the account lookups and session writes the login flow
// needs. Satisfied by the postgres account store.
type AuthStore interface {
	// GetAccountByEmail retrieves an account by email.
	// Returns ENOTFOUND if no account exists.
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)

	// CreateSession persists a new login session.
	CreateSession(ctx context.Context, session Session) error

	// DeleteSession removes a session. Deleting an unknown token is not
	// an error.
	DeleteSession(ctx context.Context, token string) error
}
