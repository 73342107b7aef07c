package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/counterbook/counterbook/internal/domain"
)

// Compile-time check that the account store also covers the login flow.
var _ domain.AuthStore = (*AccountStore)(nil)

// GetAccountByEmail retrieves an account by email.
func (s *AccountStore) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const op = "account.get_by_email"

	row := s.pool.QueryRow(ctx, `SELECT`+accountColumns+` FROM accounts WHERE email = $1`, email)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(op, "account", email)
		}
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return account, nil
}

// CreateSession persists a new login session.
func (s *AccountStore) CreateSession(ctx context.Context, session domain.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (token, account_id, expires_at)
		VALUES ($1, $2, $3)`,
		session.Token, session.AccountID, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// DeleteSession removes a session. Unknown tokens are a no-op.
func (s *AccountStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions clears sessions past their expiry. Called
// periodically by the maintenance sweeper.
func (s *AccountStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
