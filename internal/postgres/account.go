package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/counterbook/counterbook/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountStore implements domain.AccountStore using PostgreSQL.
type AccountStore struct {
	pool *pgxpool.Pool
}

// Compile-time check to ensure AccountStore implements domain.AccountStore.
var _ domain.AccountStore = (*AccountStore)(nil)

// NewAccountStore creates a new AccountStore instance.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const accountColumns = `
	id, email, password_hash, role, owner_id, deactivated,
	plan, subscription_status, external_subscription_id,
	plan_end_date, last_status_update, created_at`

// scanAccount maps one result row onto a domain Account.
func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a         domain.Account
		ownerID   pgtype.UUID
		extSubID  pgtype.Text
		planEnd   pgtype.Timestamptz
		statusUpd pgtype.Timestamptz
	)

	err := row.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.Role, &ownerID, &a.Deactivated,
		&a.Plan, &a.SubscriptionStatus, &extSubID,
		&planEnd, &statusUpd, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if ownerID.Valid {
		id := uuid.UUID(ownerID.Bytes)
		a.OwnerID = &id
	}
	if extSubID.Valid {
		a.ExternalSubscriptionID = extSubID.String
	}
	if planEnd.Valid {
		a.PlanEndDate = planEnd.Time
	}
	if statusUpd.Valid {
		a.LastStatusUpdate = statusUpd.Time
	}

	return &a, nil
}

// CreateAccount inserts a new account and returns it. Subscription state
// starts at none; the webhook reconciler moves it from there.
func (s *AccountStore) CreateAccount(ctx context.Context, params domain.CreateAccountParams) (*domain.Account, error) {
	const op = "account.create"

	var ownerID pgtype.UUID
	if params.OwnerID != nil {
		ownerID = pgtype.UUID{Bytes: *params.OwnerID, Valid: true}
	}
	if params.Plan == "" {
		params.Plan = domain.PlanBasic
	}
	if params.Role == "" {
		params.Role = domain.RoleOwner
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO accounts (email, password_hash, role, owner_id, plan, subscription_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING`+accountColumns,
		params.Email, params.PasswordHash, params.Role, ownerID, params.Plan, domain.SubscriptionNone)
	account, err := scanAccount(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Errorf(domain.ECONFLICT, op, "an account with this email already exists")
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

// GetAccount retrieves an account by id.
func (s *AccountStore) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	const op = "account.get"

	row := s.pool.QueryRow(ctx, `SELECT`+accountColumns+` FROM accounts WHERE id = $1`, id)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(op, "account", id.String())
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// GetAccountBySubscriptionID resolves the account owning an external
// subscription id.
func (s *AccountStore) GetAccountBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Account, error) {
	const op = "account.get_by_subscription"

	row := s.pool.QueryRow(ctx,
		`SELECT`+accountColumns+` FROM accounts WHERE external_subscription_id = $1`,
		subscriptionID)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(op, "subscription", subscriptionID)
		}
		return nil, fmt.Errorf("get account by subscription: %w", err)
	}
	return account, nil
}

// GetAccountBySessionToken resolves the account for a live session.
func (s *AccountStore) GetAccountBySessionToken(ctx context.Context, token string) (*domain.Account, error) {
	const op = "account.get_by_session"

	row := s.pool.QueryRow(ctx, `
		SELECT`+accountColumns+`
		FROM accounts
		WHERE id = (
			SELECT account_id FROM sessions
			WHERE token = $1 AND expires_at > now()
		)`, token)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.Unauthorized(op, "invalid or expired session")
		}
		return nil, fmt.Errorf("get account by session: %w", err)
	}
	return account, nil
}

// UpdateSubscriptionStatus applies a status transition. The plan end date is
// only touched when the caller provides one; external_subscription_id is
// never written here - it is immutable once set at signup.
func (s *AccountStore) UpdateSubscriptionStatus(ctx context.Context, params domain.UpdateSubscriptionStatusParams) error {
	var planEnd pgtype.Timestamptz
	if params.PlanEndDate != nil {
		planEnd = pgtype.Timestamptz{Time: *params.PlanEndDate, Valid: true}
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET subscription_status = $2,
		    last_status_update = $3,
		    plan_end_date = COALESCE($4, plan_end_date)
		WHERE id = $1`,
		params.AccountID, params.Status, params.UpdatedAt, planEnd)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("account.update_status", "account", params.AccountID.String())
	}
	return nil
}
