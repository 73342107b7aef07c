package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Plan identifies a pricing tier. The gateway-side plan id each tier maps to
// is configuration, not code.
type Plan string

const (
	PlanBasic   Plan = "BASIC"
	PlanPro     Plan = "PRO"
	PlanPremium Plan = "PREMIUM"
)

// Valid reports whether p is one of the known plans.
func (p Plan) Valid() bool {
	switch p {
	case PlanBasic, PlanPro, PlanPremium:
		return true
	}
	return false
}

// SubscriptionStatus is the billing state of an account. Transitions are
// applied by the webhook reconciler and the cancellation flow; the most
// recent gateway event wins.
type SubscriptionStatus string

const (
	SubscriptionNone                SubscriptionStatus = "none"
	SubscriptionCreated             SubscriptionStatus = "created"
	SubscriptionAuthenticated       SubscriptionStatus = "authenticated"
	SubscriptionActive              SubscriptionStatus = "active"
	SubscriptionCancellationPending SubscriptionStatus = "cancellation_pending"
	SubscriptionCancelled           SubscriptionStatus = "cancelled"
	SubscriptionHalted              SubscriptionStatus = "halted"
	SubscriptionExpired             SubscriptionStatus = "expired"
)

// Blocked reports whether the status denies access to protected routes.
// Access stays optimistic for every other status: an account whose charge is
// still being attempted the same day is allowed through until a terminal
// negative status lands.
func (s SubscriptionStatus) Blocked() bool {
	switch s {
	case SubscriptionHalted, SubscriptionCancelled, SubscriptionExpired:
		return true
	}
	return false
}

// Role is the account's access level within a shop.
type Role string

const (
	// RoleOwner is the shop owner; the subscription belongs to this account.
	RoleOwner Role = "owner"

	// RoleStaff is an employee account linked to an owner account.
	// Subscription checks resolve staff to their owner.
	RoleStaff Role = "staff"

	// RoleAdmin is a platform operator and bypasses subscription checks.
	RoleAdmin Role = "admin"
)

// Account is one shop owner (or a staff member linked to one).
// Billing fields are mutated only by the webhook reconciler and the
// cancellation flow; ExternalSubscriptionID is immutable once set.
type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Role         Role

	// OwnerID links a staff account to the owning account.
	// Nil for owner and admin accounts.
	OwnerID *uuid.UUID

	// Deactivated is an administrative kill switch, independent of billing.
	Deactivated bool

	Plan                   Plan
	SubscriptionStatus     SubscriptionStatus
	ExternalSubscriptionID string
	PlanEndDate            time.Time
	LastStatusUpdate       time.Time

	CreatedAt time.Time
}

// CreateAccountParams carries the fields for a new account row.
type CreateAccountParams struct {
	Email        string
	PasswordHash string
	Role         Role
	Plan         Plan

	// OwnerID links a new staff account to its owner.
	OwnerID *uuid.UUID
}

// UpdateSubscriptionStatusParams carries a status transition for an account.
type UpdateSubscriptionStatusParams struct {
	AccountID uuid.UUID
	Status    SubscriptionStatus

	// PlanEndDate updates the period boundary when non-nil.
	PlanEndDate *time.Time

	// UpdatedAt becomes the account's lastStatusUpdate.
	UpdatedAt time.Time
}

// AccountStore provides access to account records.
type AccountStore interface {
	// GetAccount retrieves an account by id.
	// Returns a domain ENOTFOUND error if no account exists.
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)

	// GetAccountBySubscriptionID resolves the account owning an external
	// subscription id. Returns ENOTFOUND for stale or foreign ids.
	GetAccountBySubscriptionID(ctx context.Context, subscriptionID string) (*Account, error)

	// GetAccountBySessionToken resolves the account for a session cookie.
	// Returns EUNAUTHORIZED if the token is unknown or expired.
	GetAccountBySessionToken(ctx context.Context, token string) (*Account, error)

	// UpdateSubscriptionStatus applies a status transition.
	UpdateSubscriptionStatus(ctx context.Context, params UpdateSubscriptionStatusParams) error
}
