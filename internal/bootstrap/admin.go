// Package bootstrap handles one-time initialization tasks for the application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/counterbook/counterbook/internal/auth"
	"github.com/counterbook/counterbook/internal/domain"
)

// AdminConfig contains configuration for the initial platform admin.
type AdminConfig struct {
	Email    string
	Password string
}

// Validate checks that the admin configuration is valid.
func (c *AdminConfig) Validate() error {
	if c.Email == "" {
		return errors.New("admin email is required")
	}
	if c.Password == "" {
		return errors.New("admin password is required")
	}
	if len(c.Password) < 12 {
		return errors.New("admin password must be at least 12 characters")
	}
	return nil
}

// AdminStore is the slice of the account store the bootstrap needs.
type AdminStore interface {
	GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	CreateAccount(ctx context.Context, params domain.CreateAccountParams) (*domain.Account, error)
}

// EnsureMasterAdmin creates the initial platform admin if it doesn't exist.
// Idempotent - safe to call on every startup.
//
// If cfg is nil or has empty Email/Password, it logs a warning and skips,
// which allows running without an admin in development.
func EnsureMasterAdmin(ctx context.Context, store AdminStore, cfg *AdminConfig, logger *slog.Logger) error {
	if cfg == nil || cfg.Email == "" || cfg.Password == "" {
		logger.Warn("bootstrap: skipping admin creation - ADMIN_EMAIL or ADMIN_PASSWORD not set",
			"hint", "Set these environment variables to create an admin account on first startup",
		)
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid admin configuration: %w", err)
	}

	existing, err := store.GetAccountByEmail(ctx, cfg.Email)
	if err == nil && existing != nil {
		logger.Info("bootstrap: admin account already exists", "email", cfg.Email)
		return nil
	}
	if err != nil && !domain.IsCode(err, domain.ENOTFOUND) {
		return fmt.Errorf("failed to check for existing admin: %w", err)
	}

	passwordHash, err := auth.HashPassword(cfg.Password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	created, err := store.CreateAccount(ctx, domain.CreateAccountParams{
		Email:        cfg.Email,
		PasswordHash: passwordHash,
		Role:         domain.RoleAdmin,
	})
	if err != nil {
		// Concurrent startup already created it.
		if domain.IsCode(err, domain.ECONFLICT) {
			logger.Info("bootstrap: admin account already exists", "email", cfg.Email)
			return nil
		}
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	logger.Info("bootstrap: created platform admin account",
		"email", created.Email,
		"account_id", created.ID,
	)
	return nil
}
