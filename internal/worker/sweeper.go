// Package worker runs the periodic maintenance sweep for lapsed
// subscriptions and stale sessions.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// SweepStore is the slice of the account store the sweeper needs.
type SweepStore interface {
	// CancelLapsedAccounts finalizes cancellation_pending accounts whose
	// paid period ended.
	CancelLapsedAccounts(ctx context.Context, now time.Time) (int64, error)

	// ExpireLapsedAccounts expires accounts whose plan end date passed
	// before the cutoff without a renewal charge.
	ExpireLapsedAccounts(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteExpiredSessions clears login sessions past expiry.
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// Config holds sweeper configuration
type Config struct {
	// Interval is how often the sweep runs. Default: 1 hour.
	Interval time.Duration

	// ExpiryGrace is how long past plan_end_date an account stays usable
	// while a late renewal webhook may still arrive. Default: 72 hours.
	//
	// The gateway's subscription.charged or subscription.halted delivery
	// normally settles the account well inside this window; the sweep
	// only catches deliveries that never arrive.
	ExpiryGrace time.Duration
}

// Sweeper periodically reconciles accounts the webhook stream left behind.
type Sweeper struct {
	store  SweepStore
	config Config
	logger *slog.Logger
}

// NewSweeper creates a new maintenance sweeper
func NewSweeper(store SweepStore, config Config, logger *slog.Logger) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.ExpiryGrace <= 0 {
		config.ExpiryGrace = 72 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		store:  store,
		config: config,
		logger: logger,
	}
}

// Start runs the sweep loop until the context is cancelled. A sweep runs
// immediately on startup, then on every interval tick.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("sweeper starting",
		"interval", s.config.Interval,
		"expiry_grace", s.config.ExpiryGrace,
	)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one maintenance pass. Each step is independent; a failure in
// one is logged and the others still run.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now()

	if n, err := s.store.CancelLapsedAccounts(ctx, now); err != nil {
		s.logger.Error("sweep: cancelling lapsed accounts failed", "error", err)
	} else if n > 0 {
		s.logger.Info("sweep: finalized lapsed cancellations", "count", n)
	}

	if n, err := s.store.ExpireLapsedAccounts(ctx, now.Add(-s.config.ExpiryGrace)); err != nil {
		s.logger.Error("sweep: expiring lapsed accounts failed", "error", err)
	} else if n > 0 {
		s.logger.Info("sweep: expired lapsed accounts", "count", n)
	}

	if n, err := s.store.DeleteExpiredSessions(ctx); err != nil {
		s.logger.Error("sweep: clearing expired sessions failed", "error", err)
	} else if n > 0 {
		s.logger.Info("sweep: cleared expired sessions", "count", n)
	}
}
