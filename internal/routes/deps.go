package routes

import (
	"net/http"

	"github.com/counterbook/counterbook/internal/domain"
	"github.com/counterbook/counterbook/internal/handler"
)

// BillingDeps contains dependencies for the billing API routes
type BillingDeps struct {
	Handler *handler.BillingHandler

	// Accounts backs the session and subscription middleware.
	Accounts domain.AccountStore
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	GatewayHandler http.HandlerFunc
}

// OpsDeps contains dependencies for operational endpoints
type OpsDeps struct {
	// MetricsHandler serves the Prometheus scrape endpoint.
	MetricsHandler http.Handler

	// HealthCheck reports readiness; typically pings the database.
	HealthCheck func(r *http.Request) error
}
