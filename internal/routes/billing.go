package routes

import (
	"github.com/counterbook/counterbook/internal/middleware"
	"github.com/counterbook/counterbook/internal/router"
)

// RegisterBillingRoutes registers the billing API.
//
// Mandate creation and verification precede signup, so those two routes
// are unauthenticated. Cancellation and the payment ledger require a
// session; cancellation additionally requires the owner role.
//
// The ledger sits behind the subscription gate like any other protected
// read. Cancellation deliberately does not: a halted or lapsed owner
// must still be able to stop the mandate.
func RegisterBillingRoutes(r *router.Router, deps BillingDeps) {
	// Pre-signup checkout flow
	r.Post("/api/billing/mandate", deps.Handler.CreateMandate)
	r.Post("/api/billing/verify", deps.Handler.VerifyMandate)

	authed := r.Group(
		middleware.WithAccount(deps.Accounts),
		middleware.RequireAuth,
	)

	authed.Post("/api/billing/cancel", deps.Handler.Cancel, middleware.RequireOwner)
	authed.Get("/api/billing/payments", deps.Handler.ListPayments,
		middleware.RequireActiveSubscription(deps.Accounts))
}
