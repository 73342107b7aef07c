package middleware

import (
	"net/http"

	"github.com/counterbook/counterbook/internal/domain"
	"github.com/counterbook/counterbook/internal/telemetry"
)

// RequireActiveSubscription gates protected routes on the billing state of
// the tenant owner. Staff accounts are checked against their owner's
// subscription; platform admins bypass the gate entirely.
//
// Chain after WithAccount and RequireAuth:
//
//	mux.Handle("/api/...", middleware.RequireAuth(
//	    middleware.RequireActiveSubscription(accounts)(protected)))
func RequireActiveSubscription(accounts domain.AccountStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := GetAccountFromContext(r.Context())
			if account == nil {
				respondUnauthorized(w, r)
				return
			}

			if account.Role == domain.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}

			// Staff inherit access from the owning account's subscription.
			billed := account
			if account.Role == domain.RoleStaff {
				if account.OwnerID == nil {
					respondForbidden(w, r)
					return
				}
				owner, err := accounts.GetAccount(r.Context(), *account.OwnerID)
				if err != nil {
					respondWithError(w, r, domain.WrapError(err, domain.EINTERNAL, "access.gate", "failed to resolve owner account"))
					return
				}
				billed = owner
			}

			if billed.Deactivated {
				denyAccess(w, r, "deactivated", "This account has been deactivated. Contact support.")
				return
			}

			if billed.SubscriptionStatus.Blocked() {
				denyAccess(w, r, string(billed.SubscriptionStatus), blockedMessage(billed.SubscriptionStatus))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func denyAccess(w http.ResponseWriter, r *http.Request, status, message string) {
	if telemetry.Business != nil {
		telemetry.Business.AccessDenied.WithLabelValues(status).Inc()
	}
	respondWithError(w, r, domain.Forbidden("access.gate", message))
}

func blockedMessage(status domain.SubscriptionStatus) string {
	if status == domain.SubscriptionHalted {
		return "There is a payment issue with your subscription. Update your payment method to restore access."
	}
	return "Your subscription is not active. Renew your subscription to restore access."
}
