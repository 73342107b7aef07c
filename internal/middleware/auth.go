package middleware

import (
	"context"
	"net/http"

	"github.com/counterbook/counterbook/internal/domain"
)

type contextKey string

const (
	// AccountContextKey is the context key for storing the authenticated account
	AccountContextKey contextKey = "account"

	sessionCookieName = "counterbook_session"
)

// WithAccount extracts the account from the session cookie and adds it to the
// request context. This middleware is optional - it adds the account if a
// valid session is present but doesn't require authentication.
func WithAccount(accounts domain.AccountStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			account, err := accounts.GetAccountBySessionToken(r.Context(), cookie.Value)
			if err != nil {
				// Invalid or expired session, continue without account
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), AccountContextKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth ensures the request carries an authenticated account,
// returning 401 if not.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account := GetAccountFromContext(r.Context())
		if account == nil {
			respondUnauthorized(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireOwner ensures the authenticated account is the tenant owner.
// Staff members cannot manage billing for their owner's account.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account := GetAccountFromContext(r.Context())
		if account == nil {
			respondUnauthorized(w, r)
			return
		}

		if account.Role != domain.RoleOwner {
			respondForbidden(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetAccountFromContext retrieves the account from the request context.
// Returns nil if no account is authenticated.
func GetAccountFromContext(ctx context.Context) *domain.Account {
	account, ok := ctx.Value(AccountContextKey).(*domain.Account)
	if !ok {
		return nil
	}
	return account
}
