package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/counterbook/counterbook/internal/auth"
	"github.com/counterbook/counterbook/internal/domain"
	"github.com/counterbook/counterbook/internal/middleware"
)

// SessionCookieName is the login session cookie.
const SessionCookieName = "counterbook_session"

// AuthHandler handles login and logout.
type AuthHandler struct {
	store         domain.AuthStore
	validate      *validator.Validate
	secureCookies bool
}

// NewAuthHandler creates a new auth handler. secureCookies should be true
// everywhere except local development.
func NewAuthHandler(store domain.AuthStore, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		store:         store,
		validate:      validator.New(),
		secureCookies: secureCookies,
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccountID          string `json:"account_id"`
	Email              string `json:"email"`
	Role               string `json:"role"`
	Plan               string `json:"plan"`
	SubscriptionStatus string `json:"subscription_status"`
}

// Login handles POST /api/auth/login
//
// Unknown emails and wrong passwords get the same response so the endpoint
// can't be used to probe for accounts.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("auth.login", "invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		ValidationErrorResponse(w, r, err)
		return
	}

	account, err := h.store.GetAccountByEmail(r.Context(), req.Email)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			ErrorResponse(w, r, domain.Unauthorized("auth.login", "invalid email or password"))
			return
		}
		ErrorResponse(w, r, err)
		return
	}

	if err := auth.VerifyPassword(req.Password, account.PasswordHash); err != nil {
		ErrorResponse(w, r, domain.Unauthorized("auth.login", "invalid email or password"))
		return
	}

	session := domain.Session{
		Token:     uuid.NewString(),
		AccountID: account.ID,
		ExpiresAt: time.Now().Add(domain.DefaultSessionTTL),
	}
	if err := h.store.CreateSession(r.Context(), session); err != nil {
		ErrorResponse(w, r, domain.Internal(err, "auth.login", "failed to create session"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	RespondJSON(w, http.StatusOK, loginResponse{
		AccountID:          account.ID.String(),
		Email:              account.Email,
		Role:               string(account.Role),
		Plan:               string(account.Plan),
		SubscriptionStatus: string(account.SubscriptionStatus),
	})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.store.DeleteSession(r.Context(), cookie.Value); err != nil {
			logger := middleware.GetLogger(r.Context())
			logger.Error("failed to delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
