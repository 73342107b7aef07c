package routes

import (
	"github.com/counterbook/counterbook/internal/handler"
	"github.com/counterbook/counterbook/internal/router"
)

// AuthDeps contains dependencies for authentication routes
type AuthDeps struct {
	Handler *handler.AuthHandler
}

// RegisterAuthRoutes registers login and logout.
func RegisterAuthRoutes(r *router.Router, deps AuthDeps) {
	r.Post("/api/auth/login", deps.Handler.Login)
	r.Post("/api/auth/logout", deps.Handler.Logout)
}
