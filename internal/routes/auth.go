package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mrgn-points/points_api/internal/auth"
)

// AuthMiddlewares are the optional guards of the auth endpoints.
type AuthMiddlewares struct {
	RateLimit   fiber.Handler
	Idempotency fiber.Handler
	Session     fiber.Handler
}

// RegisterAuthRoutes wires authentication endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, mw AuthMiddlewares) {
	group := r.Group("/auth")
	group.Post("/challenge", chain(h.Challenge, mw.RateLimit)...)
	group.Post("/signup", chain(h.Signup, mw.RateLimit, mw.Idempotency)...)
	group.Post("/login", chain(h.Login, mw.RateLimit)...)
	group.Post("/refresh", h.Refresh)
	group.Post("/logout", chain(h.Logout, mw.Session)...)
}

// chain prepends the non-nil middlewares to handler.
func chain(handler fiber.Handler, mws ...fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(mws)+1)
	for _, mw := range mws {
		if mw != nil {
			out = append(out, mw)
		}
	}
	return append(out, handler)
}
