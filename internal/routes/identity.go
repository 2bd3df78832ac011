package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mrgn-points/points_api/internal/identity"
)

// RegisterIdentityRoutes wires the read-only identity lookup.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler) {
	r.Get("/identities/:address", h.Lookup)
}
