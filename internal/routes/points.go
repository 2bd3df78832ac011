package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mrgn-points/points_api/internal/leaderboard"
	"github.com/mrgn-points/points_api/internal/points"
)

// RegisterPointsRoutes wires per-address points.
func RegisterPointsRoutes(r fiber.Router, h *points.Handler) {
	r.Get("/points/:address", h.Get)
}

// RegisterLeaderboardRoutes wires the paginated ranking.
func RegisterLeaderboardRoutes(r fiber.Router, h *leaderboard.Handler) {
	r.Get("/leaderboard", h.Page)
}
