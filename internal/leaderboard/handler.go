package leaderboard

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the leaderboard endpoint.
type Handler struct {
	service *Service
}

// NewHandler builds a leaderboard HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Page serves one page. Query parameters: cursor (opaque) and limit.
func (h *Handler) Page(c *fiber.Ctx) error {
	page, err := h.service.FetchPage(c.UserContext(), c.Query("cursor"), c.QueryInt("limit", DefaultPageSize))
	if err != nil {
		if errors.Is(err, ErrInvalidCursor) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	}
	return c.Status(http.StatusOK).JSON(page)
}
