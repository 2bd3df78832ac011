package identity

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Response is the wire form of an Identity.
type Response struct {
	ID           string     `json:"id"`
	Address      string     `json:"address"`
	ReferralCode string     `json:"referral_code"`
	ReferredBy   string     `json:"referred_by,omitempty"`
	AuthMethod   string     `json:"auth_method"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// ToResponse converts an identity for JSON output.
func ToResponse(i Identity) Response {
	return Response{
		ID:           i.ID,
		Address:      i.Address,
		ReferralCode: i.ReferralCode,
		ReferredBy:   i.ReferredBy,
		AuthMethod:   i.AuthMethod,
		CreatedAt:    i.CreatedAt,
		LastLogin:    i.LastLogin,
	}
}

type lookupResponse struct {
	Exists   bool      `json:"exists"`
	Identity *Response `json:"identity,omitempty"`
}

// Lookup reports whether the address in the path is bound to an identity.
func (h *Handler) Lookup(c *fiber.Ctx) error {
	address := c.Params("address")
	if address == "" {
		return fiber.NewError(http.StatusBadRequest, "address is required")
	}
	identity, ok, err := h.service.Lookup(c.UserContext(), address)
	if err != nil {
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	}
	if !ok {
		return c.Status(http.StatusOK).JSON(lookupResponse{Exists: false})
	}
	resp := ToResponse(identity)
	return c.Status(http.StatusOK).JSON(lookupResponse{Exists: true, Identity: &resp})
}

// FromResponse converts the wire form back into an Identity.
func FromResponse(r Response) Identity {
	return Identity{
		ID:           r.ID,
		Address:      r.Address,
		ReferralCode: r.ReferralCode,
		ReferredBy:   r.ReferredBy,
		AuthMethod:   r.AuthMethod,
		CreatedAt:    r.CreatedAt,
		LastLogin:    r.LastLogin,
	}
}
