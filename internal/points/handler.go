package points

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/mrgn-points/points_api/internal/identity"
)

// Profiles looks up the identity bound to an address.
type Profiles interface {
	Lookup(ctx context.Context, address string) (identity.Identity, bool, error)
}

// Handler exposes points endpoints.
type Handler struct {
	aggregator      *Aggregator
	profiles        Profiles
	referralBaseURL string
}

// NewHandler builds a points HTTP handler.
func NewHandler(aggregator *Aggregator, profiles Profiles, referralBaseURL string) *Handler {
	return &Handler{aggregator: aggregator, profiles: profiles, referralBaseURL: referralBaseURL}
}

// Response is the wire form of a points record plus the owner's referral details.
type Response struct {
	Record
	ReferralCode         string `json:"referral_code,omitempty"`
	ReferralLink         string `json:"referral_link,omitempty"`
	IsCustomReferralLink bool   `json:"is_custom_referral_link"`
}

// Get returns the points of the address in the path. Unregistered addresses get the
// zeroed record.
func (h *Handler) Get(c *fiber.Ctx) error {
	address := c.Params("address")
	if address == "" {
		return fiber.NewError(http.StatusBadRequest, "address is required")
	}
	ctx := c.UserContext()

	ident, ok, err := h.profiles.Lookup(ctx, address)
	if err != nil {
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	}
	if !ok {
		return c.Status(http.StatusOK).JSON(Response{Record: Default(address)})
	}

	record, err := h.aggregator.GetPoints(ctx, address)
	if err != nil {
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	}
	return c.Status(http.StatusOK).JSON(h.response(record, ident))
}

func (h *Handler) response(record Record, ident identity.Identity) Response {
	resp := Response{Record: record, ReferralCode: ident.ReferralCode}
	if ident.ReferralCode != "" && h.referralBaseURL != "" {
		resp.ReferralLink = strings.TrimRight(h.referralBaseURL, "/") + "/" + ident.ReferralCode
	}
	return resp
}
