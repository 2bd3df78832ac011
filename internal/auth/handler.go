package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/mrgn-points/points_api/internal/authproof"
	"github.com/mrgn-points/points_api/internal/identity"
	"github.com/mrgn-points/points_api/internal/logging"
	"github.com/mrgn-points/points_api/internal/metrics"
	"github.com/mrgn-points/points_api/internal/middleware"
	"github.com/mrgn-points/points_api/internal/referral"
)

// Handler exposes the challenge, signup, login, refresh and logout endpoints.
type Handler struct {
	verifier *authproof.Verifier
	ids      *identity.Service
	tokens   *Service
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewHandler builds the auth HTTP handler. m may be nil.
func NewHandler(verifier *authproof.Verifier, ids *identity.Service, tokens *Service, m *metrics.Metrics, logger *slog.Logger) *Handler {
	return &Handler{verifier: verifier, ids: ids, tokens: tokens, metrics: m, logger: logging.Component(logger, "auth")}
}

type challengeRequest struct {
	Address string `json:"address"`
}

type proofRequest struct {
	Address      string `json:"address"`
	Method       string `json:"method"`
	ChallengeID  string `json:"challenge_id"`
	Signature    string `json:"signature"`
	Transaction  string `json:"transaction,omitempty"`
	ReferralCode string `json:"referral_code,omitempty"`
}

func (r proofRequest) proof() authproof.Proof {
	return authproof.Proof{
		Address:     r.Address,
		Method:      authproof.Method(r.Method),
		ChallengeID: r.ChallengeID,
		Signature:   r.Signature,
		Transaction: r.Transaction,
	}
}

type sessionResponse struct {
	Identity       identity.Response `json:"identity"`
	Created        bool              `json:"created"`
	ReferralStatus string            `json:"referral_status,omitempty"`
	ReferralError  string            `json:"referral_error,omitempty"`
	TokenPair
}

// Challenge issues a message for the account to sign.
func (h *Handler) Challenge(c *fiber.Ctx) error {
	var req challengeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	challenge, err := h.verifier.IssueChallenge(c.UserContext(), req.Address)
	if err != nil {
		if errors.Is(err, authproof.ErrInvalidAddress) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		h.logger.Error("issue challenge failed", slog.String("address", req.Address), slog.Any("error", err))
		return fiber.NewError(http.StatusServiceUnavailable, "challenge unavailable")
	}
	return c.Status(http.StatusCreated).JSON(challenge)
}

// Signup verifies the proof and creates or fetches the identity. A referral code
// that cannot be applied is reported in the response without failing the signup.
func (h *Handler) Signup(c *fiber.Ctx) error {
	var req proofRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	account, err := h.verify(c, req)
	if err != nil {
		return err
	}

	result, err := h.ids.Signup(c.UserContext(), account, req.ReferralCode)
	if err != nil {
		h.logger.Error("signup failed", slog.String("address", account.Address), slog.Any("error", err))
		return fiber.NewError(http.StatusServiceUnavailable, "signup unavailable")
	}
	h.metrics.Signup(result.Created)

	resp := sessionResponse{Identity: identity.ToResponse(result.Identity), Created: result.Created}
	if req.ReferralCode != "" {
		resp.ReferralStatus = referral.Outcome(result.ReferralErr)
		h.metrics.Referral(resp.ReferralStatus)
		if result.ReferralErr != nil {
			resp.ReferralError = result.ReferralErr.Error()
		}
	}
	if resp.TokenPair, err = h.tokens.Issue(result.Identity); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(resp)
}

// Login verifies the proof for an existing identity and issues tokens.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req proofRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	account, err := h.verify(c, req)
	if err != nil {
		return err
	}

	ident, err := h.ids.Login(c.UserContext(), account)
	if err != nil {
		if errors.Is(err, identity.ErrUnknownAccount) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		h.logger.Error("login failed", slog.String("address", account.Address), slog.Any("error", err))
		return fiber.NewError(http.StatusServiceUnavailable, "login unavailable")
	}
	pair, err := h.tokens.Issue(ident)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(sessionResponse{Identity: identity.ToResponse(ident), TokenPair: pair})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh issues a new access token using a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	pair, err := h.tokens.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenRevoked) {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	}
	return c.Status(http.StatusOK).JSON(pair)
}

// Logout revokes every token of the authenticated identity.
func (h *Handler) Logout(c *fiber.Ctx) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "not signed in")
	}
	if err := h.tokens.Logout(c.UserContext(), ident.ID); err != nil {
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}

// Me returns the authenticated identity.
func (h *Handler) Me(c *fiber.Ctx) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "not signed in")
	}
	return c.Status(http.StatusOK).JSON(identity.ToResponse(ident))
}

func (h *Handler) verify(c *fiber.Ctx, req proofRequest) (authproof.VerifiedAccount, error) {
	account, err := h.verifier.Verify(c.UserContext(), req.proof())
	h.metrics.AuthProof(methodLabel(req.Method), proofResult(err))
	if err == nil {
		return account, nil
	}

	switch {
	case errors.Is(err, authproof.ErrUnsupportedMethod), errors.Is(err, authproof.ErrInvalidAddress):
		return authproof.VerifiedAccount{}, fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, authproof.ErrSignatureInvalid), errors.Is(err, authproof.ErrChallengeExpired):
		return authproof.VerifiedAccount{}, fiber.NewError(http.StatusUnauthorized, err.Error())
	default:
		h.logger.Error("proof verification failed", slog.String("address", req.Address), slog.Any("error", err))
		return authproof.VerifiedAccount{}, fiber.NewError(http.StatusServiceUnavailable, "verification unavailable")
	}
}

func proofResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, authproof.ErrSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, authproof.ErrChallengeExpired):
		return "challenge_expired"
	case errors.Is(err, authproof.ErrUnsupportedMethod):
		return "unsupported_method"
	default:
		return "error"
	}
}

func methodLabel(raw string) string {
	method, err := authproof.ParseMethod(raw)
	if err != nil {
		return "unknown"
	}
	return string(method)
}
