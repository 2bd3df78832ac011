package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/mrgn-points/points_api/internal/identity"
)

const identityLocal = "identity"

// Authenticator resolves an access token to its identity.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (identity.Identity, error)
}

// SessionAuth requires a valid bearer access token and stores its identity on the
// request context.
func SessionAuth(authn Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])

		ident, err := authn.Authenticate(c.UserContext(), token)
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return fe
			}
			return fiber.NewError(http.StatusUnauthorized, "invalid or revoked token")
		}

		c.Locals(identityLocal, ident)
		return c.Next()
	}
}

// CurrentIdentity returns the identity stored by SessionAuth.
func CurrentIdentity(c *fiber.Ctx) (identity.Identity, bool) {
	ident, ok := c.Locals(identityLocal).(identity.Identity)
	return ident, ok
}
