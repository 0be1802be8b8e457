package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/koolaai/support_api/shared"
)

// TokenVerifier resolves a bearer token to the identity it was issued for.
type TokenVerifier interface {
	VerifyJWTToken(token string) (*shared.Identity, error)
}

const identityLocal = "identity"

func ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", shared.NewUnauthorizedError("Authorization header is missing")
	}
	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return "", shared.NewUnauthorizedError("Invalid authorization header format")
	}
	token := strings.TrimSpace(authHeader[7:])
	if token == "" {
		return "", shared.NewUnauthorizedError("Authorization header is missing")
	}
	return token, nil
}

// RequiredAuth rejects requests without a valid bearer token and stores the
// caller identity in the request locals.
func RequiredAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := ExtractTokenFromHeader(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return err
		}

		identity, err := verifier.VerifyJWTToken(token)
		if err != nil || identity == nil || identity.UserID == "" {
			return shared.NewUnauthorizedError("Invalid JWT token")
		}

		c.Locals(identityLocal, identity)
		c.Locals(shared.UserID, identity.UserID)
		c.Locals(shared.UserRole, identity.Role)
		c.Locals(shared.EmailVerified, identity.EmailVerified)
		return c.Next()
	}
}

// CurrentIdentity returns the identity stored by RequiredAuth.
func CurrentIdentity(c *fiber.Ctx) (*shared.Identity, bool) {
	identity, ok := c.Locals(identityLocal).(*shared.Identity)
	return identity, ok && identity != nil
}

// RequireSupport admits operators and admins.
func RequireSupport() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := CurrentIdentity(c)
		if !ok {
			return shared.NewUnauthorizedError("Unauthorized")
		}
		if !identity.Role.IsSupport() {
			return shared.NewPermissionError("Support role required.")
		}
		return c.Next()
	}
}

// RequireOwner admits end users only.
func RequireOwner() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := CurrentIdentity(c)
		if !ok {
			return shared.NewUnauthorizedError("Unauthorized")
		}
		if identity.Role != shared.RoleOwner {
			return shared.NewPermissionError("Only customers can use the support chat.")
		}
		return c.Next()
	}
}
