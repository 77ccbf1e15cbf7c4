package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sefazor/guestdrop-backend/internal/apperr"
	"github.com/sefazor/guestdrop-backend/internal/models"
	jwtPkg "github.com/sefazor/guestdrop-backend/pkg/jwt"
)

// Locals keys set by the auth middlewares.
const (
	LocalSessionID   = "sessionID"
	LocalEventID     = "eventID"
	LocalOrganizerID = "organizerID"
)

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse(string(apperr.CodeUnauthorized), msg))
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

func requireRole(issuer *jwtPkg.Issuer, role string) func(c *fiber.Ctx) (*jwtPkg.Claims, error) {
	return func(c *fiber.Ctx) (*jwtPkg.Claims, error) {
		tokenString, ok := bearerToken(c)
		if !ok {
			return nil, unauthorized(c, "Authorization header is required")
		}

		claims, err := issuer.Parse(tokenString)
		if err != nil {
			return nil, unauthorized(c, "Invalid token")
		}
		if claims.Role != role {
			return nil, c.Status(fiber.StatusForbidden).JSON(models.ErrorResponse(string(apperr.CodeForbidden), "Token role not allowed here"))
		}
		return claims, nil
	}
}

// GuestAuth accepts guest tokens and exposes the session and event IDs.
func GuestAuth(issuer *jwtPkg.Issuer) fiber.Handler {
	check := requireRole(issuer, jwtPkg.RoleGuest)
	return func(c *fiber.Ctx) error {
		claims, err := check(c)
		if claims == nil {
			return err
		}
		c.Locals(LocalSessionID, claims.Subject)
		c.Locals(LocalEventID, claims.EventID)
		return c.Next()
	}
}

// OrganizerAuth accepts organizer tokens minted by the account service.
func OrganizerAuth(issuer *jwtPkg.Issuer) fiber.Handler {
	check := requireRole(issuer, jwtPkg.RoleOrganizer)
	return func(c *fiber.Ctx) error {
		claims, err := check(c)
		if claims == nil {
			return err
		}
		c.Locals(LocalOrganizerID, claims.Subject)
		return c.Next()
	}
}

// InternalSecret guards the job trigger endpoints with a static bearer secret.
func InternalSecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			return unauthorized(c, "Invalid internal secret")
		}
		return c.Next()
	}
}
