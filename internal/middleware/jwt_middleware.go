package middleware

import (
	"log"
	"strings"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

const userLocalsKey = "user"

// AuthRequired is a Fiber middleware that resolves the bearer token into the
// stored user and keeps it in the request locals.
func AuthRequired(auth *services.Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := authenticate(c, auth); err != nil {
			return writeAuthError(c, err, "Could not authenticate request")
		}
		return c.Next()
	}
}

// RequireRole authenticates the request and admits only users holding role.
func RequireRole(auth *services.Authenticator, role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := authenticate(c, auth)
		if err != nil {
			return writeAuthError(c, err, "Could not authenticate request")
		}
		if _, err := services.RequireRole(user, role); err != nil {
			return writeAuthError(c, err, "Forbidden")
		}
		return c.Next()
	}
}

// CurrentUser returns the user stored by AuthRequired, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userLocalsKey).(*models.User)
	return user
}

func authenticate(c *fiber.Ctx, auth *services.Authenticator) (*models.User, error) {
	if user := CurrentUser(c); user != nil {
		return user, nil
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return nil, apperrors.Unauthenticated("Authorization header is required")
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return nil, apperrors.Unauthenticated("Authorization header format must be 'Bearer <token>'")
	}

	user, err := auth.Resolve(c.UserContext(), strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, err
	}
	c.Locals(userLocalsKey, user)
	return user, nil
}

func writeAuthError(c *fiber.Ctx, err error, fallback string) error {
	status := apperrors.HTTPStatus(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("Authorization failed: %v", err)
	}
	return c.Status(status).JSON(fiber.Map{
		"message": apperrors.PublicMessage(err, fallback),
	})
}
