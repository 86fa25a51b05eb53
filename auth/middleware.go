package auth

import (
	"strings"

	"care-chat/domain"

	"github.com/gofiber/fiber/v2"
)

// Locals keys under which the verified principal is stored for handlers.
const (
	LocalUserID = "user_id"
	LocalRole   = "role"
)

// Middleware validates the Bearer token on every request of a group and
// injects the verified identity into the request context.
func Middleware(tokens *TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "authorization token is missing",
			})
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")

		claims, err := tokens.Validate(tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "invalid or expired token",
			})
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalRole, domain.Role(claims.Role))
		return c.Next()
	}
}

// RequireRole rejects requests whose verified role is not in the allowed set.
func RequireRole(roles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(LocalRole).(domain.Role)
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "no access",
			})
		}
		for _, allowed := range roles {
			if role == allowed {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "no access",
		})
	}
}

// UserID extracts the verified user id injected by Middleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}
