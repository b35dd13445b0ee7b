// connect-chain-system/middleware/sse_auth.go
package middleware

import (
	"log"
	"strings"

	"connect-chain-system/services"

	"github.com/gofiber/fiber/v2"
)

// SSEAuthMiddleware validates `token` from query params via the auth
// provider. EventSource cannot set headers, so SSE routes authenticate
// through the query string instead of the gateway-forwarded context.
//
// Usage:
//
//	app.Get("/notifications/stream", middleware.SSEAuthMiddleware(identity), notificationService.StreamSSE)
func SSEAuthMiddleware(identity *services.IdentityClient) func(*fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(c.Query("token"))
		if accessToken == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing token in query",
			})
		}

		resp, err := identity.VerifyToken(accessToken)
		if err != nil {
			log.Printf("[SSEAuth] validation failed for %s: %v", c.Path(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		c.Locals("user_id", resp.UserID)
		c.Locals("user_email", resp.Email)
		c.Locals("user_roles", resp.Roles)

		return c.Next()
	}
}
