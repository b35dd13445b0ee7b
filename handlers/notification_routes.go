// handlers/notification_routes.go
package handlers

import (
	"connect-chain-system/middleware"
	"connect-chain-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupNotificationRoutes(app *fiber.App, notificationService *services.NotificationService, identity *services.IdentityClient) {
	// no /notifications group here: group middleware is prefix-matched and
	// would capture /notifications/stream, which authenticates by query token
	userCtx := middleware.UserContextMiddleware()

	app.Get("/notifications", userCtx, func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		out, err := notificationService.ListFor(userID, c.QueryInt("limit", 50))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(out)
	})

	app.Post("/notifications/read", userCtx, func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		n, err := notificationService.MarkAllRead(userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"marked_count": n})
	})

	// EventSource cannot send headers, so the stream authenticates via a
	// query token against the auth provider.
	app.Get("/notifications/stream", middleware.SSEAuthMiddleware(identity), notificationService.StreamSSE)
}
