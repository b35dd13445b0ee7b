// handlers/request_routes.go
package handlers

import (
	"time"

	"connect-chain-system/middleware"
	"connect-chain-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupRequestRoutes(app *fiber.App, requestService *services.RequestService) {
	// group middleware is prefix-matched, so it must hang off /requests and
	// never "/" (that would swallow the public link and SSE routes too)
	secured := app.Group("/requests", middleware.UserContextMiddleware())

	secured.Post("/", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			TargetDescription string `json:"target_description"`
			Message           string `json:"message"`
			RewardTotal       int64  `json:"reward_total"`
			TTLHours          int    `json:"ttl_hours"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "invalid_input"})
		}

		out, err := requestService.Create(services.CreateRequestInput{
			CreatorID:         userID,
			TargetDescription: req.TargetDescription,
			Message:           req.Message,
			RewardTotal:       req.RewardTotal,
			ExpiresIn:         time.Duration(req.TTLHours) * time.Hour,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(out)
	})

	secured.Get("/", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		reqs, err := requestService.ListByCreator(userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(reqs)
	})

	secured.Get("/:id", func(c *fiber.Ctx) error {
		out, err := requestService.Get(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(out)
	})

	secured.Post("/:id/cancel", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		out, err := requestService.Cancel(c.Params("id"), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(out)
	})

	secured.Delete("/:id", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		if err := requestService.SoftDelete(c.Params("id"), userID); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "request deleted"})
	})
}
