// handlers/chain_routes.go
package handlers

import (
	"connect-chain-system/middleware"
	"connect-chain-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupChainRoutes(app *fiber.App, chainService *services.ChainService, userService *services.UserService) {
	// Public: anyone holding a shared link can preview the request before
	// authenticating.
	app.Get("/links/:link", func(c *fiber.Ctx) error {
		req, owner, err := chainService.ResolveLink(c.Params("link"))
		if err != nil {
			return respondError(c, err)
		}
		resp := fiber.Map{
			"request_id":         req.ID,
			"target_description": req.TargetDescription,
			"message":            req.Message,
			"reward_total":       req.RewardTotal,
			"status":             req.Status,
			"expires_at":         req.ExpiresAt,
		}
		if owner != nil {
			resp["shared_by"] = owner.UserID
		}
		return c.JSON(resp)
	})

	// /links carries both the public preview above and the secured join, so
	// the user-context middleware goes on the individual routes here
	userCtx := middleware.UserContextMiddleware()

	app.Get("/users/search", userCtx, userService.SearchUsers)

	app.Post("/requests/:id/join", userCtx, func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			ParentUserID *string `json:"parent_user_id"`
		}
		// body is optional; parent defaults to the creator
		_ = c.BodyParser(&req)

		p, err := chainService.Join(c.Params("id"), userID, req.ParentUserID)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	})

	app.Post("/links/:link/join", userCtx, func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		p, err := chainService.JoinByLink(c.Params("link"), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	})

	// :id accepts a chain id or its request id
	app.Get("/chains/:id", userCtx, func(c *fiber.Ctx) error {
		chain, err := chainService.Get(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(chain)
	})
}
