// handlers/credit_routes.go
package handlers

import (
	"time"

	"connect-chain-system/middleware"
	"connect-chain-system/models"
	"connect-chain-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupCreditRoutes(app *fiber.App, ledger *services.LedgerService) {
	secured := app.Group("/credits", middleware.UserContextMiddleware())

	secured.Get("/balance", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		balance, err := ledger.BalanceOf(userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"user_id": userID, "balance": balance})
	})

	secured.Get("/history", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		limit := c.QueryInt("limit", 20)

		var before *services.HistoryCursor
		if raw := c.Query("before"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid before cursor", "code": "invalid_input"})
			}
			before = &services.HistoryCursor{CreatedAt: t, ID: c.Query("before_id")}
		}

		txns, err := ledger.History(userID, limit, before)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(txns)
	})

	secured.Post("/spend", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Amount int64               `json:"amount"`
			Source models.CreditSource `json:"source"`
			Chain  *string             `json:"related_chain_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "invalid_input"})
		}
		if req.Source == "" {
			req.Source = models.SourceUnlockChain
		}

		txn, err := ledger.Spend(userID, req.Amount, req.Source, req.Chain)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(txn)
	})

	// Admin grant, e.g. signup bonuses or support adjustments.
	admin := app.Group("/s/admin", middleware.UserContextMiddleware())
	admin.Post("/credits/grant", func(c *fiber.Ctx) error {
		if !middleware.HasRole(c, "admin") {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin role required", "code": "unauthorized"})
		}

		var req struct {
			UserID string              `json:"user_id"`
			Amount int64               `json:"amount"`
			Source models.CreditSource `json:"source"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "invalid_input"})
		}
		if req.Source == "" {
			req.Source = models.SourceBonus
		}

		txn, err := ledger.Award(req.UserID, req.Amount, req.Source, nil)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(txn)
	})
}
