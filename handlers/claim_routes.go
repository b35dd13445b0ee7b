// handlers/claim_routes.go
package handlers

import (
	"fmt"
	"path/filepath"

	"connect-chain-system/middleware"
	"connect-chain-system/services"
	"connect-chain-system/utils"

	"github.com/gofiber/fiber/v2"
)

func SetupClaimRoutes(app *fiber.App, claimService *services.ClaimService) {
	secured := app.Group("/claims", middleware.UserContextMiddleware())

	secured.Post("/", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			RequestID     string `json:"request_id"`
			ChainID       string `json:"chain_id"`
			TargetName    string `json:"target_name"`
			TargetEmail   string `json:"target_email"`
			TargetCompany string `json:"target_company"`
			Note          string `json:"note"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body", "code": "invalid_input"})
		}

		claim, err := claimService.Submit(services.SubmitClaimInput{
			RequestID:     req.RequestID,
			ChainID:       req.ChainID,
			ClaimantID:    userID,
			TargetName:    req.TargetName,
			TargetEmail:   req.TargetEmail,
			TargetCompany: req.TargetCompany,
			Note:          req.Note,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(claim)
	})

	secured.Post("/:id/evidence", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		claimID := c.Params("id")

		fileHeader, err := c.FormFile("file")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing evidence file", "code": "invalid_input"})
		}
		if !utils.ObjectStoreConfigured() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "evidence storage not configured", "code": "internal_error"})
		}

		key := fmt.Sprintf("evidence/%s%s", claimID, filepath.Ext(fileHeader.Filename))
		url, err := utils.UploadEvidence(fileHeader, key)
		if err != nil {
			return respondError(c, err)
		}

		claim, err := claimService.AttachEvidence(claimID, userID, url)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(claim)
	})

	secured.Post("/:id/approve", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		chain, err := claimService.Approve(c.Params("id"), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(chain)
	})

	secured.Post("/:id/reject", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Reason string `json:"reason"`
		}
		_ = c.BodyParser(&req)

		claim, err := claimService.Reject(c.Params("id"), userID, req.Reason)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(claim)
	})

	app.Get("/requests/:id/claims", middleware.UserContextMiddleware(), func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		claims, err := claimService.ListByRequest(c.Params("id"), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(claims)
	})
}
