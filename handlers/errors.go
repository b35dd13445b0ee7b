package handlers

import (
	"errors"
	"log"

	"connect-chain-system/services"

	"github.com/gofiber/fiber/v2"
)

// respondError maps a service failure kind to its HTTP status and stable
// machine code. Unknown errors are logged and hidden behind a generic 500.
func respondError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("[HTTP] %s %s failed: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{
			"error": "internal error",
			"code":  "internal_error",
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"code":  services.ErrorCode(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrNotAMember):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrInsufficientCredits),
		errors.Is(err, services.ErrInvalidStateTransition),
		errors.Is(err, services.ErrCannotJoinOwnChain),
		errors.Is(err, services.ErrAlreadyResolved),
		errors.Is(err, services.ErrDuplicatePendingClaim),
		errors.Is(err, services.ErrRequestInactive),
		errors.Is(err, services.ErrTryAgain):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
