package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"muebles/internal/models"
)

// respondError maps err onto a status code and the {"message","error"} body.
// Upstream exhaustion is checked first: it unwraps to the last upstream
// answer, which may itself look like a client error.
func respondError(c *fiber.Ctx, logger *zap.Logger, message string, err error) error {
	fields := []zap.Field{zap.String("path", c.Path()), zap.String("method", c.Method()), zap.Error(err)}

	switch {
	case errors.Is(err, models.ErrUpstreamUnavailable):
		logger.Error(message, fields...)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"message": message,
			"error":   "order service temporarily unavailable",
		})
	case errors.Is(err, models.ErrInvalidTransition):
		body := fiber.Map{"message": message, "error": err.Error()}
		var terr *models.TransitionError
		if errors.As(err, &terr) {
			body["allowed"] = terr.Allowed
		}
		return c.Status(fiber.StatusBadRequest).JSON(body)
	case errors.Is(err, models.ErrValidation):
		body := fiber.Map{"message": "Validation failed", "error": err.Error()}
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			body["errors"] = verr.Fields
		}
		return c.Status(fiber.StatusBadRequest).JSON(body)
	case errors.Is(err, models.ErrUnauthenticated):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": message, "error": "authentication required"})
	case errors.Is(err, models.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": message, "error": "access denied"})
	case errors.Is(err, models.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": message, "error": "resource not found"})
	}

	logger.Error(message, fields...)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": message,
		"error":   "internal server error",
	})
}

func badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
	})
}
