package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sefazor/guestdrop-backend/internal/apperr"
	"github.com/sefazor/guestdrop-backend/internal/middleware"
	"github.com/sefazor/guestdrop-backend/internal/models"
)

// respondError writes err as the response envelope with the status mapped
// from its code. Untyped errors are logged and reported as internal.
func respondError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	code := apperr.CodeOf(err)
	if code == apperr.CodeInternal {
		logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.Status(apperr.HTTPStatus(code)).JSON(models.ErrorResponse(string(code), apperr.MessageOf(err)))
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse(string(apperr.CodeInvalidInput), msg))
}

func organizerID(c *fiber.Ctx) string {
	id, _ := c.Locals(middleware.LocalOrganizerID).(string)
	return id
}

func sessionID(c *fiber.Ctx) string {
	id, _ := c.Locals(middleware.LocalSessionID).(string)
	return id
}
