package server

import (
	"log/slog"

	"wanderfeed/internal/middleware"
	"wanderfeed/internal/models"
	"wanderfeed/internal/service"
	"wanderfeed/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// currentUserID returns the authenticated caller, or uuid.Nil.
func currentUserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(middleware.LocalUserID).(uuid.UUID)
	return id
}

// parseUUID extracts a route parameter as a uuid.
func parseUUID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, models.NewValidationError("Invalid " + param)
	}
	return id, nil
}

// parsePagination reads zero-based page and limit; the service clamps them.
func parsePagination(c *fiber.Ctx) (page, limit int) {
	return c.QueryInt("page", 0), c.QueryInt("limit", service.DefaultPageLimit)
}

// parseBody decodes the JSON body into dst and validates its tags.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	return validation.Struct(dst)
}

// parseOptionalBody is parseBody for endpoints whose body may be empty.
func parseOptionalBody(c *fiber.Ctx, dst any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	return parseBody(c, dst)
}

// mapServiceError writes err with the status its code maps to. Errors
// without a code are treated as internal and never echoed to the client.
func mapServiceError(c *fiber.Ctx, err error) error {
	if models.ErrorCode(err) == "" {
		err = models.NewInternalError(err)
	}
	status := models.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}
	return models.RespondWithError(c, status, err)
}
