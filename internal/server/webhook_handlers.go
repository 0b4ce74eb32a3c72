package server

import (
	"errors"
	"log/slog"

	"wanderfeed/internal/events"
	"wanderfeed/internal/middleware"
	"wanderfeed/internal/models"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// IdentityWebhook handles POST /api/webhooks/identity. Deliveries are
// verified, then queued on the event bus or applied inline when no bus runs.
func (s *Server) IdentityWebhook(c *fiber.Ctx) error {
	ctx := c.UserContext()
	body := c.Body()
	deliveryID := c.Get(events.HeaderID)

	if s.webhooks != nil {
		err := s.webhooks.Verify(deliveryID, c.Get(events.HeaderTimestamp), c.Get(events.HeaderSignature), body)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "webhook rejected", slog.String("error", err.Error()))
			if errors.Is(err, events.ErrMissingHeaders) {
				return mapServiceError(c, models.NewValidationError("Missing webhook headers"))
			}
			return mapServiceError(c, models.NewUnauthorizedError("Invalid webhook signature"))
		}
	} else {
		middleware.Logger.WarnContext(ctx, "webhook signature verification disabled")
	}

	var ev models.IdentityEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return mapServiceError(c, models.NewValidationError("Invalid webhook payload"))
	}

	if s.events != nil {
		if err := s.events.PublishIdentityEvent(ctx, deliveryID, body); err != nil {
			return mapServiceError(c, err)
		}
	} else if err := s.identity.HandleIdentityEvent(ctx, ev); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"received": true})
}
