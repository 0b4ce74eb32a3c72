package server

import (
	"wanderfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GenerateRecommendations handles POST /api/recommendations. A provider
// failure yields an empty list rather than an error.
func (s *Server) GenerateRecommendations(c *fiber.Ctx) error {
	var req service.RecommendationInput
	if err := parseBody(c, &req); err != nil {
		return mapServiceError(c, err)
	}

	posts, err := s.recommendations.Generate(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"recommendations": posts})
}
