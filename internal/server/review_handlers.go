package server

import (
	"wanderfeed/internal/models"
	"wanderfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createReviewRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment"`
}

type voteRequest struct {
	IsHelpful *bool `json:"is_helpful" validate:"required"`
}

// GetPostReviews handles GET /api/posts/:id/reviews
func (s *Server) GetPostReviews(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	page, limit := parsePagination(c)

	out, err := s.reviews.ListPostReviews(c.UserContext(), id, page, limit)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(out)
}

// CreateReview handles POST /api/posts/:id/reviews
func (s *Server) CreateReview(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	var req createReviewRequest
	if err := parseBody(c, &req); err != nil {
		return mapServiceError(c, err)
	}

	review, err := s.reviews.CreateReview(c.UserContext(), currentUserID(c), id, req.Rating, req.Comment)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(review)
}

// UpdateReview handles PATCH /api/reviews/:id
func (s *Server) UpdateReview(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	var req service.UpdateReviewInput
	if err := parseBody(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	if req.Rating == nil && req.Comment == nil {
		return mapServiceError(c, models.NewValidationError("Nothing to update"))
	}

	review, err := s.reviews.UpdateReview(c.UserContext(), currentUserID(c), id, req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(review)
}

// DeleteReview handles DELETE /api/reviews/:id
func (s *Server) DeleteReview(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	if err := s.reviews.DeleteReview(c.UserContext(), currentUserID(c), id); err != nil {
		return mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// VoteReview handles POST /api/reviews/:id/vote
func (s *Server) VoteReview(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	var req voteRequest
	if err := parseBody(c, &req); err != nil {
		return mapServiceError(c, err)
	}

	result, err := s.reviews.VoteReview(c.UserContext(), currentUserID(c), id, *req.IsHelpful)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(result)
}
