package server

import (
	"wanderfeed/internal/middleware"
	"wanderfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ProvisionMe handles POST /api/users/me. It binds the token subject to a
// local account, creating it on first sight.
func (s *Server) ProvisionMe(c *fiber.Ctx) error {
	claims, _ := c.Locals(middleware.LocalClaims).(*middleware.IdentityClaims)
	if claims == nil {
		return fiber.ErrUnauthorized
	}

	ctx := c.UserContext()
	userID, err := s.identity.ResolveOrCreateUser(ctx, service.ProvisionInput{
		ExternalID:  claims.Subject,
		Username:    claims.Username,
		Email:       claims.Email,
		DisplayName: claims.Name,
		AvatarURL:   claims.Picture,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	user, err := s.engagement.GetProfile(ctx, userID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(user)
}

// GetUserProfile handles GET /api/users/:id
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}

	user, err := s.engagement.GetProfile(c.UserContext(), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	if currentUserID(c) != id {
		user.Email = ""
	}
	return c.JSON(user)
}

// ToggleFollow handles POST /api/users/:id/follow
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}

	result, err := s.engagement.ToggleFollow(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(result)
}

// GetFollowers handles GET /api/users/:id/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	page, limit := parsePagination(c)

	users, err := s.engagement.ListFollowers(c.UserContext(), id, page, limit)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(users)
}

// GetFollowing handles GET /api/users/:id/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	page, limit := parsePagination(c)

	users, err := s.engagement.ListFollowing(c.UserContext(), id, page, limit)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(users)
}

// GetUserPosts handles GET /api/users/:id/posts
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	page, limit := parsePagination(c)

	posts, err := s.engagement.ListUserPosts(c.UserContext(), currentUserID(c), id, page, limit)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(posts)
}

// GetFeatureFlags handles GET /api/feature-flags
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"flags": s.featureFlags.Snapshot(currentUserID(c))})
}
