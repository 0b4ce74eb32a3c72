package server

import (
	"wanderfeed/internal/repository"
	"wanderfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetFeed handles GET /api/feed
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page, limit := parsePagination(c)

	feed, err := s.engagement.ComposeFeed(c.UserContext(), currentUserID(c), page, limit)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(feed)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req service.CreatePostInput
	if err := parseBody(c, &req); err != nil {
		return mapServiceError(c, err)
	}

	post, err := s.engagement.CreatePost(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}

	post, err := s.engagement.GetPost(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(post)
}

// ToggleLike handles POST /api/posts/:id/like
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}

	result, err := s.engagement.ToggleLike(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(result)
}

// ToggleSave handles POST /api/posts/:id/save. The body is optional.
func (s *Server) ToggleSave(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return mapServiceError(c, err)
	}
	var opts service.SaveOptions
	if err := parseOptionalBody(c, &opts); err != nil {
		return mapServiceError(c, err)
	}

	result, err := s.engagement.ToggleSave(c.UserContext(), currentUserID(c), id, opts)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(result)
}

// GetSavedPosts handles GET /api/saved?collection=&location=
func (s *Server) GetSavedPosts(c *fiber.Ctx) error {
	page, limit := parsePagination(c)
	filter := repository.SavedFilter{
		Collection: c.Query("collection"),
		Location:   c.Query("location"),
	}

	items, err := s.engagement.ListSavedPosts(c.UserContext(), currentUserID(c), filter, page, limit)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(items)
}

// GetSavedCollections handles GET /api/saved/collections
func (s *Server) GetSavedCollections(c *fiber.Ctx) error {
	out, err := s.engagement.ListSavedCollections(c.UserContext(), currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(out)
}

// GetSavedLocations handles GET /api/saved/locations
func (s *Server) GetSavedLocations(c *fiber.Ctx) error {
	out, err := s.engagement.ListSavedLocations(c.UserContext(), currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(out)
}
