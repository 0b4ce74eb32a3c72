package server

import (
	"io"
	"strconv"

	"wanderfeed/internal/models"

	"github.com/gofiber/fiber/v2"
)

// UploadMedia handles POST /api/media (multipart field "file").
func (s *Server) UploadMedia(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return mapServiceError(c, models.NewValidationError("file is required"))
	}
	maxBytes := s.config.MediaMaxUploadBytes
	if file.Size > maxBytes {
		return mapServiceError(c, models.NewValidationError("file exceeds the upload limit"))
	}

	f, err := file.Open()
	if err != nil {
		return mapServiceError(c, models.NewValidationError("unable to read upload"))
	}
	defer func() { _ = f.Close() }()

	// One byte past the limit lets the service report oversize uploads.
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return mapServiceError(c, models.NewValidationError("unable to read upload"))
	}

	result, err := s.media.Upload(c.UserContext(), data)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// GetMedia handles GET /api/media/<path>. Paths are content addresses, so
// responses never change.
func (s *Server) GetMedia(c *fiber.Ctx) error {
	obj, err := s.media.Fetch(c.UserContext(), c.Params("*"))
	if err != nil {
		return mapServiceError(c, err)
	}
	c.Set(fiber.HeaderContentType, obj.MimeType)
	c.Set(fiber.HeaderContentLength, strconv.FormatInt(obj.Size, 10))
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.Send(obj.Data)
}

// DeleteMedia handles DELETE /api/media/<path>
func (s *Server) DeleteMedia(c *fiber.Ctx) error {
	if err := s.media.Delete(c.UserContext(), c.Params("*")); err != nil {
		return mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
