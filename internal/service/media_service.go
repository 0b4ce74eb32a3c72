package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"log/slog"
	"net/http"
	"time"

	"wanderfeed/internal/media"
	"wanderfeed/internal/middleware"
	"wanderfeed/internal/models"
	"wanderfeed/internal/observability"

	_ "golang.org/x/image/webp" // register WebP decoder
)

const maxImagePixels = 40_000_000

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// MediaService validates uploads and fronts the media store.
type MediaService struct {
	store    media.Store
	maxBytes int64
}

func NewMediaService(store media.Store, maxBytes int64) *MediaService {
	return &MediaService{store: store, maxBytes: maxBytes}
}

// UploadResult describes a stored image.
type UploadResult struct {
	Path     string `json:"path"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Upload checks that data is a supported image within the size limits and
// stores it. The declared type is ignored in favour of the sniffed one.
func (s *MediaService) Upload(ctx context.Context, data []byte) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, models.NewValidationError("File is empty")
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %d bytes)", s.maxBytes))
	}

	mimeType := sniffImageType(data)
	if !allowedImageTypes[mimeType] {
		return nil, models.NewValidationError("Unsupported file type")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, models.NewValidationError("File is not a valid image")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxImagePixels {
		return nil, models.NewValidationError("Image dimensions out of range")
	}

	path, err := s.store.Save(ctx, data, mimeType)
	if err != nil {
		return nil, models.NewUpstreamError("media store", err)
	}
	observability.MediaBytesTotal.Add(float64(len(data)))

	url, err := s.store.PresignedURL(ctx, path, media.DefaultPresignTTL)
	if err != nil {
		return nil, models.NewUpstreamError("media store", err)
	}
	middleware.Logger.InfoContext(ctx, "media stored", slog.String("path", path), slog.Int("bytes", len(data)))
	return &UploadResult{
		Path:     path,
		URL:      url,
		MimeType: mimeType,
		Size:     int64(len(data)),
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

// sniffImageType detects the content type, recognizing WebP which older
// sniffers report as a generic RIFF container.
func sniffImageType(data []byte) string {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}
	return http.DetectContentType(data)
}

func (s *MediaService) Fetch(ctx context.Context, path string) (*media.Object, error) {
	obj, err := s.store.Fetch(ctx, path)
	if err != nil {
		return nil, mediaErr(path, err)
	}
	return obj, nil
}

func (s *MediaService) Delete(ctx context.Context, path string) error {
	if err := s.store.Delete(ctx, path); err != nil {
		return mediaErr(path, err)
	}
	return nil
}

func (s *MediaService) PresignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	url, err := s.store.PresignedURL(ctx, path, ttl)
	if err != nil {
		return "", mediaErr(path, err)
	}
	return url, nil
}

func mediaErr(path string, err error) error {
	switch {
	case errors.Is(err, media.ErrNotFound), errors.Is(err, media.ErrInvalidPath):
		return models.NewNotFoundError("Media", path)
	default:
		return models.NewUpstreamError("media store", err)
	}
}
