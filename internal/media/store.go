// Package media stores uploaded blobs under content-addressed paths.
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DefaultPresignTTL is used when callers pass a non-positive TTL.
const DefaultPresignTTL = time.Hour

// ErrNotFound is returned when no blob exists at a path.
var ErrNotFound = errors.New("media: object not found")

// ErrInvalidPath is returned for paths that are not content addresses.
var ErrInvalidPath = errors.New("media: invalid path")

// Object is a stored blob.
type Object struct {
	Data     []byte
	MimeType string
	Size     int64
}

// Store is a blob store addressed by ObjectPath.
type Store interface {
	Save(ctx context.Context, data []byte, mimeType string) (string, error)
	Fetch(ctx context.Context, path string) (*Object, error)
	Delete(ctx context.Context, path string) error
	PresignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

var pathPattern = regexp.MustCompile(`^[a-f0-9]{64}\.[a-z0-9]{1,5}$`)

var preferredExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"video/mp4":  ".mp4",
}

// ExtensionFor returns the file extension used for mimeType.
func ExtensionFor(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	if ext, ok := preferredExt[mimeType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// MimeTypeFor returns the MIME type implied by a stored path.
func MimeTypeFor(path string) string {
	ext := filepath.Ext(path)
	for m, e := range preferredExt {
		if e == ext {
			return m
		}
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// ObjectPath is the hex SHA-256 of data plus the extension of mimeType.
// Identical uploads share one path.
func ObjectPath(data []byte, mimeType string) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]) + ExtensionFor(mimeType)
}

// ValidPath reports whether path is a content address produced by ObjectPath.
func ValidPath(path string) bool {
	return pathPattern.MatchString(path)
}

func presignTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultPresignTTL
	}
	return ttl
}
