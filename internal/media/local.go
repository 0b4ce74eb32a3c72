package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore keeps blobs in a directory. It serves development setups; the
// URLs it hands out are plain links to the media route.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates dir when missing.
func NewLocalStore(dir, publicBaseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func (s *LocalStore) Save(_ context.Context, data []byte, mimeType string) (string, error) {
	path := ObjectPath(data, mimeType)
	full := filepath.Join(s.dir, path)
	if _, err := os.Stat(full); err == nil {
		return path, nil
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", err
	}
	return path, nil
}

func (s *LocalStore) Fetch(_ context.Context, path string) (*Object, error) {
	if !ValidPath(path) {
		return nil, ErrInvalidPath
	}
	data, err := os.ReadFile(filepath.Join(s.dir, path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Object{Data: data, MimeType: MimeTypeFor(path), Size: int64(len(data))}, nil
}

func (s *LocalStore) Delete(_ context.Context, path string) error {
	if !ValidPath(path) {
		return ErrInvalidPath
	}
	err := os.Remove(filepath.Join(s.dir, path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) PresignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	if !ValidPath(path) {
		return "", ErrInvalidPath
	}
	return s.baseURL + "/" + path, nil
}
