package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/medleaf/pharmacy-backend/internal/domain/providers"
)

// LocalFileStorage stores prescription images on the local filesystem and
// serves them by URL. Suitable for development and single-node deployments;
// production swaps in an object-store implementation behind the same interface.
type LocalFileStorage struct {
	dir     string
	baseURL string
}

// NewLocalFileStorage creates a local storage provider rooted at dir
func NewLocalFileStorage(dir, baseURL string) (providers.FileStorageProvider, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalFileStorage{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Store writes the image under a generated name and returns its URL
func (s *LocalFileStorage) Store(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	ext := filepath.Ext(filename)
	name := uuid.New().String() + ext

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return s.baseURL + "/" + name, nil
}
