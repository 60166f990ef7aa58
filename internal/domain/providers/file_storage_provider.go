package providers

import (
	"context"
)

// FileStorageProvider defines the interface for the external file-storage
// collaborator. The core never touches file bytes beyond handing them over; it
// stores only the returned URL on the prescription record.
type FileStorageProvider interface {
	// Store uploads the prescription image and returns its URL
	Store(ctx context.Context, filename, contentType string, data []byte) (url string, err error)
}
