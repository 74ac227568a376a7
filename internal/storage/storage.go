package storage

import (
	"context"
	"time"
)

// DefaultPresignedURLExpiry bounds how long upload/download links stay valid.
const DefaultPresignedURLExpiry = 15 * time.Minute

// FileStorage is the object storage used for diet PDFs and progress photos.
// Clients upload and download directly against presigned URLs; the API never
// proxies file bytes.
type FileStorage interface {
	GeneratePresignedUploadURL(ctx context.Context, objectKey string, contentType string, expires time.Duration) (string, error)
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}
