package gcsuploader

import (
	"context"
)

// StorageService stores diagnostic artifacts in cloud storage.
type StorageService interface {
	// UploadBytes writes data to the object named by a gs://bucket/object URI.
	UploadBytes(ctx context.Context, gcsURI, contentType string, data []byte) error
}

// GCSStorageService is the Google Cloud Storage implementation of
// StorageService.
type GCSStorageService struct{}

// NewGCSStorageService creates a new instance of GCSStorageService.
func NewGCSStorageService() *GCSStorageService {
	return &GCSStorageService{}
}

// UploadBytes delegates to UploadBytes.
func (s *GCSStorageService) UploadBytes(ctx context.Context, gcsURI, contentType string, data []byte) error {
	return UploadBytes(ctx, gcsURI, contentType, data)
}
