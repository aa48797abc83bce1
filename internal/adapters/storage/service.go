// Package storage provides presigned access to devis documents in
// S3-compatible object storage.
package storage

import (
	"context"
	"time"
)

// PresignedURL contains the URL and metadata for a presigned upload/download operation.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// DocumentStore is what the clients module needs from object storage.
type DocumentStore interface {
	// GenerateUploadURL returns a presigned PUT URL under folder.
	GenerateUploadURL(ctx context.Context, folder, fileName, contentType string, sizeBytes int64) (*PresignedURL, error)
	GenerateDownloadURL(ctx context.Context, fileKey string) (*PresignedURL, error)
	DeleteObject(ctx context.Context, fileKey string) error
}

// Config defines the configuration interface for storage.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketDevisDocuments() string
	IsMinIOEnabled() bool
}
