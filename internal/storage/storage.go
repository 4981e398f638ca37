package storage

import (
	"context"
	"time"
)

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// UploadOptions conveys upload destination metadata.
type UploadOptions struct {
	Bucket    string
	KeyPrefix string
}

// Service archives property metadata documents in remote object storage.
// Archival is a transport-layer convenience; the registry core never
// depends on it.
type Service interface {
	PutDocument(ctx context.Context, key string, body []byte, opts UploadOptions) (string, error)
	GetDocument(ctx context.Context, bucket, key string) ([]byte, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	DeleteDocument(ctx context.Context, bucket, key string) error
}
