package ports

import (
	"context"
	"io"
)

type PutObjectInput struct {
	ObjectKey   string
	ContentType string
	Reader      io.Reader
	Size        int64
}

type PutObjectOutput struct {
	ObjectKey string
	Size      int64
}

// StorageProvider is where published cards end up (r2, localfs).
// Objects are create-once; there is no update or delete path.
type StorageProvider interface {
	Provider() string

	PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error)
	GetObject(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error)

	// Ping checks that the bucket or root directory is reachable.
	Ping(ctx context.Context) error
}
