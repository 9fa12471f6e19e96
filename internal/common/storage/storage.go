package storage

import (
	"context"
	"io"
)

// ObjectStorage defines minimal object storage operations required by the judge flow.
// It is intentionally small so we can swap MinIO/AWS-S3 implementations without
// touching business logic.
type ObjectStorage interface {
	// GetObject opens a reader for an object.
	// Caller must close the returned reader.
	GetObject(ctx context.Context, bucket, objectKey string) (io.ReadCloser, error)

	// StatObject returns size and ETag for an object.
	StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error)
}

// ObjectStat describes a stored object.
type ObjectStat struct {
	Size int64
	ETag string
}
