package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when the backing object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// ByteRange is an inclusive byte span within an object.
type ByteRange struct {
	Start int64
	End   int64
}

// ObjectStore is the narrow blob-storage surface the delivery pipeline
// consumes: object metadata and (optionally ranged) reads. Ranged reads must
// only transfer the requested span.
type ObjectStore interface {
	Stat(ctx context.Context, path string) (ObjectInfo, error)
	Read(ctx context.Context, path string, br *ByteRange) (io.ReadCloser, error)
}
