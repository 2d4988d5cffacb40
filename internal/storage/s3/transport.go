package s3

import (
	"context"
	"time"
)

// Object describes one stored object as reported by the transport.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// ObjectPage is one page of a listing.
type ObjectPage struct {
	Objects   []Object
	NextToken string
}

// Transport performs the raw object operations against a bucket. Keys are
// full object keys including any access prefix. Errors should already be
// translated into the storage error taxonomy.
type Transport interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
	PresignGetObject(ctx context.Context, key string, expires time.Duration) (string, error)
	ListObjects(ctx context.Context, prefix string, limit int, token string) (ObjectPage, error)
}
