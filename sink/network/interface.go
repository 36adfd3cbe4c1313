package network

import (
	"context"
)

// API is the subset of the object storage service the sink consumes:
// a bucket existence probe, bucket creation, and a single-object put.
type API interface {
	// BucketExists reports whether the configured bucket exists and is reachable.
	// A bucket owned in a different region is an error, not a false.
	BucketExists(ctx context.Context) (bool, error)

	// CreateBucket creates the configured bucket in the configured region.
	CreateBucket(ctx context.Context) error

	// PutObject stores body under key. One call is one upload attempt;
	// retries are the caller's concern.
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}
