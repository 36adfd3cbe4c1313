package network

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/log"
)

const numEnsureRetries = 3

// BucketState ...
type BucketState int

const (
	// BucketUnknown is the state before Ensure has run.
	BucketUnknown BucketState = iota
	// BucketVerified means the bucket pre-existed and is reachable.
	BucketVerified
	// BucketCreated means the bucket was created by this session.
	BucketCreated
	// BucketUnavailable means no upload may proceed.
	BucketUnavailable
)

func (s BucketState) String() string {
	switch s {
	case BucketVerified:
		return "verified"
	case BucketCreated:
		return "created"
	case BucketUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Usable reports whether uploads are allowed to proceed.
func (s BucketState) Usable() bool {
	return s == BucketVerified || s == BucketCreated
}

// Provisioner ensures the target bucket exists before the first upload
// is dispatched. It runs once per session.
type Provisioner struct {
	api       API
	logger    log.Logger
	retryWait time.Duration
}

// NewProvisioner ...
func NewProvisioner(api API, logger log.Logger) *Provisioner {
	return &Provisioner{
		api:       api,
		logger:    logger,
		retryWait: 5 * time.Second,
	}
}

// Ensure probes the bucket and creates it when absent. A bucket that exists
// in a different region surfaces the service's redirect error verbatim;
// the region is never auto-corrected. Idempotent: re-running against a
// verified bucket issues no create call.
func (p *Provisioner) Ensure(ctx context.Context) (BucketState, error) {
	var exists bool
	err := retry.Times(numEnsureRetries).Wait(p.retryWait).TryWithAbort(func(attempt uint) (error, bool) {
		var err error
		exists, err = p.api.BucketExists(ctx)
		if err != nil {
			if Transient(err) {
				p.logger.Debugf("Bucket check attempt %d failed: %s", attempt+1, err)
				return err, false
			}
			return err, true
		}
		return nil, true
	})
	if err != nil {
		return BucketUnavailable, fmt.Errorf("check bucket: %w", err)
	}

	if exists {
		p.logger.Debugf("Bucket verified")
		return BucketVerified, nil
	}

	p.logger.Infof("Bucket not found, creating it...")
	if err := p.api.CreateBucket(ctx); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			// Lost a create race against ourselves; the bucket is usable.
			return BucketVerified, nil
		}
		return BucketUnavailable, fmt.Errorf("create bucket: %w", err)
	}

	return BucketCreated, nil
}
