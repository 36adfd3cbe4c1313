// Package sink turns a strictly-ordered stream of encoded image buffers into
// individually keyed objects in an S3 bucket. The producer pushes buffers
// through Sink.Push; uploads run concurrently on a bounded pool, and the
// blocking of Push at pool capacity is the sole backpressure mechanism.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bitrise-io/go-utils/v2/log"

	"github.com/kinovale/s3framesink/sink/network"
	"github.com/kinovale/s3framesink/sink/uploadpool"
)

// FlowSignal is the verdict Push returns to the producer.
type FlowSignal int

const (
	// FlowOK means the frame was accepted and scheduled for upload.
	FlowOK FlowSignal = iota
	// FlowNotReady means the bucket verdict is still pending and the sink is
	// configured not to block; the frame was not accepted.
	FlowNotReady
	// FlowError means the session can no longer accept frames.
	FlowError
)

func (s FlowSignal) String() string {
	switch s {
	case FlowOK:
		return "ok"
	case FlowNotReady:
		return "not-ready"
	case FlowError:
		return "error"
	default:
		return fmt.Sprintf("flow(%d)", int(s))
	}
}

type sessionState int

const (
	stateIdle sessionState = iota
	stateProvisioning
	stateStreaming
	stateDraining
	stateClosed
	stateFailed
)

var (
	// ErrNotStarted ...
	ErrNotStarted = errors.New("session not started")
	// ErrAlreadyStarted ...
	ErrAlreadyStarted = errors.New("session already started")
)

// Sink is the component the host pipeline pushes buffers into. One Sink is
// one session against one bucket/prefix/extension configuration.
//
// The producer contract is single-threaded: Push calls are serialized by the
// caller, and Drain is called only after the final Push has returned.
type Sink struct {
	config      SessionConfig
	logger      log.Logger
	provisioner *network.Provisioner
	pool        *uploadpool.Pool
	tracker     *Tracker

	mu           sync.Mutex
	state        sessionState
	nextSequence uint64
	bucketState  network.BucketState
	provisionErr error

	// closed once the bucket verdict is in
	ready chan struct{}
}

// New creates a sink on top of an already-constructed storage API.
// The config is validated here; an invalid config never reaches streaming.
func New(config SessionConfig, api network.API, logger log.Logger) (*Sink, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	if logger == nil {
		logger = log.NewLogger()
	}

	tracker := NewTracker()
	poolConfig := uploadpool.DefaultConfig()
	if config.Concurrency > 0 {
		poolConfig.Concurrency = config.Concurrency
	}

	return &Sink{
		config:      config,
		logger:      logger,
		provisioner: network.NewProvisioner(api, logger),
		pool:        uploadpool.New(poolConfig, api, tracker.Record, logger),
		tracker:     tracker,
		ready:       make(chan struct{}),
	}, nil
}

// NewSession creates a sink backed by the real S3 client described by the
// config. Credential problems (missing or unreadable credentials file) fail
// here, at startup.
func NewSession(ctx context.Context, config SessionConfig, logger log.Logger) (*Sink, error) {
	if logger == nil {
		logger = log.NewLogger()
	}
	api, err := network.NewClient(ctx, network.ClientConfig{
		Bucket:          config.Bucket,
		Region:          config.Region,
		AccessKeyID:     config.AccessKeyID,
		SecretAccessKey: config.SecretAccessKey,
		CredentialsFile: config.CredentialsFile,
	}, logger)
	if err != nil {
		return nil, err
	}
	return New(config, api, logger)
}

// Start begins bucket provisioning in the background and makes the sink
// ready to accept Push calls. It does not wait for the bucket verdict.
func (s *Sink) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != stateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = stateProvisioning
	s.mu.Unlock()

	s.logger.Infof("Starting session against bucket %s (%s), key prefix %s", s.config.Bucket, s.config.Region, s.config.KeyPrefix)

	go s.provision(ctx)
	return nil
}

func (s *Sink) provision(ctx context.Context) {
	bucketState, err := s.provisioner.Ensure(ctx)

	s.mu.Lock()
	s.bucketState = bucketState
	s.provisionErr = err
	if s.state == stateProvisioning {
		if bucketState.Usable() {
			s.state = stateStreaming
		} else {
			s.state = stateFailed
		}
	}
	s.mu.Unlock()
	close(s.ready)

	if err != nil {
		s.logger.Errorf("Bucket provisioning failed: %s", err)
		return
	}
	s.logger.Donef("Bucket %s %s", s.config.Bucket, bucketState)
}

// Push hands one encoded frame to the sink and returns a flow verdict.
// During provisioning it blocks until the bucket verdict unless the session
// is configured to reject instead. During streaming it assigns the next
// sequence number, in arrival order, and blocks while the pool is saturated.
// The payload must not be reused by the caller after a FlowOK return.
func (s *Sink) Push(ctx context.Context, payload []byte) FlowSignal {
	s.mu.Lock()
	if s.state == stateProvisioning {
		if s.config.RejectWhileProvisioning {
			s.mu.Unlock()
			return FlowNotReady
		}
		s.mu.Unlock()
		select {
		case <-s.ready:
		case <-ctx.Done():
			return FlowError
		}
		s.mu.Lock()
	}

	if s.state != stateStreaming {
		s.mu.Unlock()
		return FlowError
	}

	sequence := s.nextSequence
	s.nextSequence++
	s.mu.Unlock()

	task := uploadpool.Task{
		Sequence:    sequence,
		Key:         ObjectKey(s.config.KeyPrefix, sequence, s.config.Extension),
		Payload:     payload,
		ContentType: s.config.contentType(),
	}

	if err := s.pool.Submit(ctx, task); err != nil {
		// The sequence number is spent but the task never ran; account it as
		// a failed frame so the drain report stays truthful.
		s.tracker.Record(uploadpool.Result{Sequence: sequence, Key: task.Key, Err: err})
		return FlowError
	}
	return FlowOK
}

// Healthy reports whether the session is still usable and has recorded no
// failed frames.
func (s *Sink) Healthy() bool {
	s.mu.Lock()
	failed := s.state == stateFailed
	s.mu.Unlock()
	return !failed && s.tracker.Healthy()
}

// BucketState returns the provisioning verdict, BucketUnknown before it is in.
func (s *Sink) BucketState() network.BucketState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bucketState
}

// Drain is the explicit stream-end: it waits for every outstanding upload to
// reach a terminal state, closes the session, and reports the aggregate
// outcome. The returned error is non-nil when the session failed as a whole
// or when any frame failed; the Summary is valid either way.
func (s *Sink) Drain(ctx context.Context) (Summary, error) {
	s.mu.Lock()
	if s.state == stateIdle {
		s.mu.Unlock()
		return Summary{}, ErrNotStarted
	}
	if s.state == stateProvisioning {
		s.mu.Unlock()
		select {
		case <-s.ready:
		case <-ctx.Done():
			return s.tracker.Summary(), ctx.Err()
		}
		s.mu.Lock()
	}
	failed := s.state == stateFailed
	if !failed {
		s.state = stateDraining
	}
	s.mu.Unlock()

	s.pool.Drain()

	s.mu.Lock()
	if s.state == stateDraining {
		s.state = stateClosed
	}
	provisionErr := s.provisionErr
	s.mu.Unlock()

	summary := s.tracker.Summary()
	if failed {
		return summary, fmt.Errorf("session failed: %w", provisionErr)
	}

	if summary.Failed > 0 {
		s.logger.Warnf("%d of %d frames failed to upload:", summary.Failed, summary.Succeeded+summary.Failed)
		for _, key := range summary.FailedKeys {
			s.logger.Warnf("- %s", key)
		}
		return summary, fmt.Errorf("%d of %d frames failed to upload", summary.Failed, summary.Succeeded+summary.Failed)
	}

	s.logger.Donef("All %d frames uploaded", summary.Succeeded)
	return summary, nil
}
