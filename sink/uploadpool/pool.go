package uploadpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"

	"github.com/kinovale/s3framesink/sink/network"
)

// Pool runs single-object uploads on a bounded set of workers.
type Pool struct {
	config   Config
	api      network.API
	onResult func(Result)
	logger   log.Logger
	stats    *Stats

	semaphore chan struct{}
	wg        sync.WaitGroup
}

// New creates a pool. onResult is invoked exactly once per submitted task,
// from the worker goroutine, after the task reaches a terminal state.
func New(config Config, api network.API, onResult func(Result), logger log.Logger) *Pool {
	config = config.withDefaults()
	return &Pool{
		config:    config,
		api:       api,
		onResult:  onResult,
		logger:    logger,
		stats:     NewStats(),
		semaphore: make(chan struct{}, config.Concurrency),
	}
}

// Submit hands a task to the pool. When Concurrency uploads are already in
// flight it blocks until one finishes: that blocking is the backpressure
// toward the producer, and no task is ever dropped. The only failure mode is
// the caller's context ending while waiting for capacity; in that case the
// task was never scheduled and no Result is delivered for it.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case p.semaphore <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("enqueue frame %d: %w", task.Sequence, ctx.Err())
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		result := p.run(ctx, task)
		<-p.semaphore
		p.onResult(result)
	}()

	return nil
}

// Drain blocks until every in-flight task has reached a terminal state and
// its Result has been delivered. In-flight uploads are allowed to finish
// rather than aborted mid-write.
func (p *Pool) Drain() {
	p.wg.Wait()
}

// Stats returns the upload timing statistics.
func (p *Pool) Stats() *Stats {
	return p.stats
}

func (p *Pool) run(ctx context.Context, task Task) Result {
	var uploadErr error

	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := p.config.backoff(attempt - 1)
			p.logger.Warnf("Frame %d attempt %d/%d failed: %s (retrying in %s)",
				task.Sequence, attempt-1, p.config.MaxAttempts, uploadErr, wait.Round(time.Millisecond))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return Result{Sequence: task.Sequence, Key: task.Key, Attempts: attempt - 1, Err: ctx.Err()}
			}
		}

		start := time.Now()
		uploadErr = p.api.PutObject(ctx, task.Key, task.Payload, task.ContentType)
		if uploadErr == nil {
			took := time.Since(start)
			p.stats.Update(took)
			p.logger.Debugf("Uploaded %s (%s) in %s [finished=%d] [avg=%s]",
				task.Key, units.HumanSizeWithPrecision(float64(len(task.Payload)), 3),
				took.Round(time.Millisecond), p.stats.FinishedCount(), p.stats.Average().Round(time.Millisecond))
			return Result{Sequence: task.Sequence, Key: task.Key, Attempts: attempt}
		}

		if !network.Transient(uploadErr) {
			p.logger.Errorf("Frame %d upload rejected: %s", task.Sequence, uploadErr)
			return Result{Sequence: task.Sequence, Key: task.Key, Attempts: attempt, Err: uploadErr}
		}
	}

	p.logger.Errorf("Attempts exhausted uploading frame %d: %s", task.Sequence, uploadErr)
	return Result{Sequence: task.Sequence, Key: task.Key, Attempts: p.config.MaxAttempts, Err: uploadErr}
}
