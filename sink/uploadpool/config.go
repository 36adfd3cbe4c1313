package uploadpool

import (
	"math/rand"
	"runtime"
	"time"
)

// Config holds configuration for the upload pool.
type Config struct {
	// Concurrency is the maximum number of in-flight network writes.
	// Default: min(NumCPU * 3, 20), minimum 2
	Concurrency int

	// MaxAttempts is the total number of attempts per task, including the
	// first one. Only transient errors are retried.
	// Default: 5
	MaxAttempts int

	// RetryBaseWait is the backoff before the first retry. Subsequent waits
	// double, with jitter, up to RetryMaxWait.
	RetryBaseWait time.Duration

	// RetryMaxWait caps the backoff between attempts.
	RetryMaxWait time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:   DefaultConcurrency(),
		MaxAttempts:   5,
		RetryBaseWait: 500 * time.Millisecond,
		RetryMaxWait:  32 * time.Second,
	}
}

// DefaultConcurrency calculates the default concurrency based on CPU count.
func DefaultConcurrency() int {
	c := runtime.NumCPU() * 3

	if c > 20 {
		c = 20
	}

	if c < 2 {
		c = 2
	}

	return c
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = defaults.Concurrency
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.RetryBaseWait <= 0 {
		c.RetryBaseWait = defaults.RetryBaseWait
	}
	if c.RetryMaxWait <= 0 {
		c.RetryMaxWait = defaults.RetryMaxWait
	}
	return c
}

// backoff returns the wait before retry number `retry` (1-based): half the
// capped exponential window plus a random share of the other half.
func (c Config) backoff(retry int) time.Duration {
	window := c.RetryBaseWait
	for i := 1; i < retry; i++ {
		window *= 2
		if window >= c.RetryMaxWait {
			window = c.RetryMaxWait
			break
		}
	}

	half := window / 2
	if half <= 0 {
		return window
	}
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
