package sink

import (
	"sync"

	"github.com/kinovale/s3framesink/sink/uploadpool"
)

// Summary is the aggregate outcome of a session, reported at drain time.
type Summary struct {
	Succeeded  uint64
	Failed     uint64
	FailedKeys []string
}

// Tracker records per-object outcomes. Purely observational bookkeeping:
// retries happen in the pool, never here.
type Tracker struct {
	mu         sync.Mutex
	succeeded  uint64
	failed     uint64
	failedKeys []string
}

// NewTracker ...
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record accounts one terminal upload result. Called once per task from the
// completing worker goroutine.
func (t *Tracker) Record(result uploadpool.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if result.Succeeded() {
		t.succeeded++
		return
	}
	t.failed++
	t.failedKeys = append(t.failedKeys, result.Key)
}

// Healthy reports whether the session has recorded no failures so far.
// Hosts use this to fail the pipeline on persistent error.
func (t *Tracker) Healthy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed == 0
}

// Summary returns a copy of the accumulated counts and failed keys.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]string, len(t.failedKeys))
	copy(keys, t.failedKeys)
	return Summary{
		Succeeded:  t.succeeded,
		Failed:     t.failed,
		FailedKeys: keys,
	}
}
