// Package uploadpool schedules concurrent single-object uploads with bounded
// parallelism, per-task retries and exactly-once completion reporting.
package uploadpool

// Task binds one frame payload to the object key it will be stored under.
// The pool owns the payload from submission until the task completes.
type Task struct {
	Sequence    uint64
	Key         string
	Payload     []byte
	ContentType string
}

// Result is the terminal outcome of one task. Exactly one Result is
// delivered per submitted task, regardless of retry count.
type Result struct {
	Sequence uint64
	Key      string
	Attempts int
	Err      error
}

// Succeeded ...
func (r Result) Succeeded() bool {
	return r.Err == nil
}
