package sink

import (
	"context"
	"sync"
)

// fakeStorage is an in-memory network.API.
type fakeStorage struct {
	mu sync.Mutex

	exists  bool
	headErr error

	// when set, BucketExists blocks until the gate is closed
	headGate chan struct{}

	// per-key forced put outcome
	putErrs map[string]error

	objects  map[string][]byte
	putCalls int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		exists:  true,
		putErrs: map[string]error{},
		objects: map[string][]byte{},
	}
}

func (f *fakeStorage) BucketExists(ctx context.Context) (bool, error) {
	if f.headGate != nil {
		<-f.headGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headErr != nil {
		return false, f.headErr
	}
	return f.exists, nil
}

func (f *fakeStorage) CreateBucket(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exists = true
	return nil
}

func (f *fakeStorage) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.putCalls++
	if err := f.putErrs[key]; err != nil {
		return err
	}
	stored := make([]byte, len(body))
	copy(stored, body)
	f.objects[key] = stored
	return nil
}

func (f *fakeStorage) storedKeys() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make(map[string]bool, len(f.objects))
	for key := range f.objects {
		keys[key] = true
	}
	return keys
}

func (f *fakeStorage) numPutCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.putCalls
}
