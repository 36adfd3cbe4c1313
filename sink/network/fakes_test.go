package network

import (
	"context"
	"sync"
)

type fakeAPI struct {
	mu sync.Mutex

	exists    bool
	headErrs  []error
	createErr error

	headCalls   int
	createCalls int
	putCalls    int
}

func (f *fakeAPI) BucketExists(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.headCalls++
	if len(f.headErrs) > 0 {
		err := f.headErrs[0]
		f.headErrs = f.headErrs[1:]
		if err != nil {
			return false, err
		}
	}
	return f.exists, nil
}

func (f *fakeAPI) CreateBucket(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	f.exists = true
	return nil
}

func (f *fakeAPI) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.putCalls++
	return nil
}
