package storage

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// MemoryStore is an in-process BlobStore for local development and tests.
// Objects only record their size.
type MemoryStore struct {
	mu          sync.Mutex
	bucket      string
	objects     map[string]int64
	deleteErrs  map[string]error
	statErr     error
	deleteCalls int
}

func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{
		bucket:     bucket,
		objects:    make(map[string]int64),
		deleteErrs: make(map[string]error),
	}
}

// Put simulates a client writing through a signed URL.
func (m *MemoryStore) Put(path string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = size
}

func (m *MemoryStore) Has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok
}

// FailDelete makes every Delete of path return err until cleared with nil.
func (m *MemoryStore) FailDelete(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.deleteErrs, path)
		return
	}
	m.deleteErrs[path] = err
}

// FailStat makes every Stat return err until cleared with nil.
func (m *MemoryStore) FailStat(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statErr = err
}

func (m *MemoryStore) DeleteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteCalls
}

func (m *MemoryStore) PresignPut(_ context.Context, path, contentType string, ttl time.Duration) (string, error) {
	return m.signed("PUT", path, ttl, contentType), nil
}

func (m *MemoryStore) PresignGet(_ context.Context, path string, ttl time.Duration) (string, error) {
	return m.signed("GET", path, ttl, ""), nil
}

func (m *MemoryStore) Stat(_ context.Context, path string) (ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statErr != nil {
		return ObjectInfo{}, fmt.Errorf("%w: %v", ErrUnavailable, m.statErr)
	}
	size, ok := m.objects[path]
	if !ok {
		return ObjectInfo{}, nil
	}
	return ObjectInfo{Exists: true, Size: size}, nil
}

func (m *MemoryStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if err := m.deleteErrs[path]; err != nil {
		return err
	}
	delete(m.objects, path)
	return nil
}

func (m *MemoryStore) signed(method, path string, ttl time.Duration, contentType string) string {
	q := url.Values{}
	q.Set("method", method)
	q.Set("expires", fmt.Sprintf("%d", int(ttl.Seconds())))
	if contentType != "" {
		q.Set("content-type", contentType)
	}
	return fmt.Sprintf("memory://%s/%s?%s", m.bucket, path, q.Encode())
}
