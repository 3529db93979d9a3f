package idempotency

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a Store for single-instance deployments.
//
// Expired entries are cleaned up lazily on Complete.
type InMemoryStore struct {
	mu       sync.Mutex
	results  map[string][]byte
	expiry   map[string]time.Time
	inFlight map[string]chan struct{}
	ttl      time.Duration
}

// NewInMemoryStore creates a store caching results for ttl.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		results:  make(map[string][]byte),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]chan struct{}),
		ttl:      ttl,
	}
}

func (s *InMemoryStore) CheckAndMark(ctx context.Context, key string) (Status, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, exists := s.expiry[key]; exists {
		if time.Now().Before(expiry) {
			if result, ok := s.results[key]; ok {
				return StatusCached, result, nil
			}
		}
		delete(s.results, key)
		delete(s.expiry, key)
	}

	if _, exists := s.inFlight[key]; exists {
		return StatusInFlight, nil, nil
	}

	s.inFlight[key] = make(chan struct{})
	return StatusNotFound, nil, nil
}

func (s *InMemoryStore) WaitForResult(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	done, exists := s.inFlight[key]
	s.mu.Unlock()

	if exists {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.get(key), nil
}

func (s *InMemoryStore) get(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, exists := s.expiry[key]
	if !exists {
		return nil
	}
	if time.Now().After(expiry) {
		delete(s.results, key)
		delete(s.expiry, key)
		return nil
	}
	return s.results[key]
}

func (s *InMemoryStore) Complete(ctx context.Context, key string, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[key] = result
	s.expiry[key] = time.Now().Add(s.ttl)
	s.release(key)
	s.cleanupExpiredLocked()
	return nil
}

func (s *InMemoryStore) Fail(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release(key)
	return nil
}

// release signals waiters. Must be called with lock held.
func (s *InMemoryStore) release(key string) {
	if done, ok := s.inFlight[key]; ok {
		delete(s.inFlight, key)
		close(done)
	}
}

// cleanupExpiredLocked removes expired entries. Must be called with lock held.
func (s *InMemoryStore) cleanupExpiredLocked() {
	now := time.Now()
	for key, expiry := range s.expiry {
		if now.After(expiry) {
			delete(s.results, key)
			delete(s.expiry, key)
		}
	}
}

var _ Store = (*InMemoryStore)(nil)
