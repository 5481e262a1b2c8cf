package cache

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/invoiceledger/backend/internal/domain/shared"
)

// InMemoryIdempotencyStore keeps keys in process memory. It serves single-instance
// deployments and tests; several instances need the Redis store.
//
// Expired keys are dropped lazily: every MarkProcessed first pops the keys whose
// deadline has passed from an expiry heap.
type InMemoryIdempotencyStore struct {
	mu       sync.Mutex
	deadline map[string]time.Time
	queue    expiryQueue
	now      func() time.Time
}

type InMemoryOption func(*InMemoryIdempotencyStore)

// WithClock overrides the time source
func WithClock(now func() time.Time) InMemoryOption {
	return func(s *InMemoryIdempotencyStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewInMemoryIdempotencyStore(opts ...InMemoryOption) *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		deadline: make(map[string]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MarkProcessed claims key until now+ttl. It reports false while an earlier claim is live.
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purgeLocked(now)
	if s.liveLocked(key, now) {
		return false, nil
	}
	until := now.Add(ttl)
	s.deadline[key] = until
	heap.Push(&s.queue, expiry{key: key, at: until})
	return true, nil
}

func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked(key, s.now()), nil
}

// Release drops a claim; releasing an unknown key is not an error
func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.deadline, key)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryIdempotencyStore) Close() error {
	return nil
}

// Size counts stored keys, including expired ones not yet purged
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deadline)
}

func (s *InMemoryIdempotencyStore) purgeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(s.now())
}

func (s *InMemoryIdempotencyStore) liveLocked(key string, now time.Time) bool {
	until, ok := s.deadline[key]
	return ok && now.Before(until)
}

func (s *InMemoryIdempotencyStore) purgeLocked(now time.Time) {
	for s.queue.Len() > 0 && !now.Before(s.queue[0].at) {
		e := heap.Pop(&s.queue).(expiry)
		// Skip entries superseded by a newer claim of the same key
		if until, ok := s.deadline[e.key]; ok && until.Equal(e.at) {
			delete(s.deadline, e.key)
		}
	}
}

type expiry struct {
	key string
	at  time.Time
}

// expiryQueue is a min-heap on deadline
type expiryQueue []expiry

func (q expiryQueue) Len() int           { return len(q) }
func (q expiryQueue) Less(i, j int) bool { return q[i].at.Before(q[j].at) }
func (q expiryQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *expiryQueue) Push(x any)        { *q = append(*q, x.(expiry)) }
func (q *expiryQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
