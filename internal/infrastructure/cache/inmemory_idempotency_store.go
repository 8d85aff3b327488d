package cache

import (
	"context"
	"sync"
	"time"

	"github.com/wms/stocktaking/internal/domain/shared"
)

var _ shared.IdempotencyStore = (*MemoryIdempotencyStore)(nil)

// MemoryIdempotencyStore remembers handled event IDs in process memory.
// Only correct for a single server instance.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryIdempotencyStore creates a store that sweeps expired IDs every sweep
// interval. A non-positive interval disables sweeping.
func NewMemoryIdempotencyStore(sweep time.Duration) *MemoryIdempotencyStore {
	s := &MemoryIdempotencyStore{
		expires: make(map[string]time.Time),
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if sweep <= 0 {
		close(s.done)
		return s
	}
	go s.sweepLoop(sweep)
	return s
}

// MarkProcessed records eventID and reports whether it was unseen or expired
func (s *MemoryIdempotencyStore) MarkProcessed(_ context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.expires[eventID]; ok && now.Before(exp) {
		return false, nil
	}
	s.expires[eventID] = now.Add(ttl)
	return true, nil
}

// Len returns the number of remembered IDs, expired ones included until swept
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expires)
}

// Close stops the sweeper. Safe to call more than once.
func (s *MemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

func (s *MemoryIdempotencyStore) sweepLoop(every time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryIdempotencyStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, exp := range s.expires {
		if !now.Before(exp) {
			delete(s.expires, id)
		}
	}
}
