package cache

import (
	"context"
	"sync"
	"time"
)

// DeliveryStore remembers webhook delivery ids so a redelivered event is
// acknowledged without being processed twice
type DeliveryStore struct {
	mu        sync.Mutex
	entries   map[string]time.Time
	ttl       time.Duration
	clock     Clock
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewDeliveryStore creates a store and starts its cleanup goroutine
func NewDeliveryStore(ttl time.Duration, clock Clock) *DeliveryStore {
	s := &DeliveryStore{
		entries:  make(map[string]time.Time),
		ttl:      ttl,
		clock:    clock,
		stopChan: make(chan struct{}),
	}

	interval := ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	s.wg.Add(1)
	go s.cleanupLoop(interval)

	return s
}

// MarkProcessed records id. It returns false when id was already recorded and
// has not expired.
func (s *DeliveryStore) MarkProcessed(_ context.Context, id string) (bool, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if exp, ok := s.entries[id]; ok && now.Before(exp) {
		return false, nil
	}
	s.entries[id] = now.Add(s.ttl)
	return true, nil
}

// Forget drops id so the next delivery with the same id is processed again.
// Called when processing failed.
func (s *DeliveryStore) Forget(_ context.Context, id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// Size returns the number of recorded ids, expired ones included
func (s *DeliveryStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *DeliveryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *DeliveryStore) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *DeliveryStore) cleanup() {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, id)
		}
	}
}
