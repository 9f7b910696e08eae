package otp

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	challenge   Challenge
	retainUntil time.Time
}

// MemoryStore 是单进程内的验证码存储，后台定期清理超过保留期的记录
type MemoryStore struct {
	mu      sync.Mutex
	entries map[Key]*memoryEntry
	now     func() time.Time

	stop chan struct{}
	once sync.Once
}

func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[Key]*memoryEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	if sweepInterval > 0 {
		go s.janitor(sweepInterval)
	}

	return s
}

func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep 删除所有超过保留期的记录
func (s *MemoryStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.retainUntil) {
			delete(s.entries, k)
		}
	}
}

func (s *MemoryStore) Save(_ context.Context, c *Challenge, retainUntil time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[c.Key] = &memoryEntry{challenge: *c, retainUntil: retainUntil}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, key Key) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !s.now().Before(e.retainUntil) {
		return nil, errNotFound
	}

	c := e.challenge
	return &c, nil
}

func (s *MemoryStore) MarkConsumed(_ context.Context, key Key, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.challenge.Nonce != nonce || e.challenge.Consumed {
		return false, nil
	}

	e.challenge.Consumed = true
	return true, nil
}

func (s *MemoryStore) RecordFailure(_ context.Context, key Key, nonce string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.challenge.Nonce != nonce {
		return 0, nil
	}

	e.challenge.Attempts++
	return e.challenge.Attempts, nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

func (s *MemoryStore) Close() {
	s.once.Do(func() {
		close(s.stop)
	})
}
