package memory

import (
	"context"
	"sync"
	"time"
)

// UsedTokenStore remembers exchanged token ids until they expire.
type UsedTokenStore struct {
	mu   sync.Mutex
	used map[string]time.Time
	now  func() time.Time
}

func NewUsedTokenStore() *UsedTokenStore {
	return &UsedTokenStore{used: make(map[string]time.Time), now: time.Now}
}

func (s *UsedTokenStore) MarkUsed(_ context.Context, jti string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.used {
		if !now.Before(exp) {
			delete(s.used, k)
		}
	}
	if _, ok := s.used[jti]; ok {
		return false, nil
	}
	s.used[jti] = now.Add(ttl)
	return true, nil
}
