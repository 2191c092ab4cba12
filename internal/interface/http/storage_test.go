package handlers_test

import (
	"context"
	"io"
	"sync"
	"time"
)

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memoryStorage) Upload(_ context.Context, key, _ string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = b
	return key, nil
}

func (s *memoryStorage) Sign(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.test/" + key, nil
}
