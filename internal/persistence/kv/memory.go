package kv

import (
	"context"
	"sync"
)

type Memory struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{m: map[string][]byte{}}
}

func (s *Memory) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Memory) Put(_ context.Context, key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), value...)
	return nil
}

func (s *Memory) Close() error { return nil }
