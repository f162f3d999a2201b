// Package memory provides an in-memory store.Store, used in tests and as the
// fallback tier when no durable backend is configured.
package memory

import (
	"context"
	"sync"

	"github.com/kochabx/sessionkit/store"
)

// Store 内存键值存储
type Store struct {
	mu    sync.RWMutex
	items map[string]string
}

// New 创建内存存储
func New() *Store {
	return &Store{
		items: make(map[string]string),
	}
}

// GetItem 读取键值
func (s *Store) GetItem(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.items[key]
	if !ok {
		return "", store.ErrNotFound.WithMetadata(map[string]string{"key": key})
	}
	return value, nil
}

// SetItem 写入键值
func (s *Store) SetItem(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = value
	return nil
}

// RemoveItem 删除键值
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

// Len 当前键数量
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
