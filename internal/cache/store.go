package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Store 缓存抽象，由服务层注入，便于测试与降级
type Store interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// NoopStore 空实现，缓存未启用时使用
type NoopStore struct{}

// NewNoopStore 创建空缓存
func NewNoopStore() *NoopStore {
	return &NoopStore{}
}

// GetJSON 永远未命中
func (s *NoopStore) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	return false, nil
}

// SetJSON 不做任何事
func (s *NoopStore) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

// Del 不做任何事
func (s *NoopStore) Del(ctx context.Context, keys ...string) error {
	return nil
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryStore 进程内缓存，用于测试与单机部署
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore 创建进程内缓存
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// GetJSON 获取 JSON 缓存
func (s *MemoryStore) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	k := strings.TrimSpace(key)
	if k == "" {
		return false, nil
	}
	s.mu.RLock()
	entry, ok := s.entries[k]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, k)
		s.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(entry.payload, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON 写入 JSON 缓存
func (s *MemoryStore) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	k := strings.TrimSpace(key)
	if k == "" {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	entry := memoryEntry{payload: payload}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[k] = entry
	s.mu.Unlock()
	return nil
}

// Del 删除缓存
func (s *MemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	for _, key := range keys {
		delete(s.entries, strings.TrimSpace(key))
	}
	s.mu.Unlock()
	return nil
}
