// Package cache 提供两级 TTL 缓存
//
// 内存层为权威层；持久层是写穿镜像，仅用于进程重启后回填。
// 过期条目在下次访问时被惰性清理，绝不返回给调用方。
// 缓存只用于避免重复计算和网络调用，不承担正确性职责。
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kochabx/sessionkit/log"
	"github.com/kochabx/sessionkit/store"
)

// DefaultNamespace 持久层键前缀
const DefaultNamespace = "cache:"

// Entry 缓存条目
type Entry[T any] struct {
	Value     T         `json:"value"`
	WrittenAt time.Time `json:"written_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired 条目在 now 时刻是否已过期
func (e Entry[T]) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Cache 两级 TTL 缓存
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[T]

	persist   store.Store // 可选的持久层
	namespace string
	clock     clockwork.Clock
	logger    *log.Logger
}

// Option 配置选项
type Option[T any] func(*Cache[T])

// WithStore 设置持久层
func WithStore[T any](s store.Store) Option[T] {
	return func(c *Cache[T]) {
		c.persist = s
	}
}

// WithNamespace 设置持久层键前缀
func WithNamespace[T any](ns string) Option[T] {
	return func(c *Cache[T]) {
		c.namespace = ns
	}
}

// WithClock 设置时钟（测试用）
func WithClock[T any](clock clockwork.Clock) Option[T] {
	return func(c *Cache[T]) {
		c.clock = clock
	}
}

// WithLogger 设置自定义日志记录器
func WithLogger[T any](logger *log.Logger) Option[T] {
	return func(c *Cache[T]) {
		c.logger = logger
	}
}

// New 创建缓存
// 不设置持久层时为纯内存缓存
func New[T any](opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		entries:   make(map[string]Entry[T]),
		namespace: DefaultNamespace,
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.logger == nil {
		c.logger = log.G
	}

	return c
}

// storeKey 持久层键
func (c *Cache[T]) storeKey(key string) string {
	return c.namespace + key
}

// Get 读取缓存
// 命中过期条目时从两级惰性清除并返回未命中；
// 内存未命中时尝试从持久层回填
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	now := c.clock.Now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		if !entry.Expired(now) {
			return entry.Value, true
		}
		c.evict(ctx, key)
		return zero, false
	}

	// 持久层回填
	if c.persist == nil {
		return zero, false
	}

	var persisted Entry[T]
	if err := store.GetJSON(ctx, c.persist, c.storeKey(key), &persisted); err != nil {
		if !store.Absent(err) {
			c.logger.Warn().Err(err).Str("key", key).Msg("cache read-through failed")
		}
		return zero, false
	}

	if persisted.Expired(now) {
		c.evict(ctx, key)
		return zero, false
	}

	c.mu.Lock()
	c.entries[key] = persisted
	c.mu.Unlock()
	return persisted.Value, true
}

// Set 写入缓存
// 内存层同步生效；持久层写穿为尽力而为，失败仅记录日志
func (c *Cache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) {
	now := c.clock.Now()
	entry := Entry[T]{
		Value:     value,
		WrittenAt: now,
		ExpiresAt: now.Add(ttl),
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()

	if c.persist == nil {
		return
	}
	if err := store.SetJSON(ctx, c.persist, c.storeKey(key), entry); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write-through failed")
	}
}

// Remove 从两级移除
func (c *Cache[T]) Remove(ctx context.Context, key string) {
	c.evict(ctx, key)
}

// Clear 清空两级缓存
// 持久层只能清除本进程已知的键
func (c *Cache[T]) Clear(ctx context.Context) {
	c.mu.Lock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.entries = make(map[string]Entry[T])
	c.mu.Unlock()

	if c.persist == nil {
		return
	}
	for _, k := range keys {
		if err := c.persist.RemoveItem(ctx, c.storeKey(k)); err != nil {
			c.logger.Warn().Err(err).Str("key", k).Msg("cache clear failed for key")
		}
	}
}

// Len 内存层条目数（含未被访问的过期条目）
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evict 从两级移除单个键
func (c *Cache[T]) evict(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	if c.persist == nil {
		return
	}
	if err := c.persist.RemoveItem(ctx, c.storeKey(key)); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache evict failed")
	}
}
