// Package redis backs the store contract with Redis, for shared environments
// and integration tests where the device filesystem is not in play.
package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/kochabx/sessionkit/errors"
	"github.com/kochabx/sessionkit/log"
	"github.com/kochabx/sessionkit/store"
)

// Config Redis 连接配置
type Config struct {
	Addr     string `json:"addr" mapstructure:"addr"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	DB       int    `json:"db" mapstructure:"db"`

	// KeyPrefix 所有键统一加前缀，便于多实例共用一个库
	KeyPrefix string `json:"key_prefix" mapstructure:"key_prefix"`
}

// Store Redis 键值存储
type Store struct {
	client *redis.Client
	prefix string
	logger *log.Logger
}

// Option 配置选项
type Option func(*Store)

// WithLogger 设置自定义日志记录器
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClient 使用现有 Redis 客户端
func WithClient(client *redis.Client) Option {
	return func(s *Store) {
		s.client = client
	}
}

// New 创建 Redis 存储
func New(cfg Config, opts ...Option) (*Store, error) {
	s := &Store{prefix: cfg.KeyPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.logger == nil {
		s.logger = log.G
	}

	if s.client == nil {
		if cfg.Addr == "" {
			return nil, errors.Invalid("redis: addr is required")
		}
		s.client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	if err := s.client.Ping(context.Background()).Err(); err != nil {
		return nil, errors.Storage("redis: ping %s", cfg.Addr).WithCause(err)
	}

	s.logger.Debug().Str("addr", cfg.Addr).Msg("redis store created")
	return s, nil
}

// key 拼接前缀
func (s *Store) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + key
}

// GetItem 读取键值
func (s *Store) GetItem(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return "", store.ErrNotFound.WithMetadata(map[string]string{"key": key})
	}
	if err != nil {
		return "", errors.Storage("redis: get %s", key).WithCause(err)
	}
	return value, nil
}

// SetItem 写入键值（不设置过期，过期语义由上层缓存负责）
func (s *Store) SetItem(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return errors.Storage("redis: set %s", key).WithCause(err)
	}
	return nil
}

// RemoveItem 删除键值
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return errors.Storage("redis: remove %s", key).WithCause(err)
	}
	return nil
}

// Close 关闭客户端
func (s *Store) Close() error {
	return s.client.Close()
}
