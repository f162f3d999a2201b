// Package sqlite is the on-device persistent tier: a single key-value table
// in a SQLite file, the natural durable store on a mobile client.
package sqlite

import (
	"context"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kochabx/sessionkit/errors"
	"github.com/kochabx/sessionkit/log"
	"github.com/kochabx/sessionkit/store"
)

// Item 键值记录
type Item struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName 表名
func (Item) TableName() string {
	return "kv_items"
}

// Store SQLite 键值存储
type Store struct {
	db     *gorm.DB
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

// New 创建 SQLite 存储
// path 为数据库文件路径，":memory:" 表示内存数据库
func New(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.Invalid("sqlite: path is required")
	}

	s := &Store{}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.logger == nil {
		s.logger = log.G
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Storage("sqlite: open %s", path).WithCause(err)
	}

	if err := db.AutoMigrate(&Item{}); err != nil {
		return nil, errors.Storage("sqlite: migrate").WithCause(err)
	}

	s.db = db
	s.logger.Debug().Str("path", path).Msg("sqlite store opened")
	return s, nil
}

// GetItem 读取键值
func (s *Store) GetItem(ctx context.Context, key string) (string, error) {
	var item Item
	err := s.db.WithContext(ctx).First(&item, "key = ?", key).Error
	if err == gorm.ErrRecordNotFound {
		return "", store.ErrNotFound.WithMetadata(map[string]string{"key": key})
	}
	if err != nil {
		return "", errors.Storage("sqlite: get %s", key).WithCause(err)
	}
	return item.Value, nil
}

// SetItem 写入键值（存在则覆盖）
func (s *Store) SetItem(ctx context.Context, key, value string) error {
	item := Item{Key: key, Value: value, UpdatedAt: time.Now()}
	if err := s.db.WithContext(ctx).Save(&item).Error; err != nil {
		return errors.Storage("sqlite: set %s", key).WithCause(err)
	}
	return nil
}

// RemoveItem 删除键值
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Delete(&Item{}, "key = ?", key).Error; err != nil {
		return errors.Storage("sqlite: remove %s", key).WithCause(err)
	}
	return nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
