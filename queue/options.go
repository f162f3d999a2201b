package queue

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kochabx/sessionkit/log"
	"github.com/kochabx/sessionkit/network"
)

const (
	// DefaultCapacity 队列容量，超出时挤出最旧操作
	DefaultCapacity = 50
	// DefaultMaxRetries 单个操作的最大重试次数
	DefaultMaxRetries = 3
	// DefaultSyncInterval 周期兜底同步间隔
	DefaultSyncInterval = 5 * time.Minute
	// DefaultReplayDelay 排空时相邻操作间的延迟，避免突发
	DefaultReplayDelay = 100 * time.Millisecond
	// DefaultFailedListSize 失败操作清单的长度上限
	DefaultFailedListSize = 20
)

// Option 配置选项
type Option func(*Queue)

// WithCapacity 设置队列容量
func WithCapacity(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// WithMaxRetries 设置默认最大重试次数
func WithMaxRetries(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.maxRetries = n
		}
	}
}

// WithSyncInterval 设置周期同步间隔
func WithSyncInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.syncInterval = d
		}
	}
}

// WithReplayDelay 设置排空时相邻操作间的延迟，零值关闭延迟
func WithReplayDelay(d time.Duration) Option {
	return func(q *Queue) {
		q.replayDelay = d
	}
}

// WithFailedListSize 设置失败清单长度上限，零值关闭清单
func WithFailedListSize(n int) Option {
	return func(q *Queue) {
		if n >= 0 {
			q.failedLimit = n
		}
	}
}

// WithNetwork 绑定网络可达性监控器
// 不绑定时按始终可达处理
func WithNetwork(m *network.Monitor) Option {
	return func(q *Queue) {
		q.network = m
	}
}

// WithClock 设置时钟（测试用）
func WithClock(clock clockwork.Clock) Option {
	return func(q *Queue) {
		q.clock = clock
	}
}

// WithLogger 设置自定义日志记录器
func WithLogger(logger *log.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

// WithMetrics 设置指标收集器
func WithMetrics(metrics *Metrics) Option {
	return func(q *Queue) {
		q.metrics = metrics
	}
}
