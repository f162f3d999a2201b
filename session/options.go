package session

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kochabx/sessionkit/feedback"
	"github.com/kochabx/sessionkit/log"
)

const (
	// DefaultTimeout 前台无活动超时
	DefaultTimeout = 120 * time.Minute
	// DefaultWarning 过期前告警提前量
	DefaultWarning = 5 * time.Minute
	// DefaultBackgroundTimeout 后台停留超时
	DefaultBackgroundTimeout = 30 * time.Minute
)

// Option 配置选项
type Option func(*Monitor)

// WithTimeout 设置前台无活动超时
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithWarning 设置告警提前量
func WithWarning(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.warning = d
		}
	}
}

// WithBackgroundTimeout 设置后台停留超时
func WithBackgroundTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.backgroundTimeout = d
		}
	}
}

// WithClock 设置时钟（测试用）
func WithClock(clock clockwork.Clock) Option {
	return func(m *Monitor) {
		m.clock = clock
	}
}

// WithFeedback 设置物理反馈信号
func WithFeedback(s feedback.Signaler) Option {
	return func(m *Monitor) {
		m.feedback = s
	}
}

// WithLogger 设置自定义日志记录器
func WithLogger(logger *log.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithMetrics 设置指标收集器
func WithMetrics(metrics *Metrics) Option {
	return func(m *Monitor) {
		m.metrics = metrics
	}
}
