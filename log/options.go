package log

import (
	"github.com/rs/zerolog"

	"github.com/kochabx/sessionkit/log/redact"
)

// Option Logger 选项函数
type Option func(*Logger)

// WithLevel 设置日志级别
func WithLevel(level zerolog.Level) Option {
	return func(l *Logger) {
		l.Logger = l.Logger.Level(level)
	}
}

// WithCaller 设置调用栈信息
func WithCaller() Option {
	return func(l *Logger) {
		l.Logger = l.Logger.With().Caller().Logger()
	}
}

// WithRedact 设置脱敏钩子
func WithRedact(hook *redact.Hook) Option {
	return func(l *Logger) {
		l.redactHook = hook
	}
}
