// Package feedback 定义物理反馈信号（如震动）
//
// 纯装饰性质：告警与强制登出时触发一次脉冲，失败被忽略。
package feedback

import (
	"github.com/kochabx/sessionkit/log"
)

// Kind 脉冲类型
type Kind string

const (
	// KindWarning 会话即将过期告警
	KindWarning Kind = "warning"
	// KindTimeout 会话强制登出
	KindTimeout Kind = "timeout"
)

// Signaler 物理反馈接口
// 由宿主平台实现；调用方忽略返回的错误
type Signaler interface {
	Pulse(kind Kind) error
}

// Noop 空实现
type Noop struct{}

// NewNoop 创建空实现
func NewNoop() *Noop {
	return &Noop{}
}

// Pulse 实现 Signaler 接口
func (*Noop) Pulse(Kind) error {
	return nil
}

// Logged 仅记录日志的实现，用于没有触觉硬件的环境
type Logged struct {
	logger *log.Logger
}

// NewLogged 创建日志实现
func NewLogged(logger *log.Logger) *Logged {
	if logger == nil {
		logger = log.G
	}
	return &Logged{logger: logger}
}

// Pulse 实现 Signaler 接口
func (l *Logged) Pulse(kind Kind) error {
	l.logger.Debug().Str("kind", string(kind)).Msg("haptic pulse")
	return nil
}
