// Package lifecycle 将宿主平台的应用生命周期信号归一为前台/后台两种状态
//
// 平台侧可能上报 active/inactive/paused/resumed 等多种状态，
// 对会话超时逻辑而言只有前台和后台两种有意义。
package lifecycle

import (
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kochabx/sessionkit/event"
	"github.com/kochabx/sessionkit/log"
)

// State 应用状态
type State string

const (
	// StateForeground 前台
	StateForeground State = "foreground"
	// StateBackground 后台
	StateBackground State = "background"
)

// Transition 状态迁移事件
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// Notifier 生命周期通知器
type Notifier struct {
	mu      sync.RWMutex
	current State
	clock   clockwork.Clock
	bus     *event.Bus[Transition]
	logger  *log.Logger
}

// Option 配置选项
type Option func(*Notifier)

// WithClock 设置时钟（测试用）
func WithClock(clock clockwork.Clock) Option {
	return func(n *Notifier) {
		n.clock = clock
	}
}

// WithLogger 设置自定义日志记录器
func WithLogger(logger *log.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// NewNotifier 创建通知器，初始状态为前台
func NewNotifier(opts ...Option) *Notifier {
	n := &Notifier{
		current: StateForeground,
	}

	for _, opt := range opts {
		opt(n)
	}
	if n.clock == nil {
		n.clock = clockwork.NewRealClock()
	}
	if n.logger == nil {
		n.logger = log.G
	}
	n.bus = event.NewBus[Transition](event.WithLogger[Transition](n.logger))

	return n
}

// Normalize 将平台原始状态归一为前台/后台
// 未知状态按前台处理，避免误判导致过早踢出会话
func Normalize(raw string) State {
	switch strings.ToLower(raw) {
	case "background", "inactive", "paused", "suspended", "hidden":
		return StateBackground
	default:
		return StateForeground
	}
}

// Current 当前状态
func (n *Notifier) Current() State {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.current
}

// Report 上报平台原始状态
func (n *Notifier) Report(raw string) {
	n.set(Normalize(raw))
}

// MoveToBackground 切换到后台
func (n *Notifier) MoveToBackground() {
	n.set(StateBackground)
}

// MoveToForeground 切换到前台
func (n *Notifier) MoveToForeground() {
	n.set(StateForeground)
}

// set 仅在状态变化时发布迁移事件
func (n *Notifier) set(to State) {
	n.mu.Lock()
	from := n.current
	if from == to {
		n.mu.Unlock()
		return
	}
	n.current = to
	at := n.clock.Now()
	n.mu.Unlock()

	n.logger.Debug().Str("from", string(from)).Str("to", string(to)).Msg("app lifecycle transition")
	n.bus.Publish(Transition{From: from, To: to, At: at})
}

// Subscribe 订阅迁移事件，返回取消函数
func (n *Notifier) Subscribe(handler func(Transition)) (cancel func()) {
	return n.bus.Subscribe(handler)
}

// Close 关闭通知器
func (n *Notifier) Close() {
	n.bus.Close()
}
