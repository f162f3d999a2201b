// Package network 维护进程内唯一的网络可达性状态
//
// 状态来源有两个：平台侧的变更推送（Update）和按需探测（Probe）。
// 所有更新全序编号；只有可达性发生翻转时才对外广播，
// 下游（离线队列）据此触发排空。
package network

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/kochabx/sessionkit/event"
	"github.com/kochabx/sessionkit/log"
)

// Monitor 网络状态监视器
type Monitor struct {
	mu     sync.RWMutex
	state  State
	probed bool // 是否完成过首次探测

	prober Prober
	clock  clockwork.Clock
	bus    *event.Bus[Change]
	logger *log.Logger
}

// Option 配置选项
type Option func(*Monitor)

// WithProber 设置探测器
func WithProber(p Prober) Option {
	return func(m *Monitor) {
		m.prober = p
	}
}

// WithClock 设置时钟（测试用）
func WithClock(clock clockwork.Clock) Option {
	return func(m *Monitor) {
		m.clock = clock
	}
}

// WithLogger 设置自定义日志记录器
func WithLogger(logger *log.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// NewMonitor 创建监视器
// 初始状态为已连接但可达性未知，首次探测后确定
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		state: State{Connected: true, TransportType: "unknown"},
	}

	for _, opt := range opts {
		opt(m)
	}
	if m.prober == nil {
		m.prober = NewDialProber(nil, 0)
	}
	if m.clock == nil {
		m.clock = clockwork.NewRealClock()
	}
	if m.logger == nil {
		m.logger = log.G
	}
	m.bus = event.NewBus[Change](event.WithLogger[Change](m.logger))

	return m
}

// Initialize 执行一次性探测以确定初始状态
// 探测失败按不可达处理并记录日志，不向上抛错
func (m *Monitor) Initialize(ctx context.Context) {
	state, err := m.prober.Probe(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("initial reachability probe failed")
		state = State{Connected: false, Reachable: Bool(false), TransportType: "none"}
	}

	m.apply(state)

	m.mu.Lock()
	m.probed = true
	m.mu.Unlock()
}

// Update 接收平台侧的状态变更推送
func (m *Monitor) Update(state State) {
	m.apply(state)
}

// Probe 按需探测并更新状态
func (m *Monitor) Probe(ctx context.Context) State {
	state, err := m.prober.Probe(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("reachability probe failed")
		return m.Current()
	}

	m.apply(state)
	return m.Current()
}

// apply 全序应用更新，仅在可达性翻转时广播
// 广播在锁内进行，翻转事件按修订号顺序出队；Publish 不阻塞，持锁开销可忽略
func (m *Monitor) apply(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.state
	state.Revision = prev.Revision + 1
	if state.At.IsZero() {
		state.At = m.clock.Now()
	}
	m.state = state

	if prev.IsReachable() == state.IsReachable() {
		return
	}

	m.logger.Info().
		Bool("reachable", state.IsReachable()).
		Str("transport", state.TransportType).
		Msg("network reachability changed")

	m.bus.Publish(Change{Previous: prev, Current: state})
}

// Current 当前状态快照
func (m *Monitor) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsReachable 当前是否可达
func (m *Monitor) IsReachable() bool {
	return m.Current().IsReachable()
}

// Subscribe 订阅可达性翻转事件
func (m *Monitor) Subscribe(handler func(Change)) (cancel func()) {
	return m.bus.Subscribe(handler)
}

// Close 关闭监视器
func (m *Monitor) Close() {
	m.bus.Close()
}
