// Package session 实现会话超时监控
//
// 跟踪用户活动与应用前后台状态：前台无活动达到超时阈值前发出一次告警，
// 到达阈值后强制过期；后台停留使用更短的独立阈值。状态持久化到
// 键值存储，进程重启后可恢复未过期的会话。
package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/kochabx/sessionkit/errors"
	"github.com/kochabx/sessionkit/event"
	"github.com/kochabx/sessionkit/feedback"
	"github.com/kochabx/sessionkit/lifecycle"
	"github.com/kochabx/sessionkit/log"
	"github.com/kochabx/sessionkit/store"
)

// Monitor 会话超时监控器
type Monitor struct {
	mu sync.Mutex

	timeout           time.Duration
	warning           time.Duration
	backgroundTimeout time.Duration

	store    store.Store
	clock    clockwork.Clock
	bus      *event.Bus[Event]
	feedback feedback.Signaler
	logger   *log.Logger
	metrics  *Metrics

	state       *SessionState
	phase       Phase
	tokenExpiry time.Time // 令牌过期时间，零值表示无上限
	expiresAt   time.Time // 当前硬超时时刻

	warningTimer clockwork.Timer
	timeoutTimer clockwork.Timer
	timerGen     uint64 // 判别过期定时器回调
}

// NewMonitor 创建监控器
func NewMonitor(st store.Store, opts ...Option) *Monitor {
	m := &Monitor{
		timeout:           DefaultTimeout,
		warning:           DefaultWarning,
		backgroundTimeout: DefaultBackgroundTimeout,
		store:             st,
		phase:             PhaseUninitialized,
	}

	for _, opt := range opts {
		opt(m)
	}
	if m.clock == nil {
		m.clock = clockwork.NewRealClock()
	}
	if m.logger == nil {
		m.logger = log.G
	}
	if m.feedback == nil {
		m.feedback = feedback.NewNoop()
	}
	if m.metrics == nil {
		m.metrics = NewMetrics("sessionkit", false)
	}
	m.bus = event.NewBus[Event](event.WithLogger[Event](m.logger))

	return m
}

// Initialize 恢复持久化的会话状态
// 已过期、缺失或无法解码的状态都按不存在处理，不返回错误
func (m *Monitor) Initialize(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseUninitialized {
		return
	}

	var st SessionState
	if err := store.GetJSON(ctx, m.store, StateKey, &st); err != nil {
		if !store.Absent(err) {
			m.logger.Warn().Err(err).Msg("failed to read persisted session state")
		}
		return
	}

	if !st.IsActive {
		m.clearPersistedLocked(ctx)
		return
	}

	now := m.clock.Now()
	deadline := st.LastActivity.Add(m.timeout)
	if st.BackgroundEnteredAt != nil {
		deadline = st.BackgroundEnteredAt.Add(m.backgroundTimeout)
	}
	// 令牌过期时间随状态持久化，重启后继续封顶
	if st.TokenExpiresAt != nil && st.TokenExpiresAt.Before(deadline) {
		deadline = *st.TokenExpiresAt
	}
	if !now.Before(deadline) {
		m.logger.Info().Str("user_id", st.UserID).Msg("discarding expired persisted session")
		m.clearPersistedLocked(ctx)
		return
	}

	m.state = &st
	if st.TokenExpiresAt != nil {
		m.tokenExpiry = *st.TokenExpiresAt
	}
	m.phase = PhaseActive
	if st.WarningShown {
		m.phase = PhaseWarning
	}
	m.armDeadlineLocked(deadline, expiryReason(st.BackgroundEnteredAt != nil, false))

	m.logger.Info().
		Str("user_id", st.UserID).
		Time("deadline", deadline).
		Msg("resumed session from persisted state")
}

// StartSession 开始新会话
// sessionToken 若为可解析的 JWT，其 exp 声明会封顶硬超时时刻
func (m *Monitor) StartSession(ctx context.Context, userID, sessionToken string) error {
	if userID == "" {
		return errors.Invalid("session: user id is required")
	}

	m.mu.Lock()

	now := m.clock.Now()
	m.tokenExpiry = parseTokenExpiry(sessionToken)
	m.state = &SessionState{
		UserID:       userID,
		StartedAt:    now,
		LastActivity: now,
		IsActive:     true,
	}
	if !m.tokenExpiry.IsZero() {
		exp := m.tokenExpiry
		m.state.TokenExpiresAt = &exp
	}
	m.phase = PhaseActive
	m.persistLocked(ctx)
	m.armDeadlineLocked(now.Add(m.timeout), expiryReason(false, false))

	m.mu.Unlock()

	m.metrics.RecordStarted()
	m.logger.Info().Str("user_id", userID).Msg("session started")
	m.bus.Publish(Event{Type: EventStarted, UserID: userID, At: now})
	return nil
}

// RecordActivity 记录一次用户活动
// 重置两个定时器并清除告警标记；对非活跃会话为空操作
func (m *Monitor) RecordActivity(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordActivityLocked(ctx)
}

func (m *Monitor) recordActivityLocked(ctx context.Context) {
	if m.state == nil || !m.state.IsActive {
		return
	}

	now := m.clock.Now()
	m.state.LastActivity = now
	m.state.WarningShown = false
	m.state.WarningIssuedAt = nil
	m.state.BackgroundEnteredAt = nil
	m.phase = PhaseActive
	m.armDeadlineLocked(now.Add(m.timeout), expiryReason(false, false))
	m.persistLocked(ctx)
}

// ExtendSession 显式延长会话，不改变最近活动时间
// additional 为零时使用完整的前台超时时长
func (m *Monitor) ExtendSession(ctx context.Context, additional time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil || !m.state.IsActive {
		return
	}
	if additional <= 0 {
		additional = m.timeout
	}

	m.state.WarningShown = false
	m.state.WarningIssuedAt = nil
	m.phase = PhaseActive
	m.armDeadlineLocked(m.clock.Now().Add(additional), expiryReason(false, false))
	m.persistLocked(ctx)
}

// EnterBackground 应用切到后台
// 停止前台定时器，以较短的后台阈值安排单个超时定时器
func (m *Monitor) EnterBackground(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil || !m.state.IsActive {
		return
	}

	now := m.clock.Now()
	at := now
	m.state.BackgroundEnteredAt = &at
	m.armDeadlineLocked(now.Add(m.backgroundTimeout), expiryReason(true, false))
	m.persistLocked(ctx)

	m.logger.Debug().Time("deadline", m.expiresAt).Msg("session entered background")
}

// EnterForeground 应用回到前台
// 后台停留超出阈值则立即过期，否则视为一次活动
func (m *Monitor) EnterForeground(ctx context.Context) {
	m.mu.Lock()

	if m.state == nil || !m.state.IsActive {
		m.mu.Unlock()
		return
	}

	enteredAt := m.state.BackgroundEnteredAt
	if enteredAt == nil {
		m.recordActivityLocked(ctx)
		m.mu.Unlock()
		return
	}

	now := m.clock.Now()
	if now.Sub(*enteredAt) >= m.backgroundTimeout {
		ev := m.expireLocked(ctx, "background")
		m.mu.Unlock()
		m.emit(ev, feedback.KindTimeout)
		return
	}

	m.recordActivityLocked(ctx)
	m.mu.Unlock()
}

// Attach 订阅生命周期通知器并转换为前后台切换，返回取消函数
func (m *Monitor) Attach(n *lifecycle.Notifier) (cancel func()) {
	return n.Subscribe(func(tr lifecycle.Transition) {
		ctx := context.Background()
		if tr.To == lifecycle.StateBackground {
			m.EnterBackground(ctx)
		} else {
			m.EnterForeground(ctx)
		}
	})
}

// EndSession 显式结束会话，取消全部定时器并清除持久化状态
func (m *Monitor) EndSession(ctx context.Context) {
	m.mu.Lock()

	if m.state == nil {
		m.mu.Unlock()
		return
	}

	userID := m.state.UserID
	wasActive := m.state.IsActive
	now := m.clock.Now()

	m.bumpTimersLocked()
	m.state = nil
	m.phase = PhaseUninitialized
	m.tokenExpiry = time.Time{}
	m.clearPersistedLocked(ctx)

	m.mu.Unlock()

	if wasActive {
		m.metrics.RecordEnded()
		m.logger.Info().Str("user_id", userID).Msg("session ended")
		m.bus.Publish(Event{Type: EventEnded, UserID: userID, At: now})
	}
}

// Info 会话信息快照，不改变任何状态
func (m *Monitor) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return Info{}
	}

	info := Info{
		Active:       m.state.IsActive,
		LastActivity: m.state.LastActivity,
		WarningShown: m.state.WarningShown,
	}
	if m.state.IsActive {
		if remaining := m.expiresAt.Sub(m.clock.Now()); remaining > 0 {
			info.MinutesRemaining = int(remaining.Minutes())
		}
	}
	return info
}

// Phase 当前阶段
func (m *Monitor) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Subscribe 订阅会话事件，返回取消函数
func (m *Monitor) Subscribe(handler func(Event)) (cancel func()) {
	return m.bus.Subscribe(handler)
}

// Close 停止监控器并释放订阅者
func (m *Monitor) Close() {
	m.mu.Lock()
	m.bumpTimersLocked()
	m.mu.Unlock()

	m.bus.Close()
}

// armDeadlineLocked 以给定硬超时时刻重新安排定时器
// 令牌过期更早时封顶；调用方需持有锁
func (m *Monitor) armDeadlineLocked(deadline time.Time, reason string) {
	background := reason == "background"
	if !m.tokenExpiry.IsZero() && !m.tokenExpiry.After(deadline) {
		deadline = m.tokenExpiry
		reason = "token"
	}
	m.expiresAt = deadline

	gen := m.bumpTimersLocked()
	now := m.clock.Now()

	d := deadline.Sub(now)
	if d < 0 {
		d = 0
	}
	m.timeoutTimer = m.clock.AfterFunc(d, func() { m.onTimeout(gen, reason) })

	// 后台只安排单个超时定时器；每个告警窗口只告警一次
	// 告警时刻已过（如恢复的会话剩余不足告警提前量）则立即补发
	if !background && !m.state.WarningShown {
		wd := deadline.Add(-m.warning).Sub(now)
		if wd < 0 {
			wd = 0
		}
		m.warningTimer = m.clock.AfterFunc(wd, func() { m.onWarning(gen) })
	}
}

// bumpTimersLocked 停止现有定时器并递增代数，旧回调据此失效
func (m *Monitor) bumpTimersLocked() uint64 {
	if m.warningTimer != nil {
		m.warningTimer.Stop()
		m.warningTimer = nil
	}
	if m.timeoutTimer != nil {
		m.timeoutTimer.Stop()
		m.timeoutTimer = nil
	}
	m.timerGen++
	return m.timerGen
}

func (m *Monitor) onWarning(gen uint64) {
	m.mu.Lock()

	if gen != m.timerGen || m.state == nil || !m.state.IsActive || m.state.WarningShown {
		m.mu.Unlock()
		return
	}

	now := m.clock.Now()
	at := now
	m.state.WarningShown = true
	m.state.WarningIssuedAt = &at
	m.phase = PhaseWarning
	userID := m.state.UserID
	m.persistLocked(context.Background())

	m.mu.Unlock()

	m.metrics.RecordWarning()
	m.logger.Info().Str("user_id", userID).Msg("session expiry warning")
	m.emit(Event{Type: EventWarning, UserID: userID, At: now}, feedback.KindWarning)
}

func (m *Monitor) onTimeout(gen uint64, reason string) {
	m.mu.Lock()

	if gen != m.timerGen || m.state == nil || !m.state.IsActive {
		m.mu.Unlock()
		return
	}

	ev := m.expireLocked(context.Background(), reason)
	m.mu.Unlock()

	m.emit(ev, feedback.KindTimeout)
}

// expireLocked 执行过期迁移；调用方需持有锁并负责事件发布
func (m *Monitor) expireLocked(ctx context.Context, reason string) Event {
	m.bumpTimersLocked()

	now := m.clock.Now()
	m.state.IsActive = false
	m.phase = PhaseExpired
	userID := m.state.UserID
	m.clearPersistedLocked(ctx)

	m.metrics.RecordExpired(reason)
	m.logger.Info().Str("user_id", userID).Str("reason", reason).Msg("session expired")
	return Event{Type: EventExpired, UserID: userID, At: now, Reason: reason}
}

// emit 发出物理反馈并广播事件；反馈失败仅记录日志
func (m *Monitor) emit(ev Event, pulse feedback.Kind) {
	if err := m.feedback.Pulse(pulse); err != nil {
		m.logger.Debug().Err(err).Msg("haptic pulse failed")
	}
	m.bus.Publish(ev)
}

func (m *Monitor) persistLocked(ctx context.Context) {
	if err := store.SetJSON(ctx, m.store, StateKey, m.state); err != nil {
		m.logger.Warn().Err(err).Msg("failed to persist session state")
	}
}

func (m *Monitor) clearPersistedLocked(ctx context.Context) {
	if err := m.store.RemoveItem(ctx, StateKey); err != nil {
		m.logger.Warn().Err(err).Msg("failed to clear persisted session state")
	}
}

// parseTokenExpiry 尝试从 JWT 的 exp 声明取得过期时间
// 客户端不持有签名密钥，只做不验签的解析；失败按无上限处理
func parseTokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

func expiryReason(background, token bool) string {
	switch {
	case token:
		return "token"
	case background:
		return "background"
	default:
		return "inactivity"
	}
}
