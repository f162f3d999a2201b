// Package app 组装会话套件的各组件并管理其生命周期
//
// 按配置选择存储后端，将网络监视器、生命周期通知器、会话监控器与
// 离线队列接线成一个整体；关闭时按依赖反序拆除，附加的关闭函数
// 并发执行并各自受超时约束。
package app

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/kochabx/sessionkit/config"
	"github.com/kochabx/sessionkit/errors"
	"github.com/kochabx/sessionkit/feedback"
	"github.com/kochabx/sessionkit/lifecycle"
	"github.com/kochabx/sessionkit/log"
	"github.com/kochabx/sessionkit/network"
	"github.com/kochabx/sessionkit/queue"
	"github.com/kochabx/sessionkit/session"
	"github.com/kochabx/sessionkit/store"
	"github.com/kochabx/sessionkit/store/memory"
	"github.com/kochabx/sessionkit/store/redis"
	"github.com/kochabx/sessionkit/store/sqlite"
)

var (
	// ErrAlreadyStarted 重复启动
	ErrAlreadyStarted = errors.Invalid("app: already started")
	// ErrClosePanic 关闭函数发生 panic
	ErrClosePanic = errors.New(errors.CodeUnknown, "app: close function panicked")
)

// CloseFunc 具有可选超时的关闭函数
type CloseFunc struct {
	Name    string
	Fn      func(context.Context) error
	Timeout time.Duration
}

// Kit 会话套件实例
type Kit struct {
	mu      sync.RWMutex
	started bool

	settings config.Settings
	logger   *log.Logger
	clock    clockwork.Clock
	haptics  feedback.Signaler

	store    store.Store
	registry *queue.Registry

	Network   *network.Monitor
	Lifecycle *lifecycle.Notifier
	Session   *session.Monitor
	Queue     *queue.Queue

	detachSession func()
	closeFuncs    []CloseFunc
	closeTimeout  time.Duration
}

// Option 配置选项
type Option func(*Kit)

// WithSettings 设置套件配置
func WithSettings(settings config.Settings) Option {
	return func(k *Kit) {
		k.settings = settings
	}
}

// WithStore 使用外部存储，跳过按配置构建后端
func WithStore(st store.Store) Option {
	return func(k *Kit) {
		k.store = st
	}
}

// WithRegistry 设置重放函数注册表
func WithRegistry(r *queue.Registry) Option {
	return func(k *Kit) {
		k.registry = r
	}
}

// WithFeedback 设置物理反馈信号
func WithFeedback(s feedback.Signaler) Option {
	return func(k *Kit) {
		k.haptics = s
	}
}

// WithClock 设置时钟（测试用）
func WithClock(clock clockwork.Clock) Option {
	return func(k *Kit) {
		k.clock = clock
	}
}

// WithLogger 设置自定义日志记录器
func WithLogger(logger *log.Logger) Option {
	return func(k *Kit) {
		k.logger = logger
	}
}

// WithCloseTimeout 设置关闭函数的默认超时时间
func WithCloseTimeout(timeout time.Duration) Option {
	return func(k *Kit) {
		if timeout > 0 {
			k.closeTimeout = timeout
		}
	}
}

// WithClose 添加在拆除期间执行的关闭函数
func WithClose(name string, fn func(context.Context) error, timeout time.Duration) Option {
	return func(k *Kit) {
		if fn == nil {
			return
		}
		if timeout == 0 {
			timeout = k.closeTimeout
		}
		k.closeFuncs = append(k.closeFuncs, CloseFunc{Name: name, Fn: fn, Timeout: timeout})
	}
}

// New 使用给定选项创建套件实例
func New(options ...Option) (*Kit, error) {
	k := &Kit{
		closeTimeout: 30 * time.Second,
	}

	for _, opt := range options {
		opt(k)
	}
	k.settings.ApplyDefaults()
	if k.logger == nil {
		k.logger = log.G
	}
	if k.clock == nil {
		k.clock = clockwork.NewRealClock()
	}
	if k.haptics == nil {
		k.haptics = feedback.NewNoop()
	}
	if k.registry == nil {
		k.registry = queue.NewRegistry()
	}

	if k.store == nil {
		st, err := k.buildStore()
		if err != nil {
			return nil, err
		}
		k.store = st
	}

	s := k.settings

	k.Network = network.NewMonitor(
		network.WithProber(network.NewDialProber(
			s.Network.ProbeAddrs,
			time.Duration(s.Network.ProbeTimeoutMillis)*time.Millisecond,
		)),
		network.WithClock(k.clock),
		network.WithLogger(k.logger),
	)

	k.Lifecycle = lifecycle.NewNotifier(
		lifecycle.WithClock(k.clock),
		lifecycle.WithLogger(k.logger),
	)

	k.Session = session.NewMonitor(k.store,
		session.WithTimeout(time.Duration(s.Session.TimeoutMinutes)*time.Minute),
		session.WithWarning(time.Duration(s.Session.WarningMinutes)*time.Minute),
		session.WithBackgroundTimeout(time.Duration(s.Session.BackgroundTimeoutMinutes)*time.Minute),
		session.WithClock(k.clock),
		session.WithLogger(k.logger),
		session.WithFeedback(k.haptics),
	)

	k.Queue = queue.NewQueue(k.store, k.registry,
		queue.WithCapacity(s.Queue.Capacity),
		queue.WithMaxRetries(s.Queue.MaxRetries),
		queue.WithSyncInterval(time.Duration(s.Queue.SyncIntervalMinutes)*time.Minute),
		queue.WithReplayDelay(time.Duration(s.Queue.ReplayDelayMillis)*time.Millisecond),
		queue.WithFailedListSize(s.Queue.FailedListSize),
		queue.WithNetwork(k.Network),
		queue.WithClock(k.clock),
		queue.WithLogger(k.logger),
	)

	k.detachSession = k.Session.Attach(k.Lifecycle)

	return k, nil
}

// buildStore 按配置构建存储后端
func (k *Kit) buildStore() (store.Store, error) {
	cfg := k.settings.Store

	switch cfg.Backend {
	case "memory":
		return memory.New(), nil

	case "sqlite":
		st, err := sqlite.New(cfg.SQLitePath, sqlite.WithLogger(k.logger))
		if err != nil {
			return nil, err
		}
		k.closeFuncs = append(k.closeFuncs, CloseFunc{
			Name:    "sqlite-store",
			Fn:      func(context.Context) error { return st.Close() },
			Timeout: k.closeTimeout,
		})
		return st, nil

	case "redis":
		st, err := redis.New(redis.Config{Addr: cfg.RedisAddr}, redis.WithLogger(k.logger))
		if err != nil {
			return nil, err
		}
		k.closeFuncs = append(k.closeFuncs, CloseFunc{
			Name:    "redis-store",
			Fn:      func(context.Context) error { return st.Close() },
			Timeout: k.closeTimeout,
		})
		return st, nil
	}

	return nil, errors.Invalid("app: unknown store backend: %s", cfg.Backend)
}

// Start 初始化各组件：恢复持久化状态、探测网络、安排周期同步
func (k *Kit) Start(ctx context.Context) error {
	k.mu.Lock()
	if k.started {
		k.mu.Unlock()
		return ErrAlreadyStarted
	}
	k.started = true
	k.mu.Unlock()

	k.Session.Initialize(ctx)
	k.Queue.Initialize(ctx)

	k.logger.Info().
		Str("backend", k.settings.Store.Backend).
		Int("pending", k.Queue.Count()).
		Msg("session kit started")
	return nil
}

// Registry 重放函数注册表
func (k *Kit) Registry() *queue.Registry {
	return k.registry
}

// Store 底层存储
func (k *Kit) Store() store.Store {
	return k.store
}

// RegisterClose 在运行时添加关闭函数
func (k *Kit) RegisterClose(name string, fn func(context.Context) error, timeout time.Duration) error {
	if fn == nil {
		return errors.Invalid("app: close function cannot be nil")
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if timeout == 0 {
		timeout = k.closeTimeout
	}
	k.closeFuncs = append(k.closeFuncs, CloseFunc{Name: name, Fn: fn, Timeout: timeout})
	return nil
}

// Close 按依赖反序拆除组件，然后并发执行关闭函数
func (k *Kit) Close() {
	k.mu.Lock()
	k.started = false
	k.mu.Unlock()

	if k.detachSession != nil {
		k.detachSession()
	}
	k.Session.Close()
	k.Queue.Close()
	k.Lifecycle.Close()
	k.Network.Close()

	k.runCloseTasks()
}

// runCloseTasks 并发执行所有关闭函数
func (k *Kit) runCloseTasks() {
	k.mu.RLock()
	closeFuncs := make([]CloseFunc, len(k.closeFuncs))
	copy(closeFuncs, k.closeFuncs)
	k.mu.RUnlock()

	if len(closeFuncs) == 0 {
		return
	}

	eg := &errgroup.Group{}
	for _, cf := range closeFuncs {
		eg.Go(func() error {
			return k.runCloseTask(cf)
		})
	}

	if err := eg.Wait(); err != nil {
		k.logger.Error().Err(err).Msg("some close functions failed")
	}
}

// runCloseTask 执行单个带超时的关闭函数
func (k *Kit) runCloseTask(cf CloseFunc) error {
	ctx, cancel := context.WithTimeout(context.Background(), cf.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				k.logger.Error().Any("panic", r).Str("close", cf.Name).Msg("close function panicked")
				done <- ErrClosePanic
			}
		}()
		done <- cf.Fn(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			k.logger.Error().Err(err).Str("close", cf.Name).Msg("close function failed")
		}
		return err
	case <-ctx.Done():
		k.logger.Warn().Str("close", cf.Name).Msg("close function timed out")
		return ctx.Err()
	}
}

// Info 套件状态信息
type Info struct {
	Started          bool `json:"started"`
	SessionActive    bool `json:"session_active"`
	QueuedOperations int  `json:"queued_operations"`
	Reachable        bool `json:"reachable"`
}

// Status 返回套件状态信息
func (k *Kit) Status() Info {
	k.mu.RLock()
	started := k.started
	k.mu.RUnlock()

	return Info{
		Started:          started,
		SessionActive:    k.Session.Info().Active,
		QueuedOperations: k.Queue.Count(),
		Reachable:        k.Network.IsReachable(),
	}
}
