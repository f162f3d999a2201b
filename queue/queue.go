// Package queue 实现离线操作队列
//
// 设备离线（或后端瞬时拒绝）时缓冲认证类操作，网络恢复后按入队顺序
// 重放：成功出队，失败按上限重试，耗尽后移入有界的失败清单。队列
// 持久化到键值存储，进程重启后恢复；周期同步作为事件驱动排空的兜底。
package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/kochabx/sessionkit/errors"
	"github.com/kochabx/sessionkit/event"
	"github.com/kochabx/sessionkit/log"
	"github.com/kochabx/sessionkit/network"
	"github.com/kochabx/sessionkit/store"
)

// Queue 离线操作队列
type Queue struct {
	mu sync.Mutex

	capacity     int
	maxRetries   int
	failedLimit  int
	syncInterval time.Duration
	replayDelay  time.Duration

	store    store.Store
	registry *Registry
	network  *network.Monitor
	clock    clockwork.Clock
	bus      *event.Bus[Event]
	logger   *log.Logger
	metrics  *Metrics

	cron      *cron.Cron
	netCancel func()

	ops         []Operation
	failed      []FailedOperation
	draining    bool // 排空轮次串行化，重复触发为空操作
	initialized bool
	closed      bool
}

// NewQueue 创建队列
func NewQueue(st store.Store, registry *Registry, opts ...Option) *Queue {
	q := &Queue{
		capacity:     DefaultCapacity,
		maxRetries:   DefaultMaxRetries,
		failedLimit:  DefaultFailedListSize,
		syncInterval: DefaultSyncInterval,
		replayDelay:  DefaultReplayDelay,
		store:        st,
		registry:     registry,
	}

	for _, opt := range opts {
		opt(q)
	}
	if q.clock == nil {
		q.clock = clockwork.NewRealClock()
	}
	if q.logger == nil {
		q.logger = log.G
	}
	if q.metrics == nil {
		q.metrics = NewMetrics("sessionkit", false)
	}
	if q.registry == nil {
		q.registry = NewRegistry()
	}
	q.bus = event.NewBus[Event](event.WithLogger[Event](q.logger))

	return q
}

// Initialize 恢复持久化队列、探测网络、订阅可达性变化并安排周期同步
// 缺失或无法解码的持久化数据按空队列处理
func (q *Queue) Initialize(ctx context.Context) {
	q.mu.Lock()
	if q.initialized {
		q.mu.Unlock()
		return
	}

	var ops []Operation
	if err := store.GetJSON(ctx, q.store, QueueKey, &ops); err != nil {
		if !store.Absent(err) {
			q.logger.Warn().Err(err).Msg("failed to read persisted queue")
		}
	} else {
		q.ops = ops
	}

	var failed []FailedOperation
	if err := store.GetJSON(ctx, q.store, FailedKey, &failed); err != nil {
		if !store.Absent(err) {
			q.logger.Warn().Err(err).Msg("failed to read persisted failed list")
		}
	} else {
		q.failed = failed
	}

	q.initialized = true
	pending := len(q.ops)
	q.mu.Unlock()

	if q.network != nil {
		q.network.Initialize(ctx)
		q.netCancel = q.network.Subscribe(func(c network.Change) {
			if c.BecameReachable() {
				q.drain(context.Background(), "reachable")
			}
		})
	}

	c := cron.New()
	if _, err := c.AddFunc("@every "+q.syncInterval.String(), q.periodicSync); err != nil {
		q.logger.Error().Err(err).Msg("failed to schedule periodic sync")
	} else {
		c.Start()
		q.cron = c
	}

	q.logger.Info().Int("pending", pending).Msg("operation queue initialized")

	if pending > 0 && q.reachable() {
		q.drain(ctx, "initialize")
	}
}

// Enqueue 以默认重试上限入队
func (q *Queue) Enqueue(ctx context.Context, kind Kind, payload json.RawMessage) (Operation, error) {
	return q.EnqueueWithRetries(ctx, kind, payload, 0)
}

// EnqueueWithRetries 入队并指定重试上限（非正值使用默认值）
// 容量超限时挤出最旧操作；当前可达时立即尝试一轮排空
func (q *Queue) EnqueueWithRetries(ctx context.Context, kind Kind, payload json.RawMessage, maxRetries int) (Operation, error) {
	if !kind.Valid() {
		return Operation{}, errors.Invalid("queue: unknown operation kind: %s", kind)
	}
	if maxRetries <= 0 {
		maxRetries = q.maxRetries
	}

	op := Operation{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    payload,
		EnqueuedAt: q.clock.Now(),
		MaxRetries: maxRetries,
	}

	q.mu.Lock()
	q.ops = append(q.ops, op)

	var evicted *Operation
	if len(q.ops) > q.capacity {
		old := q.ops[0]
		evicted = &old
		q.ops = append([]Operation(nil), q.ops[1:]...)
	}

	q.persistLocked(ctx)
	pending := len(q.ops)
	failedLen := len(q.failed)
	q.mu.Unlock()

	if evicted != nil {
		q.metrics.RecordEvicted()
		q.logger.Warn().
			Str("operation_id", evicted.ID).
			Str("kind", string(evicted.Kind)).
			Msg("queue at capacity, evicted oldest operation")
		q.bus.Publish(Event{Type: EventEvicted, OperationID: evicted.ID, Kind: evicted.Kind, Pending: pending, At: q.clock.Now()})
	}

	q.metrics.RecordEnqueued(kind)
	q.metrics.RecordDepth(pending, failedLen)
	q.bus.Publish(Event{Type: EventEnqueued, OperationID: op.ID, Kind: op.Kind, Pending: pending, At: op.EnqueuedAt})

	if q.reachable() {
		q.drain(ctx, "enqueue")
	}
	return op, nil
}

// ForceSync 调用方主动触发一轮排空
// 当前不可达时记录告警并空操作
func (q *Queue) ForceSync(ctx context.Context) {
	if !q.reachable() {
		q.logger.Warn().Msg("force sync skipped, network unreachable")
		return
	}
	q.drain(ctx, "force")
}

// Count 当前待重放操作数
func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// HasQueued 是否存在待重放操作
func (q *Queue) HasQueued() bool {
	return q.Count() > 0
}

// Operations 待重放操作快照
func (q *Queue) Operations() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Operation(nil), q.ops...)
}

// FailedOperations 失败清单快照
func (q *Queue) FailedOperations() []FailedOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]FailedOperation(nil), q.failed...)
}

// ClearFailed 清空失败清单
func (q *Queue) ClearFailed(ctx context.Context) {
	q.mu.Lock()
	q.failed = nil
	if err := q.store.RemoveItem(ctx, FailedKey); err != nil {
		q.logger.Warn().Err(err).Msg("failed to clear persisted failed list")
	}
	q.mu.Unlock()

	q.metrics.RecordDepth(q.Count(), 0)
}

// Subscribe 订阅队列事件，返回取消函数
func (q *Queue) Subscribe(handler func(Event)) (cancel func()) {
	return q.bus.Subscribe(handler)
}

// Close 停止周期同步、退订网络变化并释放订阅者
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	if q.cron != nil {
		q.cron.Stop()
	}
	if q.netCancel != nil {
		q.netCancel()
	}
	q.bus.Close()
}

// periodicSync 周期兜底排空
func (q *Queue) periodicSync() {
	if !q.reachable() {
		q.logger.Debug().Msg("periodic sync skipped, network unreachable")
		return
	}
	q.drain(context.Background(), "periodic")
}

// reachable 未绑定网络监控器时按始终可达处理
func (q *Queue) reachable() bool {
	return q.network == nil || q.network.IsReachable()
}

// drain 执行一轮排空：按入队顺序逐个重放快照中的操作
// 成功出队；失败累加重试计数，耗尽后移入失败清单；整轮只写一次存储
func (q *Queue) drain(ctx context.Context, trigger string) {
	q.mu.Lock()
	if q.draining || len(q.ops) == 0 {
		q.mu.Unlock()
		return
	}
	q.draining = true
	snapshot := append([]Operation(nil), q.ops...)
	q.mu.Unlock()

	q.metrics.RecordDrain(trigger)
	q.logger.Debug().Str("trigger", trigger).Int("pending", len(snapshot)).Msg("drain pass started")

	removed := make(map[string]struct{}) // 成功或已丢弃
	updated := make(map[string]Operation)
	var drops []FailedOperation

	for i, op := range snapshot {
		err := q.replay(ctx, op)
		now := q.clock.Now()

		if err == nil {
			removed[op.ID] = struct{}{}
			q.metrics.RecordReplayed(op.Kind, true)
			q.bus.Publish(Event{Type: EventReplayed, OperationID: op.ID, Kind: op.Kind, RetryCount: op.RetryCount, At: now})
		} else {
			op.RetryCount++
			q.metrics.RecordReplayed(op.Kind, false)

			if op.RetryCount < op.MaxRetries {
				updated[op.ID] = op
				q.bus.Publish(Event{Type: EventRetried, OperationID: op.ID, Kind: op.Kind, RetryCount: op.RetryCount, At: now})
			} else {
				removed[op.ID] = struct{}{}
				drops = append(drops, FailedOperation{Operation: op, FailedAt: now, Reason: err.Error()})
				q.metrics.RecordDropped(op.Kind)
				q.logger.Warn().
					Str("operation_id", op.ID).
					Str("kind", string(op.Kind)).
					Int("retry_count", op.RetryCount).
					Err(err).
					Msg("operation dropped after exhausting retries")
				q.bus.Publish(Event{Type: EventDropped, OperationID: op.ID, Kind: op.Kind, RetryCount: op.RetryCount, At: now})
			}
		}

		if q.replayDelay > 0 && i < len(snapshot)-1 {
			q.clock.Sleep(q.replayDelay)
		}
	}

	q.mu.Lock()
	// 排空期间可能有新入队或挤出，按当前队列重建：快照外的条目原样保留
	next := make([]Operation, 0, len(q.ops))
	for _, op := range q.ops {
		if _, ok := removed[op.ID]; ok {
			continue
		}
		if u, ok := updated[op.ID]; ok {
			op = u
		}
		next = append(next, op)
	}
	q.ops = next

	if q.failedLimit > 0 && len(drops) > 0 {
		q.failed = append(q.failed, drops...)
		if n := len(q.failed) - q.failedLimit; n > 0 {
			q.failed = append([]FailedOperation(nil), q.failed[n:]...)
		}
		q.persistFailedLocked(ctx)
	}

	q.persistLocked(ctx)
	pending := len(q.ops)
	failedLen := len(q.failed)
	q.draining = false
	q.mu.Unlock()

	q.metrics.RecordDepth(pending, failedLen)
	q.logger.Debug().Str("trigger", trigger).Int("pending", pending).Msg("drain pass finished")
	q.bus.Publish(Event{Type: EventDrained, Pending: pending, At: q.clock.Now()})
}

// replay 重放单个操作；未注册的类型计为一次失败尝试
func (q *Queue) replay(ctx context.Context, op Operation) error {
	fn, ok := q.registry.Get(op.Kind)
	if !ok {
		return errors.Invalid("queue: no replay func registered for kind %s", op.Kind)
	}
	return fn(ctx, op.Payload)
}

func (q *Queue) persistLocked(ctx context.Context) {
	if err := store.SetJSON(ctx, q.store, QueueKey, q.ops); err != nil {
		q.logger.Warn().Err(err).Msg("failed to persist queue")
	}
}

func (q *Queue) persistFailedLocked(ctx context.Context) {
	if err := store.SetJSON(ctx, q.store, FailedKey, q.failed); err != nil {
		q.logger.Warn().Err(err).Msg("failed to persist failed list")
	}
}
