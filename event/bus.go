// Package event 提供类型化的发布订阅总线
//
// 组件通过总线向 UI 层广播状态变化（会话告警、会话过期、队列变化、
// 网络切换），取代"最后一次 set 覆盖前者"的回调注册方式。
// 订阅者在协程池中各自串行消费，慢订阅者不会阻塞发布方。
package event

import (
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/kochabx/sessionkit/log"
)

const (
	// defaultBuffer 每个订阅者的事件缓冲大小
	defaultBuffer = 16

	// defaultPoolSize 分发协程池容量（即订阅者上限）
	defaultPoolSize = 32
)

// Bus 类型化事件总线
type Bus[T any] struct {
	mu      sync.Mutex
	subs    map[int]*subscriber[T]
	nextID  int
	pool    *ants.Pool
	buffer  int
	closed  bool
	logger  *log.Logger
	dropped int64 // 缓冲溢出丢弃计数
}

type subscriber[T any] struct {
	ch      chan T
	handler func(T)
}

// Option 总线选项
type Option[T any] func(*Bus[T])

// WithBuffer 设置每个订阅者的缓冲大小
func WithBuffer[T any](n int) Option[T] {
	return func(b *Bus[T]) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithLogger 设置自定义日志记录器
func WithLogger[T any](logger *log.Logger) Option[T] {
	return func(b *Bus[T]) {
		b.logger = logger
	}
}

// NewBus 创建事件总线
func NewBus[T any](opts ...Option[T]) *Bus[T] {
	b := &Bus[T]{
		subs:   make(map[int]*subscriber[T]),
		buffer: defaultBuffer,
	}

	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.G
	}

	// 非阻塞模式：池满时 Submit 立即返回 ErrPoolOverload，
	// 超出容量的订阅者回退到独立协程，注册方从不被挂起
	pool, err := ants.NewPool(defaultPoolSize, ants.WithPreAlloc(true), ants.WithNonblocking(true))
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to create dispatch pool")
		pool, _ = ants.NewPool(defaultPoolSize, ants.WithNonblocking(true))
	}
	b.pool = pool

	return b
}

// Subscribe 注册订阅者，返回取消函数
// 每个订阅者按事件到达顺序串行消费
func (b *Bus[T]) Subscribe(handler func(T)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || handler == nil {
		return func() {}
	}

	id := b.nextID
	b.nextID++

	sub := &subscriber[T]{
		ch:      make(chan T, b.buffer),
		handler: handler,
	}
	b.subs[id] = sub

	// 每个订阅者占用池中一个长驻协程
	if err := b.pool.Submit(func() { sub.drain(b.logger) }); err != nil {
		go sub.drain(b.logger)
	}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
	}
}

// drain 串行消费事件，订阅者 panic 不影响发布方
func (s *subscriber[T]) drain(logger *log.Logger) {
	for ev := range s.ch {
		s.invoke(ev, logger)
	}
}

func (s *subscriber[T]) invoke(ev T, logger *log.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Any("panic", r).Msg("event subscriber panicked")
		}
	}()
	s.handler(ev)
}

// Publish 向所有订阅者广播事件
// 发布方从不阻塞：订阅者缓冲满时该事件对其丢弃并记录日志
func (b *Bus[T]) Publish(ev T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			b.dropped++
			b.logger.Warn().Int64("dropped", b.dropped).Msg("event buffer full, dropping event")
		}
	}
}

// SubscriberCount 当前订阅者数量
func (b *Bus[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close 关闭总线并释放分发协程
// 关闭后 Publish 与 Subscribe 均为空操作
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}

	b.pool.Release()
}
