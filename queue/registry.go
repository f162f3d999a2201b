package queue

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kochabx/sessionkit/errors"
)

// ReplayFunc 按类型重放一个缓冲操作
// 任何非 nil 返回都视为一次失败尝试，不区分网络故障与业务拒绝
type ReplayFunc func(ctx context.Context, payload json.RawMessage) error

// Registry 重放函数注册表
type Registry struct {
	mu    sync.RWMutex
	funcs map[Kind]ReplayFunc
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[Kind]ReplayFunc),
	}
}

// RegisterFunc 注册重放函数
func (r *Registry) RegisterFunc(kind Kind, fn ReplayFunc) error {
	if !kind.Valid() {
		return errors.Invalid("queue: unknown operation kind: %s", kind)
	}
	if fn == nil {
		return errors.Invalid("queue: replay func cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.funcs[kind]; exists {
		return errors.Invalid("queue: replay func for kind %s already registered", kind)
	}

	r.funcs[kind] = fn
	return nil
}

// Register 注册泛型重放函数，负载自动反序列化为 T
func Register[T any](r *Registry, kind Kind, fn func(ctx context.Context, payload T) error) error {
	if fn == nil {
		return errors.Invalid("queue: replay func cannot be nil")
	}

	return r.RegisterFunc(kind, func(ctx context.Context, payload json.RawMessage) error {
		var typed T
		if err := json.Unmarshal(payload, &typed); err != nil {
			return errors.Corrupt("queue: decode %s payload", kind).WithCause(err)
		}
		return fn(ctx, typed)
	})
}

// Unregister 注销重放函数
func (r *Registry) Unregister(kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.funcs, kind)
}

// Get 获取重放函数
func (r *Registry) Get(kind Kind) (ReplayFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, exists := r.funcs[kind]
	return fn, exists
}

// Has 检查是否注册了指定类型的重放函数
func (r *Registry) Has(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.funcs[kind]
	return exists
}
