package queue

import (
	"encoding/json"
	"time"
)

const (
	// QueueKey 持久化待重放队列使用的存储键
	QueueKey = "operation_queue"
	// FailedKey 持久化失败操作清单使用的存储键
	FailedKey = "operation_queue_failed"
)

// Kind 操作类型（封闭集合）
type Kind string

const (
	KindSignIn        Kind = "sign-in"        // 登录
	KindSignOut       Kind = "sign-out"       // 登出
	KindRegister      Kind = "register"       // 注册
	KindProfileUpdate Kind = "profile-update" // 资料更新
	KindTokenRefresh  Kind = "token-refresh"  // 令牌刷新
)

// Valid 是否为已知操作类型
func (k Kind) Valid() bool {
	switch k {
	case KindSignIn, KindSignOut, KindRegister, KindProfileUpdate, KindTokenRefresh:
		return true
	}
	return false
}

// Operation 缓冲的认证操作
type Operation struct {
	ID         string          `json:"id"`          // 操作ID（UUID）
	Kind       Kind            `json:"kind"`        // 操作类型
	Payload    json.RawMessage `json:"payload"`     // 不透明负载，队列不做解释
	EnqueuedAt time.Time       `json:"enqueued_at"` // 入队时间，重放按此全序
	RetryCount int             `json:"retry_count"` // 当前重试次数
	MaxRetries int             `json:"max_retries"` // 最大重试次数
}

// FailedOperation 重试耗尽后被丢弃的操作及其原因
type FailedOperation struct {
	Operation
	FailedAt time.Time `json:"failed_at"`
	Reason   string    `json:"reason"`
}

// EventType 队列事件类型
type EventType string

const (
	// EventEnqueued 操作入队
	EventEnqueued EventType = "enqueued"
	// EventEvicted 容量超限，最旧操作被挤出
	EventEvicted EventType = "evicted"
	// EventReplayed 操作重放成功并出队
	EventReplayed EventType = "replayed"
	// EventRetried 操作重放失败，保留待重试
	EventRetried EventType = "retried"
	// EventDropped 重试耗尽，操作移入失败清单
	EventDropped EventType = "dropped"
	// EventDrained 一轮排空完成
	EventDrained EventType = "drained"
)

// Event 队列事件
type Event struct {
	Type        EventType `json:"type"`
	OperationID string    `json:"operation_id,omitempty"`
	Kind        Kind      `json:"kind,omitempty"`
	RetryCount  int       `json:"retry_count,omitempty"`
	Pending     int       `json:"pending"`
	At          time.Time `json:"at"`
}
