package session

import (
	"time"
)

// StateKey 持久化会话状态使用的存储键
const StateKey = "session_timeout_state"

// Phase 会话阶段
type Phase string

const (
	// PhaseUninitialized 未初始化（无会话）
	PhaseUninitialized Phase = "uninitialized"
	// PhaseActive 活跃
	PhaseActive Phase = "active"
	// PhaseWarning 已发出过期告警
	PhaseWarning Phase = "warning"
	// PhaseExpired 已过期
	PhaseExpired Phase = "expired"
)

// SessionState 会话状态（持久化模型）
type SessionState struct {
	UserID              string     `json:"user_id"`               // 会话所属用户
	StartedAt           time.Time  `json:"started_at"`            // 会话开始时间
	LastActivity        time.Time  `json:"last_activity"`         // 最近活动时间
	WarningIssuedAt     *time.Time `json:"warning_issued_at,omitempty"`     // 告警发出时间
	IsActive            bool       `json:"is_active"`             // 会话是否活跃
	BackgroundEnteredAt *time.Time `json:"background_entered_at,omitempty"` // 进入后台时间
	WarningShown        bool       `json:"warning_shown"`         // 本窗口内告警是否已展示
	TokenExpiresAt      *time.Time `json:"token_expires_at,omitempty"`      // 令牌过期时间，恢复时继续封顶
}

// EventType 会话事件类型
type EventType string

const (
	// EventStarted 会话开始
	EventStarted EventType = "started"
	// EventWarning 会话即将过期
	EventWarning EventType = "warning"
	// EventExpired 会话已过期，需强制登出
	EventExpired EventType = "expired"
	// EventEnded 会话正常结束
	EventEnded EventType = "ended"
)

// Event 会话事件
type Event struct {
	Type   EventType `json:"type"`
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
	// Reason 过期原因（仅 EventExpired 携带）：inactivity / background / token
	Reason string `json:"reason,omitempty"`
}

// Info 会话信息快照（纯读，可轮询）
type Info struct {
	Active           bool      `json:"active"`
	MinutesRemaining int       `json:"minutes_remaining"`
	LastActivity     time.Time `json:"last_activity"`
	WarningShown     bool      `json:"warning_shown"`
}
