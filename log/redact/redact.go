package redact

import (
	"regexp"
	"sync"
)

// Rule 脱敏规则
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
}

// Hook 脱敏钩子，按规则遮蔽日志中的敏感内容
type Hook struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewHook 创建新的脱敏钩子
func NewHook() *Hook {
	return &Hook{}
}

// AddRule 添加脱敏规则
func (h *Hook) AddRule(name, pattern, replacement string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.rules = append(h.rules, Rule{Name: name, Pattern: re, Replacement: replacement})
	return nil
}

// RuleCount 规则数量
func (h *Hook) RuleCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rules)
}

// Redact 对文本应用全部规则
func (h *Hook) Redact(text string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, rule := range h.rules {
		text = rule.Pattern.ReplaceAllString(text, rule.Replacement)
	}
	return text
}

// NewAuthHook 创建带内置规则的钩子
// 内置规则针对本模块会经手的凭据类数据：JWT、Bearer 头、邮箱
func NewAuthHook() *Hook {
	h := NewHook()

	// JWT：三段 base64url
	_ = h.AddRule("jwt",
		`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`,
		"[REDACTED_TOKEN]")

	// Bearer 头
	_ = h.AddRule("bearer",
		`(?i)bearer\s+[A-Za-z0-9._~+/-]+=*`,
		"Bearer [REDACTED]")

	// 邮箱：保留域名
	_ = h.AddRule("email",
		`[A-Za-z0-9._%+-]+@([A-Za-z0-9.-]+\.[A-Za-z]{2,})`,
		"***@$1")

	return h
}
