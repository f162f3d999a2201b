package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics Prometheus指标收集器
type Metrics struct {
	enabled bool

	SessionStarted prometheus.Counter     // 会话开始总数
	SessionEnded   prometheus.Counter     // 会话正常结束总数
	SessionExpired *prometheus.CounterVec // 会话过期总数（按原因）
	WarningIssued  prometheus.Counter     // 告警发出总数
	ActiveSessions prometheus.Gauge       // 当前活跃会话数
}

// NewMetrics 创建指标收集器
func NewMetrics(namespace string, enabled bool) *Metrics {
	if !enabled {
		return &Metrics{enabled: false}
	}

	return &Metrics{
		enabled: true,

		SessionStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_started_total",
				Help:      "Total number of started sessions",
			},
		),

		SessionEnded: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_ended_total",
				Help:      "Total number of sessions ended by explicit sign-out",
			},
		),

		SessionExpired: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_expired_total",
				Help:      "Total number of expired sessions",
			},
			[]string{"reason"},
		),

		WarningIssued: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_warning_total",
				Help:      "Total number of issued expiry warnings",
			},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "session_active",
				Help:      "Number of currently active sessions",
			},
		),
	}
}

// RecordStarted 记录会话开始
func (m *Metrics) RecordStarted() {
	if !m.enabled {
		return
	}
	m.SessionStarted.Inc()
	m.ActiveSessions.Set(1)
}

// RecordEnded 记录会话正常结束
func (m *Metrics) RecordEnded() {
	if !m.enabled {
		return
	}
	m.SessionEnded.Inc()
	m.ActiveSessions.Set(0)
}

// RecordExpired 记录会话过期
func (m *Metrics) RecordExpired(reason string) {
	if !m.enabled {
		return
	}
	m.SessionExpired.WithLabelValues(reason).Inc()
	m.ActiveSessions.Set(0)
}

// RecordWarning 记录告警发出
func (m *Metrics) RecordWarning() {
	if !m.enabled {
		return
	}
	m.WarningIssued.Inc()
}
