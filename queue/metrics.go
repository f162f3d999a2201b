package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics Prometheus指标收集器
type Metrics struct {
	enabled bool

	OperationEnqueued *prometheus.CounterVec // 入队总数（按类型）
	OperationReplayed *prometheus.CounterVec // 重放总数（按类型与结果）
	OperationDropped  *prometheus.CounterVec // 重试耗尽丢弃总数（按类型）
	OperationEvicted  prometheus.Counter     // 容量挤出总数
	DrainPasses       *prometheus.CounterVec // 排空轮次（按触发来源）
	QueueDepth        prometheus.Gauge       // 当前队列深度
	FailedListSize    prometheus.Gauge       // 失败清单长度
}

// NewMetrics 创建指标收集器
func NewMetrics(namespace string, enabled bool) *Metrics {
	if !enabled {
		return &Metrics{enabled: false}
	}

	return &Metrics{
		enabled: true,

		OperationEnqueued: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_enqueued_total",
				Help:      "Total number of enqueued operations",
			},
			[]string{"kind"},
		),

		OperationReplayed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_replayed_total",
				Help:      "Total number of replay attempts",
			},
			[]string{"kind", "status"},
		),

		OperationDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_dropped_total",
				Help:      "Total number of operations dropped after exhausting retries",
			},
			[]string{"kind"},
		),

		OperationEvicted: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_evicted_total",
				Help:      "Total number of operations evicted at capacity",
			},
		),

		DrainPasses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_drain_passes_total",
				Help:      "Total number of drain passes",
			},
			[]string{"trigger"},
		),

		QueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Number of operations waiting for replay",
			},
		),

		FailedListSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_failed_list_size",
				Help:      "Number of operations in the failed list",
			},
		),
	}
}

// RecordEnqueued 记录入队
func (m *Metrics) RecordEnqueued(kind Kind) {
	if !m.enabled {
		return
	}
	m.OperationEnqueued.WithLabelValues(string(kind)).Inc()
}

// RecordReplayed 记录一次重放尝试
func (m *Metrics) RecordReplayed(kind Kind, success bool) {
	if !m.enabled {
		return
	}
	status := "failed"
	if success {
		status = "success"
	}
	m.OperationReplayed.WithLabelValues(string(kind), status).Inc()
}

// RecordDropped 记录丢弃
func (m *Metrics) RecordDropped(kind Kind) {
	if !m.enabled {
		return
	}
	m.OperationDropped.WithLabelValues(string(kind)).Inc()
}

// RecordEvicted 记录挤出
func (m *Metrics) RecordEvicted() {
	if !m.enabled {
		return
	}
	m.OperationEvicted.Inc()
}

// RecordDrain 记录一轮排空
func (m *Metrics) RecordDrain(trigger string) {
	if !m.enabled {
		return
	}
	m.DrainPasses.WithLabelValues(trigger).Inc()
}

// RecordDepth 记录队列深度与失败清单长度
func (m *Metrics) RecordDepth(pending, failed int) {
	if !m.enabled {
		return
	}
	m.QueueDepth.Set(float64(pending))
	m.FailedListSize.Set(float64(failed))
}
