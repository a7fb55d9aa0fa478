package postgres

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors reporting an Engine's pool
// saturation and vacuum backlog. Registered against a caller-owned
// registry so ostorectl/ostore-vacuumd can expose them on their own
// metrics endpoint alongside process/Go runtime collectors.
type Metrics struct {
	poolTotalConns    prometheus.GaugeFunc
	poolAcquiredConns prometheus.GaugeFunc
	poolIdleConns     prometheus.GaugeFunc
	poolMaxConns      prometheus.GaugeFunc
	poolAcquireCount  prometheus.CounterFunc

	vacuumQueueDepth prometheus.GaugeFunc
	vacuumActive     prometheus.GaugeFunc
}

// NewMetrics builds the collector set for e without registering it.
func NewMetrics(e *Engine) *Metrics {
	boolToFloat := func(b bool) float64 {
		if b {
			return 1
		}
		return 0
	}

	return &Metrics{
		poolTotalConns: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ostore",
			Subsystem: "pool",
			Name:      "total_connections",
			Help:      "Total connections currently held by the engine's session pool.",
		}, func() float64 { return float64(e.PoolStats().TotalConns) }),

		poolAcquiredConns: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ostore",
			Subsystem: "pool",
			Name:      "acquired_connections",
			Help:      "Connections currently checked out of the pool.",
		}, func() float64 { return float64(e.PoolStats().AcquiredConns) }),

		poolIdleConns: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ostore",
			Subsystem: "pool",
			Name:      "idle_connections",
			Help:      "Connections currently idle in the pool.",
		}, func() float64 { return float64(e.PoolStats().IdleConns) }),

		poolMaxConns: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ostore",
			Subsystem: "pool",
			Name:      "max_connections",
			Help:      "Configured maximum pool size.",
		}, func() float64 { return float64(e.PoolStats().MaxConns) }),

		poolAcquireCount: prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "ostore",
			Subsystem: "pool",
			Name:      "acquire_total",
			Help:      "Cumulative number of successful session acquisitions.",
		}, func() float64 { return float64(e.PoolStats().AcquireCount) }),

		vacuumQueueDepth: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ostore",
			Subsystem: "vacuum",
			Name:      "queue_depth",
			Help:      "Number of trashed oids waiting for physical deletion.",
		}, func() float64 {
			if e.vacuum == nil {
				return 0
			}
			return float64(e.vacuum.QueueDepth())
		}),

		vacuumActive: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ostore",
			Subsystem: "vacuum",
			Name:      "active",
			Help:      "1 if the vacuum worker is currently deleting an oid, else 0.",
		}, func() float64 {
			if e.vacuum == nil {
				return 0
			}
			return boolToFloat(e.vacuum.Active())
		}),
	}
}

// MustRegister registers every collector against reg, panicking on a
// duplicate registration (a programmer error, not a runtime condition).
func (m *Metrics) MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		m.poolTotalConns, m.poolAcquiredConns, m.poolIdleConns, m.poolMaxConns, m.poolAcquireCount,
		m.vacuumQueueDepth, m.vacuumActive,
	)
}
