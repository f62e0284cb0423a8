package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ledger collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	operations      *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	batchMembers    *prometheus.CounterVec
	repairDrift     prometheus.Counter
	publishFailures *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fee_ledger_operations_total",
				Help: "Ledger operations by name and result kind",
			},
			[]string{"op", "result"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fee_ledger_operation_duration_seconds",
				Help:    "Duration of ledger operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"op"},
		),
		batchMembers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fee_ledger_batch_members_total",
				Help: "Batch assessment members by outcome",
			},
			[]string{"result"},
		),
		repairDrift: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fee_ledger_repair_drift_total",
				Help: "Repairs that found the cached paid total out of line with the entry log",
			},
		),
		publishFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fee_ledger_publish_failures_total",
				Help: "Ledger events that could not be published",
			},
			[]string{"topic"},
		),
	}
}

// Observe records one operation. result is "ok" or an error kind.
func (m *Metrics) Observe(op, result string, started time.Time) {
	if m == nil {
		return
	}
	if result == "" {
		result = "ok"
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func (m *Metrics) BatchMember(result string) {
	if m == nil {
		return
	}
	if result == "" {
		result = "ok"
	}
	m.batchMembers.WithLabelValues(result).Inc()
}

func (m *Metrics) RepairDrift() {
	if m == nil {
		return
	}
	m.repairDrift.Inc()
}

func (m *Metrics) PublishFailure(topic string) {
	if m == nil {
		return
	}
	m.publishFailures.WithLabelValues(topic).Inc()
}
