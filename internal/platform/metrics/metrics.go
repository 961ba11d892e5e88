package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the attendance engine.
type Metrics struct {
	CheckIns            *prometheus.CounterVec
	CheckOuts           prometheus.Counter
	DuplicateAttempts   prometheus.Counter
	FraudSignals        *prometheus.CounterVec
	MockLocationRejects prometheus.Counter
	RealtimeConnections prometheus.Gauge
	RealtimeDeliveries  prometheus.Counter
	RealtimeDropped     prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CheckIns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sentra_checkins_total",
			Help: "Check-ins committed, labeled by resulting status",
		}, []string{"status"}),
		CheckOuts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_checkouts_total",
			Help: "Check-outs committed",
		}),
		DuplicateAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_duplicate_checkin_attempts_total",
			Help: "Check-in attempts rejected because a record already existed",
		}),
		FraudSignals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sentra_fraud_signals_total",
			Help: "Fraud signals raised, labeled by kind and severity",
		}, []string{"kind", "severity"}),
		MockLocationRejects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_mock_location_rejects_total",
			Help: "Location reports hard-rejected for client-asserted mock location",
		}),
		RealtimeConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sentra_realtime_connections",
			Help: "Currently open realtime subscriber connections",
		}),
		RealtimeDeliveries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_realtime_deliveries_total",
			Help: "Envelopes delivered to subscriber connections",
		}),
		RealtimeDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_realtime_dropped_total",
			Help: "Envelopes dropped because a subscriber send buffer was full",
		}),
	}
}
