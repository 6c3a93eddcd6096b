package monitoring

import (
	"time"

	"reelhub/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Presence
	onlineUsers        prometheus.Gauge
	sessions           prometheus.Gauge
	presenceDeliveries *prometheus.CounterVec

	// Profiles
	profileOperations        *prometheus.CounterVec
	profileOperationDuration *prometheus.HistogramVec
}

// NewPrometheusCollector registers the service metrics on reg. Passing nil
// registers on the default Prometheus registry.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		onlineUsers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reelhub_presence_online_users",
			Help: "Number of users with at least one live session",
		}),

		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reelhub_presence_sessions",
			Help: "Number of live presence sessions",
		}),

		presenceDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reelhub_presence_deliveries_total",
			Help: "Online user broadcasts delivered to sessions, by result",
		}, []string{"result"}),

		profileOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reelhub_profile_operations_total",
			Help: "Profile operations, by operation and result",
		}, []string{"operation", "result"}),

		profileOperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reelhub_profile_operation_duration_seconds",
			Help:    "Duration of profile operations",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		}, []string{"operation"}),
	}
}

var (
	_ ports.ProfileMetrics  = (*PrometheusCollector)(nil)
	_ ports.PresenceMetrics = (*PrometheusCollector)(nil)
)

func (c *PrometheusCollector) SetPresence(onlineUsers, sessions int) {
	c.onlineUsers.Set(float64(onlineUsers))
	c.sessions.Set(float64(sessions))
}

func (c *PrometheusCollector) RecordDelivery(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.presenceDeliveries.WithLabelValues(result).Inc()
}

func (c *PrometheusCollector) RecordProfileOperation(operation, result string, duration time.Duration) {
	c.profileOperations.WithLabelValues(operation, result).Inc()
	c.profileOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
