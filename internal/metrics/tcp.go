package metrics

import "github.com/prometheus/client_golang/prometheus"

// TCP question server metrics.
var (
	TCPConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tcp_connections_total",
			Help:      "Accepted TCP connections",
		},
		[]string{"result"}, // accepted / rejected
	)

	TCPInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tcp_connections_in_flight",
			Help:      "TCP connections currently being served",
		},
	)

	TCPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tcp_requests_total",
			Help:      "TCP requests by kind and reply status",
		},
		[]string{"kind", "status"},
	)

	TCPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tcp_request_duration_seconds",
			Help:      "TCP request handling duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)
)

// RegisterTCPMetrics registers TCP server metrics.
func RegisterTCPMetrics() {
	register("tcp", TCPConnectionsTotal, TCPInFlight, TCPRequestsTotal, TCPRequestDuration)
}
