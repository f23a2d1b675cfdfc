package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestsTotal counts completed requests by response status code.
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "microhttpd_requests_total",
		Help: "The total number of requests served, by status code",
	}, []string{"status"})

	// ServedFileSize tracks the size of files served from the document root.
	ServedFileSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "microhttpd_served_file_size_bytes",
		Help:    "Size of files served, in bytes",
		Buckets: prometheus.ExponentialBuckets(256, 4, 10),
	})

	// TransfersInFlight is the number of file transfers currently streaming.
	TransfersInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "microhttpd_transfers_in_flight",
		Help: "The number of file body transfers currently in progress",
	})

	// ConnectionsTotal counts accepted connections.
	ConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "microhttpd_connections_total",
		Help: "The total number of accepted connections",
	})
)

// MustRegister registers all collectors with the given registerer.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		RequestsTotal,
		ServedFileSize,
		TransfersInFlight,
		ConnectionsTotal,
	)
}
