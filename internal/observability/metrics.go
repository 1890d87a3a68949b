package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LocationReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "campushub", Name: "location_reports_total", Help: "Driver location reports accepted, by whether a bus was assigned"},
		[]string{"bus_assigned"},
	)
	HistoryRowsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "campushub", Name: "bus_location_rows_total", Help: "Bus location history rows written"})
	BookingsCreated  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "campushub", Name: "bookings_created_total", Help: "Bookings created"})
	TrackingClients  = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "campushub", Name: "tracking_clients", Help: "Connected live-tracking websocket clients"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "campushub", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "campushub",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
