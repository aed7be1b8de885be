package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClockActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timeclock",
		Name:      "clock_actions_total",
		Help:      "Clock and break transitions by action, method and outcome",
	}, []string{"action", "method", "outcome"})

	FaceIdentifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timeclock",
		Name:      "face_identifications_total",
		Help:      "Face identification attempts by outcome",
	}, []string{"outcome"})

	FaceMatchDistance = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "timeclock",
		Name:      "face_match_distance",
		Help:      "Euclidean distance of the best candidate per identification",
		Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
	})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timeclock",
		Name:      "events_published_total",
		Help:      "Attendance events published to NATS",
	}, []string{"type", "outcome"})

	PresentUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "timeclock",
		Name:      "present_users",
		Help:      "Users currently clocked in and not on a break",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "timeclock",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "timeclock",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
