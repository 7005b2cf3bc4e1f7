// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PointsIngested counts telemetry points written to the store
	PointsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetwatch_points_ingested_total",
			Help: "Total number of telemetry points written",
		},
	)

	// PointWriteFailures counts store-level write failures
	PointWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetwatch_point_write_failures_total",
			Help: "Total number of telemetry point writes rejected by the store",
		},
	)

	// ValidationWarnings counts advisory validation failures (points are
	// still written)
	ValidationWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetwatch_validation_warnings_total",
			Help: "Total number of points violating their metric definition",
		},
	)

	// AlertsTriggered counts alerts created by rule evaluation, by level
	AlertsTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_alerts_triggered_total",
			Help: "Total number of alerts triggered",
		},
		[]string{"level"},
	)

	// AlertsResolved counts alert resolutions, by origin (operator, auto)
	AlertsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_alerts_resolved_total",
			Help: "Total number of alerts resolved",
		},
		[]string{"by"},
	)

	// RealtimeDeliveries counts fanout deliveries to subscriptions
	RealtimeDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetwatch_realtime_deliveries_total",
			Help: "Total number of realtime notifications delivered",
		},
	)

	// RealtimeDropped counts notifications suppressed by rate limiting or
	// full subscriber buffers
	RealtimeDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetwatch_realtime_dropped_total",
			Help: "Total number of realtime notifications dropped",
		},
	)

	// EventsPublished counts bus events actually published, by subject
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_events_published_total",
			Help: "Total number of domain events published to the bus",
		},
		[]string{"subject"},
	)

	// IngestDuration observes the wall time of ingestion batches
	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetwatch_ingest_duration_seconds",
			Help:    "Ingestion batch duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// AggregationDuration observes aggregation query latency
	AggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetwatch_aggregation_duration_seconds",
			Help:    "Aggregation query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// PointsPurged counts rows removed by the retention sweep
	PointsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetwatch_points_purged_total",
			Help: "Total number of telemetry points removed by retention",
		},
	)
)
