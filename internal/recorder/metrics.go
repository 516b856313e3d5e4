package recorder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forseti_recorder_bridge_polls_total",
			Help: "Bridge polls by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	metricTicksIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forseti_recorder_ticks_ingested_total",
			Help: "On-track telemetry ticks accepted into the open lap",
		},
	)

	metricTicksDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forseti_recorder_ticks_dropped_total",
			Help: "Off-track telemetry ticks dropped before lap arrays",
		},
	)

	metricLapsFinalized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forseti_recorder_laps_finalized_total",
			Help: "Laps finalized by the segmenter",
		},
	)

	metricDrillsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forseti_recorder_drills_completed_total",
			Help: "Drills completed by type",
		},
		[]string{"type"},
	)

	metricLapTime = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forseti_recorder_lap_time_seconds",
			Help:    "Finalized lap times",
			Buckets: prometheus.LinearBuckets(30, 30, 12),
		},
	)
)

func pollOutcome(err error) string {
	if err != nil {
		return "error"
	}

	return "ok"
}
