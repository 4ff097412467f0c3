package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest metrics
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harrier_events_received_total",
			Help: "Total number of events accepted into the logs",
		},
		[]string{"category", "source"},
	)

	EventsDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harrier_events_discarded_total",
			Help: "Total number of events dropped before the logs",
		},
		[]string{"category", "reason"},
	)

	FramesMalformed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harrier_frames_malformed_total",
			Help: "Total number of channel frames that failed to parse",
		},
		[]string{"class"},
	)

	// Log metrics
	LogEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harrier_log_entries",
			Help: "Current number of entries in each bounded log",
		},
		[]string{"category"},
	)

	// Snapshot metrics
	SnapshotFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harrier_snapshot_fetches_total",
			Help: "Total number of snapshot fetch attempts",
		},
		[]string{"class", "status"},
	)

	SnapshotDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harrier_snapshot_duration_seconds",
			Help:    "Duration of snapshot fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"class"},
	)

	SnapshotTicksSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harrier_snapshot_ticks_skipped_total",
			Help: "Total number of poll ticks coalesced because the previous fetch was still running",
		},
		[]string{"class"},
	)

	StaleResultsDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harrier_stale_results_discarded_total",
			Help: "Total number of async results discarded on epoch mismatch",
		},
		[]string{"class", "kind"},
	)

	// Channel metrics
	ChannelState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harrier_channel_state",
			Help: "Push channel state per class (0 disconnected, 1 connecting, 2 connected, 3 backoff)",
		},
		[]string{"class"},
	)

	ChannelReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harrier_channel_reconnects_total",
			Help: "Total number of channel reconnect attempts",
		},
		[]string{"class"},
	)

	// Engine metrics
	InboxDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harrier_inbox_dropped_total",
			Help: "Total number of inbox messages dropped because the inbox was full",
		},
	)

	InboxDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harrier_inbox_depth",
			Help: "Current depth of the engine inbox",
		},
	)

	InvariantViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harrier_invariant_violations_total",
			Help: "Total number of internal invariant violations detected",
		},
	)

	// Subscriber metrics
	Subscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harrier_subscribers",
			Help: "Current number of live event stream subscribers",
		},
		[]string{"category"},
	)

	SubscriberDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harrier_subscriber_drops_total",
			Help: "Total number of deltas dropped for slow subscribers",
		},
		[]string{"category"},
	)
)

// ChannelStateValue maps a channel state name onto the gauge encoding.
func ChannelStateValue(state string) float64 {
	switch state {
	case "connecting":
		return 1
	case "connected":
		return 2
	case "backoff":
		return 3
	default:
		return 0
	}
}
