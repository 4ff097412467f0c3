package models

import "time"

// ClassStats is a point-in-time counter snapshot for one resource class.
type ClassStats struct {
	EventsReceived uint64            `json:"events_received"`
	ByType         map[string]uint64 `json:"by_type,omitempty"`
	BySeverity     map[string]uint64 `json:"by_severity,omitempty"`
	Deduplicated   uint64            `json:"deduplicated"`
	LastEventAt    time.Time         `json:"last_event_at,omitempty"`
	LastSnapshotAt time.Time         `json:"last_snapshot_at,omitempty"`
	SnapshotStale  bool              `json:"snapshot_stale"`
	SensorUptime   float64           `json:"sensor_uptime_seconds,omitempty"`
}

// SessionStatus is the combined status document served for one class:
// session lifecycle, channel connection, and counters.
type SessionStatus struct {
	Session MonitoringSession `json:"session"`
	Channel ChannelConnection `json:"channel"`
	Stats   ClassStats        `json:"stats"`
}
