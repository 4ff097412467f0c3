package models

import (
	"encoding/json"
	"time"
)

// SensorStatus is the sensor-side session report inside a snapshot.
type SensorStatus struct {
	Running       bool    `json:"running"`
	Descriptor    string  `json:"descriptor,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds,omitempty"`
}

// SnapshotEnvelope is the authoritative pull payload for one class:
// the full baseline, the sensor's recent events, and its session status.
type SnapshotEnvelope struct {
	Class    string        `json:"class"`
	TakenAt  time.Time     `json:"taken_at"`
	Baseline Baseline      `json:"baseline"`
	Events   []SensorEvent `json:"events"`
	Sensor   SensorStatus  `json:"sensor"`
}

// SensorEvent is an event as the sensor reports it: a flat JSON object
// whose "type" field names the event kind and whose remaining fields are
// the category payload. Subject keys and source timestamps are derived
// from Fields by the category registry, not here.
type SensorEvent struct {
	Type   string
	Fields map[string]interface{}
}

// UnmarshalJSON decodes the sensor's flat object form, splitting the type
// discriminator from the payload fields.
func (e *SensorEvent) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if t, ok := raw["type"].(string); ok {
		e.Type = t
	}
	delete(raw, "type")
	e.Fields = raw
	return nil
}

// MarshalJSON re-flattens the event into the sensor's object form.
func (e SensorEvent) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.Fields)+1)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["type"] = e.Type
	return json.Marshal(out)
}
