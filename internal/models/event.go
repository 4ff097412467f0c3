package models

import "time"

// Event categories. Each category has its own bounded log and its own
// capability profile (dedup identity, filterable facets, sort comparators).
const (
	CategoryFile   = "file"
	CategoryPacket = "packet"
	CategoryAlert  = "alert"
)

// Event types carried on the push channel and in snapshot envelopes.
const (
	TypeAdded    = "added"
	TypeModified = "modified"
	TypeDeleted  = "deleted"
	TypeRenamed  = "renamed"
	TypePacket   = "packet"
	TypeAlert    = "alert"
)

// Alert severities, as emitted by the sensor's detection rules.
const (
	SeverityHigh   = "HIGH"
	SeverityMedium = "MEDIUM"
	SeverityLow    = "LOW"
)

// EventRecord is a single reconciled observation. SequenceID and
// ReceivedTimestamp are assigned at ingest: within a category SequenceID
// strictly increases and ReceivedTimestamp never decreases in arrival
// order. Ordering across the push channel and snapshot sources is by
// arrival, not by SourceTimestamp. Payload is never mutated after ingest.
type EventRecord struct {
	Category          string                 `json:"category"`
	Type              string                 `json:"type"`
	SubjectKey        string                 `json:"subject_key"`
	Payload           map[string]interface{} `json:"payload,omitempty"`
	SourceTimestamp   time.Time              `json:"source_timestamp"`
	ReceivedTimestamp time.Time              `json:"received_timestamp"`
	SequenceID        uint64                 `json:"sequence_id"`
}
