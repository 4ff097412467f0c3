package models

import "time"

// Monitored resource classes. The file class feeds the file event log and
// the file baseline; the network class feeds the packet and alert logs and
// the interface baseline.
const (
	ClassFile    = "file"
	ClassNetwork = "network"
)

// Classes lists all resource classes in stable order.
func Classes() []string {
	return []string{ClassFile, ClassNetwork}
}

// ValidClass reports whether s names a known resource class.
func ValidClass(s string) bool {
	return s == ClassFile || s == ClassNetwork
}

// SessionState is the lifecycle state of a class monitoring session.
type SessionState string

const (
	SessionIdle     SessionState = "idle"
	SessionStarting SessionState = "starting"
	SessionActive   SessionState = "active"
	SessionStopping SessionState = "stopping"
	SessionErrored  SessionState = "errored"
)

// MonitoringSession tracks one resource class. Epoch increments on every
// entry to Starting and every entry to Stopping; async results tagged with
// an older epoch are discarded without side effects.
type MonitoringSession struct {
	Class              string       `json:"class"`
	State              SessionState `json:"state"`
	ResourceDescriptor string       `json:"resource_descriptor,omitempty"`
	Epoch              uint64       `json:"epoch"`
	StartedAt          time.Time    `json:"started_at,omitempty"`
	LastError          string       `json:"last_error,omitempty"`
}

// ChannelState is the connection state of a class push channel.
type ChannelState string

const (
	ChannelDisconnected ChannelState = "disconnected"
	ChannelConnecting   ChannelState = "connecting"
	ChannelConnected    ChannelState = "connected"
	ChannelBackoff      ChannelState = "backoff"
)

// ChannelConnection is the observable state of one class push channel.
type ChannelConnection struct {
	Class      string       `json:"class"`
	State      ChannelState `json:"state"`
	RetryCount int          `json:"retry_count"`
	NextRetry  time.Time    `json:"next_retry,omitempty"`
	LastError  string       `json:"last_error,omitempty"`
}
