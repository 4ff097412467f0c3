package models

import "time"

// FileMeta is the baseline metadata for one watched file.
type FileMeta struct {
	Hash    string    `json:"hash"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// InterfaceMeta is the baseline metadata for one network interface.
type InterfaceMeta struct {
	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
	IsUp        bool   `json:"is_up"`
	SpeedMbps   int64  `json:"speed_mbps,omitempty"`
}

// Interface describes one capturable network interface from the sensor
// host's inventory.
type Interface struct {
	Name      string   `json:"name"`
	MTU       int      `json:"mtu,omitempty"`
	Hardware  string   `json:"hardware_addr,omitempty"`
	Flags     []string `json:"flags,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
}

// Baseline maps subject keys to class-specific metadata. It is replaced
// wholesale on every successful snapshot, never merged entry by entry.
// Metadata values are raw JSON-shaped maps so the store stays agnostic to
// class schemas; typed views live with the consumers that need them.
type Baseline map[string]map[string]interface{}

// BaselineEntry pairs a subject key with its metadata for sorted listings.
type BaselineEntry struct {
	SubjectKey string                 `json:"subject_key"`
	Meta       map[string]interface{} `json:"meta"`
}
