// Package messaging defines standard subject names for the sensor event bus.
package messaging

// Subject constants for the sensor event bus.
// Follow the pattern: {domain}.{action}.{resource}
const (
	// Sensor event subjects - one stream of frames per resource class
	SubjectSensorEventsFile    = "sensor.events.file"    // File change frames
	SubjectSensorEventsNetwork = "sensor.events.network" // Packet and alert frames

	// Sensor status subject - liveness heartbeats from the sensor
	SubjectSensorStatus = "sensor.status"
)

// Queue group names for load-balanced consumers.
// Workers in the same queue group share messages (each message processed once).
// Engine instances subscribe WITHOUT a queue group: every engine needs the
// full frame stream.
const (
	QueueSimPublishers = "sim-publishers" // Pool of simulator publish workers
)

// SensorEventsSubject returns the frame subject for a resource class.
// Example: sensor.events.file
func SensorEventsSubject(class string) string {
	return "sensor.events." + class
}
