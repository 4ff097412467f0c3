package messaging

import (
	"strings"
	"testing"
)

func TestSubjectConstants_Defined(t *testing.T) {
	// Verify all subject constants are non-empty
	subjects := map[string]string{
		"SubjectSensorEventsFile":    SubjectSensorEventsFile,
		"SubjectSensorEventsNetwork": SubjectSensorEventsNetwork,
		"SubjectSensorStatus":        SubjectSensorStatus,
	}

	for name, value := range subjects {
		if value == "" {
			t.Errorf("%s is empty", name)
		}
	}
}

func TestSubjectConstants_FollowNamingConvention(t *testing.T) {
	// Event subjects should follow the pattern: {domain}.{action}.{resource}
	subjects := []string{
		SubjectSensorEventsFile,
		SubjectSensorEventsNetwork,
	}

	for _, subject := range subjects {
		parts := strings.Split(subject, ".")
		if len(parts) < 3 {
			t.Errorf("subject %q does not follow {domain}.{action}.{resource} pattern", subject)
		}
	}
}

func TestSubjectConstants_SensorDomain(t *testing.T) {
	// Verify all sensor subjects start with "sensor."
	sensorSubjects := []string{
		SubjectSensorEventsFile,
		SubjectSensorEventsNetwork,
		SubjectSensorStatus,
	}

	for _, subject := range sensorSubjects {
		if !strings.HasPrefix(subject, "sensor.") {
			t.Errorf("sensor subject %q should start with 'sensor.'", subject)
		}
	}
}

func TestQueueConstants_NoDots(t *testing.T) {
	// Queue names should not contain dots (they're not subjects)
	if strings.Contains(QueueSimPublishers, ".") {
		t.Errorf("queue name %q should not contain dots", QueueSimPublishers)
	}
	if QueueSimPublishers == "" {
		t.Error("QueueSimPublishers is empty")
	}
}

func TestSensorEventsSubject(t *testing.T) {
	tests := []struct {
		name     string
		class    string
		expected string
	}{
		{
			name:     "file class",
			class:    "file",
			expected: "sensor.events.file",
		},
		{
			name:     "network class",
			class:    "network",
			expected: "sensor.events.network",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SensorEventsSubject(tt.class)
			if result != tt.expected {
				t.Errorf("SensorEventsSubject(%q) = %q, want %q", tt.class, result, tt.expected)
			}
		})
	}
}

func TestSensorEventsSubject_MatchesConstants(t *testing.T) {
	if SensorEventsSubject("file") != SubjectSensorEventsFile {
		t.Error("SensorEventsSubject(\"file\") should match SubjectSensorEventsFile")
	}
	if SensorEventsSubject("network") != SubjectSensorEventsNetwork {
		t.Error("SensorEventsSubject(\"network\") should match SubjectSensorEventsNetwork")
	}
}
