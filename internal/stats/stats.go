// Package stats keeps per-class ingest counters for the status surface.
// Counters are cumulative for the process lifetime; they are not reset
// when a session restarts.
package stats

import (
	"sync"
	"time"

	"github.com/harrier-systems/harrierwatch/internal/models"
)

// staleFactor: a snapshot older than staleFactor poll intervals marks the
// class stale in status documents.
const staleFactor = 3

// Tracker accumulates counters per resource class.
type Tracker struct {
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	classes map[string]*classCounters
}

type classCounters struct {
	eventsReceived uint64
	byType         map[string]uint64
	bySeverity     map[string]uint64
	deduplicated   uint64
	lastEventAt    time.Time
	lastSnapshotAt time.Time
	sensorUptime   float64
}

// New builds a Tracker. interval is the snapshot poll interval used for
// staleness judgments.
func New(interval time.Duration) *Tracker {
	return &Tracker{
		interval: interval,
		now:      time.Now,
		classes:  make(map[string]*classCounters),
	}
}

func (t *Tracker) class(class string) *classCounters {
	c, ok := t.classes[class]
	if !ok {
		c = &classCounters{
			byType:     make(map[string]uint64),
			bySeverity: make(map[string]uint64),
		}
		t.classes[class] = c
	}
	return c
}

// RecordEvent counts one accepted event for class.
func (t *Tracker) RecordEvent(class string, rec models.EventRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.class(class)
	c.eventsReceived++
	c.byType[rec.Type]++
	if sev, ok := rec.Payload["severity"].(string); ok && sev != "" {
		c.bySeverity[sev]++
	}
	c.lastEventAt = rec.ReceivedTimestamp
}

// RecordDeduplicated counts one suppressed duplicate for class.
func (t *Tracker) RecordDeduplicated(class string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.class(class).deduplicated++
}

// RecordSnapshot notes a successful snapshot apply for class.
func (t *Tracker) RecordSnapshot(class string, takenAt time.Time, sensorUptime float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.class(class)
	c.lastSnapshotAt = takenAt
	c.sensorUptime = sensorUptime
}

// Stats returns the counter snapshot for class. Staleness compares the
// last snapshot age against the poll interval; a class that never
// snapshotted is not stale (there is nothing to be stale from).
func (t *Tracker) Stats(class string) models.ClassStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.classes[class]
	if !ok {
		return models.ClassStats{}
	}
	return models.ClassStats{
		EventsReceived: c.eventsReceived,
		ByType:         copyCounts(c.byType),
		BySeverity:     copyCounts(c.bySeverity),
		Deduplicated:   c.deduplicated,
		LastEventAt:    c.lastEventAt,
		LastSnapshotAt: c.lastSnapshotAt,
		SnapshotStale:  t.stale(c),
		SensorUptime:   c.sensorUptime,
	}
}

// All returns counter snapshots for every class seen so far.
func (t *Tracker) All() map[string]models.ClassStats {
	t.mu.Lock()
	classes := make([]string, 0, len(t.classes))
	for class := range t.classes {
		classes = append(classes, class)
	}
	t.mu.Unlock()

	out := make(map[string]models.ClassStats, len(classes))
	for _, class := range classes {
		out[class] = t.Stats(class)
	}
	return out
}

func (t *Tracker) stale(c *classCounters) bool {
	if c.lastSnapshotAt.IsZero() || t.interval <= 0 {
		return false
	}
	return t.now().Sub(c.lastSnapshotAt) > staleFactor*t.interval
}

func copyCounts(m map[string]uint64) map[string]uint64 {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
