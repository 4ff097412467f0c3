package stats

import (
	"testing"
	"time"

	"github.com/harrier-systems/harrierwatch/internal/models"
)

func TestTrackerCountsEvents(t *testing.T) {
	tr := New(10 * time.Second)

	now := time.Now().UTC()
	tr.RecordEvent(models.ClassFile, models.EventRecord{
		Type:              models.TypeModified,
		Payload:           map[string]interface{}{"path": "/etc/passwd"},
		ReceivedTimestamp: now,
	})
	tr.RecordEvent(models.ClassFile, models.EventRecord{
		Type:              models.TypeAdded,
		Payload:           map[string]interface{}{"path": "/etc/shadow"},
		ReceivedTimestamp: now.Add(time.Second),
	})
	tr.RecordEvent(models.ClassNetwork, models.EventRecord{
		Type:              models.TypeAlert,
		Payload:           map[string]interface{}{"severity": "HIGH"},
		ReceivedTimestamp: now,
	})
	tr.RecordDeduplicated(models.ClassFile)

	fs := tr.Stats(models.ClassFile)
	if fs.EventsReceived != 2 {
		t.Errorf("file EventsReceived = %d, want 2", fs.EventsReceived)
	}
	if fs.ByType[models.TypeModified] != 1 || fs.ByType[models.TypeAdded] != 1 {
		t.Errorf("file ByType = %v", fs.ByType)
	}
	if fs.Deduplicated != 1 {
		t.Errorf("file Deduplicated = %d, want 1", fs.Deduplicated)
	}
	if !fs.LastEventAt.Equal(now.Add(time.Second)) {
		t.Errorf("file LastEventAt = %v", fs.LastEventAt)
	}

	ns := tr.Stats(models.ClassNetwork)
	if ns.BySeverity["HIGH"] != 1 {
		t.Errorf("network BySeverity = %v", ns.BySeverity)
	}
}

func TestTrackerUnknownClass(t *testing.T) {
	tr := New(time.Second)
	s := tr.Stats("ghost")
	if s.EventsReceived != 0 || s.SnapshotStale {
		t.Errorf("unknown class stats = %+v", s)
	}
}

func TestTrackerStaleness(t *testing.T) {
	tr := New(10 * time.Second)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return base }

	// Never snapshotted: not stale.
	if tr.Stats(models.ClassFile).SnapshotStale {
		t.Error("stale before any snapshot")
	}

	tr.RecordSnapshot(models.ClassFile, base, 120)
	if tr.Stats(models.ClassFile).SnapshotStale {
		t.Error("stale immediately after snapshot")
	}

	tr.now = func() time.Time { return base.Add(29 * time.Second) }
	if tr.Stats(models.ClassFile).SnapshotStale {
		t.Error("stale within 3 intervals")
	}

	tr.now = func() time.Time { return base.Add(31 * time.Second) }
	s := tr.Stats(models.ClassFile)
	if !s.SnapshotStale {
		t.Error("not stale past 3 intervals")
	}
	if s.SensorUptime != 120 {
		t.Errorf("SensorUptime = %v, want 120", s.SensorUptime)
	}
}

func TestTrackerAll(t *testing.T) {
	tr := New(time.Second)
	tr.RecordEvent(models.ClassFile, models.EventRecord{Type: models.TypeAdded})
	tr.RecordEvent(models.ClassNetwork, models.EventRecord{Type: models.TypePacket})

	all := tr.All()
	if len(all) != 2 {
		t.Fatalf("All() classes = %d, want 2", len(all))
	}
	if all[models.ClassFile].EventsReceived != 1 {
		t.Errorf("file count = %d", all[models.ClassFile].EventsReceived)
	}
}

func TestTrackerCopiesMaps(t *testing.T) {
	tr := New(time.Second)
	tr.RecordEvent(models.ClassFile, models.EventRecord{Type: models.TypeAdded})

	s := tr.Stats(models.ClassFile)
	s.ByType[models.TypeAdded] = 99
	if got := tr.Stats(models.ClassFile).ByType[models.TypeAdded]; got != 1 {
		t.Errorf("internal count mutated through returned map: %d", got)
	}
}
