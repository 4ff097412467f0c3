package store

import (
	"testing"
	"time"

	"github.com/harrier-systems/harrierwatch/internal/models"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }
func (c *clock) rewind(d time.Duration)  { c.t = c.t.Add(-d) }

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func fileEvent(changeID, path string) models.SensorEvent {
	return models.SensorEvent{
		Type: models.TypeModified,
		Fields: map[string]interface{}{
			"path":        path,
			"change_id":   changeID,
			"hash":        "h-" + changeID,
			"detected_at": "2026-03-01T09:59:00Z",
		},
	}
}

func packetEvent(capturedAt string) models.SensorEvent {
	return models.SensorEvent{
		Type: models.TypePacket,
		Fields: map[string]interface{}{
			"src":         "10.0.0.1",
			"dst":         "10.0.0.2",
			"protocol":    "tcp",
			"length":      float64(640),
			"captured_at": capturedAt,
		},
	}
}

func TestIngestAssignsRecordFields(t *testing.T) {
	c := newClock()
	s := New(Options{Now: c.now})

	rec, res := s.Ingest(models.CategoryFile, fileEvent("c1", "/etc/passwd"), false)
	if res != IngestAccepted {
		t.Fatalf("Ingest result = %v, want IngestAccepted", res)
	}
	if rec.Category != models.CategoryFile || rec.Type != models.TypeModified {
		t.Errorf("Category, Type = %q, %q", rec.Category, rec.Type)
	}
	if rec.SubjectKey != "/etc/passwd" {
		t.Errorf("SubjectKey = %q, want /etc/passwd", rec.SubjectKey)
	}
	if rec.SequenceID != 1 {
		t.Errorf("SequenceID = %d, want 1", rec.SequenceID)
	}
	if !rec.ReceivedTimestamp.Equal(c.t) {
		t.Errorf("ReceivedTimestamp = %v, want %v", rec.ReceivedTimestamp, c.t)
	}
	want := time.Date(2026, 3, 1, 9, 59, 0, 0, time.UTC)
	if !rec.SourceTimestamp.Equal(want) {
		t.Errorf("SourceTimestamp = %v, want %v", rec.SourceTimestamp, want)
	}

	c.advance(time.Second)
	rec2, res := s.Ingest(models.CategoryFile, fileEvent("c2", "/etc/hosts"), false)
	if res != IngestAccepted {
		t.Fatalf("second Ingest result = %v, want IngestAccepted", res)
	}
	if rec2.SequenceID != 2 {
		t.Errorf("second SequenceID = %d, want 2", rec2.SequenceID)
	}
	if s.Seq(models.CategoryFile) != 2 {
		t.Errorf("Seq = %d, want 2", s.Seq(models.CategoryFile))
	}
}

func TestIngestReceivedTimestampNeverDecreases(t *testing.T) {
	c := newClock()
	s := New(Options{Now: c.now})

	rec1, _ := s.Ingest(models.CategoryFile, fileEvent("c1", "/a"), false)
	c.rewind(10 * time.Second)
	rec2, res := s.Ingest(models.CategoryFile, fileEvent("c2", "/b"), false)
	if res != IngestAccepted {
		t.Fatalf("Ingest result = %v, want IngestAccepted", res)
	}
	if rec2.ReceivedTimestamp.Before(rec1.ReceivedTimestamp) {
		t.Errorf("ReceivedTimestamp went backward: %v then %v", rec1.ReceivedTimestamp, rec2.ReceivedTimestamp)
	}
	if rec2.SequenceID != rec1.SequenceID+1 {
		t.Errorf("SequenceID = %d, want %d", rec2.SequenceID, rec1.SequenceID+1)
	}
}

func TestIngestRejections(t *testing.T) {
	c := newClock()
	s := New(Options{Now: c.now})
	s.Ingest(models.CategoryFile, fileEvent("c1", "/a"), false)

	tests := []struct {
		name string
		cat  string
		ev   models.SensorEvent
		want IngestResult
	}{
		{
			name: "unknown category",
			cat:  "process",
			ev:   fileEvent("c9", "/a"),
			want: IngestUnknownCategory,
		},
		{
			name: "missing subject",
			cat:  models.CategoryFile,
			ev: models.SensorEvent{
				Type:   models.TypeModified,
				Fields: map[string]interface{}{"change_id": "c9"},
			},
			want: IngestNoSubject,
		},
		{
			name: "duplicate identity",
			cat:  models.CategoryFile,
			ev:   fileEvent("c1", "/a"),
			want: IngestDuplicate,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, got := s.Ingest(tt.cat, tt.ev, false); got != tt.want {
				t.Errorf("Ingest result = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIngestBurstWindow(t *testing.T) {
	c := newClock()
	s := New(Options{
		Now:          c.now,
		DedupWindows: map[string]time.Duration{models.CategoryFile: 2 * time.Second},
	})

	if _, res := s.Ingest(models.CategoryFile, fileEvent("c1", "/a"), false); res != IngestAccepted {
		t.Fatalf("first Ingest = %v, want IngestAccepted", res)
	}
	c.advance(time.Second)
	if _, res := s.Ingest(models.CategoryFile, fileEvent("c2", "/a"), false); res != IngestSuppressed {
		t.Errorf("inside window Ingest = %v, want IngestSuppressed", res)
	}
	c.advance(2 * time.Second)
	if _, res := s.Ingest(models.CategoryFile, fileEvent("c3", "/a"), false); res != IngestAccepted {
		t.Errorf("after window Ingest = %v, want IngestAccepted", res)
	}
	// A different subject is never in the same burst.
	if _, res := s.Ingest(models.CategoryFile, fileEvent("c4", "/b"), false); res != IngestAccepted {
		t.Errorf("other subject Ingest = %v, want IngestAccepted", res)
	}
}

func TestIngestPacketsHaveNoBurstWindow(t *testing.T) {
	c := newClock()
	s := New(Options{Now: c.now})

	if _, res := s.Ingest(models.CategoryPacket, packetEvent("2026-03-01T10:00:00Z"), false); res != IngestAccepted {
		t.Fatalf("first packet = %v, want IngestAccepted", res)
	}
	if _, res := s.Ingest(models.CategoryPacket, packetEvent("2026-03-01T10:00:00.001Z"), false); res != IngestAccepted {
		t.Errorf("immediate second packet = %v, want IngestAccepted", res)
	}
	// Byte-identical capture is an identity duplicate, not a burst.
	if _, res := s.Ingest(models.CategoryPacket, packetEvent("2026-03-01T10:00:00Z"), false); res != IngestDuplicate {
		t.Errorf("identical packet = %v, want IngestDuplicate", res)
	}
}

func TestIngestSnapshotSkipsBurstWindow(t *testing.T) {
	c := newClock()
	s := New(Options{
		Now:          c.now,
		DedupWindows: map[string]time.Duration{models.CategoryFile: 2 * time.Second},
	})

	s.Ingest(models.CategoryFile, fileEvent("c1", "/a"), false)
	c.advance(time.Second)
	if _, res := s.Ingest(models.CategoryFile, fileEvent("c2", "/a"), true); res != IngestAccepted {
		t.Errorf("snapshot Ingest inside window = %v, want IngestAccepted", res)
	}
	// Identity dedup still applies to snapshot events.
	if _, res := s.Ingest(models.CategoryFile, fileEvent("c1", "/a"), true); res != IngestDuplicate {
		t.Errorf("snapshot Ingest of retained identity = %v, want IngestDuplicate", res)
	}
}

func TestEvictionForgetsIdentity(t *testing.T) {
	c := newClock()
	s := New(Options{
		Now:          c.now,
		Caps:         map[string]int{models.CategoryFile: 2},
		DedupWindows: map[string]time.Duration{models.CategoryFile: 0},
	})

	s.Ingest(models.CategoryFile, fileEvent("c1", "/a"), false)
	s.Ingest(models.CategoryFile, fileEvent("c2", "/b"), false)
	s.Ingest(models.CategoryFile, fileEvent("c3", "/c"), false) // evicts c1

	if size, capacity := s.LogSize(models.CategoryFile); size != 2 || capacity != 2 {
		t.Fatalf("LogSize = %d, %d, want 2, 2", size, capacity)
	}

	// The evicted identity is no longer retained, so the same change is
	// accepted again with a fresh sequence id.
	rec, res := s.Ingest(models.CategoryFile, fileEvent("c1", "/a"), false)
	if res != IngestAccepted {
		t.Fatalf("re-Ingest after eviction = %v, want IngestAccepted", res)
	}
	if rec.SequenceID != 4 {
		t.Errorf("SequenceID = %d, want 4", rec.SequenceID)
	}

	events, _ := s.Events(models.CategoryFile)
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].SubjectKey != "/a" || events[1].SubjectKey != "/c" {
		t.Errorf("subjects = %q, %q, want /a, /c", events[0].SubjectKey, events[1].SubjectKey)
	}
}

func TestSubjectReappears(t *testing.T) {
	c := newClock()
	s := New(Options{
		Now:          c.now,
		DedupWindows: map[string]time.Duration{models.CategoryFile: 0},
	})

	// The same subject seen again after another subject is a new record,
	// not a duplicate: identity is per change, not per subject.
	s.Ingest(models.CategoryFile, fileEvent("c1", "/a"), false)
	s.Ingest(models.CategoryFile, fileEvent("c2", "/b"), false)
	s.Ingest(models.CategoryFile, fileEvent("c3", "/a"), false)

	events, _ := s.Events(models.CategoryFile)
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	wantSubjects := []string{"/a", "/b", "/a"}
	for i, want := range wantSubjects {
		if events[i].SubjectKey != want {
			t.Errorf("events[%d].SubjectKey = %q, want %q", i, events[i].SubjectKey, want)
		}
	}
	for i := 0; i < len(events)-1; i++ {
		if events[i].SequenceID <= events[i+1].SequenceID {
			t.Errorf("sequence not strictly increasing: %d then %d", events[i+1].SequenceID, events[i].SequenceID)
		}
	}
}

func TestApplySnapshotReplacesBaselineWholesale(t *testing.T) {
	c := newClock()
	s := New(Options{Now: c.now})

	s.ApplySnapshot(models.ClassFile, models.SnapshotEnvelope{
		Class: models.ClassFile,
		Baseline: models.Baseline{
			"/a": {"hash": "aa", "size": float64(10)},
			"/b": {"hash": "bb", "size": float64(20)},
		},
	})
	c.advance(30 * time.Second)
	s.ApplySnapshot(models.ClassFile, models.SnapshotEnvelope{
		Class: models.ClassFile,
		Baseline: models.Baseline{
			"/b": {"hash": "bb2", "size": float64(21)},
		},
	})

	baseline, at := s.Baseline(models.ClassFile)
	if len(baseline) != 1 {
		t.Fatalf("len(baseline) = %d, want 1", len(baseline))
	}
	if _, stale := baseline["/a"]; stale {
		t.Error("baseline retains /a from the previous snapshot")
	}
	if got, _ := baseline["/b"]["hash"].(string); got != "bb2" {
		t.Errorf("baseline /b hash = %q, want bb2", got)
	}
	if !at.Equal(c.t) {
		t.Errorf("snapshot time = %v, want %v", at, c.t)
	}
}

func TestApplySnapshotReconcilesEvents(t *testing.T) {
	c := newClock()
	s := New(Options{Now: c.now})

	// The channel already delivered c1; the snapshot repeats it and adds c2.
	s.Ingest(models.CategoryFile, fileEvent("c1", "/a"), false)
	c.advance(time.Second)

	applied := s.ApplySnapshot(models.ClassFile, models.SnapshotEnvelope{
		Class: models.ClassFile,
		Events: []models.SensorEvent{
			fileEvent("c1", "/a"),
			fileEvent("c2", "/b"),
			{Type: "bogus", Fields: map[string]interface{}{"path": "/x"}},
		},
	})
	if len(applied) != 1 {
		t.Fatalf("len(applied) = %d, want 1", len(applied))
	}
	if applied[0].SubjectKey != "/b" {
		t.Errorf("applied subject = %q, want /b", applied[0].SubjectKey)
	}

	events, _ := s.Events(models.CategoryFile)
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].SubjectKey != "/b" || events[1].SubjectKey != "/a" {
		t.Errorf("subjects = %q, %q, want /b, /a", events[0].SubjectKey, events[1].SubjectKey)
	}
}

func TestApplySnapshotRoutesNetworkCategories(t *testing.T) {
	c := newClock()
	s := New(Options{Now: c.now})

	s.ApplySnapshot(models.ClassNetwork, models.SnapshotEnvelope{
		Class: models.ClassNetwork,
		Events: []models.SensorEvent{
			packetEvent("2026-03-01T10:00:00Z"),
			{
				Type: models.TypeAlert,
				Fields: map[string]interface{}{
					"id":       "al-1",
					"rule":     "port-scan",
					"severity": models.SeverityHigh,
				},
			},
		},
	})

	if size, _ := s.LogSize(models.CategoryPacket); size != 1 {
		t.Errorf("packet log size = %d, want 1", size)
	}
	if size, _ := s.LogSize(models.CategoryAlert); size != 1 {
		t.Errorf("alert log size = %d, want 1", size)
	}
}

func TestReadersGetCopies(t *testing.T) {
	c := newClock()
	s := New(Options{Now: c.now})
	s.Ingest(models.CategoryFile, fileEvent("c1", "/a"), false)
	s.ApplySnapshot(models.ClassFile, models.SnapshotEnvelope{
		Baseline: models.Baseline{"/a": {"hash": "aa"}},
	})

	events, ok := s.Events(models.CategoryFile)
	if !ok || len(events) != 1 {
		t.Fatalf("Events = %v, %v", events, ok)
	}
	events[0].SubjectKey = "mutated"
	again, _ := s.Events(models.CategoryFile)
	if again[0].SubjectKey != "/a" {
		t.Error("mutating a returned slice leaked into the store")
	}

	baseline, _ := s.Baseline(models.ClassFile)
	delete(baseline, "/a")
	baseline2, _ := s.Baseline(models.ClassFile)
	if _, ok := baseline2["/a"]; !ok {
		t.Error("mutating a returned baseline leaked into the store")
	}
}

func TestEventsUnknownCategory(t *testing.T) {
	s := New(Options{})
	if _, ok := s.Events("process"); ok {
		t.Error("Events(process) ok = true, want false")
	}
}
