// Package store owns the engine's in-memory state: one bounded event log
// per category, one baseline per resource class, and the dedup indexes.
// All mutation happens on the engine's apply goroutine; the RWMutex exists
// so readers can take consistent snapshots concurrently. Entries are
// ordered by arrival (SequenceID), which is a deliberately weak contract
// across the push and snapshot sources.
package store

import (
	"sync"
	"time"

	"github.com/harrier-systems/harrierwatch/internal/category"
	"github.com/harrier-systems/harrierwatch/internal/models"
)

// IngestResult classifies the outcome of offering one sensor event.
type IngestResult int

const (
	IngestAccepted IngestResult = iota
	IngestDuplicate              // identity already retained in the log
	IngestSuppressed             // inside the category's dedup window
	IngestUnknownCategory
	IngestNoSubject
)

// Options tunes store construction.
type Options struct {
	// Caps overrides the per-category log capacity; zero keeps the
	// category profile default.
	Caps map[string]int
	// DedupWindows overrides the per-category dedup window; absent keys
	// keep the profile default.
	DedupWindows map[string]time.Duration
	// Now is the clock, injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

// Store is the reconciled in-memory state.
type Store struct {
	mu           sync.RWMutex
	logs         map[string]*BoundedLog
	baselines    map[string]models.Baseline
	snapshotAt   map[string]time.Time
	seq          map[string]uint64
	lastReceived map[string]time.Time
	windows      map[string]time.Duration
	burstSeen    map[string]time.Time // cat|type|subject -> last accept
	now          func() time.Time
}

// Default dedup windows: file change bursts and alert re-fires collapse,
// packets never do.
var defaultWindows = map[string]time.Duration{
	models.CategoryFile:  2 * time.Second,
	models.CategoryAlert: 5 * time.Second,
}

// New builds a store with one bounded log per registered category.
func New(opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{
		logs:         make(map[string]*BoundedLog),
		baselines:    make(map[string]models.Baseline),
		snapshotAt:   make(map[string]time.Time),
		seq:          make(map[string]uint64),
		lastReceived: make(map[string]time.Time),
		windows:      make(map[string]time.Duration),
		burstSeen:    make(map[string]time.Time),
		now:          opts.Now,
	}
	for _, name := range category.Names() {
		p, _ := category.ByName(name)
		capacity := p.Cap
		if c := opts.Caps[name]; c > 0 {
			capacity = c
		}
		s.logs[name] = NewBoundedLog(capacity)
		if w, ok := opts.DedupWindows[name]; ok {
			s.windows[name] = w
		} else {
			s.windows[name] = defaultWindows[name]
		}
	}
	return s
}

// Ingest offers one sensor event to the named category's log. Snapshot
// events skip the burst window: they are historical, and identity dedup
// alone decides whether they are new. The returned record is valid only
// when the result is IngestAccepted.
func (s *Store) Ingest(cat string, ev models.SensorEvent, fromSnapshot bool) (models.EventRecord, IngestResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingestLocked(cat, ev, fromSnapshot)
}

func (s *Store) ingestLocked(cat string, ev models.SensorEvent, fromSnapshot bool) (models.EventRecord, IngestResult) {
	profile, ok := category.ByName(cat)
	if !ok {
		return models.EventRecord{}, IngestUnknownCategory
	}
	log := s.logs[cat]

	subject := profile.Subject(ev.Fields)
	if subject == "" {
		return models.EventRecord{}, IngestNoSubject
	}
	key := profile.DedupKey(ev.Type, subject, ev.Fields)
	if log.Contains(key) {
		return models.EventRecord{}, IngestDuplicate
	}

	now := s.now()
	if window := s.windows[cat]; window > 0 && !fromSnapshot {
		burst := cat + "|" + ev.Type + "|" + subject
		if last, ok := s.burstSeen[burst]; ok && now.Sub(last) < window {
			return models.EventRecord{}, IngestSuppressed
		}
		s.burstSeen[burst] = now
		s.pruneBurstLocked(now)
	}

	received := now
	if last := s.lastReceived[cat]; received.Before(last) {
		received = last
	}
	s.lastReceived[cat] = received
	s.seq[cat]++

	rec := models.EventRecord{
		Category:          cat,
		Type:              ev.Type,
		SubjectKey:        subject,
		Payload:           ev.Fields,
		SourceTimestamp:   profile.SourceTime(ev.Fields),
		ReceivedTimestamp: received,
		SequenceID:        s.seq[cat],
	}
	log.Push(rec, key)
	return rec, IngestAccepted
}

// pruneBurstLocked drops burst entries older than the widest window so the
// map stays proportional to recent activity.
func (s *Store) pruneBurstLocked(now time.Time) {
	if len(s.burstSeen) < 4096 {
		return
	}
	var widest time.Duration
	for _, w := range s.windows {
		if w > widest {
			widest = w
		}
	}
	for k, t := range s.burstSeen {
		if now.Sub(t) > widest {
			delete(s.burstSeen, k)
		}
	}
}

// ApplySnapshot wholesale-replaces the class baseline and reconciles the
// envelope's events into the class logs, atomically with respect to
// readers. Envelope events are expected oldest-first; events whose dedup
// identity is already retained are skipped. Returns the records newly
// appended.
func (s *Store) ApplySnapshot(class string, env models.SnapshotEnvelope) []models.EventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	baseline := make(models.Baseline, len(env.Baseline))
	for k, v := range env.Baseline {
		baseline[k] = v
	}
	s.baselines[class] = baseline
	s.snapshotAt[class] = s.now()

	var applied []models.EventRecord
	for _, ev := range env.Events {
		profile, ok := category.Classify(class, ev.Type)
		if !ok {
			continue
		}
		rec, res := s.ingestLocked(profile.Name, ev, true)
		if res == IngestAccepted {
			applied = append(applied, rec)
		}
	}
	return applied
}

// Events returns the category log most-recent-first. The slice is a copy;
// payload maps are shared and immutable by contract.
func (s *Store) Events(cat string) ([]models.EventRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.logs[cat]
	if !ok {
		return nil, false
	}
	return log.Snapshot(), true
}

// Baseline returns a copy of the class baseline map and the time the last
// snapshot was applied. The second return is zero when no snapshot has
// been applied yet.
func (s *Store) Baseline(class string) (models.Baseline, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.baselines[class]
	out := make(models.Baseline, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out, s.snapshotAt[class]
}

// LogSize reports current length and capacity of a category log.
func (s *Store) LogSize(cat string) (size, capacity int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if log, ok := s.logs[cat]; ok {
		return log.Len(), log.Cap()
	}
	return 0, 0
}

// Seq returns the last sequence id assigned for a category.
func (s *Store) Seq(cat string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq[cat]
}
