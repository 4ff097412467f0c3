package store

import "github.com/harrier-systems/harrierwatch/internal/models"

type logEntry struct {
	rec models.EventRecord
	key string // dedup identity, indexed for reconciliation
}

// BoundedLog is a fixed-capacity, most-recent-first event log. Pushing at
// capacity evicts exactly the oldest entry. Capacity is fixed at
// construction and never grows.
type BoundedLog struct {
	buf  []logEntry
	next int // ring insertion index
	size int
	keys map[string]int // dedup key -> occurrences currently in the ring
}

// NewBoundedLog returns an empty log with the given capacity. Capacity
// must be positive.
func NewBoundedLog(capacity int) *BoundedLog {
	if capacity <= 0 {
		panic("bounded log capacity must be positive")
	}
	return &BoundedLog{
		buf:  make([]logEntry, capacity),
		keys: make(map[string]int),
	}
}

// Cap returns the fixed capacity.
func (l *BoundedLog) Cap() int { return len(l.buf) }

// Len returns the current number of entries.
func (l *BoundedLog) Len() int { return l.size }

// Contains reports whether an entry with the given dedup key is currently
// retained.
func (l *BoundedLog) Contains(key string) bool {
	return l.keys[key] > 0
}

// Push inserts rec as the newest entry, evicting the oldest when full.
func (l *BoundedLog) Push(rec models.EventRecord, key string) {
	if l.size == len(l.buf) {
		old := l.buf[l.next].key
		if n := l.keys[old]; n <= 1 {
			delete(l.keys, old)
		} else {
			l.keys[old] = n - 1
		}
	} else {
		l.size++
	}
	l.buf[l.next] = logEntry{rec: rec, key: key}
	l.keys[key]++
	l.next = (l.next + 1) % len(l.buf)
}

// Snapshot copies the entries most-recent-first.
func (l *BoundedLog) Snapshot() []models.EventRecord {
	out := make([]models.EventRecord, 0, l.size)
	for i := 0; i < l.size; i++ {
		idx := (l.next - 1 - i + len(l.buf)) % len(l.buf)
		out = append(out, l.buf[idx].rec)
	}
	return out
}
