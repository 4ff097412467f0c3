// Package broadcast fans accepted events out to live subscribers. Each
// subscriber owns a buffered channel; a subscriber that cannot keep up
// loses events rather than slowing the engine.
package broadcast

import (
	"sync"

	"github.com/harrier-systems/harrierwatch/internal/metrics"
	"github.com/harrier-systems/harrierwatch/internal/models"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Hub distributes events to subscribers by category.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscriber]struct{}
	closed bool
}

// Subscriber receives events for one category, or all categories when
// subscribed with an empty category.
type Subscriber struct {
	category string
	ch       chan models.EventRecord
	hub      *Hub
	once     sync.Once
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscriber]struct{})}
}

// Subscribe registers a subscriber for category (empty for all). The
// returned subscriber must be closed when done.
func (h *Hub) Subscribe(category string, buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &Subscriber{
		category: category,
		ch:       make(chan models.EventRecord, buffer),
		hub:      h,
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(s.ch)
		return s
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	metrics.Subscribers.WithLabelValues(gaugeLabel(category)).Inc()
	return s
}

// Publish delivers rec to every matching subscriber. Full subscriber
// buffers drop the event and count the loss.
func (h *Hub) Publish(rec models.EventRecord) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if s.category != "" && s.category != rec.Category {
			continue
		}
		select {
		case s.ch <- rec:
		default:
			metrics.SubscriberDrops.WithLabelValues(gaugeLabel(s.category)).Inc()
		}
	}
}

// Close closes every subscriber channel and rejects future subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		close(s.ch)
		metrics.Subscribers.WithLabelValues(gaugeLabel(s.category)).Dec()
	}
	h.subs = make(map[*Subscriber]struct{})
}

// Events is the subscriber's receive channel. It closes when the
// subscriber or the hub is closed.
func (s *Subscriber) Events() <-chan models.EventRecord {
	return s.ch
}

// Close unregisters the subscriber and closes its channel. Safe to call
// more than once.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		_, registered := s.hub.subs[s]
		if registered {
			delete(s.hub.subs, s)
			close(s.ch)
		}
		s.hub.mu.Unlock()
		if registered {
			metrics.Subscribers.WithLabelValues(gaugeLabel(s.category)).Dec()
		}
	})
}

func gaugeLabel(category string) string {
	if category == "" {
		return "all"
	}
	return category
}
