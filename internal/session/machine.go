// Package session implements the per-class monitoring session lifecycle.
// Transitions are explicit and guarded: Idle -> Starting -> Active ->
// Stopping -> Idle, any state -> Errored on fatal failure, and Errored ->
// Idle only through an explicit acknowledgment. The epoch increments on
// every entry to Starting and to Stopping; async work launched under an
// older epoch must be discarded by the caller when its result arrives.
package session

import (
	"sync"
	"time"

	"github.com/harrier-systems/harrierwatch/internal/models"
)

// Machine holds the sessions for all resource classes.
type Machine struct {
	mu       sync.RWMutex
	sessions map[string]*models.MonitoringSession
	now      func() time.Time
}

// New builds a machine with one Idle session per class. descriptors maps
// class to its configured resource descriptor and may be nil.
func New(descriptors map[string]string, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	m := &Machine{sessions: make(map[string]*models.MonitoringSession), now: now}
	for _, class := range models.Classes() {
		m.sessions[class] = &models.MonitoringSession{
			Class:              class,
			State:              models.SessionIdle,
			ResourceDescriptor: descriptors[class],
		}
	}
	return m
}

// Get returns a copy of the class session.
func (m *Machine) Get(class string) (models.MonitoringSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[class]
	if !ok {
		return models.MonitoringSession{}, false
	}
	return *s, true
}

// All returns copies of every session in class order.
func (m *Machine) All() []models.MonitoringSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.MonitoringSession, 0, len(m.sessions))
	for _, class := range models.Classes() {
		if s, ok := m.sessions[class]; ok {
			out = append(out, *s)
		}
	}
	return out
}

// Epoch returns the current epoch for a class.
func (m *Machine) Epoch(class string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[class]; ok {
		return s.Epoch
	}
	return 0
}

// BeginStart moves Idle to Starting and bumps the epoch. Any other state
// rejects the command and is left untouched.
func (m *Machine) BeginStart(class string) (uint64, *models.ControlError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[class]
	if !ok {
		return 0, &models.ControlError{Class: class, Op: "start", Reason: "unknown class"}
	}
	switch s.State {
	case models.SessionIdle:
	case models.SessionErrored:
		return 0, &models.ControlError{Class: class, Op: "start", Reason: "session errored, acknowledge first"}
	default:
		return 0, &models.ControlError{Class: class, Op: "start", Reason: "already running"}
	}
	s.State = models.SessionStarting
	s.Epoch++
	s.LastError = ""
	return s.Epoch, nil
}

// ConfirmActive moves Starting to Active if the epoch still matches.
func (m *Machine) ConfirmActive(class string, epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[class]
	if !ok || s.State != models.SessionStarting || s.Epoch != epoch {
		return false
	}
	s.State = models.SessionActive
	s.StartedAt = m.now()
	return true
}

// BeginStop moves Active to Stopping and bumps the epoch.
func (m *Machine) BeginStop(class string) (uint64, *models.ControlError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[class]
	if !ok {
		return 0, &models.ControlError{Class: class, Op: "stop", Reason: "unknown class"}
	}
	if s.State != models.SessionActive {
		return 0, &models.ControlError{Class: class, Op: "stop", Reason: "not active"}
	}
	s.State = models.SessionStopping
	s.Epoch++
	s.StartedAt = time.Time{}
	return s.Epoch, nil
}

// ConfirmIdle moves Stopping to Idle if the epoch still matches.
func (m *Machine) ConfirmIdle(class string, epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[class]
	if !ok || s.State != models.SessionStopping || s.Epoch != epoch {
		return false
	}
	s.State = models.SessionIdle
	return true
}

// Fail moves any state to Errored and records the reason.
func (m *Machine) Fail(class, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[class]
	if !ok {
		return
	}
	s.State = models.SessionErrored
	s.LastError = reason
	s.StartedAt = time.Time{}
}

// AckError moves Errored to Idle. It is the only exit from Errored.
func (m *Machine) AckError(class string) *models.ControlError {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[class]
	if !ok {
		return &models.ControlError{Class: class, Op: "ack-error", Reason: "unknown class"}
	}
	if s.State != models.SessionErrored {
		return &models.ControlError{Class: class, Op: "ack-error", Reason: "session not errored"}
	}
	s.State = models.SessionIdle
	s.LastError = ""
	return nil
}

// SetDescriptor updates the class resource descriptor, typically from an
// authoritative snapshot's sensor status.
func (m *Machine) SetDescriptor(class, descriptor string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[class]; ok && descriptor != "" {
		s.ResourceDescriptor = descriptor
	}
}
