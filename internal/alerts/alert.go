package alerts

import (
	"sort"
	"sync"
	"time"

	"github.com/flarewatch/flarewatch/internal/bus"
	"github.com/flarewatch/flarewatch/internal/event"
)

// Status is an alert lifecycle state.
type Status string

// Lifecycle states. Transitions are forward-only.
const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

// MaxSampledEvents bounds the triggering events carried on an alert.
const MaxSampledEvents = 10

// maxStored caps the store; once exceeded, the oldest resolved alerts are
// pruned first, then the oldest of any status.
const maxStored = 1000

// Alert is one materialized rule firing.
type Alert struct {
	// ID is "<ruleID>-<unix nanos>", so repeated firings of the same rule
	// remain distinguishable.
	ID string `json:"id"`

	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Severity    string    `json:"severity"`
	Status      Status    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`

	// Source is the id of the rule that fired.
	Source string   `json:"source"`
	Tags   []string `json:"tags,omitempty"`

	// Events is a sample of the events that satisfied the rule: the most
	// recent MaxSampledEvents, in timestamp order.
	Events []event.TelemetryEvent `json:"events,omitempty"`
}

// Store is a thread-safe in-memory alert store. Lifecycle transitions are
// announced on the bus.
type Store struct {
	bus *bus.Bus

	mu     sync.RWMutex
	alerts map[string]*Alert
}

// NewStore creates a Store announcing transitions on b. A nil bus disables
// announcements.
func NewStore(b *bus.Bus) *Store {
	return &Store{
		bus:    b,
		alerts: make(map[string]*Alert),
	}
}

// Add records a and announces alerts.fired.
func (s *Store) Add(a Alert) {
	s.mu.Lock()
	s.alerts[a.ID] = &a
	s.pruneLocked()
	s.mu.Unlock()

	s.publish(bus.TopicAlertFired, a)
}

// Get returns the alert with the given id.
func (s *Store) Get(id string) (Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return Alert{}, false
	}
	return *a, true
}

// List returns all stored alerts, newest first. A non-empty status filters
// the result.
func (s *Store) List(status Status) []Alert {
	s.mu.RLock()
	out := make([]Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, *a)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// Acknowledge moves an active alert to acknowledged and announces the
// transition. Unknown ids and alerts not in the active state are no-ops.
func (s *Store) Acknowledge(id string) bool {
	return s.transition(id, StatusAcknowledged, bus.TopicAlertAcknowledged, StatusActive)
}

// Resolve moves an active or acknowledged alert to resolved and announces
// the transition. Unknown ids and already-resolved alerts are no-ops.
func (s *Store) Resolve(id string) bool {
	return s.transition(id, StatusResolved, bus.TopicAlertResolved, StatusActive, StatusAcknowledged)
}

func (s *Store) transition(id string, to Status, topic string, from ...Status) bool {
	s.mu.Lock()
	a, ok := s.alerts[id]
	if !ok || !statusIn(a.Status, from) {
		s.mu.Unlock()
		return false
	}
	a.Status = to
	announced := *a
	s.mu.Unlock()

	s.publish(topic, announced)
	return true
}

// pruneLocked evicts alerts beyond maxStored: resolved first, oldest first.
func (s *Store) pruneLocked() {
	if len(s.alerts) <= maxStored {
		return
	}
	all := make([]*Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool {
		if (all[i].Status == StatusResolved) != (all[j].Status == StatusResolved) {
			return all[i].Status == StatusResolved
		}
		return all[i].Timestamp.Before(all[j].Timestamp)
	})
	for _, a := range all[:len(all)-maxStored] {
		delete(s.alerts, a.ID)
	}
}

func (s *Store) publish(topic string, a Alert) {
	if s.bus != nil {
		s.bus.Publish(topic, a)
	}
}

func statusIn(st Status, set []Status) bool {
	for _, s := range set {
		if s == st {
			return true
		}
	}
	return false
}
