package state

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/precambrien/alisbot/internal/listing"
)

// Phase is the connection state of one instance.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseConnecting   Phase = "connecting"
	PhaseRegistered   Phase = "registered"
	PhaseDisconnected Phase = "disconnected"
	PhaseStopped      Phase = "stopped"
)

// StatusFunc reports the live listing state of an instance.
type StatusFunc func() listing.Status

// Snapshot is the latest view of one bot instance.
type Snapshot struct {
	Name                string
	Server              string
	Nick                string
	Phase               Phase
	Listing             listing.Status
	ActiveQueries       int
	QueriesServed       int
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // consecutive failed connection attempts
}

// IsOffline returns true when the instance failed to connect several times
// in a row.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

type entry struct {
	snap   Snapshot
	status StatusFunc
}

// Store collects per-instance state written by sessions and read by the
// dashboard. The zero value is ready to use.
type Store struct {
	mu        sync.RWMutex
	instances map[string]*entry
}

// Register adds an instance, or resets its static fields if already known.
func (s *Store) Register(name, server string, status StatusFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.instances == nil {
		s.instances = make(map[string]*entry)
	}
	e, ok := s.instances[name]
	if !ok {
		e = &entry{snap: Snapshot{Name: name, Phase: PhaseIdle}}
		s.instances[name] = e
	}
	e.snap.Server = server
	e.status = status
	e.snap.LastUpdated = time.Now()
}

func (s *Store) update(name string, fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.instances[name]
	if !ok {
		return
	}
	fn(&e.snap)
	e.snap.LastUpdated = time.Now()
}

// SetPhase records a connection state change. Reaching PhaseRegistered
// clears the failure counter.
func (s *Store) SetPhase(name string, phase Phase, nick string) {
	s.update(name, func(snap *Snapshot) {
		snap.Phase = phase
		if nick != "" {
			snap.Nick = nick
		}
		if phase == PhaseRegistered {
			snap.ConsecutiveFailures = 0
			snap.LastError = nil
		}
	})
}

// RecordFailure keeps the previous data but records err and counts the
// failure. It returns the updated failure count.
func (s *Store) RecordFailure(name string, err error) int {
	failures := 0
	s.update(name, func(snap *Snapshot) {
		snap.Phase = PhaseDisconnected
		snap.LastError = err
		snap.ConsecutiveFailures++
		failures = snap.ConsecutiveFailures
	})
	return failures
}

// QueryStarted and QueryFinished track requests in progress.
func (s *Store) QueryStarted(name string) {
	s.update(name, func(snap *Snapshot) { snap.ActiveQueries++ })
}

func (s *Store) QueryFinished(name string) {
	s.update(name, func(snap *Snapshot) {
		if snap.ActiveQueries > 0 {
			snap.ActiveQueries--
		}
		snap.QueriesServed++
	})
}

// Instance returns a copy of one instance's snapshot.
func (s *Store) Instance(name string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.instances[name]
	if !ok {
		return Snapshot{}, false
	}
	return e.clone(), true
}

// Snapshot returns copies of every instance, sorted by name.
func (s *Store) Snapshot() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Snapshot, 0, len(s.instances))
	for _, e := range s.instances {
		out = append(out, e.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (e *entry) clone() Snapshot {
	snap := e.snap
	if e.status != nil {
		snap.Listing = e.status()
	}
	if e.snap.LastError != nil {
		snap.LastError = fmt.Errorf("%w", e.snap.LastError)
	}
	return snap
}
