// Package monitor keeps track of running stream managers so their state can be
// inspected and stopped from outside the goroutines that own them.
package monitor

import (
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/compose-network/streams/x/stream"
)

// ErrNotFound is returned for an unknown manager ID.
var ErrNotFound = errors.New("monitor: manager not found")

// Status is a point-in-time view of a tracked manager.
type Status struct {
	ID        string            `json:"id"`
	Direction stream.Direction  `json:"direction"`
	State     string            `json:"state"`
	Records   uint64            `json:"records"`
	StartedAt time.Time         `json:"started_at"`
	ClosedAt  *time.Time        `json:"closed_at,omitempty"`
	ErrorType string            `json:"error_type,omitempty"`
	Error     string            `json:"error,omitempty"`
	Failed    bool              `json:"failed"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// Summary counts tracked managers by outcome.
type Summary struct {
	Running int `json:"running"`
	Closed  int `json:"closed"`
	// Failed counts closed managers whose loop ended for a reason other than Stop
	// or the peer ending the stream.
	Failed int `json:"failed"`
}

type entry struct {
	handle   stream.Handle
	labels   map[string]string
	closedAt time.Time
}

// Tracker records managers and remembers closed ones until they are pruned.
type Tracker struct {
	log zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

func NewTracker(log zerolog.Logger) *Tracker {
	return &Tracker{
		log:     log.With().Str("component", "monitor").Logger(),
		entries: make(map[string]*entry),
	}
}

// Track starts watching h. Labels are reported with its status.
func (t *Tracker) Track(h stream.Handle, labels map[string]string) {
	e := &entry{handle: h, labels: labels}

	t.mu.Lock()
	t.entries[h.ID()] = e
	t.mu.Unlock()

	go func() {
		<-h.Done()
		t.mu.Lock()
		e.closedAt = time.Now()
		t.mu.Unlock()
	}()
}

// Get returns the status of the manager with the given ID.
func (t *Tracker) Get(id string) (Status, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[id]
	if !ok {
		return Status{}, false
	}
	return e.status(), true
}

// Snapshot returns the status of every tracked manager, oldest first.
func (t *Tracker) Snapshot() []Status {
	t.mu.RLock()
	out := make([]Status, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.status())
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Summary counts managers by outcome.
func (t *Tracker) Summary() Summary {
	var s Summary
	for _, st := range t.Snapshot() {
		if st.State != stream.StateClosed.String() {
			s.Running++
			continue
		}
		s.Closed++
		if st.Failed {
			s.Failed++
		}
	}
	return s
}

// Stop requests the manager with the given ID to stop. It does not wait.
func (t *Tracker) Stop(id string) error {
	t.mu.RLock()
	e, ok := t.entries[id]
	t.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	t.log.Info().Str("manager_id", id).Msg("Stopping manager on request")
	e.handle.Stop()
	return nil
}

// StopAll requests every tracked manager to stop.
func (t *Tracker) StopAll() {
	t.mu.RLock()
	handles := make([]stream.Handle, 0, len(t.entries))
	for _, e := range t.entries {
		handles = append(handles, e.handle)
	}
	t.mu.RUnlock()

	for _, h := range handles {
		h.Stop()
	}
}

// Prune forgets managers that closed more than retain ago and returns how many
// were removed.
func (t *Tracker) Prune(retain time.Duration) int {
	cutoff := time.Now().Add(-retain)

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, e := range t.entries {
		if !e.closedAt.IsZero() && !e.closedAt.After(cutoff) {
			delete(t.entries, id)
			removed++
		}
	}
	if removed > 0 {
		t.log.Debug().Int("removed", removed).Msg("Pruned closed managers")
	}
	return removed
}

// Len returns the number of tracked managers.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// status must be called with the tracker lock held.
func (e *entry) status() Status {
	h := e.handle
	st := Status{
		ID:        h.ID(),
		Direction: h.Direction(),
		State:     h.State().String(),
		Records:   h.Records(),
		StartedAt: h.StartedAt(),
		Labels:    e.labels,
	}
	if !e.closedAt.IsZero() {
		closedAt := e.closedAt
		st.ClosedAt = &closedAt
	}
	if err := h.Err(); err != nil {
		st.Error = err.Error()
		if typ, ok := stream.TypeOf(err); ok {
			st.ErrorType = typ.String()
		}
		st.Failed = isFailure(err)
	}
	return st
}

// isFailure reports whether err ended a manager abnormally. Stop and a clean io.EOF
// from the peer are normal exits.
func isFailure(err error) bool {
	return err != nil && !stream.IsCancelled(err) && !errors.Is(err, io.EOF)
}
