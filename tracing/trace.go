package tracing

import (
	"encoding/json"
	"sync"

	"github.com/sarchlab/introspector/hooking"
	"github.com/sarchlab/introspector/idgen"
	"github.com/sarchlab/introspector/scope"
)

// A Trace is the ordered list of events observed while running one unit of
// work. It owns the frame snapshots of its events until Release is called.
type Trace struct {
	// ID identifies the trace session.
	ID string

	// Scope is the scope the events were filtered with. It is not
	// serialized.
	Scope *scope.Scope

	// CaptureContext tells whether frame snapshots were captured.
	CaptureContext bool

	lock      sync.RWMutex
	points    []*Event
	snapshots map[idgen.ID]*Snapshot
}

// NewTrace creates an empty trace.
func NewTrace(id string, s *scope.Scope, captureContext bool) *Trace {
	if s == nil {
		s = scope.Empty()
	}

	return &Trace{
		ID:             id,
		Scope:          s,
		CaptureContext: captureContext,
		snapshots:      make(map[idgen.ID]*Snapshot),
	}
}

// Points returns the events in the order they were observed.
func (t *Trace) Points() []*Event {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return append([]*Event(nil), t.points...)
}

// Len returns the number of events.
func (t *Trace) Len() int {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return len(t.points)
}

// Snapshot returns the frame snapshot of an event of the trace.
func (t *Trace) Snapshot(e *Event) *Snapshot {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return t.snapshots[e.SequenceID]
}

// Release drops the frame snapshots. Events stay available.
func (t *Trace) Release() {
	t.lock.Lock()
	defer t.lock.Unlock()

	for id, s := range t.snapshots {
		s.release()
		delete(t.snapshots, id)
	}
}

func (t *Trace) append(e *Event, frame hooking.Frame) {
	t.lock.Lock()
	defer t.lock.Unlock()

	e.trace = t
	t.points = append(t.points, e)

	if !t.CaptureContext || frame == nil {
		return
	}

	if _, ok := t.snapshots[e.SequenceID]; !ok {
		t.snapshots[e.SequenceID] = newSnapshot(e.SequenceID, frame)
	}
}

type traceData struct {
	ID             string   `json:"id"`
	CaptureContext bool     `json:"capture_context"`
	Points         []*Event `json:"points"`
}

// MarshalJSON serializes the trace without scope and frame snapshots.
func (t *Trace) MarshalJSON() ([]byte, error) {
	points := t.Points()
	if points == nil {
		points = []*Event{}
	}

	return json.Marshal(traceData{
		ID:             t.ID,
		CaptureContext: t.CaptureContext,
		Points:         points,
	})
}

// UnmarshalJSON restores a serialized trace. The events point back to the
// restored trace; no snapshot is available.
func (t *Trace) UnmarshalJSON(data []byte) error {
	d := traceData{}
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	t.ID = d.ID
	t.CaptureContext = d.CaptureContext
	t.points = d.Points
	t.snapshots = make(map[idgen.ID]*Snapshot)

	if t.Scope == nil {
		t.Scope = scope.Empty()
	}

	for _, p := range t.points {
		p.trace = t
	}

	return nil
}
