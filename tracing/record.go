package tracing

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/sarchlab/introspector/datarecording"
	"github.com/sarchlab/introspector/hooking"
	"github.com/sarchlab/introspector/idgen"
)

// EventTable is the table that Record writes trace events to.
const EventTable = "trace_events"

type eventEntry struct {
	TraceID     string
	SequenceID  uint64
	Timestamp   int64
	Kind        string
	Path        string
	Line        int
	DefinedType string
	Method      string
	Source      string
}

// Record writes the events of a trace into a recorder. Missing paths and
// lines are stored as empty strings and zeros.
func Record(trace *Trace, recorder datarecording.DataRecorder) {
	recorder.CreateTable(EventTable, eventEntry{})

	for _, e := range trace.Points() {
		entry := eventEntry{
			TraceID:     trace.ID,
			SequenceID:  uint64(e.SequenceID),
			Timestamp:   e.Timestamp.UnixNano(),
			Kind:        e.Kind.String(),
			DefinedType: e.DefinedType,
			Method:      e.Method,
			Source:      e.Source,
		}

		if e.Path != nil {
			entry.Path = *e.Path
		}

		if e.Line != nil {
			entry.Line = *e.Line
		}

		recorder.InsertData(EventTable, entry)
	}

	recorder.Flush()
}

func (entry *eventEntry) event() (*Event, error) {
	kind, err := hooking.ParseKind(entry.Kind)
	if err != nil {
		return nil, errors.Wrapf(err, "event %d", entry.SequenceID)
	}

	e := &Event{
		DefinedType: entry.DefinedType,
		Method:      entry.Method,
		Kind:        kind,
		Timestamp:   time.Unix(0, entry.Timestamp),
		SequenceID:  idgen.ID(entry.SequenceID),
		Source:      entry.Source,
	}

	if entry.Path != "" {
		path := entry.Path
		e.Path = &path
	}

	if entry.Line > 0 {
		line := entry.Line
		e.Line = &line
	}

	return e, nil
}

// LoadTraces rebuilds the traces recorded by Record, ordered by their first
// event. Events come back without snapshots and with local timestamps.
func LoadTraces(
	ctx context.Context,
	reader datarecording.DataReader,
) ([]*Trace, error) {
	return loadTraces(ctx, reader, datarecording.Selection{
		OrderBy: "SequenceID",
	})
}

// LoadTrace rebuilds one recorded trace.
func LoadTrace(
	ctx context.Context,
	reader datarecording.DataReader,
	traceID string,
) (*Trace, error) {
	traces, err := loadTraces(ctx, reader, datarecording.Selection{
		Where:   "TraceID = ?",
		Args:    []any{traceID},
		OrderBy: "SequenceID",
	})
	if err != nil {
		return nil, err
	}

	if len(traces) == 0 {
		return nil, errors.Errorf("trace %s is not recorded", traceID)
	}

	return traces[0], nil
}

func loadTraces(
	ctx context.Context,
	reader datarecording.DataReader,
	sel datarecording.Selection,
) ([]*Trace, error) {
	reader.MapTable(EventTable, eventEntry{})

	rows, err := reader.Query(ctx, EventTable, sel)
	if err != nil {
		return nil, err
	}

	traces := []*Trace{}
	byID := map[string]*Trace{}

	for _, row := range rows {
		entry := row.(*eventEntry)

		e, err := entry.event()
		if err != nil {
			return nil, err
		}

		t, ok := byID[entry.TraceID]
		if !ok {
			t = NewTrace(entry.TraceID, nil, false)
			byID[entry.TraceID] = t
			traces = append(traces, t)
		}

		t.append(e, nil)
	}

	return traces, nil
}
