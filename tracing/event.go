package tracing

import (
	"fmt"
	"strings"
	"time"

	"github.com/sarchlab/introspector/hooking"
	"github.com/sarchlab/introspector/idgen"
)

// Kind is the kind of an execution step.
type Kind = hooking.Kind

// An Event is one observed execution step that passed the trace scope.
type Event struct {
	// Path is the source file, nil for steps without source.
	Path *string `json:"path"`

	// Line is the 1-based source line, nil for steps without source.
	Line *int `json:"line_number"`

	// DefinedType is the type that defines the method.
	DefinedType string `json:"defined_type"`

	// Method is the function or method name.
	Method string `json:"method_name"`

	Kind Kind `json:"event"`

	// Timestamp has no monotonic reading. A JSON round trip keeps the
	// instant and the UTC offset, not the zone name.
	Timestamp time.Time `json:"timestamp"`

	// SequenceID orders events across the whole process.
	SequenceID idgen.ID `json:"sequence_id"`

	// Source is the source line text, set when the tracer reads sources.
	Source string `json:"source,omitempty"`

	trace *Trace
}

// Trace returns the trace that owns the event.
func (e *Event) Trace() *Trace {
	return e.trace
}

// Snapshot returns the frame snapshot captured with the event, nil if none
// was captured or it has been released.
func (e *Event) Snapshot() *Snapshot {
	if e.trace == nil {
		return nil
	}

	return e.trace.Snapshot(e)
}

// Location returns the source location of the event.
func (e *Event) Location() (Location, bool) {
	if e.Path == nil {
		return Location{}, false
	}

	l := Location{Path: *e.Path}
	if e.Line != nil {
		l.Line = *e.Line
	}

	return l, true
}

func (e *Event) String() string {
	var b strings.Builder

	if e.Path != nil {
		b.WriteString(*e.Path)
	}

	b.WriteString(":")

	if e.Line != nil {
		fmt.Fprintf(&b, "%d", *e.Line)
	}

	fmt.Fprintf(&b, " %s#%s %s", e.DefinedType, e.Method, e.Kind)

	return b.String()
}

// Location is a position in a source file.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.Path, l.Line)
}
