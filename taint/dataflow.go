// Package taint detects where a marker value injected into the input of a
// unit of work reaches the arguments of instrumented call sites.
package taint

import (
	"encoding/json"
	"fmt"

	"github.com/sarchlab/introspector/scope"
)

// Location is a position in a source file.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.Path, l.Line)
}

// A Sink is a call of an instrumented site that received the taint marker.
type Sink struct {
	Object               string    `json:"object"`
	MethodName           string    `json:"method_name"`
	Arguments            []string  `json:"arguments"`
	TaintedArgumentIndex int       `json:"tainted_argument_index"`
	TaintedValue         string    `json:"tainted_value"`
	Backtrace            []string  `json:"backtrace"`
	MethodSourceLocation *Location `json:"method_source_location,omitempty"`

	flow *DataFlow
}

// DataFlow returns the data flow that owns the sink.
func (s *Sink) DataFlow() *DataFlow {
	return s.flow
}

func (s *Sink) String() string {
	return fmt.Sprintf("%s#%s[%d] %q", s.Object, s.MethodName,
		s.TaintedArgumentIndex, s.TaintedValue)
}

// A DataFlow is the list of sinks found for one unit of work, in the order
// they were found.
type DataFlow struct {
	Scope *scope.Scope
	Sinks []*Sink
}

// NewDataFlow creates an empty data flow. A nil scope is the empty scope.
func NewDataFlow(s *scope.Scope) *DataFlow {
	if s == nil {
		s = scope.Empty()
	}

	return &DataFlow{Scope: s, Sinks: []*Sink{}}
}

func (f *DataFlow) add(s *Sink) {
	s.flow = f
	f.Sinks = append(f.Sinks, s)
}

type dataFlowData struct {
	Sinks []*Sink `json:"sinks"`
}

// MarshalJSON serializes the sinks. The scope is not serialized.
func (f *DataFlow) MarshalJSON() ([]byte, error) {
	sinks := f.Sinks
	if sinks == nil {
		sinks = []*Sink{}
	}

	return json.Marshal(dataFlowData{Sinks: sinks})
}

// UnmarshalJSON restores the sinks and attaches them to the data flow.
func (f *DataFlow) UnmarshalJSON(data []byte) error {
	d := dataFlowData{}
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}

	if f.Scope == nil {
		f.Scope = scope.Empty()
	}

	f.Sinks = []*Sink{}
	for _, s := range d.Sinks {
		f.add(s)
	}

	return nil
}
