package taint

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/sarchlab/introspector/datarecording"
	"github.com/sarchlab/introspector/scope"
)

// SinkTable is the table that Record writes sinks to.
const SinkTable = "taint_sinks"

type sinkEntry struct {
	FlowKey              string
	Object               string
	MethodName           string
	Arguments            string
	TaintedArgumentIndex int
	TaintedValue         string
	Backtrace            string
	SourcePath           string
	SourceLine           int
}

// Record writes the sinks of a data flow into a recorder under key, the
// unit of work the flow belongs to. Arguments and backtrace frames are
// stored as JSON arrays.
func Record(key string, flow *DataFlow, recorder datarecording.DataRecorder) {
	recorder.CreateTable(SinkTable, sinkEntry{})

	for _, s := range flow.Sinks {
		entry := sinkEntry{
			FlowKey:              key,
			Object:               s.Object,
			MethodName:           s.MethodName,
			Arguments:            mustMarshal(s.Arguments),
			TaintedArgumentIndex: s.TaintedArgumentIndex,
			TaintedValue:         s.TaintedValue,
			Backtrace:            mustMarshal(s.Backtrace),
		}

		if s.MethodSourceLocation != nil {
			entry.SourcePath = s.MethodSourceLocation.Path
			entry.SourceLine = s.MethodSourceLocation.Line
		}

		recorder.InsertData(SinkTable, entry)
	}

	recorder.Flush()
}

func mustMarshal(values []string) string {
	if values == nil {
		values = []string{}
	}

	data, err := json.Marshal(values)
	if err != nil {
		panic(err)
	}

	return string(data)
}

// Load rebuilds the data flow recorded under key. The flow gets scope s.
func Load(
	ctx context.Context,
	reader datarecording.DataReader,
	key string,
	s *scope.Scope,
) (*DataFlow, error) {
	reader.MapTable(SinkTable, sinkEntry{})

	rows, err := reader.Query(ctx, SinkTable, datarecording.Selection{
		Where:   "FlowKey = ?",
		Args:    []any{key},
		OrderBy: "rowid",
	})
	if err != nil {
		return nil, err
	}

	flow := NewDataFlow(s)

	for _, row := range rows {
		entry := row.(*sinkEntry)

		sink := &Sink{
			Object:               entry.Object,
			MethodName:           entry.MethodName,
			TaintedArgumentIndex: entry.TaintedArgumentIndex,
			TaintedValue:         entry.TaintedValue,
		}

		if err := json.Unmarshal([]byte(entry.Arguments), &sink.Arguments); err != nil {
			return nil, errors.Wrapf(err, "arguments of %s", sink)
		}

		if err := json.Unmarshal([]byte(entry.Backtrace), &sink.Backtrace); err != nil {
			return nil, errors.Wrapf(err, "backtrace of %s", sink)
		}

		if entry.SourcePath != "" {
			sink.MethodSourceLocation = &Location{
				Path: entry.SourcePath,
				Line: entry.SourceLine,
			}
		}

		flow.add(sink)
	}

	return flow, nil
}
