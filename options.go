// Package introspector traces the execution of units of work, aggregates
// line coverage and tracks where marked input reaches instrumented calls.
package introspector

import (
	"context"

	"github.com/sarchlab/introspector/scope"
	"github.com/sarchlab/introspector/tracing"
)

// Options are the audit options of a traced unit of work.
type Options struct {
	// Scope is anything scope.New accepts: a *scope.Scope, a scope.Config,
	// a configuration map or nil.
	Scope any

	// CaptureContext makes every event carry a frame snapshot.
	CaptureContext bool
}

// RunTraced runs block under a new tracer and returns the steps it
// executed. A malformed scope is reported before block runs.
func RunTraced(
	ctx context.Context,
	options Options,
	block func(ctx context.Context) error,
) (*tracing.Trace, error) {
	s, err := scope.New(options.Scope)
	if err != nil {
		return nil, err
	}

	tracer := tracing.NewTracer(
		tracing.WithScope(s),
		tracing.WithCaptureContext(options.CaptureContext),
	)

	return tracer.Trace(ctx, block)
}
