package hooking

import (
	"context"
	"runtime"
)

// RawEvent is one execution step as reported by instrumented code, before any
// filtering.
type RawEvent struct {
	Kind Kind

	// Path is the source file of the step. It is empty for steps without
	// source, such as native calls.
	Path string

	// Line is the 1-based source line, 0 when unknown.
	Line int

	// DefinedType is the type that defines the method, empty for plain
	// functions.
	DefinedType string

	// Method is the name of the function or method.
	Method string

	// Frame is the live frame of the step. It is only valid while the
	// emitting call is in progress and may be nil.
	Frame Frame

	// Ctx is the context of the instrumented code, used to route the step to
	// the trace session that owns it. It may be nil.
	Ctx context.Context
}

// HasSource returns true if the event carries a source location.
func (e RawEvent) HasSource() bool {
	return e.Path != ""
}

// Frame is a live view of a call frame provided by the instrumented code.
type Frame interface {
	// Callers returns the caller chain, innermost first.
	Callers() []runtime.Frame

	// Self returns the receiver of the method, nil for plain functions.
	Self() any

	// Locals returns the local variables that the frame exposes.
	Locals() map[string]any

	// Method returns the name of the function that owns the frame.
	Method() string

	// DefinitionLocation returns where the owning function is defined.
	DefinitionLocation() (path string, line int, ok bool)
}

type sessionKey struct{}

// WithSession marks ctx as belonging to the trace session id, in addition to
// the sessions ctx already belongs to.
func WithSession(ctx context.Context, id string) context.Context {
	parent := sessionsOf(ctx)

	sessions := make([]string, len(parent), len(parent)+1)
	copy(sessions, parent)
	sessions = append(sessions, id)

	return context.WithValue(ctx, sessionKey{}, sessions)
}

// SessionOf returns the innermost trace session that ctx belongs to.
func SessionOf(ctx context.Context) (string, bool) {
	sessions := sessionsOf(ctx)
	if len(sessions) == 0 {
		return "", false
	}

	return sessions[len(sessions)-1], true
}

// InSession returns true if ctx belongs to the trace session id.
func InSession(ctx context.Context, id string) bool {
	for _, s := range sessionsOf(ctx) {
		if s == id {
			return true
		}
	}

	return false
}

func sessionsOf(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}

	sessions, _ := ctx.Value(sessionKey{}).([]string)

	return sessions
}
