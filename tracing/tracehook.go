package tracing

import (
	"github.com/sarchlab/introspector/hooking"
)

// A traceHook feeds the execution steps of one trace session into the trace.
type traceHook struct {
	tracer *Tracer
	trace  *Trace
}

// accepts lets through the steps of the session and steps reported without a
// session.
func (h *traceHook) accepts(ctx hooking.HookCtx) bool {
	raw, ok := ctx.Item.(hooking.RawEvent)
	if !ok {
		return false
	}

	if _, traced := hooking.SessionOf(raw.Ctx); !traced {
		return true
	}

	return hooking.InSession(raw.Ctx, h.trace.ID)
}

// Func records the step carried by the hook context.
func (h *traceHook) Func(ctx hooking.HookCtx) {
	raw, ok := ctx.Item.(hooking.RawEvent)
	if !ok {
		return
	}

	h.tracer.record(h.trace, raw)
}
