// Package probe lets instrumented code report its execution steps to a
// hooking.Dispatcher. Steps are located at the code that calls the probe.
//
//	func (a *Account) Deposit(ctx context.Context, amount int) {
//		defer probe.Enter(ctx, probe.WithSelf(a), probe.WithLocal("amount", amount))()
//
//		probe.Line(ctx)
//		a.balance += amount
//	}
package probe

import (
	"context"
	"runtime"
	"strings"

	"github.com/sarchlab/introspector/hooking"
)

const maxCallers = 64

// emitterFile is the file holding the emitters. An inlined emitter keeps its
// file but takes the name of the function it is inlined into, so frames are
// told apart by file as well as by name.
var emitterFile = func() string {
	_, file, _, _ := runtime.Caller(0)
	return file
}()

type report struct {
	dispatcher  *hooking.Dispatcher
	self        any
	locals      map[string]any
	definedType string
	method      string
}

// An Option adds information to a reported step.
type Option func(r *report)

// WithDispatcher reports to d instead of hooking.Default.
func WithDispatcher(d *hooking.Dispatcher) Option {
	return func(r *report) { r.dispatcher = d }
}

// WithSelf sets the receiver of the reporting method.
func WithSelf(self any) Option {
	return func(r *report) { r.self = self }
}

// WithLocal exposes a local variable.
func WithLocal(name string, value any) Option {
	return func(r *report) {
		if r.locals == nil {
			r.locals = map[string]any{}
		}

		r.locals[name] = value
	}
}

// WithType overrides the type that defines the method.
func WithType(name string) Option {
	return func(r *report) { r.definedType = name }
}

// WithMethod overrides the method name.
func WithMethod(name string) Option {
	return func(r *report) { r.method = name }
}

// Call reports that the calling function has been entered.
func Call(ctx context.Context, opts ...Option) {
	emit(ctx, hooking.KindCall, true, opts)
}

// Return reports that the calling function is about to return.
func Return(ctx context.Context, opts ...Option) {
	emit(ctx, hooking.KindReturn, true, opts)
}

// Line reports that the calling line is about to run.
func Line(ctx context.Context, opts ...Option) {
	emit(ctx, hooking.KindLine, true, opts)
}

// BlockCall reports that the calling closure has been entered.
func BlockCall(ctx context.Context, opts ...Option) {
	emit(ctx, hooking.KindBlockCall, true, opts)
}

// BlockReturn reports that the calling closure is about to return.
func BlockReturn(ctx context.Context, opts ...Option) {
	emit(ctx, hooking.KindBlockReturn, true, opts)
}

// NativeCall reports a call into code without source, such as a builtin or
// a cgo function. The step has no location and no frame.
func NativeCall(ctx context.Context, name string, opts ...Option) {
	emit(ctx, hooking.KindNativeCall, false, append(opts, WithMethod(name)))
}

// NativeReturn reports the return from code without source.
func NativeReturn(ctx context.Context, name string, opts ...Option) {
	emit(ctx, hooking.KindNativeReturn, false, append(opts, WithMethod(name)))
}

// Enter reports a call and returns the function that reports the matching
// return. It is meant to be deferred.
func Enter(ctx context.Context, opts ...Option) func() {
	emit(ctx, hooking.KindCall, true, opts)

	return func() {
		emit(ctx, hooking.KindReturn, true, opts)
	}
}

func emit(ctx context.Context, kind hooking.Kind, located bool, opts []Option) {
	r := report{dispatcher: hooking.Default}
	for _, o := range opts {
		o(&r)
	}

	if r.dispatcher.NumHooks() == 0 {
		return
	}

	callers := callerFrames()
	if len(callers) == 0 {
		return
	}

	site := callers[0]
	definedType, method := splitFuncName(site.Function)

	frame := &Frame{
		method:  method,
		callers: callers,
		self:    r.self,
		locals:  r.locals,
	}

	if site.Func != nil {
		frame.defPath, frame.defLine = site.Func.FileLine(site.Func.Entry())
		frame.defOK = frame.defPath != ""
	}

	raw := hooking.RawEvent{
		Kind:        kind,
		DefinedType: definedType,
		Method:      method,
		Frame:       frame,
		Ctx:         ctx,
	}

	if located {
		raw.Path = site.File
		raw.Line = site.Line
	} else {
		raw.Frame = nil
	}

	if r.definedType != "" {
		raw.DefinedType = r.definedType
	}

	if r.method != "" {
		raw.Method = r.method
	}

	r.dispatcher.Emit(raw)
}

// callerFrames returns the frames above the probe package, innermost first.
// Runtime frames, as seen in deferred calls, are skipped.
func callerFrames() []runtime.Frame {
	pcs := make([]uintptr, maxCallers)
	n := runtime.Callers(3, pcs)

	frames := runtime.CallersFrames(pcs[:n])
	callers := make([]runtime.Frame, 0, n)

	for {
		f, more := frames.Next()
		if !isInternal(f) {
			callers = append(callers, f)
		}

		if !more {
			break
		}
	}

	return callers
}

func isInternal(f runtime.Frame) bool {
	return f.File == emitterFile ||
		strings.HasPrefix(f.Function, "runtime.") ||
		strings.HasPrefix(f.Function, "github.com/sarchlab/introspector/probe.")
}
