package probe

import (
	"runtime"

	"github.com/sarchlab/introspector/hooking"
)

// Frame is the frame view reported with each step. The caller chain and the
// definition site are read when the step is reported; the receiver and the
// locals are the values passed with WithSelf and WithLocal.
type Frame struct {
	method  string
	callers []runtime.Frame
	self    any
	locals  map[string]any

	defPath string
	defLine int
	defOK   bool
}

// Callers returns the caller chain, innermost first.
func (f *Frame) Callers() []runtime.Frame {
	return f.callers
}

// Self returns the receiver given with WithSelf.
func (f *Frame) Self() any {
	return f.self
}

// Locals returns the variables given with WithLocal.
func (f *Frame) Locals() map[string]any {
	return f.locals
}

// Method returns the name of the function that reported the step.
func (f *Frame) Method() string {
	return f.method
}

// DefinitionLocation returns the entry location of the function.
func (f *Frame) DefinitionLocation() (string, int, bool) {
	return f.defPath, f.defLine, f.defOK
}

var _ hooking.Frame = (*Frame)(nil)
