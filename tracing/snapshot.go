package tracing

import (
	"fmt"
	"io"
	"reflect"
	"runtime"
	"sync"
	"unsafe"

	"github.com/expr-lang/expr"
	"github.com/pkg/errors"
	"github.com/syifan/goseth"

	"github.com/sarchlab/introspector/hooking"
	"github.com/sarchlab/introspector/idgen"
)

// ErrContextUnavailable is returned by Snapshot.Evaluate when the snapshot has
// no live frame, as for native steps or after the trace is released.
var ErrContextUnavailable = errors.New("captured context unavailable")

// A Snapshot is a point-in-time view of the call frame of an event. The caller
// chain is copied when the snapshot is created; every other query goes to the
// live frame and returns an empty result once the frame is gone.
type Snapshot struct {
	ownerEventID idgen.ID
	callers      []runtime.Frame

	lock  sync.RWMutex
	frame hooking.Frame
}

func newSnapshot(owner idgen.ID, frame hooking.Frame) *Snapshot {
	s := &Snapshot{
		ownerEventID: owner,
		frame:        frame,
	}

	if frame != nil {
		s.callers = append([]runtime.Frame(nil), frame.Callers()...)
	}

	return s
}

// OwnerEventID returns the sequence ID of the event the snapshot belongs to.
func (s *Snapshot) OwnerEventID() idgen.ID {
	return s.ownerEventID
}

// Available returns true while the live frame can be queried.
func (s *Snapshot) Available() bool {
	return s.liveFrame() != nil
}

func (s *Snapshot) liveFrame() hooking.Frame {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.frame
}

func (s *Snapshot) release() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.frame = nil
}

// Callers returns the caller chain as it was when the snapshot was taken,
// innermost first.
func (s *Snapshot) Callers() []runtime.Frame {
	return append([]runtime.Frame(nil), s.callers...)
}

// Self returns the receiver of the frame.
func (s *Snapshot) Self() any {
	f := s.liveFrame()
	if f == nil {
		return nil
	}

	return f.Self()
}

// LocalVariables returns the local variables of the frame.
func (s *Snapshot) LocalVariables() map[string]any {
	locals := map[string]any{}

	f := s.liveFrame()
	if f == nil {
		return locals
	}

	for k, v := range f.Locals() {
		locals[k] = v
	}

	return locals
}

// InstanceVariables returns the fields of the frame receiver, unexported ones
// included.
func (s *Snapshot) InstanceVariables() map[string]any {
	vars := map[string]any{}

	v := reflect.ValueOf(s.Self())
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return vars
		}

		v = v.Elem()
	}

	if !v.IsValid() || v.Kind() != reflect.Struct {
		return vars
	}

	if !v.CanAddr() {
		c := reflect.New(v.Type()).Elem()
		c.Set(v)
		v = c
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if t.Field(i).IsExported() {
			vars[t.Field(i).Name] = field.Interface()
			continue
		}

		vars[t.Field(i).Name] = reflect.NewAt(
			field.Type(),
			unsafe.Pointer(field.UnsafeAddr()),
		).Elem().Interface()
	}

	return vars
}

// ContainingMethod returns the name of the function that owns the frame.
func (s *Snapshot) ContainingMethod() (string, bool) {
	f := s.liveFrame()
	if f == nil {
		return "", false
	}

	m := f.Method()

	return m, m != ""
}

// MethodDefinitionLocation returns where the owning function is defined.
func (s *Snapshot) MethodDefinitionLocation() (Location, bool) {
	f := s.liveFrame()
	if f == nil {
		return Location{}, false
	}

	path, line, ok := f.DefinitionLocation()
	if !ok {
		return Location{}, false
	}

	return Location{Path: path, Line: line}, true
}

// Evaluate evaluates an expression against the frame. The local variables
// are in scope by name and the receiver is available as "self".
func (s *Snapshot) Evaluate(expression string) (any, error) {
	f := s.liveFrame()
	if f == nil {
		return nil, ErrContextUnavailable
	}

	env := s.LocalVariables()
	env["self"] = f.Self()

	out, err := expr.Eval(expression, env)
	if err != nil {
		return nil, errors.Wrapf(err, "evaluating %q", expression)
	}

	return out, nil
}

// DumpSelf writes the frame receiver as JSON, following fields up to
// maxDepth levels.
func (s *Snapshot) DumpSelf(w io.Writer, maxDepth int) error {
	self := s.Self()
	if self == nil {
		_, err := io.WriteString(w, "null")
		return err
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(self)
	serializer.SetMaxDepth(maxDepth)

	return serializer.Serialize(w)
}

func (s *Snapshot) String() string {
	str := fmt.Sprintf("%T", s.Self())

	method, ok := s.ContainingMethod()
	if !ok {
		return str
	}

	str += "#" + method

	loc, ok := s.MethodDefinitionLocation()
	if !ok {
		return str
	}

	return fmt.Sprintf("%s@%s", str, loc)
}
