package hooking

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Predicate decides whether a subscribed hook should see a hook context.
type Predicate func(ctx HookCtx) bool

// Subscription identifies a hook registered with Subscribe.
type Subscription uint64

// Observer lets consumers subscribe to execution steps.
type Observer interface {
	// Subscribe registers a hook that is invoked for every hook context the
	// predicate accepts. A nil predicate accepts everything.
	Subscribe(predicate Predicate, hook Hook) Subscription

	// Unsubscribe removes a subscription. Removing an unknown subscription
	// does nothing.
	Unsubscribe(sub Subscription)
}

type subscriber struct {
	id        Subscription
	predicate Predicate
	hook      Hook
}

// A Dispatcher is a Hookable and Observer that can be used from many
// goroutines. Invocations read an immutable snapshot of the subscribers, so
// subscribing and unsubscribing never block a running hook.
type Dispatcher struct {
	lock        sync.Mutex
	nextID      Subscription
	subscribers atomic.Pointer[[]subscriber]
}

// Default is the process-wide dispatcher that the probe package reports to.
var Default = NewDispatcher()

// NewDispatcher creates a Dispatcher without subscribers.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{}
	d.subscribers.Store(&[]subscriber{})

	return d
}

// Subscribe registers a hook.
func (d *Dispatcher) Subscribe(predicate Predicate, hook Hook) Subscription {
	if hook == nil {
		panic("hook must not be nil")
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	d.nextID++
	id := d.nextID

	current := *d.subscribers.Load()
	next := make([]subscriber, len(current), len(current)+1)
	copy(next, current)
	next = append(next, subscriber{id: id, predicate: predicate, hook: hook})
	d.subscribers.Store(&next)

	return id
}

// Unsubscribe removes a subscription.
func (d *Dispatcher) Unsubscribe(sub Subscription) {
	d.lock.Lock()
	defer d.lock.Unlock()

	current := *d.subscribers.Load()
	next := make([]subscriber, 0, len(current))

	for _, s := range current {
		if s.id != sub {
			next = append(next, s)
		}
	}

	d.subscribers.Store(&next)
}

// AcceptHook registers a hook without predicate. A hook can only be accepted
// once.
func (d *Dispatcher) AcceptHook(hook Hook) {
	d.mustNotHaveDuplicatedHook(hook)
	d.Subscribe(nil, hook)
}

func (d *Dispatcher) mustNotHaveDuplicatedHook(hook Hook) {
	if hook == nil || !reflect.TypeOf(hook).Comparable() {
		return
	}

	for _, s := range *d.subscribers.Load() {
		if reflect.TypeOf(s.hook) == reflect.TypeOf(hook) && s.hook == hook {
			panic("duplicated hook")
		}
	}
}

// NumHooks returns the number of hooks registered.
func (d *Dispatcher) NumHooks() int {
	return len(*d.subscribers.Load())
}

// Hooks returns all the hooks registered.
func (d *Dispatcher) Hooks() []Hook {
	current := *d.subscribers.Load()

	hooks := make([]Hook, 0, len(current))
	for _, s := range current {
		hooks = append(hooks, s.hook)
	}

	return hooks
}

// InvokeHook triggers the registered hooks whose predicate accepts ctx.
func (d *Dispatcher) InvokeHook(ctx HookCtx) {
	for _, s := range *d.subscribers.Load() {
		if s.predicate != nil && !s.predicate(ctx) {
			continue
		}

		s.hook.Func(ctx)
	}
}

// Emit reports an execution step to the subscribers.
func (d *Dispatcher) Emit(e RawEvent) {
	if d.NumHooks() == 0 {
		return
	}

	d.InvokeHook(HookCtx{
		Domain: d,
		Pos:    e.Kind.Pos(),
		Item:   e,
	})
}

var (
	_ Hookable = (*Dispatcher)(nil)
	_ Observer = (*Dispatcher)(nil)
)
