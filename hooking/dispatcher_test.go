package hooking_test

import (
	"context"
	"encoding/json"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/introspector/hooking"
)

type recordingHook struct {
	lock  sync.Mutex
	items []hooking.RawEvent
}

func (h *recordingHook) Func(ctx hooking.HookCtx) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.items = append(h.items, ctx.Item.(hooking.RawEvent))
}

var _ = Describe("Dispatcher", func() {
	var (
		d    *hooking.Dispatcher
		hook *recordingHook
	)

	BeforeEach(func() {
		d = hooking.NewDispatcher()
		hook = &recordingHook{}
	})

	It("should not invoke anything without subscribers", func() {
		d.Emit(hooking.RawEvent{Kind: hooking.KindLine})

		Expect(d.NumHooks()).To(Equal(0))
	})

	It("should deliver events to subscribed hooks", func() {
		d.Subscribe(nil, hook)

		d.Emit(hooking.RawEvent{Kind: hooking.KindCall, Path: "/a.go", Line: 3, Method: "Run"})

		Expect(hook.items).To(HaveLen(1))
		Expect(hook.items[0].Method).To(Equal("Run"))
	})

	It("should pass the hook position of the kind", func() {
		var pos *hooking.HookPos

		d.Subscribe(nil, hooking.HookFunc(func(ctx hooking.HookCtx) { pos = ctx.Pos }))
		d.Emit(hooking.RawEvent{Kind: hooking.KindNativeReturn})

		Expect(pos).To(BeIdenticalTo(hooking.HookPosNativeReturn))
	})

	It("should filter with the predicate", func() {
		d.Subscribe(func(ctx hooking.HookCtx) bool {
			return ctx.Item.(hooking.RawEvent).Kind == hooking.KindLine
		}, hook)

		d.Emit(hooking.RawEvent{Kind: hooking.KindCall})
		d.Emit(hooking.RawEvent{Kind: hooking.KindLine})
		d.Emit(hooking.RawEvent{Kind: hooking.KindReturn})

		Expect(hook.items).To(HaveLen(1))
		Expect(hook.items[0].Kind).To(Equal(hooking.KindLine))
	})

	It("should stop delivering after unsubscribe", func() {
		sub := d.Subscribe(nil, hook)

		d.Emit(hooking.RawEvent{Kind: hooking.KindLine})
		d.Unsubscribe(sub)
		d.Emit(hooking.RawEvent{Kind: hooking.KindLine})

		Expect(hook.items).To(HaveLen(1))
		Expect(d.NumHooks()).To(Equal(0))
	})

	It("should panic on duplicated hooks", func() {
		d.AcceptHook(hook)

		Expect(func() { d.AcceptHook(hook) }).To(Panic())
	})

	It("should accept function hooks more than once", func() {
		f := hooking.HookFunc(func(hooking.HookCtx) {})

		d.AcceptHook(f)
		d.AcceptHook(f)

		Expect(d.Hooks()).To(HaveLen(2))
	})

	It("should be safe to subscribe while emitting", func() {
		var wg sync.WaitGroup

		for i := 0; i < 8; i++ {
			wg.Add(2)

			go func() {
				defer wg.Done()

				sub := d.Subscribe(nil, hooking.HookFunc(func(hooking.HookCtx) {}))
				d.Unsubscribe(sub)
			}()

			go func() {
				defer wg.Done()

				d.Emit(hooking.RawEvent{Kind: hooking.KindLine})
			}()
		}

		wg.Wait()

		Expect(d.NumHooks()).To(Equal(0))
	})
})

var _ = Describe("Default dispatcher", func() {
	It("should be shared by the process", func() {
		Expect(hooking.Default).NotTo(BeNil())

		var o hooking.Observer = hooking.Default
		sub := o.Subscribe(nil, hooking.HookFunc(func(hooking.HookCtx) {}))
		defer o.Unsubscribe(sub)

		Expect(hooking.Default.NumHooks()).To(BeNumerically(">=", 1))
	})
})

var _ = Describe("Kind", func() {
	It("should marshal to the event name", func() {
		data, err := json.Marshal(map[string]hooking.Kind{"k": hooking.KindBlockCall})

		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"k":"b_call"}`))
	})

	It("should unmarshal from the event name", func() {
		var k hooking.Kind

		Expect(k.UnmarshalText([]byte("c_call"))).To(Succeed())
		Expect(k).To(Equal(hooking.KindNativeCall))
		Expect(k.UnmarshalText([]byte("jump"))).NotTo(Succeed())
	})
})

var _ = Describe("Session", func() {
	It("should round trip through the context", func() {
		ctx := hooking.WithSession(context.Background(), "abc")

		id, ok := hooking.SessionOf(ctx)

		Expect(ok).To(BeTrue())
		Expect(id).To(Equal("abc"))
	})

	It("should report no session for a nil context", func() {
		_, ok := hooking.SessionOf(nil)

		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Nested sessions", func() {
	It("should belong to every enclosing session", func() {
		outer := hooking.WithSession(context.Background(), "outer")
		inner := hooking.WithSession(outer, "inner")

		id, _ := hooking.SessionOf(inner)

		Expect(id).To(Equal("inner"))
		Expect(hooking.InSession(inner, "outer")).To(BeTrue())
		Expect(hooking.InSession(outer, "inner")).To(BeFalse())
	})
})
