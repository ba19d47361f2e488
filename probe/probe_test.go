package probe_test

import (
	"context"
	"path/filepath"
	"runtime"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/introspector/hooking"
	"github.com/sarchlab/introspector/probe"
	"github.com/sarchlab/introspector/scope"
	"github.com/sarchlab/introspector/tracing"
)

type account struct {
	balance int
}

func (a *account) deposit(ctx context.Context, d *hooking.Dispatcher, amount int) int {
	defer probe.Enter(ctx,
		probe.WithDispatcher(d),
		probe.WithSelf(a),
		probe.WithLocal("amount", amount),
	)()

	probe.Line(ctx, probe.WithDispatcher(d))
	_, _, line, _ := runtime.Caller(0)
	a.balance += amount

	return line - 1
}

func measure(ctx context.Context, d *hooking.Dispatcher, s string) int {
	probe.NativeCall(ctx, "len", probe.WithDispatcher(d))
	n := len(s)
	probe.NativeReturn(ctx, "len", probe.WithDispatcher(d))

	return n
}

var _ = Describe("Probe", func() {
	var (
		dispatcher *hooking.Dispatcher
		events     []hooking.RawEvent
	)

	BeforeEach(func() {
		dispatcher = hooking.NewDispatcher()
		events = nil

		dispatcher.Subscribe(nil, hooking.HookFunc(func(ctx hooking.HookCtx) {
			events = append(events, ctx.Item.(hooking.RawEvent))
		}))
	})

	It("should report call, line and return of a method", func() {
		a := &account{}
		ctx := hooking.WithSession(context.Background(), "s1")

		line := a.deposit(ctx, dispatcher, 5)

		Expect(events).To(HaveLen(3))
		Expect(events[0].Kind).To(Equal(hooking.KindCall))
		Expect(events[1].Kind).To(Equal(hooking.KindLine))
		Expect(events[2].Kind).To(Equal(hooking.KindReturn))

		for _, e := range events {
			Expect(filepath.Base(e.Path)).To(Equal("probe_test.go"))
			Expect(e.DefinedType).To(Equal("account"))
			Expect(e.Method).To(Equal("deposit"))
			Expect(hooking.InSession(e.Ctx, "s1")).To(BeTrue())
		}

		Expect(events[1].Line).To(Equal(line))
	})

	It("should locate a deferred return at the returning method", func() {
		a := &account{}
		a.deposit(context.Background(), dispatcher, 5)

		Expect(events).To(HaveLen(3))

		ret := events[2]
		Expect(ret.Kind).To(Equal(hooking.KindReturn))
		Expect(filepath.Base(ret.Path)).To(Equal("probe_test.go"))
		Expect(ret.Frame.Callers()[0].Function).To(HaveSuffix("(*account).deposit"))
	})

	It("should keep deferred returns in a scope on the caller file", func() {
		tracer := tracing.NewTracer(
			tracing.WithObserver(dispatcher),
			tracing.WithScope(scope.MustNew(map[string]any{
				scope.OptionPathEndWith: "probe_test.go",
			})),
		)

		a := &account{}
		trace, err := tracer.Trace(context.Background(),
			func(ctx context.Context) error {
				a.deposit(ctx, dispatcher, 5)
				return nil
			})
		Expect(err).NotTo(HaveOccurred())

		points := trace.Points()
		Expect(points).To(HaveLen(3))
		Expect(points[0].Kind).To(Equal(hooking.KindCall))
		Expect(points[1].Kind).To(Equal(hooking.KindLine))
		Expect(points[2].Kind).To(Equal(hooking.KindReturn))
		Expect(points[2].Method).To(Equal("deposit"))
	})

	It("should expose the frame of a step", func() {
		a := &account{balance: 3}
		a.deposit(context.Background(), dispatcher, 5)

		frame := events[0].Frame
		Expect(frame).NotTo(BeNil())
		Expect(frame.Self()).To(BeIdenticalTo(a))
		Expect(frame.Locals()).To(HaveKeyWithValue("amount", 5))
		Expect(frame.Method()).To(Equal("deposit"))
		Expect(frame.Callers()).NotTo(BeEmpty())
		Expect(frame.Callers()[0].Function).To(HaveSuffix("(*account).deposit"))

		path, line, ok := frame.DefinitionLocation()
		Expect(ok).To(BeTrue())
		Expect(filepath.Base(path)).To(Equal("probe_test.go"))
		Expect(line).To(BeNumerically(">", 0))
	})

	It("should report native steps without location", func() {
		Expect(measure(context.Background(), dispatcher, "abc")).To(Equal(3))

		Expect(events).To(HaveLen(2))
		Expect(events[0].Kind).To(Equal(hooking.KindNativeCall))
		Expect(events[1].Kind).To(Equal(hooking.KindNativeReturn))

		for _, e := range events {
			Expect(e.HasSource()).To(BeFalse())
			Expect(e.Method).To(Equal("len"))
			Expect(e.Frame).To(BeNil())
		}
	})

	It("should report blocks with the declaring function", func() {
		run := func(ctx context.Context) {
			probe.BlockCall(ctx, probe.WithDispatcher(dispatcher))
			probe.BlockReturn(ctx, probe.WithDispatcher(dispatcher))
		}

		run(context.Background())

		Expect(events).To(HaveLen(2))
		Expect(events[0].Kind).To(Equal(hooking.KindBlockCall))
		Expect(events[1].Kind).To(Equal(hooking.KindBlockReturn))
		Expect(events[0].DefinedType).To(BeEmpty())
	})

	It("should honor type and method overrides", func() {
		probe.Call(context.Background(),
			probe.WithDispatcher(dispatcher),
			probe.WithType("Ledger"),
			probe.WithMethod("post"),
		)

		Expect(events).To(HaveLen(1))
		Expect(events[0].DefinedType).To(Equal("Ledger"))
		Expect(events[0].Method).To(Equal("post"))
	})

	It("should not report when nobody listens", func() {
		quiet := hooking.NewDispatcher()

		Expect(func() {
			probe.Line(context.Background(), probe.WithDispatcher(quiet))
		}).NotTo(Panic())
		Expect(events).To(BeEmpty())
	})
})
