package taint_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"

	"github.com/gorilla/mux"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/introspector/datarecording"
	"github.com/sarchlab/introspector/taint"
)

var _ = Describe("DataFlow", func() {
	It("should survive a JSON round trip", func() {
		flow := &taint.DataFlow{Sinks: []*taint.Sink{{
			Object:               "Template",
			MethodName:           "render",
			Arguments:            []string{"x", "TAINT123"},
			TaintedArgumentIndex: 1,
			TaintedValue:         "TAINT123",
			Backtrace:            []string{"/app/a.go:3:in app.Run"},
			MethodSourceLocation: &taint.Location{Path: "/app/t.go", Line: 9},
		}}}

		data, err := json.Marshal(flow)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"tainted_argument_index":1`))

		restored := &taint.DataFlow{}
		Expect(json.Unmarshal(data, restored)).To(Succeed())

		Expect(restored.Scope.IsEmpty()).To(BeTrue())
		Expect(restored.Sinks).To(HaveLen(1))

		sink := restored.Sinks[0]
		Expect(sink.DataFlow()).To(BeIdenticalTo(restored))
		Expect(sink.Object).To(Equal("Template"))
		Expect(sink.Arguments).To(Equal([]string{"x", "TAINT123"}))
		Expect(sink.Backtrace).To(Equal([]string{"/app/a.go:3:in app.Run"}))
		Expect(*sink.MethodSourceLocation).To(Equal(taint.Location{Path: "/app/t.go", Line: 9}))
		Expect(sink.String()).To(Equal(`Template#render[1] "TAINT123"`))
	})
})

var _ = Describe("Middleware", func() {
	var (
		tracker *taint.Tracker
		site    *taint.Site
		router  *mux.Router
		flows   []*taint.DataFlow
	)

	BeforeEach(func() {
		registry := taint.NewRegistry()
		site = registry.Register("Template", "render", render)
		tracker = taint.NewTracker(taint.WithRegistry(registry))
		Expect(tracker.InstallInterceptor("Template", "render")).To(Succeed())

		flows = nil

		router = mux.NewRouter()
		router.Use(taint.Middleware(tracker, "", func(_ *http.Request, f *taint.DataFlow) {
			flows = append(flows, f)
		}))
		router.HandleFunc("/greet", func(w http.ResponseWriter, r *http.Request) {
			out, _ := site.Call(r.Context(), "hello "+r.URL.Query().Get("name"))
			_, _ = w.Write([]byte(out.(string)))
		})
	})

	serve := func(url, marker string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		if marker != "" {
			req.Header.Set(taint.DefaultMarkerHeader, marker)
		}

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		return rec
	}

	It("should report the sinks of a marked request", func() {
		rec := serve("/greet?name=TAINT123", "TAINT123")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal("rendered 1"))
		Expect(flows).To(HaveLen(1))
		Expect(flows[0].Sinks).To(HaveLen(1))
		Expect(flows[0].Sinks[0].TaintedValue).To(Equal("hello TAINT123"))
	})

	It("should report no sinks when the marker does not reach a site", func() {
		serve("/greet?name=bob", "TAINT123")

		Expect(flows).To(HaveLen(1))
		Expect(flows[0].Sinks).To(BeEmpty())
	})

	It("should skip requests without marker", func() {
		serve("/greet?name=TAINT123", "")

		Expect(flows).To(BeEmpty())
	})
})

type sinkRow struct {
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

var _ = Describe("Record", func() {
	var (
		flow *taint.DataFlow
		path string
	)

	BeforeEach(func() {
		flow = &taint.DataFlow{Sinks: []*taint.Sink{
			{
				Object:               "Template",
				MethodName:           "render",
				Arguments:            []string{"x", "line one\nTAINT123"},
				TaintedArgumentIndex: 1,
				TaintedValue:         "line one\nTAINT123",
				Backtrace:            []string{"a", "b"},
				MethodSourceLocation: &taint.Location{Path: "/app/t.go", Line: 9},
			},
			{
				Object:               "Mailer",
				MethodName:           "send",
				Arguments:            []string{"TAINT123"},
				TaintedArgumentIndex: 0,
				TaintedValue:         "TAINT123",
				Backtrace:            []string{"c"},
			},
		}}

		path = filepath.Join(GinkgoT().TempDir(), "taint")
		recorder := datarecording.New(path)

		taint.Record("req-1", flow, recorder)
		taint.Record("req-2", &taint.DataFlow{Sinks: flow.Sinks[1:]}, recorder)
		Expect(recorder.Close()).To(Succeed())
	})

	openReader := func() datarecording.DataReader {
		reader, err := datarecording.NewReader(path)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(reader.Close)

		return reader
	}

	It("should write the sinks", func() {
		reader := openReader()
		reader.MapTable(taint.SinkTable, sinkRow{})

		sel := datarecording.Selection{Where: "FlowKey = ?", Args: []any{"req-1"}}

		rows, err := reader.Query(context.Background(), taint.SinkTable, sel)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))
		Expect(*rows[0].(*sinkRow)).To(Equal(sinkRow{
			FlowKey:              "req-1",
			Object:               "Template",
			MethodName:           "render",
			Arguments:            `["x","line one\nTAINT123"]`,
			TaintedArgumentIndex: 1,
			TaintedValue:         "line one\nTAINT123",
			Backtrace:            `["a","b"]`,
			SourcePath:           "/app/t.go",
			SourceLine:           9,
		}))

		total, err := reader.Count(context.Background(), taint.SinkTable,
			datarecording.Selection{})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(3))
	})

	It("should load a recorded flow back", func() {
		loaded, err := taint.Load(context.Background(), openReader(), "req-1", nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(loaded.Sinks).To(HaveLen(2))

		for i, sink := range loaded.Sinks {
			want := flow.Sinks[i]
			Expect(sink.Object).To(Equal(want.Object))
			Expect(sink.MethodName).To(Equal(want.MethodName))
			Expect(sink.Arguments).To(Equal(want.Arguments))
			Expect(sink.TaintedArgumentIndex).To(Equal(want.TaintedArgumentIndex))
			Expect(sink.TaintedValue).To(Equal(want.TaintedValue))
			Expect(sink.Backtrace).To(Equal(want.Backtrace))
			Expect(sink.MethodSourceLocation).To(Equal(want.MethodSourceLocation))
			Expect(sink.DataFlow()).To(BeIdenticalTo(loaded))
		}

		other, err := taint.Load(context.Background(), openReader(), "req-2", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(other.Sinks).To(HaveLen(1))
		Expect(other.Sinks[0].Object).To(Equal("Mailer"))
	})
})
