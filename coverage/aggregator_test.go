package coverage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/sarchlab/introspector/scope"
)

var _ = Describe("Aggregator", func() {
	var (
		dir  string
		app  string
		lib  string
		ctx  context.Context
		aggr *Aggregator
	)

	writeFile := func(name, content string) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())

		return path
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		app = writeFile("app.go", "// app\nx := 1\ny := 2\nz := 3\n")
		lib = writeFile("lib.go", "a\nb\n")
		ctx = context.Background()
		aggr = NewAggregator(nil)
	})

	It("should build resources from the files", func() {
		cov, err := aggr.ImportRaw(ctx, RawTable{app: hits(-1, 0, 2, 1)})

		Expect(err).NotTo(HaveOccurred())
		Expect(cov.Resources).To(HaveKey(app))

		r := cov.Resources[app]
		Expect(r.Lines).To(HaveLen(4))
		Expect(r.Line(0).Content).To(Equal("// app"))
		Expect(r.Line(0).Skipped()).To(BeTrue())
		Expect(r.Line(1).Missed()).To(BeTrue())
		Expect(*r.Line(2).Hits).To(Equal(2))
		Expect(r.HitPercentage()).To(BeNumerically("~", 200.0/3, 1e-9))
	})

	It("should accumulate imports", func() {
		raw := RawTable{app: hits(-1, 0, 2, 1)}

		_, err := aggr.ImportRaw(ctx, raw)
		Expect(err).NotTo(HaveOccurred())

		cov, err := aggr.ImportRaw(ctx, raw)
		Expect(err).NotTo(HaveOccurred())

		r := cov.Resources[app]
		Expect(r.Line(0).Hits).To(BeNil())
		Expect(*r.Line(1).Hits).To(Equal(0))
		Expect(*r.Line(2).Hits).To(Equal(4))
		Expect(*r.Line(3).Hits).To(Equal(2))
	})

	It("should ignore counts beyond the end of the file", func() {
		cov, err := aggr.ImportRaw(ctx, RawTable{lib: hits(1, 1, 7)})

		Expect(err).NotTo(HaveOccurred())
		Expect(cov.Resources[lib].Lines).To(HaveLen(2))
	})

	It("should ignore paths out of scope", func() {
		aggr = NewAggregator(scope.MustNew(scope.Config{PathEndWith: "app.go"}))

		cov, err := aggr.ImportRaw(ctx, RawTable{
			app: hits(-1, 1, 1, 1),
			lib: hits(1, 1),
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(cov.Resources).To(HaveLen(1))
		Expect(cov.Resources).To(HaveKey(app))
		Expect(cov.Percentage()).To(Equal(100.0))
	})

	It("should import readable resources when others fail", func() {
		missing := filepath.Join(dir, "missing.go")

		cov, err := aggr.ImportRaw(ctx, RawTable{
			app:     hits(-1, 1, 1, 1),
			missing: hits(1),
		})

		importErr := &ImportError{}
		Expect(errors.As(err, &importErr)).To(BeTrue())
		Expect(importErr.Failures).To(HaveKey(missing))
		Expect(importErr.Error()).To(ContainSubstring("missing.go"))
		Expect(cov.Resources).To(HaveKey(app))
		Expect(cov.Resources).NotTo(HaveKey(missing))
	})

	It("should load more files than it reads at the same time", func() {
		aggr = NewAggregator(nil, WithParallelism(2))

		raw := RawTable{}
		for i := 0; i < 40; i++ {
			path := writeFile(fmt.Sprintf("f%02d.go", i), "a\nb\n")
			raw[path] = hits(1, 0)
		}

		cov, err := aggr.ImportRaw(ctx, raw)

		Expect(err).NotTo(HaveOccurred())
		Expect(cov.Resources).To(HaveLen(40))

		for path := range raw {
			Expect(cov.Resources[path].Line(0).IsHit()).To(BeTrue())
		}
	})

	It("should return coverage that later imports leave alone", func() {
		first, err := aggr.ImportRaw(ctx, RawTable{app: hits(-1, 0, 2, 1)})
		Expect(err).NotTo(HaveOccurred())

		_, err = aggr.ImportRaw(ctx, RawTable{
			app: hits(-1, 5, 5, 5),
			lib: hits(1, 1),
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(first.Resources).To(HaveLen(1))
		Expect(*first.Resources[app].Line(1).Hits).To(Equal(0))
		Expect(first.Resources[app].Line(1).Resource()).
			To(BeIdenticalTo(first.Resources[app]))

		now := aggr.Coverage()
		Expect(now.Resources).To(HaveLen(2))
		Expect(*now.Resources[app].Line(1).Hits).To(Equal(5))
	})

	It("should allow reading while importing", func() {
		var wg sync.WaitGroup

		for i := 0; i < 8; i++ {
			wg.Add(2)

			go func() {
				defer wg.Done()
				defer GinkgoRecover()

				_, err := aggr.ImportRaw(ctx, RawTable{app: hits(-1, 1, 1, 1)})
				Expect(err).NotTo(HaveOccurred())
			}()

			go func() {
				defer wg.Done()

				_ = aggr.Coverage().Percentage()
			}()
		}

		wg.Wait()

		Expect(*aggr.Coverage().Resources[app].Line(1).Hits).To(Equal(8))
	})

	It("should ignore negative counts", func() {
		negative := -3

		cov, err := aggr.ImportRaw(ctx, RawTable{lib: {&negative, nil}})

		Expect(err).NotTo(HaveOccurred())
		Expect(cov.Resources[lib].Line(0).Skipped()).To(BeTrue())
	})

	It("should average resource percentages", func() {
		cov, err := aggr.ImportRaw(ctx, RawTable{
			app: hits(-1, 1, 1, 1),
			lib: hits(0, 0),
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(cov.Percentage()).To(Equal(50.0))
	})
})

var _ = Describe("Coverage", func() {
	It("should be fully covered without resources", func() {
		Expect(New(nil).Percentage()).To(Equal(100.0))
	})

	It("should survive a JSON round trip", func() {
		cov := New(nil)
		r, _ := NewResource("/app/a.go", []string{"// a", "x", "y"})
		r.Line(1).Hit(3)
		r.Line(2).Hit(0)
		cov.Resources[r.Path] = r

		data, err := json.Marshal(cov)
		Expect(err).NotTo(HaveOccurred())

		restored := &Coverage{}
		Expect(json.Unmarshal(data, restored)).To(Succeed())

		Expect(restored.Scope.IsEmpty()).To(BeTrue())

		rr := restored.Resources["/app/a.go"]
		Expect(rr.Lines).To(HaveLen(3))
		Expect(rr.Line(0).Skipped()).To(BeTrue())
		Expect(*rr.Line(1).Hits).To(Equal(3))
		Expect(rr.Line(2).Missed()).To(BeTrue())
		Expect(rr.Line(2).Content).To(Equal("y"))

		for _, l := range rr.Lines {
			Expect(l.Resource()).To(BeIdenticalTo(rr))
		}

		Expect(restored.Percentage()).To(Equal(cov.Percentage()))
	})
})
