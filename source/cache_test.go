package source

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Cache", func() {
	var (
		dir   string
		path  string
		cache *Cache
		ctx   context.Context
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		path = filepath.Join(dir, "app.go")
		Expect(os.WriteFile(path, []byte("package app\n\nfunc Run() {}  \n"), 0o644)).
			To(Succeed())

		cache = NewCache(2)
		ctx = context.Background()
	})

	It("should read the lines of a file", func() {
		lines, err := cache.Lines(ctx, path)

		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(Equal([]string{"package app", "", "func Run() {}"}))
	})

	It("should serve cached lines after the file is gone", func() {
		_, err := cache.Lines(ctx, path)
		Expect(err).NotTo(HaveOccurred())

		Expect(os.Remove(path)).To(Succeed())

		line, ok := cache.Line(ctx, path, 3)
		Expect(ok).To(BeTrue())
		Expect(line).To(Equal("func Run() {}"))
	})

	It("should read again after forgetting", func() {
		_, err := cache.Lines(ctx, path)
		Expect(err).NotTo(HaveOccurred())

		cache.Forget(path)
		Expect(os.Remove(path)).To(Succeed())

		_, err = cache.Lines(ctx, path)
		Expect(err).To(HaveOccurred())
	})

	It("should report out of range lines as missing", func() {
		_, ok := cache.Line(ctx, path, 0)
		Expect(ok).To(BeFalse())

		_, ok = cache.Line(ctx, path, 4)
		Expect(ok).To(BeFalse())
	})

	It("should fail for missing files", func() {
		_, err := cache.Lines(ctx, filepath.Join(dir, "missing.go"))

		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("SplitLines", func() {
	It("should not add a line for the final line break", func() {
		Expect(SplitLines("a\nb\n")).To(HaveLen(2))
		Expect(SplitLines("a\nb")).To(HaveLen(2))
		Expect(SplitLines("")).To(BeEmpty())
	})

	It("should strip carriage returns", func() {
		Expect(SplitLines("a\r\nb\r\n")).To(Equal([]string{"a", "b"}))
	})
})
