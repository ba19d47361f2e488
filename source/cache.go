// Package source reads and caches the lines of source files.
package source

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/golang/groupcache/lru"
	"github.com/pkg/errors"
	"github.com/viant/afs"
)

// DefaultMaxFiles is the number of files a cache created with a non-positive
// size keeps.
const DefaultMaxFiles = 256

// A Cache keeps the lines of recently used source files. It is safe for
// concurrent use.
type Cache struct {
	fs    afs.Service
	lock  sync.Mutex
	files *lru.Cache
}

// NewCache creates a cache that holds up to maxFiles files.
func NewCache(maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}

	return &Cache{
		fs:    afs.New(),
		files: lru.New(maxFiles),
	}
}

// Lines returns the lines of the file at path, with trailing white space
// removed. The file is read at most once while it stays in the cache.
func (c *Cache) Lines(ctx context.Context, path string) ([]string, error) {
	c.lock.Lock()
	cached, ok := c.files.Get(path)
	c.lock.Unlock()

	if ok {
		return cached.([]string), nil
	}

	content, err := c.fs.DownloadWithURL(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	lines := SplitLines(string(content))

	c.lock.Lock()
	c.files.Add(path, lines)
	c.lock.Unlock()

	return lines, nil
}

// Line returns the 1-based line of the file at path.
func (c *Cache) Line(ctx context.Context, path string, number int) (string, bool) {
	lines, err := c.Lines(ctx, path)
	if err != nil || number < 1 || number > len(lines) {
		return "", false
	}

	return lines[number-1], true
}

// Forget drops a file from the cache.
func (c *Cache) Forget(path string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.files.Remove(path)
}

// SplitLines splits content into lines. A final line break does not start a
// new line.
func SplitLines(content string) []string {
	if content == "" {
		return []string{}
	}

	content = strings.TrimSuffix(content, "\n")
	raw := strings.Split(content, "\n")

	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = strings.TrimRightFunc(l, unicode.IsSpace)
	}

	return lines
}
