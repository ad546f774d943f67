package watcher

import (
	"sort"
	"time"
)

// debouncer holds paths until they have been quiet for the configured period. Editors and
// downloads usually write a file in several steps.
type debouncer struct {
	quiet   time.Duration
	pending map[string]time.Time
}

func newDebouncer(quiet time.Duration) *debouncer {
	return &debouncer{quiet: quiet, pending: map[string]time.Time{}}
}

func (d *debouncer) touch(path string, now time.Time) {
	d.pending[path] = now
}

func (d *debouncer) forget(path string) {
	delete(d.pending, path)
}

// ready removes and returns, sorted, every path untouched for at least the quiet period.
func (d *debouncer) ready(now time.Time) []string {
	var paths []string

	for path, last := range d.pending {
		if now.Sub(last) >= d.quiet {
			paths = append(paths, path)
			delete(d.pending, path)
		}
	}

	sort.Strings(paths)
	return paths
}

func (d *debouncer) len() int {
	return len(d.pending)
}
