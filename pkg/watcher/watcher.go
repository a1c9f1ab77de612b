// Package watcher polls data files and reports when they change on disk.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// fingerprint identifies one on-disk version of a file.
type fingerprint struct {
	mod  time.Time
	size int64
}

type entry struct {
	reported fingerprint // last version handed to the caller
	pending  fingerprint // newer version waiting to settle
	known    bool
}

// Watcher reports a changed file once it has stayed the same for a full poll,
// so a file still being written is not read half-way.
type Watcher struct {
	mu    sync.Mutex
	files map[string]*entry
	order []string
}

// New watches paths from their current state. Files that do not exist yet
// are reported once they appear.
func New(paths ...string) *Watcher {
	w := &Watcher{files: make(map[string]*entry, len(paths)), order: paths}
	for _, p := range paths {
		e := &entry{}
		if fp, ok := stat(p); ok {
			e.reported, e.pending, e.known = fp, fp, true
		} else {
			slog.Warn("Watcher: file not found, waiting for it", "path", p)
		}
		w.files[p] = e
	}
	return w
}

func stat(path string) (fingerprint, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fingerprint{}, false
	}
	return fingerprint{mod: info.ModTime(), size: info.Size()}, true
}

// Poll returns the files whose new version was already seen by the previous
// poll and has not changed since. Deleted files are not reported.
func (w *Watcher) Poll() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var settled []string
	for _, p := range w.order {
		e := w.files[p]
		fp, ok := stat(p)
		switch {
		case !ok:
			continue
		case e.known && fp == e.reported:
			e.pending = fp
		case fp != e.pending:
			e.pending = fp // still moving
		default:
			e.reported, e.known = fp, true
			settled = append(settled, p)
		}
	}
	return settled
}

// Run polls every interval and calls onChange for each settled file until
// ctx ends.
func (w *Watcher) Run(ctx context.Context, interval time.Duration, onChange func(path string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range w.Poll() {
				slog.Info("Watcher: file changed", "path", p)
				onChange(p)
			}
		}
	}
}
