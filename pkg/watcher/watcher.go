// Package watcher reports files created or modified anywhere below a directory.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog"
)

const (
	DefaultDebounce = 500 * time.Millisecond
	DefaultWorkers  = 4
)

type Options struct {
	Workers  int
	Debounce time.Duration
}

type Watcher struct {
	root     string
	handler  Handler
	workers  int
	debounce time.Duration

	fs *fsnotify.Watcher
}

// New watches root and every directory below it. A missing root is an error.
func New(root string, handler Handler, opts Options) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("failed to watch %s: not a directory", root)
	}

	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		handler:  handler,
		workers:  opts.Workers,
		debounce: opts.Debounce,
		fs:       fsw,
	}

	if _, err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	return w, nil
}

// Run dispatches changed files to the handler until ctx is cancelled. Files already
// handed to a worker are handled to completion, with a context that outlives ctx, before
// Run returns. Changes still settling in the debouncer are dropped.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	workers := newPool(context.WithoutCancel(ctx), w.workers, w.handler)
	defer workers.stop()

	pending := newDebouncer(w.debounce)
	ticker := time.NewTicker(max(w.debounce/4, 10*time.Millisecond))
	defer ticker.Stop()

	klog.Infof("watching %s", w.root)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, pending, time.Now())

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			klog.Errorf("watch error: %v", err)

		case now := <-ticker.C:
			for _, path := range pending.ready(now) {
				workers.dispatch(ctx, path)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, pending *debouncer, now time.Time) {
	klog.V(5).Infof("event: %s", event)

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		pending.forget(event.Name)

	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}

		if !info.IsDir() {
			pending.touch(event.Name, now)
			return
		}

		// files may land in a new directory before it is watched
		files, err := w.addRecursive(event.Name)
		if err != nil {
			klog.Errorf("%v", err)
		}
		for _, path := range files {
			pending.touch(path, now)
		}

	case event.Has(fsnotify.Write):
		pending.touch(event.Name, now)
	}
}

// addRecursive watches dir and its subdirectories and returns the regular files found.
func (w *Watcher) addRecursive(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			if d.Type().IsRegular() {
				files = append(files, path)
			}
			return nil
		}

		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}

		klog.V(4).Infof("watching directory %s", path)
		return nil
	})

	return files, err
}
