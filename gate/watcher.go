package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDefault = 200 * time.Millisecond

// ProfileWatcher calls handler once a burst of writes to any of the watched
// files has settled. Directories are watched rather than files so editors
// that replace a file by rename are still seen.
type ProfileWatcher struct {
	files    map[string]bool
	handler  func()
	onError  func(error)
	debounce time.Duration
}

func NewProfileWatcher(paths []string, handler func(), onError func(error)) *ProfileWatcher {
	files := make(map[string]bool, len(paths))
	for _, p := range paths {
		files[filepath.Clean(p)] = true
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &ProfileWatcher{
		files:    files,
		handler:  handler,
		onError:  onError,
		debounce: debounceDefault,
	}
}

// Run blocks until ctx is cancelled.
func (w *ProfileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	dirs := make(map[string]bool)
	for f := range w.files {
		dirs[filepath.Dir(f)] = true
	}
	for d := range dirs {
		if err := watcher.Add(d); err != nil {
			return err
		}
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			w.handler()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.files[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.onError(err)
		}
	}
}
