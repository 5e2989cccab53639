package local

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/gobeaver/streamkit"
	"github.com/gobeaver/streamkit/internal/logger"
)

// fsWatcher wraps fsnotify.Watcher with a simpler interface
type fsWatcher interface {
	Add(path string) error
	Close() error
	Events() <-chan fsEvent
	Errors() <-chan error
}

type fsEvent struct {
	Name string
	Op   fsnotify.Op
}

// fsnotifyWatcher wraps fsnotify.Watcher to implement fsWatcher interface
type fsnotifyWatcher struct {
	watcher *fsnotify.Watcher
	events  chan fsEvent
	errors  chan error
	done    chan struct{}
}

// newFSWatcher creates a new file system watcher using fsnotify
func newFSWatcher() (fsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &fsnotifyWatcher{
		watcher: w,
		events:  make(chan fsEvent),
		errors:  make(chan error),
		done:    make(chan struct{}),
	}

	// Forward events until the watcher is closed
	go func() {
		defer close(fw.events)
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				select {
				case fw.events <- fsEvent{Name: event.Name, Op: event.Op}:
				case <-fw.done:
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				select {
				case fw.errors <- err:
				case <-fw.done:
					return
				}
			}
		}
	}()

	return fw, nil
}

func (w *fsnotifyWatcher) Add(path string) error {
	return w.watcher.Add(path)
}

func (w *fsnotifyWatcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *fsnotifyWatcher) Events() <-chan fsEvent {
	return w.events
}

func (w *fsnotifyWatcher) Errors() <-chan error {
	return w.errors
}

const watchOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// Watch returns a token that fires the first time path is written, created,
// removed or renamed. The parent directory is watched so that files replaced
// by rename are still seen. The watch ends when the token fires or ctx is
// done.
func Watch(ctx context.Context, path string) (streamkit.ChangeToken, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, streamkit.NewError("watch", path, streamkit.ErrIOFailure, err)
	}

	watcher, err := newFSWatcher()
	if err != nil {
		return nil, streamkit.NewError("watch", path, streamkit.ErrIOFailure, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, streamkit.NewError("watch", path, streamkit.ErrIOFailure, err)
	}

	token := streamkit.NewCallbackChangeToken()

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events():
				if !ok {
					return
				}
				if filepath.Clean(event.Name) == abs && event.Op&watchOps != 0 {
					token.SignalChange()
					return // Token is spent after first change
				}
			case err, ok := <-watcher.Errors():
				if !ok {
					return
				}
				logger.Warn("watch error", logger.Fields{
					logger.FieldPath:  path,
					logger.FieldError: err,
				})
			}
		}
	}()

	return token, nil
}

// Watch returns a token that fires on the next change to the stream's file
// made through any handle.
func (s *Stream) Watch(ctx context.Context) (streamkit.ChangeToken, error) {
	if err := s.check("watch", true); err != nil {
		return nil, err
	}
	return Watch(ctx, s.path)
}
