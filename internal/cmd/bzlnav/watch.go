package bzlnav

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/albertocavalcante/bzlnav/internal/bazel/filetype"
	"github.com/albertocavalcante/bzlnav/internal/cli"
)

// Watcher reports changes to a resolved file and the directory holding
// it. Directory events matter because fallback resolution depends on
// which build files exist next to the target.
type Watcher struct {
	fsWatcher *fsnotify.Watcher

	// Events channel receives file change notifications.
	Events chan fsnotify.Event

	// Errors channel receives watcher errors.
	Errors chan error

	// done signals the watcher to stop.
	done chan struct{}
}

// NewWatcher creates a watcher with no paths registered.
func NewWatcher() (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		Events:    make(chan fsnotify.Event, 100),
		Errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}

	go w.run()

	return w, nil
}

// Add registers the directory holding path. Watching the directory
// rather than the file survives the rename-and-replace dance editors do
// on save, and picks up build files appearing or vanishing next to the
// target.
func (w *Watcher) Add(path string) error {
	dir := filepath.Dir(path)
	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	return nil
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsWatcher.Close()
}

// run forwards filesystem events, dropping operations that cannot change
// what a label resolves to.
func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.Events <- event

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.Errors <- err
		}
	}
}

// relevant reports whether an event can change the outcome of resolving
// to resolved: a change to the file itself, or to any build file in the
// directory, since build files are the fallback resolution takes.
func relevant(event fsnotify.Event, resolved string) bool {
	if event.Name == resolved {
		return true
	}
	return filetype.IsBuildFileName(filepath.Base(event.Name))
}

// watchLabel resolves text once, then re-resolves and prints each
// outcome whenever the resolved file or its directory changes. The
// workspace snapshot is never invalidated; only resolution re-runs.
func (t *tool) watchLabel(ctx context.Context, text string, stdout, stderr io.Writer) int {
	resolved, err := t.loadTarget(ctx, text)
	if err != nil {
		cli.Writef(stderr, "bzlnav: %v\n", err)
		return cli.ExitError
	}
	cli.Writeln(stdout, resolved)

	w, err := NewWatcher()
	if err != nil {
		cli.Writef(stderr, "bzlnav: %v\n", err)
		return cli.ExitError
	}
	defer func() {
		_ = w.Close()
	}()

	if err := w.Add(resolved); err != nil {
		cli.Writef(stderr, "bzlnav: %v\n", err)
		return cli.ExitError
	}
	log.Printf("bzlnav: watching %s", filepath.Dir(resolved))

	for {
		select {
		case <-ctx.Done():
			return cli.ExitOK

		case event := <-w.Events:
			if !relevant(event, resolved) {
				continue
			}
			path, err := t.loadTarget(ctx, text)
			if err != nil {
				cli.Writef(stderr, "bzlnav: %v\n", err)
				continue
			}
			if path != resolved {
				// The fallback moved, e.g. a BUILD.bazel now shadows
				// BUILD. Watch the new location too.
				if err := w.Add(path); err != nil {
					cli.Writef(stderr, "bzlnav: %v\n", err)
				}
				resolved = path
			}
			cli.Writeln(stdout, path)

		case err := <-w.Errors:
			cli.Writef(stderr, "bzlnav: watch: %v\n", err)
			return cli.ExitError
		}
	}
}
