// Package watch re-runs a job whenever a single file changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events editors emit for one save.
const DefaultDebounce = 200 * time.Millisecond

// Func is the job to run. A returned error stops the watch.
type Func func(ctx context.Context) error

// Run calls fn once, then again after each debounced write or create of
// path, until ctx is cancelled. Calls never overlap: events that arrive while
// fn is running are coalesced into one follow-up call.
func Run(ctx context.Context, path string, fn Func) error {
	return RunDebounced(ctx, path, DefaultDebounce, fn)
}

// RunDebounced is Run with an explicit debounce interval.
func RunDebounced(ctx context.Context, path string, debounce time.Duration, fn Func) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	// Watch the parent so atomic replaces (write temp, rename over) are seen.
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	if err := fn(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			timer.Reset(debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			if err := fn(ctx); err != nil {
				return err
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
}
