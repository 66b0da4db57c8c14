// Package watch triggers re-syncs when the evaluation tree changes on disk.
//
// The watcher observes the whole tree recursively, lets bursts of filesystem
// events settle for a debounce window, and then invokes a single callback.
// Invocations are rate-limited so a pathological writer cannot turn the
// syncer into a busy loop.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// Options configures a Watcher.
type Options struct {
	// Dir is the root of the tree to watch. It must exist.
	Dir string

	// Debounce is how long the tree must stay quiet before OnChange fires.
	// Zero means 2s.
	Debounce time.Duration

	// MaxPerMinute caps OnChange invocations regardless of change volume.
	// Zero means 12.
	MaxPerMinute int

	// OnChange runs after changes settle. It runs on the watcher goroutine,
	// so a slow callback delays later fires rather than overlapping them.
	OnChange func(context.Context)
}

// Watcher debounces filesystem events under a directory tree into rate
// limited callback invocations.
type Watcher struct {
	opts    Options
	limiter *rate.Limiter

	fsw  *fsnotify.Watcher
	wg   sync.WaitGroup
	once sync.Once
}

// New validates the options and builds a watcher. Start must be called
// before any events are observed.
func New(opts Options) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("watch dir is required")
	}
	if opts.OnChange == nil {
		return nil, fmt.Errorf("OnChange callback is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	if opts.MaxPerMinute <= 0 {
		opts.MaxPerMinute = 12
	}

	return &Watcher{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.MaxPerMinute)), 1),
	}, nil
}

// Start begins watching. The watcher stops when ctx is cancelled or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	if err := watchTree(fsw, w.opts.Dir); err != nil {
		fsw.Close()
		return fmt.Errorf("watching %s: %w", w.opts.Dir, err)
	}

	w.fsw = fsw
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop terminates the watcher and waits for the event loop to exit. Safe to
// call more than once.
func (w *Watcher) Stop() error {
	if w.fsw == nil {
		return nil
	}
	var err error
	w.once.Do(func() {
		err = w.fsw.Close()
	})
	w.wg.Wait()
	return err
}

// loop is the single event-processing goroutine. A debounce timer restarts
// on every relevant event; when it fires and the rate limiter has a slot,
// the callback runs.
func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	dirty := false
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			dirty = true
			resetTimer(timer, w.opts.Debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "Warning: watch error: %v\n", err)

		case <-timer.C:
			if !dirty {
				continue
			}
			res := w.limiter.Reserve()
			if d := res.Delay(); d > 0 {
				// Over the per-minute cap. Hold the change and retry
				// when a slot frees up.
				res.Cancel()
				resetTimer(timer, d)
				continue
			}
			dirty = false
			w.opts.OnChange(ctx)
		}
	}
}

// relevant filters the event stream down to changes that can affect a sync:
// JSON files and directory create/remove. New directories are added to the
// watch set so units created after Start are still observed.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if hidden(ev.Name) {
		return false
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := watchTree(w.fsw, ev.Name); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to watch %s: %v\n", ev.Name, err)
			}
			return true
		}
	}

	// Removes and renames matter even without an extension: a vanished
	// person or year directory changes unit membership.
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		return true
	}

	return strings.EqualFold(filepath.Ext(ev.Name), ".json")
}

// watchTree adds root and every non-hidden directory below it to the watch
// set.
func watchTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if path != root && strings.HasPrefix(base, ".") {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func hidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
