// Package monitor implements a filesystem-change observer that invalidates
// any component whose backing file on disk has been edited or replaced.
//
// Listeners are expected to treat a "changed" event as "state is stale" and
// re-derive from scratch, not attempt to diff the file.
package monitor

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/quay/zlog"
)

// DefaultInterval is the rate-limit window: at most one aggregate event is
// delivered per interval, regardless of how many filesystem events occurred
// within it.
const DefaultInterval = 100 * time.Millisecond

// Watcher polls a set of paths for changes (create/modify/delete) and
// delivers a single coalesced notification per rate-limit window to every
// registered listener.
//
// The zero Watcher is not ready for use; construct with [New].
type Watcher struct {
	interval time.Duration

	mu        sync.Mutex
	watched   map[string]os.FileInfo
	listeners []func()

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Watcher that polls at [DefaultInterval].
func New(ctx context.Context) *Watcher {
	return NewInterval(ctx, DefaultInterval)
}

// NewInterval creates a Watcher that polls at the given interval.
func NewInterval(ctx context.Context, interval time.Duration) *Watcher {
	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		interval: interval,
		watched:  make(map[string]os.FileInfo),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go w.run(ctx)
	return w
}

// AddWatch registers "path" to be observed. It's safe to call concurrently
// with Close and with the background poll loop.
func (w *Watcher) AddWatch(path string) {
	fi, _ := os.Stat(path) // Absence is a valid starting state.
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watched[path] = fi
}

// Listen registers a listener to be called (at most once per rate-limit
// window) when any watched path changes.
func (w *Watcher) Listen(f func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, f)
}

// Close stops the background poll loop.
func (w *Watcher) Close() error {
	w.cancel()
	<-w.done
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if w.poll() {
				w.fire(ctx)
			}
		}
	}
}

// Poll reports whether any watched path changed since the last poll, and
// updates the recorded state unconditionally.
func (w *Watcher) poll() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	changed := false
	for path, prev := range w.watched {
		fi, err := os.Stat(path)
		switch {
		case err != nil && prev != nil:
			changed = true
		case err == nil && prev == nil:
			changed = true
		case err == nil && prev != nil:
			if fi.ModTime() != prev.ModTime() || fi.Size() != prev.Size() {
				changed = true
			}
		}
		w.watched[path] = fi
	}
	return changed
}

func (w *Watcher) fire(ctx context.Context) {
	w.mu.Lock()
	listeners := make([]func(), len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.Unlock()

	zlog.Debug(ctx).Int("listeners", len(listeners)).Msg("filesystem change observed")
	for _, f := range listeners {
		f()
	}
}
