//go:build !windows

package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/zifproj/zif"
)

// PIDFileLock is a cross-process lock backed by a PID file placed in "dir".
//
// Each [Kind] normally gets its own file, named "<dir>/<kind>.lock". In
// "lock_compat" mode (set at construction), every kind instead shares one
// file, "<dir>/lock", matching tools that predate per-kind locking.
//
// The lock is taken with flock(2), so it's automatically released if the
// holding process dies without the pidfile being written at all, flock still
// protects correctness; the PID + cmdline liveness check exists only to give
// a good error message when a lock is contended by a still-alive process
// versus one that crashed mid-write.
type PIDFileLock struct {
	dir    string
	compat bool
}

// NewPIDFileLock returns a PIDFileLock rooted at dir.
func NewPIDFileLock(dir string, compat bool) *PIDFileLock {
	return &PIDFileLock{dir: dir, compat: compat}
}

func (p *PIDFileLock) path(kind string) string {
	if p.compat {
		return filepath.Join(p.dir, "lock")
	}
	return filepath.Join(p.dir, kind+".lock")
}

// heldHandle is returned from a successful acquisition; closing it releases
// the flock and removes the PID file if we're the last holder of it.
type heldHandle struct {
	f *os.File
}

func (h *heldHandle) release() {
	os.Remove(h.f.Name())
	syscall.Flock(int(h.f.Fd()), syscall.LOCK_UN)
	h.f.Close()
}

// Lock blocks until the lock for "kind" is acquired or ctx is canceled.
func (p *PIDFileLock) Lock(ctx context.Context, kind string) (context.Context, context.CancelFunc, error) {
	path := p.path(kind)
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return ctx, func() {}, &zif.Error{Op: "lock.Lock", Kind: zif.ErrInternal, Inner: err}
	}
	const pollInterval = 50 * time.Millisecond
	for {
		h, err := p.tryAcquire(path)
		if err == nil {
			c, cancel := context.WithCancel(ctx)
			return c, func() { cancel(); h.release() }, nil
		}
		if !isAlreadyLocked(err) {
			return ctx, func() {}, err
		}
		select {
		case <-ctx.Done():
			return ctx, func() {}, &zif.Error{Op: "lock.Lock", Kind: zif.ErrCancelled, Inner: ctx.Err()}
		case <-time.After(pollInterval):
		}
	}
}

// TryLock attempts to acquire the lock for "kind" without blocking.
func (p *PIDFileLock) TryLock(ctx context.Context, kind string) (context.Context, context.CancelFunc, error) {
	path := p.path(kind)
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return ctx, func() {}, &zif.Error{Op: "lock.TryLock", Kind: zif.ErrInternal, Inner: err}
	}
	h, err := p.tryAcquire(path)
	if err != nil {
		return ctx, func() {}, err
	}
	c, cancel := context.WithCancel(ctx)
	return c, func() { cancel(); h.release() }, nil
}

func (p *PIDFileLock) tryAcquire(path string) (*heldHandle, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, &zif.Error{Op: "lock.tryAcquire", Kind: zif.ErrInternal, Inner: err}
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		owner := readOwner(path)
		f.Close()
		if owner != 0 && !processAlive(owner) {
			// Stale lock: owning process is gone. Break it and retry once.
			os.Remove(path)
			return p.tryAcquireOnce(path)
		}
		msg := fmt.Sprintf("%s held by pid %d", path, owner)
		if cmd, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(owner), "cmdline")); err == nil && len(cmd) > 0 {
			msg += " (" + strings.TrimSpace(strings.ReplaceAll(string(cmd), "\x00", " ")) + ")"
		}
		return nil, &zif.Error{Op: "lock.tryAcquire", Kind: zif.ErrAlreadyLocked, Message: msg}
	}
	if err := f.Truncate(0); err == nil {
		f.Seek(0, 0)
		fmt.Fprintf(f, "%d\n", os.Getpid())
	}
	return &heldHandle{f: f}, nil
}

// TryAcquireOnce is the non-retrying half of tryAcquire, used once after
// breaking a stale lock so a second dead holder can't cause infinite
// recursion.
func (p *PIDFileLock) tryAcquireOnce(path string) (*heldHandle, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, &zif.Error{Op: "lock.tryAcquire", Kind: zif.ErrInternal, Inner: err}
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, &zif.Error{Op: "lock.tryAcquire", Kind: zif.ErrAlreadyLocked, Inner: err}
	}
	f.Truncate(0)
	f.Seek(0, 0)
	fmt.Fprintf(f, "%d\n", os.Getpid())
	return &heldHandle{f: f}, nil
}

func readOwner(path string) int {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0
	}
	return n
}

// processAlive reports whether pid refers to a live process, by checking
// for the existence of /proc/<pid>/cmdline. Processes that have died but
// whose pid has been recycled by an unrelated process are treated as "alive"
// -- this is a best-effort staleness check, not a correctness guarantee.
func processAlive(pid int) bool {
	_, err := os.Stat(filepath.Join("/proc", strconv.Itoa(pid), "cmdline"))
	return err == nil
}

func isAlreadyLocked(err error) bool {
	var ze *zif.Error
	if e, ok := err.(*zif.Error); ok {
		ze = e
	}
	return ze != nil && ze.Kind == zif.ErrAlreadyLocked
}
