// Package lock implements both the in-process and cross-process locking this
// engine uses to keep concurrent operations (metadata refresh, package
// database writes, cache directory maintenance) from stepping on each other.
//
// Two cooperating mechanisms are provided: a [Local] lock for goroutines
// within one process, and a [PIDFileLock] for cooperating with other
// processes via PID files placed inside the configured pidfile directory.
// [Manager] composes both so callers take one lock that is safe both
// within and across processes.
package lock

import "context"

// Kind names a class of thing being locked, used to derive the cross-process
// lock file's name.
type Kind string

// The lock kinds this engine defines, one slot per lockable resource.
// KindRPMDB, KindGroups, KindRelease, KindConfig, and KindHistory are
// reserved: declared so the slot exists across cooperating processes, but
// this read-only engine never writes under them.
const (
	KindMetadata Kind = "metadata"
	KindRepo     Kind = "repo"
	KindRPMDB    Kind = "rpmdb"
	KindCache    Kind = "cache"
	KindGroups   Kind = "groups"
	KindRelease  Kind = "release"
	KindConfig   Kind = "config"
	KindHistory  Kind = "history"
)

// ContextLock is the common shape of both lock implementations: acquiring
// the lock returns a derived [context.Context] that is canceled if the lock
// is lost (for [PIDFileLock], this can't happen short of process death, but
// the shape is kept uniform), and a release function.
type ContextLock interface {
	Lock(ctx context.Context, key string) (context.Context, context.CancelFunc)
	TryLock(ctx context.Context, key string) (context.Context, context.CancelFunc)
}

// Manager composes an in-process [Local] lock with a cross-process
// [PIDFileLock], so a single call acquires both.
//
// The zero Manager is not ready for use; construct with [NewManager].
type Manager struct {
	local *Local
	pid   *PIDFileLock
}

// NewManager returns a Manager that takes the in-process lock first, then
// the PID-file lock, releasing in reverse order.
func NewManager(pidfileDir string, compat bool) *Manager {
	return &Manager{
		local: NewLocal(),
		pid:   NewPIDFileLock(pidfileDir, compat),
	}
}

// Lock blocks until both the in-process and cross-process locks for "kind"
// are held, or ctx is canceled.
func (m *Manager) Lock(ctx context.Context, kind Kind) (context.Context, context.CancelFunc, error) {
	ctx, localCancel := m.local.Lock(ctx, string(kind))
	if err := ctx.Err(); err != nil {
		localCancel()
		return ctx, func() {}, err
	}
	pctx, pcancel, err := m.pid.Lock(ctx, string(kind))
	if err != nil {
		localCancel()
		return ctx, func() {}, err
	}
	return pctx, func() { pcancel(); localCancel() }, nil
}

// TryLock attempts to take both locks without blocking, failing fast if
// either is already held.
func (m *Manager) TryLock(ctx context.Context, kind Kind) (context.Context, context.CancelFunc, error) {
	lctx, lcancel := m.local.TryLock(ctx, string(kind))
	if err := lctx.Err(); err != nil {
		lcancel()
		return lctx, func() {}, err
	}
	pctx, pcancel, err := m.pid.TryLock(lctx, string(kind))
	if err != nil {
		lcancel()
		return lctx, func() {}, err
	}
	return pctx, func() { pcancel(); lcancel() }, nil
}
