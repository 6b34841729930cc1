// Package repos implements the repository registry: enumerating *.repo
// files under the configured reposdir, instantiating one
// [storeremote.Store] per [section], and reporting the currently enabled
// subset in deterministic (id-sorted) order.
package repos

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/quay/zlog"

	"github.com/zifproj/zif"
	"github.com/zifproj/zif/config"
	"github.com/zifproj/zif/lock"
	"github.com/zifproj/zif/monitor"
	"github.com/zifproj/zif/storelocal"
	"github.com/zifproj/zif/storeremote"
)

// Repos is the registry of .repo-file-declared remote stores.
//
// A Repos must not be copied after first use. Construct with [New].
type Repos struct {
	cfg   *config.Configuration
	local *storelocal.Store
	locks *lock.Manager

	mu       sync.Mutex
	reposDir string
	stores   []*storeremote.Store
	loaded   bool
}

// New returns a Repos reading .repo files per cfg's reposdir. If w is
// non-nil, a watch on the repos directory invalidates the registry so the
// next call rebuilds it. locks may be nil (no cross-process locking, used
// under test); local may be nil (category searches then skip the
// prefer-installed step).
func New(cfg *config.Configuration, local *storelocal.Store, locks *lock.Manager, w *monitor.Watcher) *Repos {
	r := &Repos{cfg: cfg, local: local, locks: locks}
	if dir, err := cfg.GetString("reposdir"); err == nil {
		r.reposDir = dir
		if w != nil {
			w.AddWatch(dir)
			w.Listen(r.invalidate)
		}
	}
	return r
}

// SetReposDir overrides the directory .repo files are enumerated from. An
// empty path restores the configured reposdir value.
func (r *Repos) SetReposDir(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if path == "" {
		path, _ = r.cfg.GetString("reposdir")
	}
	r.reposDir = path
	r.loaded = false
	r.stores = nil
}

func (r *Repos) invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = false
	r.stores = nil
}

// Load enumerates *.repo files under the repos directory, builds one store
// per section, sorts by id, and calls each store's lightweight Load so its
// enabled flag is known. Holding the repo lock for the duration, per the
// engine's lock discipline.
func (r *Repos) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(ctx)
}

func (r *Repos) loadLocked(ctx context.Context) error {
	if r.loaded {
		return nil
	}
	if r.locks != nil {
		_, release, err := r.locks.Lock(ctx, lock.KindRepo)
		if err != nil {
			return err
		}
		defer release()
	}

	entries, err := os.ReadDir(r.reposDir)
	if err != nil {
		return &zif.Error{Op: "repos.Load", Kind: zif.ErrInternal, Inner: err}
	}

	var stores []*storeremote.Store
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".repo" {
			continue
		}
		path := filepath.Join(r.reposDir, e.Name())
		sections, err := ParseRepoFile(path, r.cfg)
		if err != nil {
			zlog.Warn(ctx).Err(err).Str("file", path).Msg("skipping malformed repo file")
			continue
		}
		for _, opts := range sections {
			s := storeremote.New(opts, r.cfg, r.local)
			if r.locks != nil {
				s.SetLocks(r.locks)
			}
			stores = append(stores, s)
		}
	}
	// Sort by store id for deterministic iteration regardless of
	// directory-enumeration order.
	sort.Slice(stores, func(i, j int) bool { return stores[i].ID() < stores[j].ID() })

	for _, s := range stores {
		if err := s.Load(ctx); err != nil {
			zlog.Warn(ctx).Err(err).Str("repo", s.ID()).Msg("repo failed lightweight load")
		}
	}
	r.stores = stores
	r.loaded = true
	return nil
}

// GetStores returns every store the registry knows about, in id order.
func (r *Repos) GetStores(ctx context.Context) ([]*storeremote.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]*storeremote.Store, len(r.stores))
	copy(out, r.stores)
	return out, nil
}

// GetStoresEnabled returns the subset of stores whose enabled flag is
// currently true.
func (r *Repos) GetStoresEnabled(ctx context.Context) ([]*storeremote.Store, error) {
	all, err := r.GetStores(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, s := range all {
		if s.Enabled() {
			out = append(out, s)
		}
	}
	return out, nil
}

// GetStore returns the store with the given id, linearly.
func (r *Repos) GetStore(ctx context.Context, id string) (*storeremote.Store, error) {
	all, err := r.GetStores(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range all {
		if s.ID() == id {
			return s, nil
		}
	}
	return nil, &zif.Error{Op: "repos.GetStore", Kind: zif.ErrFailedToFind, Message: id}
}
