// Package storelocal implements [store.Store] over the host's installed-RPM
// database. Each [New] call returns an independent Store, memoized until its
// backing files change. Every search operation is a linear scan; the RPM database has no
// rich indices at this layer, so scanning the memoized vector is as good as
// it gets.
package storelocal

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zifproj/zif"
	"github.com/zifproj/zif/internal/rpmdb"
	"github.com/zifproj/zif/metadata"
	"github.com/zifproj/zif/monitor"
	"github.com/zifproj/zif/progress"
	"github.com/zifproj/zif/rpmpkg"
	"github.com/zifproj/zif/store"
)

// ID is StoreLocal's constant id.
const ID = "installed"

// Store is the installed-system package catalog.
//
// A Store must not be copied after first use. Construct with [New].
type Store struct {
	root string

	mu       sync.RWMutex
	loaded   bool
	packages []*rpmpkg.Package
}

var _ store.Store = (*Store)(nil)

// New returns a Store reading the RPM database under root ("/" if empty).
// If w is non-nil, the Store registers watches on root's var/lib/rpm/Packages
// and usr/lib/sysimage/rpm/rpmdb.sqlite so a later on-disk change invalidates
// the memoized package list.
func New(root string, w *monitor.Watcher) *Store {
	if root == "" {
		root = "/"
	}
	s := &Store{root: root}
	if w != nil {
		w.AddWatch(filepath.Join(root, "var/lib/rpm/Packages"))
		w.AddWatch(filepath.Join(root, "usr/lib/sysimage/rpm/rpmdb.sqlite"))
		w.Listen(s.invalidate)
	}
	return s
}

func (s *Store) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.packages = nil
}

// ID implements [store.Store].
func (s *Store) ID() string { return ID }

// Enabled implements [store.Store]; StoreLocal is always enabled.
func (s *Store) Enabled() bool { return true }

// Loaded implements [store.Store].
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Load implements [store.Store]: reads the RPM database if not already
// memoized.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	pkgs, err := rpmdb.Open(s.root)
	if err != nil {
		return err
	}
	s.packages = pkgs
	s.loaded = true
	return nil
}

// Clean implements [store.Store].
func (s *Store) Clean(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.packages = nil
	return nil
}

// Refresh implements [store.Store]: StoreLocal has no remote metadata to
// refresh; Refresh just reloads from disk.
func (s *Store) Refresh(ctx context.Context, force bool, state *progress.Node) error {
	if state != nil {
		state.SetSteps(1)
	}
	if force {
		if err := s.Clean(ctx); err != nil {
			return err
		}
	}
	err := s.Load(ctx)
	if state != nil {
		state.Done()
	}
	return err
}

func (s *Store) snapshot(ctx context.Context) ([]*rpmpkg.Package, error) {
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.packages, nil
}

// SearchName implements [store.Store] as a linear substring scan.
func (s *Store) SearchName(ctx context.Context, patterns []string) ([]*rpmpkg.Package, error) {
	all, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var out []*rpmpkg.Package
	for _, p := range all {
		for _, pat := range patterns {
			if strings.Contains(p.Name(), pat) {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

// SearchDetails implements [store.Store].
func (s *Store) SearchDetails(ctx context.Context, patterns []string) ([]*rpmpkg.Package, error) {
	all, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var out []*rpmpkg.Package
	for _, p := range all {
		for _, pat := range patterns {
			if strings.Contains(p.Name(), pat) || strings.Contains(p.Summary, pat) {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

// SearchGroup implements [store.Store].
func (s *Store) SearchGroup(ctx context.Context, group string) ([]*rpmpkg.Package, error) {
	all, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var out []*rpmpkg.Package
	for _, p := range all {
		if string(p.Group) == group {
			out = append(out, p)
		}
	}
	return out, nil
}

// SearchFile implements [store.Store].
func (s *Store) SearchFile(ctx context.Context, patterns []string) ([]*rpmpkg.Package, error) {
	all, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var out []*rpmpkg.Package
	for _, p := range all {
		for _, f := range p.Files {
			matched := false
			for _, pat := range patterns {
				if strings.Contains(f, pat) {
					matched = true
					break
				}
			}
			if matched {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

// SearchCategory implements [store.Store]; StoreLocal has no comps
// metadata, so this always returns [zif.ErrNoSupport].
func (s *Store) SearchCategory(ctx context.Context, catID string) ([]*rpmpkg.Package, error) {
	return nil, &zif.Error{Op: "storelocal.SearchCategory", Kind: zif.ErrNoSupport}
}

// Resolve implements [store.Store]: exact name match.
func (s *Store) Resolve(ctx context.Context, names []string) ([]*rpmpkg.Package, error) {
	all, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	var out []*rpmpkg.Package
	for _, p := range all {
		if _, ok := want[p.Name()]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// FindPackage implements [store.Store]; StoreLocal has no pkgid concept
// (that's a remote-repository notion), so this always returns
// [zif.ErrNoSupport].
func (s *Store) FindPackage(ctx context.Context, pkgid string) (*rpmpkg.Package, error) {
	return nil, &zif.Error{Op: "storelocal.FindPackage", Kind: zif.ErrNoSupport}
}

// GetPackages implements [store.Store].
func (s *Store) GetPackages(ctx context.Context) ([]*rpmpkg.Package, error) {
	return s.snapshot(ctx)
}

// GetCategories implements [store.Store]; StoreLocal has no comps metadata.
func (s *Store) GetCategories(ctx context.Context) ([]metadata.Category, error) {
	return nil, nil
}

// WhatProvides implements [store.Store] as a linear scan over every
// package's Provides.
func (s *Store) WhatProvides(ctx context.Context, wants []rpmpkg.Depend) ([]*rpmpkg.Package, error) {
	return s.whatX(ctx, wants, func(p *rpmpkg.Package) []rpmpkg.Depend { return p.Provides })
}

// WhatRequires implements [store.Store].
func (s *Store) WhatRequires(ctx context.Context, wants []rpmpkg.Depend) ([]*rpmpkg.Package, error) {
	return s.whatX(ctx, wants, func(p *rpmpkg.Package) []rpmpkg.Depend { return p.Requires })
}

// WhatObsoletes implements [store.Store].
func (s *Store) WhatObsoletes(ctx context.Context, wants []rpmpkg.Depend) ([]*rpmpkg.Package, error) {
	return s.whatX(ctx, wants, func(p *rpmpkg.Package) []rpmpkg.Depend { return p.Obsoletes })
}

// WhatConflicts implements [store.Store].
func (s *Store) WhatConflicts(ctx context.Context, wants []rpmpkg.Depend) ([]*rpmpkg.Package, error) {
	return s.whatX(ctx, wants, func(p *rpmpkg.Package) []rpmpkg.Depend { return p.Conflicts })
}

func (s *Store) whatX(ctx context.Context, wants []rpmpkg.Depend, getter func(*rpmpkg.Package) []rpmpkg.Depend) ([]*rpmpkg.Package, error) {
	all, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var out []*rpmpkg.Package
	for _, p := range all {
		for _, d := range getter(p) {
			matched := false
			for _, w := range wants {
				if d.Name == w.Name {
					matched = true
					break
				}
			}
			if matched {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}
