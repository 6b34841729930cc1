// Package storedirectory implements [store.Store] over a plain directory of
// .rpm files: a "virtual repository" for ad-hoc package pools, built without
// any repomd.xml or other repository metadata.
package storedirectory

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zifproj/zif"
	"github.com/zifproj/zif/internal/rpmdb"
	"github.com/zifproj/zif/metadata"
	"github.com/zifproj/zif/progress"
	"github.com/zifproj/zif/rpmpkg"
	"github.com/zifproj/zif/store"
)

var _ store.Store = (*Store)(nil)

// Store scans a directory tree for .rpm files and exposes them as packages.
//
// A Store must not be copied after first use. Construct with [New].
type Store struct {
	id        string
	dir       string
	recursive bool

	mu       sync.RWMutex
	loaded   bool
	packages []*rpmpkg.Package
}

// New returns a Store scanning dir (recursively, if recursive is true) for
// .rpm files, identified by id.
func New(id, dir string, recursive bool) *Store {
	return &Store{id: id, dir: dir, recursive: recursive}
}

// ID implements [store.Store].
func (s *Store) ID() string { return s.id }

// Enabled implements [store.Store]; a directory store is always enabled.
func (s *Store) Enabled() bool { return true }

// Loaded implements [store.Store].
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Load implements [store.Store]: recursively (if so configured) walks the
// directory for files ending in .rpm and reads each one's header via
// [rpmdb.ReadHeader].
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}

	var rpmPaths []string
	walk := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !s.recursive && path != s.dir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".rpm") {
			rpmPaths = append(rpmPaths, path)
		}
		return nil
	}
	if err := filepath.WalkDir(s.dir, walk); err != nil {
		return &zif.Error{Op: "storedirectory.Load", Kind: zif.ErrInternal, Inner: err}
	}

	pkgs := make([]*rpmpkg.Package, 0, len(rpmPaths))
	for _, p := range rpmPaths {
		pkg, err := rpmdb.ReadHeader(p)
		if err != nil {
			continue // Individual unreadable archives are skipped, not fatal.
		}
		pkg.Source = s.id
		pkg.Installed = false
		pkg.LocationHref = p
		pkgs = append(pkgs, pkg)
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

// Refresh implements [store.Store]: a directory store has nothing to fetch,
// so Refresh just re-scans.
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

// SearchName implements [store.Store].
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
	return s.SearchName(ctx, patterns)
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

// SearchFile implements [store.Store]; a directory store has no filelists
// metadata, so this always returns [zif.ErrNoSupport].
func (s *Store) SearchFile(ctx context.Context, patterns []string) ([]*rpmpkg.Package, error) {
	return nil, &zif.Error{Op: "storedirectory.SearchFile", Kind: zif.ErrNoSupport}
}

// SearchCategory implements [store.Store]; a directory store has no comps
// metadata.
func (s *Store) SearchCategory(ctx context.Context, catID string) ([]*rpmpkg.Package, error) {
	return nil, &zif.Error{Op: "storedirectory.SearchCategory", Kind: zif.ErrNoSupport}
}

// Resolve implements [store.Store].
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

// FindPackage implements [store.Store].
func (s *Store) FindPackage(ctx context.Context, pkgid string) (*rpmpkg.Package, error) {
	all, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if p.PkgID == pkgid {
			return p, nil
		}
	}
	return nil, &zif.Error{Op: "storedirectory.FindPackage", Kind: zif.ErrFailedToFind, Message: pkgid}
}

// GetPackages implements [store.Store].
func (s *Store) GetPackages(ctx context.Context) ([]*rpmpkg.Package, error) {
	return s.snapshot(ctx)
}

// GetCategories implements [store.Store]; a directory store has no comps
// metadata.
func (s *Store) GetCategories(ctx context.Context) ([]metadata.Category, error) {
	return nil, nil
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

// WhatProvides implements [store.Store].
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
