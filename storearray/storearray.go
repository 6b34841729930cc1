// Package storearray implements the fan-out layer: running any [store.Store]
// operation across a list of stores, aggregating results, honoring a
// caller-supplied error-handler predicate, and providing composite
// operations such as [Array.GetUpdates].
package storearray

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/quay/zlog"
	"golang.org/x/sync/semaphore"

	"github.com/zifproj/zif"
	"github.com/zifproj/zif/metadata"
	"github.com/zifproj/zif/progress"
	"github.com/zifproj/zif/rpmpkg"
	"github.com/zifproj/zif/store"
)

// Decision is an [ErrorHandler]'s verdict on a per-store failure.
type Decision int

// Recognized decisions.
const (
	Continue Decision = iota
	Abort
)

// ErrorHandler is the caller-supplied strategy consulted once per failing
// store during a fan-out.
type ErrorHandler interface {
	OnError(storeID string, err error) Decision
}

// ErrorHandlerFunc adapts a plain function to [ErrorHandler].
type ErrorHandlerFunc func(storeID string, err error) Decision

// OnError implements [ErrorHandler].
func (f ErrorHandlerFunc) OnError(storeID string, err error) Decision { return f(storeID, err) }

// AbortOnError is the default handler: any failure aborts the fan-out.
var AbortOnError = ErrorHandlerFunc(func(string, error) Decision { return Abort })

// Array is a plain vector of stores plus the fan-out policy knobs.
type Array struct {
	Stores []store.Store

	// Handler decides whether a per-store failure aborts the whole
	// operation. Nil means [AbortOnError].
	Handler ErrorHandler

	// MaxConcurrency bounds how many stores are queried at once;
	// 0 means GOMAXPROCS.
	MaxConcurrency int64

	// Basearches is the host's base architecture set, used by GetUpdates to
	// pick the best-architecture obsoleter. Empty means no arch filtering.
	Basearches []string
}

func (a *Array) handler() ErrorHandler {
	if a.Handler == nil {
		return AbortOnError
	}
	return a.Handler
}

func (a *Array) concurrency() int64 {
	if a.MaxConcurrency > 0 {
		return a.MaxConcurrency
	}
	return int64(runtime.GOMAXPROCS(0))
}

// fanOut runs op once per store concurrently (bounded by MaxConcurrency)
// and concatenates the results in store order. A store reporting
// [zif.ErrNotEnabled] is silently skipped; any other failure is put to the
// error handler.
func fanOut[T any](ctx context.Context, a *Array, state *progress.Node, op func(ctx context.Context, s store.Store, state *progress.Node) ([]T, error)) ([]T, error) {
	if len(a.Stores) == 0 {
		return nil, &zif.Error{Op: "storearray", Kind: zif.ErrArrayIsEmpty}
	}
	if state != nil {
		weights := make([]float64, len(a.Stores))
		for i := range weights {
			weights[i] = 1
		}
		state.SetSteps(weights...)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := semaphore.NewWeighted(a.concurrency())
	results := make([][]T, len(a.Stores))
	var (
		mu       sync.Mutex
		abortErr error
		wg       sync.WaitGroup
	)
	for i, s := range a.Stores {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, s store.Store) {
			defer wg.Done()
			defer sem.Release(1)
			var child *progress.Node
			if state != nil {
				child = state.Child(1)
			}
			got, err := op(ctx, s, child)
			if state != nil {
				state.Done()
			}
			if err != nil {
				if errors.Is(err, zif.ErrNotEnabled) {
					// Disabled mid-iteration: always silently skipped.
					return
				}
				if a.handler().OnError(s.ID(), err) == Continue {
					zlog.Debug(ctx).Err(err).Str("store", s.ID()).Msg("store failed, continuing per error handler")
					return
				}
				mu.Lock()
				if abortErr == nil {
					abortErr = err
				}
				mu.Unlock()
				cancel()
				return
			}
			results[i] = got
		}(i, s)
	}
	wg.Wait()
	if abortErr != nil {
		return nil, abortErr
	}

	var out []T
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// Resolve runs Resolve across the array.
func (a *Array) Resolve(ctx context.Context, names []string, state *progress.Node) ([]*rpmpkg.Package, error) {
	return fanOut(ctx, a, state, func(ctx context.Context, s store.Store, _ *progress.Node) ([]*rpmpkg.Package, error) {
		return s.Resolve(ctx, names)
	})
}

// SearchName runs SearchName across the array.
func (a *Array) SearchName(ctx context.Context, patterns []string, state *progress.Node) ([]*rpmpkg.Package, error) {
	return fanOut(ctx, a, state, func(ctx context.Context, s store.Store, _ *progress.Node) ([]*rpmpkg.Package, error) {
		return s.SearchName(ctx, patterns)
	})
}

// SearchDetails runs SearchDetails across the array.
func (a *Array) SearchDetails(ctx context.Context, patterns []string, state *progress.Node) ([]*rpmpkg.Package, error) {
	return fanOut(ctx, a, state, func(ctx context.Context, s store.Store, _ *progress.Node) ([]*rpmpkg.Package, error) {
		return s.SearchDetails(ctx, patterns)
	})
}

// SearchGroup runs SearchGroup across the array.
func (a *Array) SearchGroup(ctx context.Context, group string, state *progress.Node) ([]*rpmpkg.Package, error) {
	return fanOut(ctx, a, state, func(ctx context.Context, s store.Store, _ *progress.Node) ([]*rpmpkg.Package, error) {
		return s.SearchGroup(ctx, group)
	})
}

// SearchFile runs SearchFile across the array.
func (a *Array) SearchFile(ctx context.Context, patterns []string, state *progress.Node) ([]*rpmpkg.Package, error) {
	return fanOut(ctx, a, state, func(ctx context.Context, s store.Store, _ *progress.Node) ([]*rpmpkg.Package, error) {
		return s.SearchFile(ctx, patterns)
	})
}

// SearchCategory runs SearchCategory across the array, deduplicated by
// package id.
func (a *Array) SearchCategory(ctx context.Context, catID string, state *progress.Node) ([]*rpmpkg.Package, error) {
	got, err := fanOut(ctx, a, state, func(ctx context.Context, s store.Store, _ *progress.Node) ([]*rpmpkg.Package, error) {
		return s.SearchCategory(ctx, catID)
	})
	if err != nil {
		return nil, err
	}
	return dedupByIdentity(got), nil
}

// WhatProvides runs WhatProvides across the array.
func (a *Array) WhatProvides(ctx context.Context, wants []rpmpkg.Depend, state *progress.Node) ([]*rpmpkg.Package, error) {
	return fanOut(ctx, a, state, func(ctx context.Context, s store.Store, _ *progress.Node) ([]*rpmpkg.Package, error) {
		return s.WhatProvides(ctx, wants)
	})
}

// WhatRequires runs WhatRequires across the array.
func (a *Array) WhatRequires(ctx context.Context, wants []rpmpkg.Depend, state *progress.Node) ([]*rpmpkg.Package, error) {
	return fanOut(ctx, a, state, func(ctx context.Context, s store.Store, _ *progress.Node) ([]*rpmpkg.Package, error) {
		return s.WhatRequires(ctx, wants)
	})
}

// WhatObsoletes runs WhatObsoletes across the array.
func (a *Array) WhatObsoletes(ctx context.Context, wants []rpmpkg.Depend, state *progress.Node) ([]*rpmpkg.Package, error) {
	return fanOut(ctx, a, state, func(ctx context.Context, s store.Store, _ *progress.Node) ([]*rpmpkg.Package, error) {
		return s.WhatObsoletes(ctx, wants)
	})
}

// WhatConflicts runs WhatConflicts across the array.
func (a *Array) WhatConflicts(ctx context.Context, wants []rpmpkg.Depend, state *progress.Node) ([]*rpmpkg.Package, error) {
	return fanOut(ctx, a, state, func(ctx context.Context, s store.Store, _ *progress.Node) ([]*rpmpkg.Package, error) {
		return s.WhatConflicts(ctx, wants)
	})
}

// GetPackages runs GetPackages across the array.
func (a *Array) GetPackages(ctx context.Context, state *progress.Node) ([]*rpmpkg.Package, error) {
	return fanOut(ctx, a, state, func(ctx context.Context, s store.Store, _ *progress.Node) ([]*rpmpkg.Package, error) {
		return s.GetPackages(ctx)
	})
}

// GetCategories runs GetCategories across the array, deduplicated by
// (parent_id, cat_id).
func (a *Array) GetCategories(ctx context.Context, state *progress.Node) ([]metadata.Category, error) {
	got, err := fanOut(ctx, a, state, func(ctx context.Context, s store.Store, _ *progress.Node) ([]metadata.Category, error) {
		return s.GetCategories(ctx)
	})
	if err != nil {
		return nil, err
	}
	seen := make(map[[2]string]struct{}, len(got))
	out := got[:0]
	for _, c := range got {
		key := [2]string{c.ParentID, c.CatID}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

// FindPackage returns the first match for pkgid across the array, in store
// order.
func (a *Array) FindPackage(ctx context.Context, pkgid string) (*rpmpkg.Package, error) {
	if len(a.Stores) == 0 {
		return nil, &zif.Error{Op: "storearray.FindPackage", Kind: zif.ErrArrayIsEmpty}
	}
	for _, s := range a.Stores {
		if !s.Enabled() {
			continue
		}
		p, err := s.FindPackage(ctx, pkgid)
		if err != nil {
			if errors.Is(err, zif.ErrNotEnabled) || errors.Is(err, zif.ErrFailedToFind) || errors.Is(err, zif.ErrNoSupport) {
				continue
			}
			if a.handler().OnError(s.ID(), err) == Continue {
				continue
			}
			return nil, err
		}
		return p, nil
	}
	return nil, &zif.Error{Op: "storearray.FindPackage", Kind: zif.ErrFailedToFind, Message: pkgid}
}

// Clean runs Clean across the array.
func (a *Array) Clean(ctx context.Context) error {
	_, err := fanOut(ctx, a, nil, func(ctx context.Context, s store.Store, _ *progress.Node) ([]struct{}, error) {
		return nil, s.Clean(ctx)
	})
	return err
}

// Refresh runs Refresh across the array, giving each store a child progress
// slice.
func (a *Array) Refresh(ctx context.Context, force bool, state *progress.Node) error {
	_, err := fanOut(ctx, a, state, func(ctx context.Context, s store.Store, child *progress.Node) ([]struct{}, error) {
		return nil, s.Refresh(ctx, force, child)
	})
	return err
}

// dedupByIdentity keeps the first occurrence of each package identity,
// preferring PkgID when present (remote packages) and the canonical
// identity string otherwise (installed ones have no pkgid).
func dedupByIdentity(pkgs []*rpmpkg.Package) []*rpmpkg.Package {
	seen := make(map[string]struct{}, len(pkgs))
	out := pkgs[:0]
	for _, p := range pkgs {
		key := p.PkgID
		if key == "" {
			key = p.Identity()
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// newestPerName keeps, for each package name, only the entry with the
// greatest EVR.
func newestPerName(pkgs []*rpmpkg.Package) map[string]*rpmpkg.Package {
	best := make(map[string]*rpmpkg.Package, len(pkgs))
	for _, p := range pkgs {
		cur, ok := best[p.Name()]
		if !ok {
			best[p.Name()] = p
			continue
		}
		if cmp, ok := rpmpkg.Compare(p, cur); ok && cmp > 0 {
			best[p.Name()] = p
		}
	}
	return best
}

// GetUpdates computes the available-update set by cross-referencing the
// installed catalog against the remote stores in this array:
//
//  1. Gather installed packages, newest per name.
//  2. Resolve those names remotely, newest per name.
//  3. Keep remote candidates strictly newer than the installed version,
//     attaching the installed ref so delta computation is possible.
//  4. Also query what_obsoletes for each installed package's exact NEVR,
//     filtered to the best architecture per the host basearch set.
//  5. Deduplicate by package id.
func (a *Array) GetUpdates(ctx context.Context, local store.Store, state *progress.Node) ([]*rpmpkg.Package, error) {
	if state != nil {
		state.SetSteps(1, 2, 1, 2)
	}
	installedAll, err := local.GetPackages(ctx)
	if err != nil {
		return nil, err
	}
	installed := newestPerName(installedAll)
	if state != nil {
		state.Done()
	}

	names := make([]string, 0, len(installed))
	for name := range installed {
		names = append(names, name)
	}
	var resolveState *progress.Node
	if state != nil {
		resolveState = state.Child(1)
	}
	remoteAll, err := a.Resolve(ctx, names, resolveState)
	if err != nil {
		return nil, err
	}
	remote := newestPerName(remoteAll)
	if state != nil {
		state.Done()
	}

	var updates []*rpmpkg.Package
	for name, inst := range installed {
		cand, ok := remote[name]
		if !ok {
			continue
		}
		if cmp, ok := rpmpkg.Compare(cand, inst); ok && cmp > 0 {
			cand.InstalledVersion = inst
			updates = append(updates, cand)
		}
	}
	if state != nil {
		state.Done()
	}

	// Obsoleters count as updates too: a remote package whose Obsoletes
	// matches an installed package's exact NEVR replaces it.
	wants := make([]rpmpkg.Depend, 0, len(installed))
	byDep := make(map[string]*rpmpkg.Package, len(installed))
	for _, inst := range installed {
		evr := inst.Version
		evr.Name = nil
		evr.Architecture = nil
		wants = append(wants, rpmpkg.Depend{Name: inst.Name(), Flag: rpmpkg.Equal, EVR: evr})
		byDep[inst.Name()] = inst
	}
	var obsState *progress.Node
	if state != nil {
		obsState = state.Child(1)
	}
	obsoleters, err := a.WhatObsoletes(ctx, wants, obsState)
	if err != nil {
		return nil, err
	}
	for _, p := range bestArch(obsoleters, a.Basearches) {
		for _, d := range p.Obsoletes {
			if inst, ok := byDep[d.Name]; ok {
				p.InstalledVersion = inst
				break
			}
		}
		updates = append(updates, p)
	}
	if state != nil {
		state.Done()
	}

	return dedupByIdentity(updates), nil
}

// bestArch filters pkgs so that, per name, only the best-matching
// architecture for the host's basearch set survives: an earlier entry in
// basearches beats a later one. With no basearch set, pkgs pass unfiltered.
func bestArch(pkgs []*rpmpkg.Package, basearches []string) []*rpmpkg.Package {
	if len(basearches) == 0 {
		return pkgs
	}
	rank := make(map[string]int, len(basearches))
	for i, a := range basearches {
		rank[a] = i
	}
	best := make(map[string]*rpmpkg.Package, len(pkgs))
	order := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		r, ok := rank[p.Arch()]
		if !ok {
			continue
		}
		cur, seen := best[p.Name()]
		if !seen {
			best[p.Name()] = p
			order = append(order, p.Name())
			continue
		}
		if r < rank[cur.Arch()] {
			best[p.Name()] = p
		}
	}
	out := make([]*rpmpkg.Package, 0, len(order))
	for _, name := range order {
		out = append(out, best[name])
	}
	return out
}
