// Package store defines [Store], the polymorphic catalog capability shared
// by storelocal, storeremote, and storedirectory, and the handful of types
// an operation across stores needs in common. There are exactly three
// implementations; new catalog kinds should implement this interface rather
// than grow a parallel API.
package store

import (
	"context"

	"github.com/zifproj/zif/metadata"
	"github.com/zifproj/zif/progress"
	"github.com/zifproj/zif/rpmpkg"
)

// Store is the uniform catalog capability exposed by StoreLocal (installed
// RPM DB), StoreRemote (one repository), and StoreDirectory (a tree of .rpm
// files used without metadata).
type Store interface {
	// ID returns this store's unique identifier ("installed" for
	// StoreLocal).
	ID() string
	// Enabled reports whether this store currently participates in
	// StoreArray fan-out.
	Enabled() bool
	// Loaded reports whether this store's catalog is ready for queries.
	Loaded() bool

	// Load performs whatever lightweight setup is needed before queries can
	// run; for StoreRemote this parses the .repo section but does not
	// fetch metadata (see LoadMetadata on the concrete type).
	Load(ctx context.Context) error
	// Clean discards any cached/loaded state, forcing the next query to
	// reload from scratch.
	Clean(ctx context.Context) error
	// Refresh re-validates (and re-fetches, if force or stale) this
	// store's backing data.
	Refresh(ctx context.Context, force bool, state *progress.Node) error

	SearchName(ctx context.Context, patterns []string) ([]*rpmpkg.Package, error)
	SearchDetails(ctx context.Context, patterns []string) ([]*rpmpkg.Package, error)
	SearchGroup(ctx context.Context, group string) ([]*rpmpkg.Package, error)
	SearchFile(ctx context.Context, patterns []string) ([]*rpmpkg.Package, error)
	SearchCategory(ctx context.Context, catID string) ([]*rpmpkg.Package, error)

	Resolve(ctx context.Context, names []string) ([]*rpmpkg.Package, error)
	FindPackage(ctx context.Context, pkgid string) (*rpmpkg.Package, error)
	GetPackages(ctx context.Context) ([]*rpmpkg.Package, error)
	GetCategories(ctx context.Context) ([]metadata.Category, error)

	WhatProvides(ctx context.Context, wants []rpmpkg.Depend) ([]*rpmpkg.Package, error)
	WhatRequires(ctx context.Context, wants []rpmpkg.Depend) ([]*rpmpkg.Package, error)
	WhatObsoletes(ctx context.Context, wants []rpmpkg.Depend) ([]*rpmpkg.Package, error)
	WhatConflicts(ctx context.Context, wants []rpmpkg.Depend) ([]*rpmpkg.Package, error)
}
