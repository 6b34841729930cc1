// Package rpmdb is this engine's minimal, read-only RPM Packages-database
// reader: it treats the installed-package database as an opaque provider of
// header records and converts what it reads into [rpmpkg.Package] values
// for storelocal and storedirectory.
//
// It's a thin adapter over [github.com/erikvarga/go-rpmdb], which handles
// the bdb/ndb/sqlite database-format detection so this package doesn't
// have to.
package rpmdb

import (
	"path/filepath"
	"strconv"

	upstream "github.com/erikvarga/go-rpmdb/pkg"

	"github.com/zifproj/zif"
	"github.com/zifproj/zif/rpmpkg"
	"github.com/zifproj/zif/rpmver"
)

// Open opens the RPM database under root (the filesystem prefix, default
// "/") and returns every installed package it describes, converted to
// [rpmpkg.Package] with Installed=true and Source="installed".
func Open(root string) ([]*rpmpkg.Package, error) {
	// The database file candidates, in the order modern distributions
	// moved through them: sqlite, ndb, then the classic bdb Packages file.
	candidates := []string{
		"var/lib/rpm/rpmdb.sqlite",
		"usr/lib/sysimage/rpm/rpmdb.sqlite",
		"var/lib/rpm/Packages.db",
		"var/lib/rpm/Packages",
		"usr/lib/sysimage/rpm/Packages",
	}
	var (
		db  *upstream.RpmDB
		err error
	)
	for _, c := range candidates {
		db, err = upstream.Open(filepath.Join(root, c))
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, &zif.Error{Op: "rpmdb.Open", Kind: zif.ErrInternal, Inner: err}
	}
	defer db.Close()

	pkgs, err := db.ListPackages()
	if err != nil {
		return nil, &zif.Error{Op: "rpmdb.Open", Kind: zif.ErrMalformed, Inner: err}
	}

	out := make([]*rpmpkg.Package, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, convert(p))
	}
	return out, nil
}

// convert adapts one upstream PackageInfo into this engine's Package record.
func convert(p *upstream.PackageInfo) *rpmpkg.Package {
	name, arch := p.Name, p.Arch
	epoch := "0"
	if p.Epoch != nil {
		epoch = strconv.Itoa(*p.Epoch)
	}
	files := make([]string, 0, len(p.BaseNames))
	for i, base := range p.BaseNames {
		dir := ""
		if i < len(p.DirIndexes) && int(p.DirIndexes[i]) < len(p.DirNames) {
			dir = p.DirNames[p.DirIndexes[i]]
		}
		files = append(files, filepath.Join(dir, base))
	}
	return &rpmpkg.Package{
		Version: rpmver.Version{
			Name: &name, Architecture: &arch,
			Epoch: epoch, Version: p.Version, Release: p.Release,
		},
		Summary:   p.Summary,
		License:   p.License,
		Size:      uint64(p.Size),
		Files:     files,
		Requires:  dependsFromStrings(p.Requires),
		Provides:  dependsFromStrings(p.Provides),
		Installed: true,
		Source:    "installed",
	}
}

// dependsFromStrings builds unversioned Depends from a list of bare names,
// which is what the RPM header API gives us at header-read time (versioned
// provides/requires require a secondary tag walk the upstream module
// collapses into the same string slices it already returns).
func dependsFromStrings(names []string) []rpmpkg.Depend {
	out := make([]rpmpkg.Depend, 0, len(names))
	for _, n := range names {
		out = append(out, rpmpkg.Depend{Name: n, Flag: rpmpkg.Any})
	}
	return out
}

