package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"regexp"
	"strings"

	_ "modernc.org/sqlite" // register the sqlite driver

	"github.com/zifproj/zif"
	"github.com/zifproj/zif/rpmpkg"
	"github.com/zifproj/zif/rpmver"
)

// ResolveFlag is an OR-combinable matching mode for [Handle.ResolveFull].
type ResolveFlag int

// Recognized ResolveFull flags, OR-combinable.
const (
	UseName ResolveFlag = 1 << iota
	UseNameArch
	UseNameVersion
	UseNameVersionArch
	Regex
	Glob
	CaseInsensitive
)

// Handwritten query constants for the primary.sqlite schema published by
// createrepo_c. The queries are few and fixed, so plain strings beat a
// query builder here.
const (
	qAllPackages = `SELECT pkgId, name, arch, epoch, version, release, summary,
		description, url, rpm_license, rpm_group, size_package, location_href
		FROM packages`
	qByName = qAllPackages + ` WHERE name = ?`
	qByPkgID = qAllPackages + ` WHERE pkgId = ?`
	qByGroup = qAllPackages + ` WHERE rpm_group = ?`
	qDeps = `SELECT name, flags, epoch, version, release FROM %s WHERE pkgKey = (
		SELECT pkgKey FROM packages WHERE pkgId = ?)`
)

func (h *Handle) db() (*sql.DB, error) {
	if h.Kind != KindPrimarySQL && h.Kind != KindFilelistsSQL && h.Kind != KindOtherSQL {
		return nil, &zif.Error{Op: "Handle.db", Kind: zif.ErrNoSupport, Message: string(h.Kind) + " is not sqlite-backed"}
	}
	db, err := sql.Open("sqlite", h.LocalPath())
	if err != nil {
		return nil, &zif.Error{Op: "Handle.db", Kind: zif.ErrInternal, Inner: err}
	}
	return db, nil
}

func scanPackages(ctx context.Context, rows *sql.Rows, source string) ([]*rpmpkg.Package, error) {
	defer rows.Close()
	var out []*rpmpkg.Package
	for rows.Next() {
		var pkgID, name, arch, epoch, version, release, summary, description, url, license, group, href string
		var size uint64
		if err := rows.Scan(&pkgID, &name, &arch, &epoch, &version, &release, &summary,
			&description, &url, &license, &group, &size, &href); err != nil {
			return nil, &zif.Error{Op: "metadata.scanPackages", Kind: zif.ErrMalformed, Inner: err}
		}
		p := &rpmpkg.Package{
			PkgID: pkgID,
			Version: rpmver.Version{
				Name: &name, Architecture: &arch,
				Epoch: epoch, Version: version, Release: release,
			},
			Summary: summary, Description: description, URL: url,
			License: license, Group: rpmpkg.Group(group), Size: size,
			LocationHref: href, Source: source,
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &zif.Error{Op: "metadata.scanPackages", Kind: zif.ErrMalformed, Inner: err}
	}
	return out, nil
}

// GetPackages returns every package described by this primary handle.
func (h *Handle) GetPackages(ctx context.Context) ([]*rpmpkg.Package, error) {
	if h.Kind == KindPrimaryXML {
		return h.xmlPackages(ctx)
	}
	db, err := h.db()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, qAllPackages)
	if err != nil {
		return nil, &zif.Error{Op: "Handle.GetPackages", Kind: zif.ErrInternal, Inner: err}
	}
	return scanPackages(ctx, rows, h.ID)
}

// SearchName returns packages whose name matches any of patterns (plain
// substring match; Glob/Regex flags are honored via [Handle.ResolveFull]).
func (h *Handle) SearchName(ctx context.Context, patterns []string) ([]*rpmpkg.Package, error) {
	all, err := h.GetPackages(ctx)
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

// SearchDetails returns packages whose name, summary, or description
// contains any of patterns.
func (h *Handle) SearchDetails(ctx context.Context, patterns []string) ([]*rpmpkg.Package, error) {
	all, err := h.GetPackages(ctx)
	if err != nil {
		return nil, err
	}
	var out []*rpmpkg.Package
	for _, p := range all {
		for _, pat := range patterns {
			if strings.Contains(p.Name(), pat) || strings.Contains(p.Summary, pat) || strings.Contains(p.Description, pat) {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

// SearchGroup returns packages belonging to group.
func (h *Handle) SearchGroup(ctx context.Context, group string) ([]*rpmpkg.Package, error) {
	if h.Kind == KindPrimaryXML {
		all, err := h.xmlPackages(ctx)
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
	db, err := h.db()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, qByGroup, group)
	if err != nil {
		return nil, &zif.Error{Op: "Handle.SearchGroup", Kind: zif.ErrInternal, Inner: err}
	}
	return scanPackages(ctx, rows, h.ID)
}

// SearchPkgID returns the package with the given pkgid, if any.
func (h *Handle) SearchPkgID(ctx context.Context, pkgid string) (*rpmpkg.Package, error) {
	if h.Kind == KindPrimaryXML {
		all, err := h.xmlPackages(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range all {
			if p.PkgID == pkgid {
				return p, nil
			}
		}
		return nil, &zif.Error{Op: "Handle.SearchPkgID", Kind: zif.ErrFailedToFind, Message: pkgid}
	}
	db, err := h.db()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, qByPkgID, pkgid)
	if err != nil {
		return nil, &zif.Error{Op: "Handle.SearchPkgID", Kind: zif.ErrInternal, Inner: err}
	}
	pkgs, err := scanPackages(ctx, rows, h.ID)
	if err != nil {
		return nil, err
	}
	if len(pkgs) == 0 {
		return nil, &zif.Error{Op: "Handle.SearchPkgID", Kind: zif.ErrFailedToFind, Message: pkgid}
	}
	return pkgs[0], nil
}

// FindPackage returns the package with the given package_id (an alias of
// SearchPkgID, named to match the store-level operation).
func (h *Handle) FindPackage(ctx context.Context, packageID string) (*rpmpkg.Package, error) {
	return h.SearchPkgID(ctx, packageID)
}

// ResolveFull resolves names against this primary handle using the given
// combination of [ResolveFlag]s.
func (h *Handle) ResolveFull(ctx context.Context, names []string, flags ResolveFlag) ([]*rpmpkg.Package, error) {
	all, err := h.GetPackages(ctx)
	if err != nil {
		return nil, err
	}
	ci := flags&CaseInsensitive != 0
	var res []*regexp.Regexp
	if flags&Regex != 0 {
		for _, n := range names {
			if ci {
				n = "(?i)" + n
			}
			re, err := regexp.Compile(n)
			if err != nil {
				return nil, &zif.Error{Op: "Handle.ResolveFull", Kind: zif.ErrMalformed, Inner: err}
			}
			res = append(res, re)
		}
	}
	match := func(candidate, target string, i int) bool {
		if flags&Regex != 0 {
			return res[i].MatchString(candidate)
		}
		if ci {
			candidate, target = strings.ToLower(candidate), strings.ToLower(target)
		}
		if flags&Glob != 0 {
			ok, _ := path.Match(target, candidate)
			return ok
		}
		return candidate == target
	}
	var out []*rpmpkg.Package
	for _, p := range all {
		for i, n := range names {
			var key string
			switch {
			case flags&UseNameVersionArch != 0:
				key = fmt.Sprintf("%s-%s.%s", p.Name(), p.EVR(), p.Arch())
			case flags&UseNameVersion != 0:
				key = fmt.Sprintf("%s-%s", p.Name(), p.EVR())
			case flags&UseNameArch != 0:
				key = fmt.Sprintf("%s.%s", p.Name(), p.Arch())
			default:
				key = p.Name()
			}
			if match(key, n, i) {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

func depends(ctx context.Context, db *sql.DB, table, pkgid string) ([]rpmpkg.Depend, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(qDeps, table), pkgid)
	if err != nil {
		return nil, &zif.Error{Op: "metadata.depends", Kind: zif.ErrInternal, Inner: err}
	}
	defer rows.Close()
	var out []rpmpkg.Depend
	for rows.Next() {
		var name, flags, epoch, version, release string
		if err := rows.Scan(&name, &flags, &epoch, &version, &release); err != nil {
			return nil, &zif.Error{Op: "metadata.depends", Kind: zif.ErrMalformed, Inner: err}
		}
		out = append(out, rpmpkg.Depend{
			Name: name,
			Flag: flagFromString(flags),
			EVR:  rpmver.Version{Epoch: epoch, Version: version, Release: release},
		})
	}
	return out, rows.Err()
}

func flagFromString(s string) rpmpkg.DependFlag {
	switch s {
	case "LT":
		return rpmpkg.Less
	case "GT":
		return rpmpkg.Greater
	case "EQ":
		return rpmpkg.Equal
	case "LE":
		return rpmpkg.LessEqual
	case "GE":
		return rpmpkg.GreaterEqual
	default:
		return rpmpkg.Any
	}
}

// GetRequires returns p's Requires, re-queried from this handle.
func (h *Handle) GetRequires(ctx context.Context, p *rpmpkg.Package) ([]rpmpkg.Depend, error) {
	return h.queryDeps(ctx, "requires", p.PkgID)
}

// GetProvides returns p's Provides, re-queried from this handle.
func (h *Handle) GetProvides(ctx context.Context, p *rpmpkg.Package) ([]rpmpkg.Depend, error) {
	return h.queryDeps(ctx, "provides", p.PkgID)
}

// GetObsoletes returns p's Obsoletes, re-queried from this handle.
func (h *Handle) GetObsoletes(ctx context.Context, p *rpmpkg.Package) ([]rpmpkg.Depend, error) {
	return h.queryDeps(ctx, "obsoletes", p.PkgID)
}

// GetConflicts returns p's Conflicts, re-queried from this handle.
func (h *Handle) GetConflicts(ctx context.Context, p *rpmpkg.Package) ([]rpmpkg.Depend, error) {
	return h.queryDeps(ctx, "conflicts", p.PkgID)
}

func (h *Handle) queryDeps(ctx context.Context, table, pkgid string) ([]rpmpkg.Depend, error) {
	if h.Kind == KindPrimaryXML {
		return h.xmlDepsFor(ctx, table, pkgid)
	}
	db, err := h.db()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return depends(ctx, db, table, pkgid)
}

// matchDepend reports whether candidate (a package's provide/requires/etc.
// entry) satisfies want, per RPM's dependency-matching rules: names must
// match, and if want carries a version constraint, candidate must carry one
// too and satisfy the operator (a provide with no version satisfies only an
// unversioned requirement).
func matchDepend(candidate, want rpmpkg.Depend) bool {
	if candidate.Name != want.Name {
		return false
	}
	if want.Flag == rpmpkg.Any {
		return true
	}
	if candidate.Flag == rpmpkg.Any {
		return false
	}
	c := rpmver.Compare(&candidate.EVR, &want.EVR)
	switch want.Flag {
	case rpmpkg.Equal:
		return c == 0
	case rpmpkg.Less:
		return c < 0
	case rpmpkg.Greater:
		return c > 0
	case rpmpkg.LessEqual:
		return c <= 0
	case rpmpkg.GreaterEqual:
		return c >= 0
	default:
		return false
	}
}

// whatX returns every package in this handle with at least one entry in the
// "column" slot (accessed via getter) matching any of wants.
func (h *Handle) whatX(ctx context.Context, table string, getter func(*rpmpkg.Package) []rpmpkg.Depend, wants []rpmpkg.Depend) ([]*rpmpkg.Package, error) {
	all, err := h.GetPackages(ctx)
	if err != nil {
		return nil, err
	}
	var out []*rpmpkg.Package
	for _, p := range all {
		// The XML path materializes dependency lists at parse time; the
		// sqlite path queries them on demand.
		if h.Kind != KindPrimaryXML {
			deps, err := h.queryDeps(ctx, table, p.PkgID)
			if err != nil {
				return nil, err
			}
			switch table {
			case "requires":
				p.Requires = deps
			case "provides":
				p.Provides = deps
			case "obsoletes":
				p.Obsoletes = deps
			case "conflicts":
				p.Conflicts = deps
			}
		}
		matched := false
		for _, d := range getter(p) {
			for _, w := range wants {
				if matchDepend(d, w) {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if matched {
			out = append(out, p)
		}
	}
	return out, nil
}

// WhatProvides returns packages providing any of wants.
func (h *Handle) WhatProvides(ctx context.Context, wants []rpmpkg.Depend) ([]*rpmpkg.Package, error) {
	return h.whatX(ctx, "provides", func(p *rpmpkg.Package) []rpmpkg.Depend { return p.Provides }, wants)
}

// WhatRequires returns packages requiring any of wants.
func (h *Handle) WhatRequires(ctx context.Context, wants []rpmpkg.Depend) ([]*rpmpkg.Package, error) {
	return h.whatX(ctx, "requires", func(p *rpmpkg.Package) []rpmpkg.Depend { return p.Requires }, wants)
}

// WhatObsoletes returns packages obsoleting any of wants.
func (h *Handle) WhatObsoletes(ctx context.Context, wants []rpmpkg.Depend) ([]*rpmpkg.Package, error) {
	return h.whatX(ctx, "obsoletes", func(p *rpmpkg.Package) []rpmpkg.Depend { return p.Obsoletes }, wants)
}

// WhatConflicts returns packages conflicting with any of wants.
func (h *Handle) WhatConflicts(ctx context.Context, wants []rpmpkg.Depend) ([]*rpmpkg.Package, error) {
	return h.whatX(ctx, "conflicts", func(p *rpmpkg.Package) []rpmpkg.Depend { return p.Conflicts }, wants)
}
