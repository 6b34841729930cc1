package metadata

import (
	"context"
	"strings"

	"github.com/zifproj/zif"
	"github.com/zifproj/zif/rpmpkg"
)

const (
	qFileSearch = `SELECT p.pkgId FROM packages p JOIN filelist f
		ON f.pkgKey = p.pkgKey WHERE f.dirname || '/' || f.filenames LIKE ?`
	qFilesForPkg = `SELECT f.dirname, f.filenames FROM filelist f
		JOIN packages p ON p.pkgKey = f.pkgKey WHERE p.pkgId = ?`
)

// SearchFile returns the pkgids of packages that own a file matching any of
// patterns (substring match against "dirname/filenames").
func (h *Handle) SearchFile(ctx context.Context, patterns []string) ([]string, error) {
	if h.Kind == KindFilelistsXML {
		doc, err := h.parseFilelistsXML()
		if err != nil {
			return nil, err
		}
		seen := make(map[string]struct{})
		var out []string
		for _, p := range doc.Packages {
			for _, f := range p.Files {
				matched := false
				for _, pat := range patterns {
					if strings.Contains(f, pat) {
						matched = true
						break
					}
				}
				if matched {
					if _, ok := seen[p.PkgID]; !ok {
						seen[p.PkgID] = struct{}{}
						out = append(out, p.PkgID)
					}
					break
				}
			}
		}
		return out, nil
	}
	db, err := h.db()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	seen := make(map[string]struct{})
	var out []string
	for _, pat := range patterns {
		rows, err := db.QueryContext(ctx, qFileSearch, "%"+pat+"%")
		if err != nil {
			return nil, &zif.Error{Op: "Handle.SearchFile", Kind: zif.ErrInternal, Inner: err}
		}
		for rows.Next() {
			var pkgid string
			if err := rows.Scan(&pkgid); err != nil {
				rows.Close()
				return nil, &zif.Error{Op: "Handle.SearchFile", Kind: zif.ErrMalformed, Inner: err}
			}
			if _, ok := seen[pkgid]; !ok {
				seen[pkgid] = struct{}{}
				out = append(out, pkgid)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, &zif.Error{Op: "Handle.SearchFile", Kind: zif.ErrMalformed, Inner: err}
		}
	}
	return out, nil
}

// GetFiles returns the file list owned by p.
func (h *Handle) GetFiles(ctx context.Context, p *rpmpkg.Package) ([]string, error) {
	if h.Kind == KindFilelistsXML {
		doc, err := h.parseFilelistsXML()
		if err != nil {
			return nil, err
		}
		for _, e := range doc.Packages {
			if e.PkgID == p.PkgID {
				return append([]string(nil), e.Files...), nil
			}
		}
		return nil, nil
	}
	db, err := h.db()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, qFilesForPkg, p.PkgID)
	if err != nil {
		return nil, &zif.Error{Op: "Handle.GetFiles", Kind: zif.ErrInternal, Inner: err}
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var dirname, filenames string
		if err := rows.Scan(&dirname, &filenames); err != nil {
			return nil, &zif.Error{Op: "Handle.GetFiles", Kind: zif.ErrMalformed, Inner: err}
		}
		for _, f := range strings.Fields(filenames) {
			out = append(out, strings.TrimSuffix(dirname, "/")+"/"+f)
		}
	}
	return out, rows.Err()
}

// WhatProvidesFile augments a what_provides search for Depends whose name
// starts with "/" (a file-provide) and Flag is [rpmpkg.Any], by searching
// this filelists handle and synthesizing a matching package lookup. It's
// called from storeremote, which also consults the primary handle for
// name-provides and merges the two result sets.
func (h *Handle) WhatProvidesFile(ctx context.Context, wants []rpmpkg.Depend) ([]string, error) {
	var patterns []string
	for _, w := range wants {
		if strings.HasPrefix(w.Name, "/") && w.Flag == rpmpkg.Any {
			patterns = append(patterns, w.Name)
		}
	}
	if len(patterns) == 0 {
		return nil, nil
	}
	return h.SearchFile(ctx, patterns)
}
