package metadata

import (
	"context"
	"time"

	"github.com/zifproj/zif"
)

const qChangelog = `SELECT author, date, changelog FROM changelog c
	JOIN packages p ON p.pkgKey = c.pkgKey WHERE p.pkgId = ? ORDER BY date DESC`

// Changeset is a single changelog entry for a package version.
type Changeset struct {
	Author string
	Date   time.Time
	Text   string
}

// GetChangelog returns pkgid's changelog entries, newest first.
func (h *Handle) GetChangelog(ctx context.Context, pkgid string) ([]Changeset, error) {
	db, err := h.db()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, qChangelog, pkgid)
	if err != nil {
		return nil, &zif.Error{Op: "Handle.GetChangelog", Kind: zif.ErrInternal, Inner: err}
	}
	defer rows.Close()
	var out []Changeset
	for rows.Next() {
		var author string
		var date int64
		var text string
		if err := rows.Scan(&author, &date, &text); err != nil {
			return nil, &zif.Error{Op: "Handle.GetChangelog", Kind: zif.ErrMalformed, Inner: err}
		}
		out = append(out, Changeset{Author: author, Date: time.Unix(date, 0).UTC(), Text: text})
	}
	return out, rows.Err()
}
