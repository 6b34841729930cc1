package metadata

import (
	"context"
	"encoding/xml"
	"os"
	"time"

	"github.com/zifproj/zif"
)

// Update is one advisory record joining updateinfo metadata with the
// packages it references. Changelog is filled in by the caller
// (storeremote.GetUpdateDetail) from other-sql metadata; this package
// produces the updateinfo-sourced fields, Packages included (from the
// advisory's pkglist).
type Update struct {
	ID          string
	Title       string
	Description string
	Issued      time.Time
	Source      string
	State       string
	Kind        string
	Reboot      bool

	Changelog []Changeset
	Packages  []UpdatePackageRef
	Refs      []string
}

// UpdatePackageRef is one <pkglist><collection><package> reference: the
// NEVRA of a package this advisory applies to, plus the pkgid it should
// cross-reference against primary metadata.
type UpdatePackageRef struct {
	Name, Epoch, Version, Release, Arch string
	PkgID                               string
}

// updatesDoc is the parsed shape of an updateinfo.xml document: a
// sequence of <update> elements, each with an id, title, issued date,
// description, and a pkglist of package references.
type updatesDoc struct {
	XMLName xml.Name      `xml:"updates"`
	Updates []updatesItem `xml:"update"`
}

type updatesItem struct {
	ID          string `xml:"id"`
	Type       string `xml:"type,attr"`
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Severity    string `xml:"severity"`
	Issued      struct {
		Date string `xml:"date,attr"`
	} `xml:"issued"`
	RebootSuggested bool `xml:"reboot_suggested"`
	References      struct {
		Reference []struct {
			ID string `xml:"id,attr"`
		} `xml:"reference"`
	} `xml:"references"`
	PkgList struct {
		Collection struct {
			Package []struct {
				Name    string `xml:"name,attr"`
				Epoch   string `xml:"epoch,attr"`
				Version string `xml:"version,attr"`
				Release string `xml:"release,attr"`
				Arch    string `xml:"arch,attr"`
				Sum     string `xml:"sum"`
			} `xml:"package"`
		} `xml:"collection"`
	} `xml:"pkglist"`
}

// GetDetailForPackage returns every advisory referencing packageID.
func (h *Handle) GetDetailForPackage(ctx context.Context, packageID string) ([]Update, error) {
	f, err := os.Open(h.LocalPath())
	if err != nil {
		return nil, &zif.Error{Op: "Handle.GetDetailForPackage", Kind: zif.ErrRecoverable, Inner: err}
	}
	defer f.Close()
	var doc updatesDoc
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, &zif.Error{Op: "Handle.GetDetailForPackage", Kind: zif.ErrMalformed, Inner: err}
	}

	var out []Update
	for _, u := range doc.Updates {
		var refs []UpdatePackageRef
		match := false
		for _, p := range u.PkgList.Collection.Package {
			refs = append(refs, UpdatePackageRef{
				Name: p.Name, Epoch: p.Epoch, Version: p.Version, Release: p.Release, Arch: p.Arch,
				PkgID: p.Sum,
			})
			if p.Sum == packageID {
				match = true
			}
		}
		if !match {
			continue
		}
		issued, _ := time.Parse("2006-01-02 15:04:05", u.Issued.Date)
		refstrs := make([]string, 0, len(u.References.Reference))
		for _, r := range u.References.Reference {
			refstrs = append(refstrs, r.ID)
		}
		out = append(out, Update{
			ID: u.ID, Title: u.Title, Description: u.Description,
			Issued: issued, Source: h.ID, State: "stable", Kind: u.Type,
			Reboot: u.RebootSuggested, Packages: refs, Refs: refstrs,
		})
	}
	return out, nil
}
