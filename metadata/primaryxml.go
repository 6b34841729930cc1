package metadata

import (
	"context"
	"encoding/xml"
	"os"

	"github.com/zifproj/zif"
	"github.com/zifproj/zif/rpmpkg"
	"github.com/zifproj/zif/rpmver"
)

// primaryDoc is the parsed shape of a primary.xml document as published by
// createrepo_c: one <package type="rpm"> per package, with the NEVRA split
// across attributes, the pkgid carried as the <checksum pkgid="YES"> text,
// and the dependency lists nested under <format>.
type primaryDoc struct {
	XMLName  xml.Name          `xml:"metadata"`
	Packages []primaryXMLEntry `xml:"package"`
}

type primaryXMLEntry struct {
	Name    string `xml:"name"`
	Arch    string `xml:"arch"`
	Version struct {
		Epoch string `xml:"epoch,attr"`
		Ver   string `xml:"ver,attr"`
		Rel   string `xml:"rel,attr"`
	} `xml:"version"`
	Checksum struct {
		Type  string `xml:"type,attr"`
		PkgID string `xml:"pkgid,attr"`
		Value string `xml:",chardata"`
	} `xml:"checksum"`
	Summary     string `xml:"summary"`
	Description string `xml:"description"`
	URL         string `xml:"url"`
	Size        struct {
		Package uint64 `xml:"package,attr"`
	} `xml:"size"`
	Location struct {
		Href string `xml:"href,attr"`
	} `xml:"location"`
	Format struct {
		License   string            `xml:"license"`
		Group     string            `xml:"group"`
		Provides  []primaryXMLDep   `xml:"provides>entry"`
		Requires  []primaryXMLDep   `xml:"requires>entry"`
		Obsoletes []primaryXMLDep   `xml:"obsoletes>entry"`
		Conflicts []primaryXMLDep   `xml:"conflicts>entry"`
		Files     []string          `xml:"file"`
	} `xml:"format"`
}

type primaryXMLDep struct {
	Name  string `xml:"name,attr"`
	Flags string `xml:"flags,attr"`
	Epoch string `xml:"epoch,attr"`
	Ver   string `xml:"ver,attr"`
	Rel   string `xml:"rel,attr"`
}

func xmlDepends(entries []primaryXMLDep) []rpmpkg.Depend {
	if len(entries) == 0 {
		return nil
	}
	out := make([]rpmpkg.Depend, 0, len(entries))
	for _, e := range entries {
		out = append(out, rpmpkg.Depend{
			Name: e.Name,
			Flag: xmlFlag(e.Flags),
			EVR:  rpmver.Version{Epoch: e.Epoch, Version: e.Ver, Release: e.Rel},
		})
	}
	return out
}

// xmlFlag maps primary.xml's flags attribute ("LT", "GE", ...) to a
// DependFlag; it's the same vocabulary the sqlite schema stores.
func xmlFlag(s string) rpmpkg.DependFlag {
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

// xmlPackages reads this primary-xml Handle's whole package list, with
// dependency lists already populated (unlike the sqlite path, which queries
// them on demand).
func (h *Handle) xmlPackages(ctx context.Context) ([]*rpmpkg.Package, error) {
	f, err := os.Open(h.LocalPath())
	if err != nil {
		return nil, &zif.Error{Op: "Handle.xmlPackages", Kind: zif.ErrRecoverable, Inner: err}
	}
	defer f.Close()
	var doc primaryDoc
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, &zif.Error{Op: "Handle.xmlPackages", Kind: zif.ErrMalformed, Inner: err}
	}

	out := make([]*rpmpkg.Package, 0, len(doc.Packages))
	for _, e := range doc.Packages {
		name, arch := e.Name, e.Arch
		p := &rpmpkg.Package{
			PkgID: e.Checksum.Value,
			Version: rpmver.Version{
				Name: &name, Architecture: &arch,
				Epoch: e.Version.Epoch, Version: e.Version.Ver, Release: e.Version.Rel,
			},
			Summary: e.Summary, Description: e.Description, URL: e.URL,
			License: e.Format.License, Group: rpmpkg.Group(e.Format.Group),
			Size: e.Size.Package, LocationHref: e.Location.Href,
			Files:  append([]string(nil), e.Format.Files...),
			Source: h.ID,

			Requires:  xmlDepends(e.Format.Requires),
			Provides:  xmlDepends(e.Format.Provides),
			Obsoletes: xmlDepends(e.Format.Obsoletes),
			Conflicts: xmlDepends(e.Format.Conflicts),
		}
		out = append(out, p)
	}
	return out, nil
}

// xmlDepsFor returns the named dependency list of the package with the
// given pkgid, for the sqlite path's queryDeps dispatch.
func (h *Handle) xmlDepsFor(ctx context.Context, table, pkgid string) ([]rpmpkg.Depend, error) {
	all, err := h.xmlPackages(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if p.PkgID != pkgid {
			continue
		}
		switch table {
		case "requires":
			return p.Requires, nil
		case "provides":
			return p.Provides, nil
		case "obsoletes":
			return p.Obsoletes, nil
		case "conflicts":
			return p.Conflicts, nil
		}
	}
	return nil, nil
}
