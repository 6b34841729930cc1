package metadata

import (
	"context"
	"encoding/xml"
	"os"

	"github.com/zifproj/zif"
)

// Category is the two-level comps taxonomy entry: a group/category with an
// optional parent.
type Category struct {
	ParentID string
	CatID    string
	Name     string
	Summary  string
	Icon     string

	// Packages lists the package names belonging to this category, when
	// this Category was produced as a group (comps' <packagelist>).
	Packages []string
}

// compsDoc is the parsed shape of a comps.xml document: top-level
// <category> elements containing <grouplist><groupid>, and top-level
// <group> elements containing a <packagelist> of <packagereq>.
type compsDoc struct {
	XMLName    xml.Name `xml:"comps"`
	Categories []struct {
		ID        string `xml:"id"`
		Name      string `xml:"name"`
		Desc      string `xml:"description"`
		GroupList struct {
			GroupIDs []string `xml:"groupid"`
		} `xml:"grouplist"`
	} `xml:"category"`
	Groups []struct {
		ID          string `xml:"id"`
		Name        string `xml:"name"`
		Desc        string `xml:"description"`
		PackageList struct {
			Packages []string `xml:"packagereq"`
		} `xml:"packagelist"`
	} `xml:"group"`
}

// parseComps reads this Handle's comps.xml file.
func (h *Handle) parseComps() (*compsDoc, error) {
	f, err := os.Open(h.LocalPath())
	if err != nil {
		return nil, &zif.Error{Op: "Handle.parseComps", Kind: zif.ErrRecoverable, Inner: err}
	}
	defer f.Close()
	var doc compsDoc
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, &zif.Error{Op: "Handle.parseComps", Kind: zif.ErrMalformed, Inner: err}
	}
	return &doc, nil
}

// GetCategories returns every top-level category in this comps handle.
func (h *Handle) GetCategories(ctx context.Context) ([]Category, error) {
	doc, err := h.parseComps()
	if err != nil {
		return nil, err
	}
	out := make([]Category, 0, len(doc.Categories))
	for _, c := range doc.Categories {
		out = append(out, Category{CatID: c.ID, Name: c.Name, Summary: c.Desc})
	}
	return out, nil
}

// GetGroupsForCategory returns the groups belonging to catID, rendered as
// [Category] per the two-level taxonomy (categories contain groups).
func (h *Handle) GetGroupsForCategory(ctx context.Context, catID string) ([]Category, error) {
	doc, err := h.parseComps()
	if err != nil {
		return nil, err
	}
	var want map[string]struct{}
	for _, c := range doc.Categories {
		if c.ID == catID {
			want = make(map[string]struct{}, len(c.GroupList.GroupIDs))
			for _, g := range c.GroupList.GroupIDs {
				want[g] = struct{}{}
			}
			break
		}
	}
	if want == nil {
		return nil, &zif.Error{Op: "Handle.GetGroupsForCategory", Kind: zif.ErrFailedToFind, Message: catID}
	}
	var out []Category
	for _, g := range doc.Groups {
		if _, ok := want[g.ID]; !ok {
			continue
		}
		out = append(out, Category{
			ParentID: catID, CatID: g.ID, Name: g.Name, Summary: g.Desc,
			Packages: append([]string(nil), g.PackageList.Packages...),
		})
	}
	return out, nil
}

// GetPackagesForGroup returns the package names belonging to groupID.
func (h *Handle) GetPackagesForGroup(ctx context.Context, groupID string) ([]string, error) {
	doc, err := h.parseComps()
	if err != nil {
		return nil, err
	}
	for _, g := range doc.Groups {
		if g.ID == groupID {
			return append([]string(nil), g.PackageList.Packages...), nil
		}
	}
	return nil, &zif.Error{Op: "Handle.GetPackagesForGroup", Kind: zif.ErrFailedToFind, Message: groupID}
}
