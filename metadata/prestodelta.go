package metadata

import (
	"context"
	"encoding/xml"
	"os"

	"github.com/zifproj/zif"
)

// Delta describes a delta RPM that rebuilds newID's package from oldID's.
type Delta struct {
	OldPkgID     string
	NewPkgID     string
	Sequence     string
	Size         uint64
	Checksum     string
	LocationHref string
}

type prestodeltaDoc struct {
	XMLName xml.Name `xml:"prestodelta"`
	Newpkg  []struct {
		Name    string `xml:"name,attr"`
		Deltas  []struct {
			OldPkgID     string `xml:"oldhash"`
			NewPkgID     string `xml:"newhash"`
			Sequence     string `xml:"sequence"`
			Size         uint64 `xml:"size"`
			Checksum     string `xml:"checksum"`
			LocationHref struct {
				Href string `xml:"href,attr"`
			} `xml:"filename"`
		} `xml:"delta"`
	} `xml:"newpackage"`
}

// SearchForPackage returns the delta that rebuilds newID from oldID, if the
// prestodelta metadata publishes one.
func (h *Handle) SearchForPackage(ctx context.Context, newID, oldID string) (*Delta, error) {
	f, err := os.Open(h.LocalPath())
	if err != nil {
		return nil, &zif.Error{Op: "Handle.SearchForPackage", Kind: zif.ErrRecoverable, Inner: err}
	}
	defer f.Close()
	var doc prestodeltaDoc
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, &zif.Error{Op: "Handle.SearchForPackage", Kind: zif.ErrMalformed, Inner: err}
	}
	for _, np := range doc.Newpkg {
		for _, d := range np.Deltas {
			if d.NewPkgID == newID && d.OldPkgID == oldID {
				return &Delta{
					OldPkgID: d.OldPkgID, NewPkgID: d.NewPkgID, Sequence: d.Sequence,
					Size: d.Size, Checksum: d.Checksum, LocationHref: d.LocationHref.Href,
				}, nil
			}
		}
	}
	return nil, nil
}
