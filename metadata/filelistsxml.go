package metadata

import (
	"encoding/xml"
	"os"

	"github.com/zifproj/zif"
)

// filelistsDoc is the parsed shape of a filelists.xml document: one
// <package pkgid=...> per package, each with a flat list of <file> paths.
type filelistsDoc struct {
	XMLName  xml.Name `xml:"filelists"`
	Packages []struct {
		PkgID string   `xml:"pkgid,attr"`
		Name  string   `xml:"name,attr"`
		Files []string `xml:"file"`
	} `xml:"package"`
}

func (h *Handle) parseFilelistsXML() (*filelistsDoc, error) {
	f, err := os.Open(h.LocalPath())
	if err != nil {
		return nil, &zif.Error{Op: "Handle.parseFilelistsXML", Kind: zif.ErrRecoverable, Inner: err}
	}
	defer f.Close()
	var doc filelistsDoc
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, &zif.Error{Op: "Handle.parseFilelistsXML", Kind: zif.ErrMalformed, Inner: err}
	}
	return &doc, nil
}
