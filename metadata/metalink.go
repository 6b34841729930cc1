package metadata

import (
	"bufio"
	"context"
	"encoding/xml"
	"os"
	"sort"

	"github.com/zifproj/zif"
)

// metalinkDoc is the parsed shape of a metalink.xml document: a <files>
// list each with a set of <url preference="N"> mirrors.
type metalinkDoc struct {
	XMLName xml.Name `xml:"metalink"`
	Files   []struct {
		URLs []struct {
			Preference int    `xml:"preference,attr"`
			Value      string `xml:",chardata"`
		} `xml:"resources>url"`
	} `xml:"files>file"`
}

// maxMetalinkPreference is the compatibility cutoff: metalink URIs are filtered to
// preference <= 50.
const maxMetalinkPreference = 50

// GetURIs returns this metalink/mirrorlist handle's URIs. For metalink, only
// entries with preference <= 50 are kept, ordered by descending preference.
func (h *Handle) GetURIs(ctx context.Context) ([]string, error) {
	switch h.Kind {
	case KindMetalink:
		return h.metalinkURIs()
	case KindMirrorlist:
		return h.mirrorlistURIs()
	default:
		return nil, &zif.Error{Op: "Handle.GetURIs", Kind: zif.ErrNoSupport, Message: string(h.Kind)}
	}
}

func (h *Handle) metalinkURIs() ([]string, error) {
	f, err := os.Open(h.LocalPath())
	if err != nil {
		return nil, &zif.Error{Op: "Handle.GetURIs", Kind: zif.ErrRecoverable, Inner: err}
	}
	defer f.Close()
	var doc metalinkDoc
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, &zif.Error{Op: "Handle.GetURIs", Kind: zif.ErrMalformed, Inner: err}
	}
	if len(doc.Files) == 0 {
		return nil, &zif.Error{Op: "Handle.GetURIs", Kind: zif.ErrNoData}
	}
	type entry struct {
		pref int
		uri  string
	}
	var entries []entry
	for _, u := range doc.Files[0].URLs {
		if u.Preference <= maxMetalinkPreference {
			entries = append(entries, entry{u.Preference, u.Value})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].pref > entries[j].pref })
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.uri
	}
	return out, nil
}

func (h *Handle) mirrorlistURIs() ([]string, error) {
	f, err := os.Open(h.LocalPath())
	if err != nil {
		return nil, &zif.Error{Op: "Handle.GetURIs", Kind: zif.ErrRecoverable, Inner: err}
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, &zif.Error{Op: "Handle.GetURIs", Kind: zif.ErrMalformed, Inner: err}
	}
	return out, nil
}
