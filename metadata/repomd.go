package metadata

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/zifproj/zif"
	"github.com/zifproj/zif/checksum"
)

// Repomd is the parsed shape of a repository's repomd.xml root manifest:
// one <data type=...> element per
// metadata kind, each with a <location>, a compressed <checksum>, an
// <open-checksum>, and a <timestamp>.
type Repomd struct {
	XMLName xml.Name      `xml:"repomd"`
	Data    []repomdEntry `xml:"data"`
}

type repomdEntry struct {
	Type     string `xml:"type,attr"`
	Location struct {
		Href string `xml:"href,attr"`
		Base string `xml:"base,attr"` // xml:base, if present
	} `xml:"location"`
	Checksum struct {
		Type  string `xml:"type,attr"`
		Value string `xml:",chardata"`
	} `xml:"checksum"`
	OpenChecksum struct {
		Type  string `xml:"type,attr"`
		Value string `xml:",chardata"`
	} `xml:"open-checksum"`
	Timestamp string `xml:"timestamp"`
}

// ParseRepomd decodes a repomd.xml document.
func ParseRepomd(r io.Reader) (*Repomd, error) {
	var rm Repomd
	if err := xml.NewDecoder(r).Decode(&rm); err != nil {
		return nil, &zif.Error{Op: "metadata.ParseRepomd", Kind: zif.ErrMalformed, Inner: err}
	}
	return &rm, nil
}

// Handles builds one Handle per <data> entry, keyed by [Kind], rooted at
// cacheDir/id. maxAge is applied to every Handle (the repository's
// metadata_expire, expanded by the caller). extraBaseURIs collects any
// xml:base attribute found on a <location>; an xml:base names an extra
// base URI the download pool should carry.
func (rm *Repomd) Handles(id, cacheDir string, maxAge time.Duration) (handles map[Kind]*Handle, extraBaseURIs []string, err error) {
	handles = make(map[Kind]*Handle)
	for _, d := range rm.Data {
		k := Kind(d.Type)
		ts, _ := strconv.ParseInt(d.Timestamp, 10, 64)

		var sum, openSum checksum.Digest
		if d.Checksum.Value != "" {
			sum, err = checksum.New(normalizeAlgo(d.Checksum.Type), mustHex(d.Checksum.Value))
			if err != nil {
				return nil, nil, &zif.Error{Op: "metadata.Handles", Kind: zif.ErrMalformed, Inner: err}
			}
		}
		if d.OpenChecksum.Value != "" {
			openSum, err = checksum.New(normalizeAlgo(d.OpenChecksum.Type), mustHex(d.OpenChecksum.Value))
			if err != nil {
				return nil, nil, &zif.Error{Op: "metadata.Handles", Kind: zif.ErrMalformed, Inner: err}
			}
		}

		h := &Handle{
			Kind:        k,
			ID:          id,
			CacheDir:    cacheDir,
			FilenameRaw: baseName(d.Location.Href),
			Filename:    stripCompressionSuffix(baseName(d.Location.Href)),
			Info: Info{
				Location:             d.Location.Href,
				Checksum:             sum,
				ChecksumUncompressed: openSum,
				Timestamp:            time.Unix(ts, 0).UTC(),
				MaxAge:               maxAge,
			},
		}
		if openSum.IsZero() {
			// Some kinds (pre-checksum tooling) only publish the compressed
			// checksum and the file isn't compressed at all.
			h.Info.ChecksumUncompressed = sum
		}
		handles[k] = h
		if d.Location.Base != "" {
			extraBaseURIs = append(extraBaseURIs, d.Location.Base)
		}
	}
	if _, ok := handles[KindPrimarySQL]; !ok {
		if _, ok := handles[KindPrimaryXML]; !ok {
			return nil, nil, &zif.Error{Op: "metadata.Handles", Kind: zif.ErrMalformed,
				Message: "repomd.xml has neither primary nor primary_db"}
		}
	}
	return handles, extraBaseURIs, nil
}

func normalizeAlgo(t string) string {
	switch t {
	case "sha", "sha1", "md5", "sha256":
		return t
	default:
		return t
	}
}

// mustHex decodes a hex checksum string, returning nil on malformed input so
// the caller's checksum.New surfaces a normal error rather than panicking.
func mustHex(s string) []byte {
	b := make([]byte, len(s)/2)
	for i := range b {
		var v byte
		if _, err := fmt.Sscanf(s[i*2:i*2+2], "%02x", &v); err != nil {
			return nil
		}
		b[i] = v
	}
	return b
}

func baseName(href string) string {
	for i := len(href) - 1; i >= 0; i-- {
		if href[i] == '/' {
			return href[i+1:]
		}
	}
	return href
}

func stripCompressionSuffix(name string) string {
	for _, suf := range []string{".gz", ".xz", ".zst", ".bz2"} {
		if len(name) > len(suf) && name[len(name)-len(suf):] == suf {
			return name[:len(name)-len(suf)]
		}
	}
	return name
}
