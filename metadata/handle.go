// Package metadata implements [Handle], the engine's uniform
// MetadataHandle capability: "a file on disk that describes some repository
// facet", plus one query reader per metadata Kind (primary, filelists,
// other, comps, updateinfo, prestodelta, metalink, mirrorlist, pkgtags).
// The *SQL kinds read sqlite databases with fixed query constants; the XML
// kinds stream-decode their documents.
package metadata

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/zifproj/zif"
	"github.com/zifproj/zif/checksum"
)

// Kind names one of the metadata facets a repomd.xml <data type=...> entry
// can describe.
type Kind string

// Recognized metadata kinds, matching repomd.xml's <data type="..."> values.
const (
	KindPrimarySQL    Kind = "primary_db"
	KindPrimaryXML    Kind = "primary"
	KindFilelistsSQL  Kind = "filelists_db"
	KindFilelistsXML  Kind = "filelists"
	KindOtherSQL      Kind = "other_db"
	KindOtherXML      Kind = "other"
	KindComps         Kind = "group"
	KindCompsGz       Kind = "group_gz"
	KindUpdateinfo    Kind = "updateinfo"
	KindPrestodelta   Kind = "prestodelta"
	KindMetalink      Kind = "metalink"
	KindMirrorlist    Kind = "mirrorlist"
	KindPkgtags       Kind = "pkgtags"
)

// Info is the repomd.xml-sourced descriptor for one metadata artifact:
// location, checksum, and freshness.
type Info struct {
	Location             string
	Checksum             checksum.Digest
	ChecksumUncompressed checksum.Digest
	Timestamp            time.Time
	MaxAge               time.Duration
}

// Handle is one metadata artifact belonging to one repository. Polymorphism
// across metadata kinds is by the Kind field; kind-specific queries are
// implemented by the methods in this package's other files, and queries that
// exist in both an XML and an sqlite form dispatch on Kind.
//
// A Handle must be [Handle.Load]ed before its query methods are valid;
// Load's only job is verifying the uncompressed checksum, not fetching --
// fetching is [storeremote.Store]'s job via [download.Download].
type Handle struct {
	Kind Kind
	// ID is the owning store's id.
	ID string
	// CacheDir is this store's cache directory (cache_dir/id).
	CacheDir string
	// FilenameRaw is the possibly-compressed file as published.
	FilenameRaw string
	// Filename is the decompressed file this Handle actually reads.
	Filename string

	Info Info

	loaded bool
}

// LocalPath returns the absolute path to the (decompressed) metadata file.
func (h *Handle) LocalPath() string {
	if h.Filename == "" {
		return ""
	}
	return filepath.Join(h.CacheDir, h.Filename)
}

// RawPath returns the absolute path to the (possibly compressed) file as
// published.
func (h *Handle) RawPath() string {
	if h.FilenameRaw == "" {
		return h.LocalPath()
	}
	return filepath.Join(h.CacheDir, h.FilenameRaw)
}

// Load verifies the uncompressed checksum and marks the Handle ready for
// queries. It does not fetch anything.
func (h *Handle) Load(ctx context.Context) error {
	if err := h.CheckUncompressed(ctx); err != nil {
		return err
	}
	h.loaded = true
	return nil
}

// Loaded reports whether Load has succeeded since the last Clean.
func (h *Handle) Loaded() bool { return h.loaded }

// Clean removes this Handle's on-disk files and marks it unloaded.
func (h *Handle) Clean() error {
	h.loaded = false
	var firstErr error
	for _, p := range []string{h.LocalPath(), h.RawPath()} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Check verifies FilenameRaw's checksum against Info.Checksum.
func (h *Handle) Check(ctx context.Context) error {
	return checkFile(h.RawPath(), h.Info.Checksum)
}

// CheckUncompressed verifies Filename's checksum against
// Info.ChecksumUncompressed, and that the handle is still fresh
// (now - timestamp <= max_age). A mismatch reports
// [zif.ErrChecksumMismatch]; absence and staleness report
// [zif.ErrRecoverable]. Any error means the handle needs a refresh.
func (h *Handle) CheckUncompressed(ctx context.Context) error {
	if err := checkFile(h.LocalPath(), h.Info.ChecksumUncompressed); err != nil {
		return err
	}
	if age := h.GetAge(); h.Info.MaxAge > 0 && age > h.Info.MaxAge {
		return &zif.Error{Op: "Handle.CheckUncompressed", Kind: zif.ErrRecoverable,
			Message: "metadata stale: needs refresh"}
	}
	return nil
}

// GetAge reports how long ago this Handle's timestamp claims the metadata
// was published.
func (h *Handle) GetAge() time.Duration {
	if h.Info.Timestamp.IsZero() {
		return 0
	}
	return time.Since(h.Info.Timestamp)
}

// checkFile hashes the file at path with sum's algorithm and compares.
func checkFile(path string, sum checksum.Digest) error {
	if path == "" || sum.IsZero() {
		return &zif.Error{Op: "metadata.checkFile", Kind: zif.ErrRecoverable, Message: "no checksum to verify against"}
	}
	f, err := os.Open(path)
	if err != nil {
		return &zif.Error{Op: "metadata.checkFile", Kind: zif.ErrRecoverable, Inner: err}
	}
	defer f.Close()

	h := sum.Hash()
	if _, err := io.Copy(h, f); err != nil {
		return &zif.Error{Op: "metadata.checkFile", Kind: zif.ErrRecoverable, Inner: err}
	}
	got := h.Sum(nil)
	want := sum.Checksum()
	if string(got) != string(want) {
		return &zif.Error{Op: "metadata.checkFile", Kind: zif.ErrChecksumMismatch,
			Message: path}
	}
	return nil
}
