// Package rpmpkg implements the Package record: an immutable description of
// an RPM, whether it comes from the local system's installed-package
// database or from a remote repository's primary metadata.
package rpmpkg

import (
	"context"
	"fmt"
	"strings"

	"github.com/zifproj/zif"
	"github.com/zifproj/zif/rpmver"
)

// Group is the enumerated package-group classification carried by primary
// metadata (the "Group:" RPM tag family).
type Group string

// Recognized groups. Not exhaustive -- unrecognized values are kept verbatim
// in [Package.Group]; this enum exists only for the handful of groups callers
// branch on.
const (
	GroupUnspecified Group = ""
	GroupSystem      Group = "System Environment"
	GroupApplication Group = "Applications"
	GroupDevelopment Group = "Development"
	GroupDocumentation Group = "Documentation"
)

// DependFlag is the comparison operator carried by a [Depend].
type DependFlag int

// Recognized comparison operators for a Depend's evr.
const (
	Any DependFlag = iota
	Less
	Greater
	Equal
	LessEqual
	GreaterEqual
)

// String implements [fmt.Stringer].
func (f DependFlag) String() string {
	switch f {
	case Less:
		return "<"
	case Greater:
		return ">"
	case Equal:
		return "="
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	default:
		return ""
	}
}

// Depend is a single requires/provides/obsoletes/conflicts entry: a name, an
// optional comparison operator, and the EVR that operator compares against.
//
// A Depend with Flag == [Any] carries no version constraint; EVR is ignored.
type Depend struct {
	Name string
	Flag DependFlag
	EVR  rpmver.Version
}

// String renders "name flag evr" (or bare "name" when Flag is [Any]).
func (d Depend) String() string {
	if d.Flag == Any {
		return d.Name
	}
	return fmt.Sprintf("%s %s %s", d.Name, d.Flag, d.EVR.EVR())
}

// Package is an immutable package record, constructed by storelocal
// (installed=true), by storedirectory from .rpm files (installed=false), or
// by a metadata reader behind storeremote (installed=false).
type Package struct {
	Version rpmver.Version // Name/Epoch/Version/Release/Architecture.

	// PkgID is the repository's opaque per-package checksum (remote only).
	PkgID string

	Summary     string
	Description string
	License     string
	URL         string
	Category    string
	Group       Group
	Size        uint64

	Files []string

	Requires  []Depend
	Provides  []Depend
	Obsoletes []Depend
	Conflicts []Depend

	// Installed is true for packages produced by StoreLocal.
	Installed bool

	// Source is "installed" for installed packages, else the id of the
	// producing [store.Store].
	Source string

	// LocationHref is the repository-relative path to the RPM (remote only).
	LocationHref string

	// InstalledVersion, when non-nil, is the currently installed version of
	// a package with the same name as this (remote) package -- used to
	// render deltas and to decide whether this package is an update.
	InstalledVersion *Package
}

// Name returns the package's name.
func (p *Package) Name() string {
	if p.Version.Name == nil {
		return ""
	}
	return *p.Version.Name
}

// Arch returns the package's architecture.
func (p *Package) Arch() string {
	if p.Version.Architecture == nil {
		return ""
	}
	return *p.Version.Architecture
}

// EVR returns the package's epoch:version-release string.
func (p *Package) EVR() string { return p.Version.EVR() }

// Identity renders the canonical "name;evr;arch;source" printable form.
func (p *Package) Identity() string { return p.Version.Identity(p.Source) }

// String implements [fmt.Stringer].
func (p *Package) String() string { return p.Identity() }

// Compare orders a and b by EVR, per [rpmver.Compare], but only when their
// names match; otherwise the packages are incomparable and Compare reports
// that with ok=false rather than a sentinel integer.
func Compare(a, b *Package) (cmp int, ok bool) {
	if a.Name() != b.Name() {
		return 0, false
	}
	return rpmver.Compare(&a.Version, &b.Version), true
}

// devSuffixes is the set of name suffixes that mark a package as
// development/debug tooling rather than a runtime artifact.
var devSuffixes = []string{"-debuginfo", "-devel", "-static", "-libs"}

// IsDevel reports whether the package's name ends in a development/debug
// suffix (-debuginfo, -devel, -static, -libs).
func (p *Package) IsDevel() bool {
	name := p.Name()
	for _, suf := range devSuffixes {
		if strings.HasSuffix(name, suf) {
			return true
		}
	}
	return false
}

// IsGUI reports whether any of the package's Requires names reference a
// known GUI toolkit (gtk or kde, case-insensitively).
func (p *Package) IsGUI() bool {
	for _, d := range p.Requires {
		l := strings.ToLower(d.Name)
		if strings.Contains(l, "gtk") || strings.Contains(l, "kde") {
			return true
		}
	}
	return false
}

// IsFree reports whether the package's License field passes the free-license
// recognizer: the license text is a sequence of AND-joined groups, each
// group a sequence of OR-joined clauses, and the package is free iff every
// group has at least one clause present in "free", a caller-supplied
// vocabulary of recognized free-license tokens. A trailing "+" on a
// clause is stripped before lookup.
func (p *Package) IsFree(free map[string]struct{}) bool {
	text := strings.TrimSpace(p.License)
	if text == "" || len(free) == 0 {
		return false
	}
	for _, group := range splitLicense(text, " and ", " AND ") {
		ok := false
		for _, clause := range splitLicense(group, " or ", " OR ") {
			clause = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(clause), "+"))
			if _, present := free[clause]; present {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// splitLicense splits text on whichever of the given separators actually
// appears in it, case-sensitively, trying each in turn; license strings
// mix case inconsistently in the wild so callers pass both cases.
func splitLicense(text string, seps ...string) []string {
	for _, sep := range seps {
		if strings.Contains(text, sep) {
			return strings.Split(text, sep)
		}
	}
	return []string{text}
}

// Downloader is the capability [Package.Download] needs from the remote
// store that produced this package: fetching its RPM payload into a target
// directory.
type Downloader interface {
	DownloadFull(ctx context.Context, relativePath, targetDir string) (string, error)
}

// Download fetches this package's RPM into targetDir via "via", the remote
// store that produced it. It fails for installed packages, which have no
// location to fetch from.
func (p *Package) Download(ctx context.Context, via Downloader, targetDir string) (string, error) {
	if p.Installed {
		return "", &zif.Error{Op: "Package.Download", Kind: zif.ErrNoSupport, Message: "package is installed, has no remote location"}
	}
	if p.LocationHref == "" {
		return "", &zif.Error{Op: "Package.Download", Kind: zif.ErrNoData, Message: "package has no location_href"}
	}
	return via.DownloadFull(ctx, p.LocationHref, targetDir)
}
