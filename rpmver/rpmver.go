// Package rpmver implements RPM versioning: parsing and comparing
// NEVR(A)/EVR strings, and formatting the canonical package-identity form
// this engine uses everywhere a [Package] needs to be named unambiguously.
package rpmver

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Version is a type for representing NEVRA, NEVR, EVR, and EVRA strings.
//
// The zero Version's [Version.EVR] is "-": an epoch of "" or "0" is never
// printed, so neither the zero value nor a [Parse]d Version carrying the
// default epoch "0" shows one.
type Version struct {
	Name         *string
	Architecture *string
	Epoch        string
	Version      string
	Release      string
}

// Evr writes the formatted EVR string into "b".
func (v *Version) evr(b *strings.Builder) {
	if v.Epoch != "0" && v.Epoch != "" {
		b.WriteString(v.Epoch)
		b.WriteByte(':')
	}
	b.WriteString(v.Version)
	b.WriteByte('-')
	b.WriteString(v.Release)
}

// String implements [fmt.Stringer], rendering "name-evr.arch".
func (v *Version) String() string {
	var b strings.Builder
	if v.Name != nil {
		b.WriteString(*v.Name)
		b.WriteByte('-')
	}
	v.evr(&b)
	if v.Architecture != nil {
		b.WriteByte('.')
		b.WriteString(*v.Architecture)
	}
	return b.String()
}

// Identity renders the canonical "name;evr;arch;source" printable form that
// this engine uses as a package's printable identity, where source is either
// "installed" or the id of the producing remote repository.
func (v *Version) Identity(source string) string {
	var b strings.Builder
	if v.Name != nil {
		b.WriteString(*v.Name)
	}
	b.WriteByte(';')
	v.evr(&b)
	b.WriteByte(';')
	if v.Architecture != nil {
		b.WriteString(*v.Architecture)
	}
	b.WriteByte(';')
	b.WriteString(source)
	return b.String()
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (v *Version) UnmarshalText(text []byte) (err error) {
	if v == nil {
		v = new(Version)
	}
	*v, err = Parse(string(text))
	return err
}

// MarshalText implements [encoding.TextMarshaler].
func (v *Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// IsZero reports true if the receiver is a zero-valued [Version].
func (v *Version) IsZero() bool {
	return v.Name == nil && v.Architecture == nil && v.Epoch == "" && v.Version == "" && v.Release == ""
}

// EVR returns a formatted EVR string.
func (v *Version) EVR() string {
	var b strings.Builder
	v.evr(&b)
	return b.String()
}

// Parse returns a Version for the provided NEVRA/NEVR/EVR/EVRA string, or an
// error if it's malformed.
func Parse(v string) (Version, error) {
	ret := Version{
		Epoch: "0",
	}
	switch strings.Count(v, "-") {
	case 0:
		// Missing something: can't be `version-release`.
		return Version{}, fmt.Errorf("rpmver: %s: missing separators", v)
	case 1:
		// `version-release(.arch)`
	default:
		// `some-name-version-release(.arch)`
		i := strings.LastIndexByte(v, '-')
		i = strings.LastIndexByte(v[:i], '-')
		// Can't be -1, there are at least two "-".
		name := v[:i]
		ret.Name = &name
		v = v[i+1:]
	}
	ev, ra, _ := strings.Cut(v, "-")

	ret.Version = ev
	if e, v, ok := strings.Cut(ev, ":"); ok {
		if e != "" {
			ret.Epoch = e
		}
		ret.Version = v
	}

	ret.Release = ra
	if idx := strings.LastIndexByte(ra, '.'); idx != -1 {
		a := ra[idx:]
		if _, ok := architectures[a]; ok {
			arch := a[1:]
			ret.Architecture = &arch
			ret.Release = ra[:idx]
		}
	}

	return ret, nil
}

// Architectures is the set of known architecture strings, used when
// distinguishing a trailing ".arch" component of a release from a plain
// version segment containing a literal ".".
var architectures = map[string]struct{}{
	".aarch64": {},
	".i386":    {},
	".i486":    {},
	".i586":    {},
	".i686":    {},
	".noarch":  {},
	".ppc64le": {},
	".riscv":   {},
	".s390x":   {},
	".src":     {},
	".x86_64":  {},
}

// Cmp is a mnemonic helper for the comparison result type.
type cmp int

const (
	cmpLT cmp = iota - 1
	cmpEQ
	cmpGT
)

// Compare is a comparison for Versions. Names and architectures sort per
// [rpmvercmp], with nil sorting before any non-nil value; epoch, version, and
// release segments sort per [rpmvercmp].
func Compare(a, b *Version) int {
	if cmp := comparePtr(a.Name, b.Name); cmp != 0 {
		return cmp
	}
	if cmp := rpmvercmp(a.Epoch, b.Epoch); cmp != 0 {
		return cmp
	}
	if cmp := rpmvercmp(a.Version, b.Version); cmp != 0 {
		return cmp
	}
	if cmp := rpmvercmp(a.Release, b.Release); cmp != 0 {
		return cmp
	}
	if cmp := comparePtr(a.Architecture, b.Architecture); cmp != 0 {
		return cmp
	}
	return int(cmpEQ)
}

// ComparePtr runs [rpmvercmp] after considering the pointer-ness of the
// values.
func comparePtr(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return int(cmpEQ)
	case a != nil && b == nil:
		return int(cmpGT)
	case a == nil && b != nil:
		return int(cmpLT)
	default:
	}
	return rpmvercmp(*a, *b)
}

// Rpmvercmp compares RPM version strings.
//
// This is a port of the C version at
// https://github.com/rpm-software-management/rpm/blob/572844039a04846fe9e030cbacb6336e2240bd6f/rpmio/rpmvercmp.cc
//
//	 1: a is newer than b
//	 0: a and b are the same version
//	-1: b is newer than a
func rpmvercmp(a, b string) int {
	if a == b {
		return 0
	}

	for {
		a = strings.TrimLeftFunc(a, rpmSeparatorTrim)
		b = strings.TrimLeftFunc(b, rpmSeparatorTrim)

		switch {
		case strings.HasPrefix(a, "~") && strings.HasPrefix(b, "~"):
			a = a[1:]
			b = b[1:]
		case strings.HasPrefix(a, "~") && !strings.HasPrefix(b, "~"):
			return -1
		case !strings.HasPrefix(a, "~") && strings.HasPrefix(b, "~"):
			return 1
		}

		switch {
		case strings.HasPrefix(a, "^") && strings.HasPrefix(b, "^"):
			a = a[1:]
			b = b[1:]
		case a == "" && strings.HasPrefix(b, "^"):
			return -1
		case strings.HasPrefix(a, "^") && b == "":
			return 1
		case strings.HasPrefix(a, "^") && !strings.HasPrefix(b, "^"):
			return -1
		case !strings.HasPrefix(a, "^") && strings.HasPrefix(b, "^"):
			return 1
		}

		if a == "" || b == "" {
			break
		}

		r, _ := utf8.DecodeRuneInString(a)
		isnum := isDigit(r)
		var aSeg, bSeg string
		if isnum {
			aSeg, a = splitFunc(a, isDigit)
			bSeg, b = splitFunc(b, isDigit)
		} else {
			aSeg, a = splitFunc(a, isAlpha)
			bSeg, b = splitFunc(b, isAlpha)
		}

		switch {
		case aSeg == "":
			return -1
		case bSeg == "" && !isnum:
			return -1
		case bSeg == "" && isnum:
			return 1
		}

		if isnum {
			aSeg = strings.TrimLeft(aSeg, "0")
			bSeg = strings.TrimLeft(bSeg, "0")
			switch {
			case len(aSeg) > len(bSeg):
				return 1
			case len(aSeg) < len(bSeg):
				return -1
			}
		}

		if cmp := strings.Compare(aSeg, bSeg); cmp != 0 {
			return cmp
		}
	}

	switch {
	case a == "" && b == "":
		return 0
	case a != "" && b == "":
		return 1
	case a == "" && b != "":
		return -1
	default:
	}
	panic("unreachable")
}

// RpmSeparatorTrim reports "true" for non-operative separator runes.
func rpmSeparatorTrim(r rune) bool {
	return !isAlnum(r) && r != '~' && r != '^'
}

// SplitFunc splits the string on the index reported by the inverse of
// IndexFunc.
func splitFunc(s string, f func(rune) bool) (string, string) {
	i := strings.IndexFunc(s, func(r rune) bool { return !f(r) })
	if i == -1 {
		return s, ""
	}
	return s[:i], s[i:]
}

func isAlpha(r rune) bool { return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' }

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isAlnum(r rune) bool { return isAlpha(r) || isDigit(r) }
