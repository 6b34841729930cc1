// Package checksum implements an algorithm-independent digest type used by
// [MetadataHandle] verification throughout the engine.
package checksum

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

// Known checksum algorithm names, as they appear in a repomd.xml
// <checksum type="..."> attribute.
const (
	MD5    = "md5"
	SHA    = "sha"  // alias for sha1, kept for repomd.xml compatibility
	SHA1   = "sha1"
	SHA256 = "sha256"
)

// Digest is a type representing the hash of some data, tagged with the
// algorithm that produced it.
//
// It's used throughout this engine's packages so that verification code
// doesn't need to sniff a string to figure out which hash to run.
type Digest struct {
	algo     string
	checksum []byte
	repr     string
}

// Checksum returns the raw checksum bytes.
func (d Digest) Checksum() []byte { return d.checksum }

// Algorithm returns the algorithm name used for this digest.
func (d Digest) Algorithm() string { return d.algo }

// IsZero reports whether d is the zero Digest.
func (d Digest) IsZero() bool { return d.algo == "" && len(d.checksum) == 0 }

// Hash returns a fresh instance of the hash algorithm backing this Digest.
func (d Digest) Hash() hash.Hash {
	switch d.algo {
	case MD5:
		return md5.New()
	case SHA, SHA1:
		return sha1.New()
	case SHA256:
		return sha256.New()
	default:
		panic("checksum: Hash() called on an invalid Digest")
	}
}

// String implements [fmt.Stringer], formatting the digest as "algo:hexsum".
func (d Digest) String() string { return d.repr }

// MarshalText implements [encoding.TextMarshaler].
func (d Digest) MarshalText() ([]byte, error) {
	b := make([]byte, len(d.repr))
	copy(b, d.repr)
	return b, nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Digest) UnmarshalText(t []byte) error {
	i := bytes.IndexByte(t, ':')
	if i == -1 {
		return &Error{msg: "invalid digest format"}
	}
	d.algo = string(t[:i])
	t = t[i+1:]
	b := make([]byte, hex.DecodedLen(len(t)))
	if _, err := hex.Decode(b, t); err != nil {
		return &Error{msg: "unable to decode digest as hex", inner: err}
	}
	return d.setChecksum(b)
}

// Error is the concrete type backing errors returned from Digest's methods.
type Error struct {
	msg   string
	inner error
}

// Error implements error.
func (e *Error) Error() string { return e.msg }

// Unwrap enables [errors.Unwrap].
func (e *Error) Unwrap() error { return e.inner }

func algoSize(algo string) (int, bool) {
	switch algo {
	case MD5:
		return md5.Size, true
	case SHA, SHA1:
		return sha1.Size, true
	case SHA256:
		return sha256.Size, true
	default:
		return 0, false
	}
}

func (d *Digest) setChecksum(b []byte) error {
	sz, ok := algoSize(d.algo)
	if !ok {
		return &Error{msg: fmt.Sprintf("unknown algorithm %q", d.algo)}
	}
	if l := len(b); l != sz {
		return &Error{msg: fmt.Sprintf("bad checksum length: %d", l)}
	}

	el := hex.EncodedLen(sz)
	hl := len(d.algo) + 1
	sb := make([]byte, hl+el)
	copy(sb, d.algo)
	sb[len(d.algo)] = ':'
	hex.Encode(sb[hl:], b)

	d.checksum = b
	d.repr = string(sb)
	return nil
}

// New constructs a Digest from an algorithm name and raw checksum bytes.
func New(algo string, sum []byte) (Digest, error) {
	d := Digest{algo: algo}
	return d, d.setChecksum(sum)
}

// Parse constructs a Digest from a string of the form "algo:hexsum", ensuring
// it's well-formed.
func Parse(s string) (Digest, error) {
	d := Digest{}
	return d, d.UnmarshalText([]byte(s))
}

// MustParse works like [Parse] but panics if the string is malformed.
func MustParse(s string) Digest {
	d, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("checksum: %s could not be parsed: %v", s, err))
	}
	return d
}
