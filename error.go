// Package zif implements a client-side repository-metadata engine for an
// RPM-based Linux distribution: discovering repositories from configuration,
// fetching and validating their metadata, and exposing uniform search and
// update-resolution primitives over both the installed system and remote
// repositories.
package zif

import (
	"errors"
	"strings"
)

// Error is the zif error domain type.
//
// Errors coming from zif components should be able to be inspected as
// ([errors.As]) an *Error at some point in the error chain.
//
// Components should create an Error at the system boundary (network call,
// filesystem operation, lock file) and intermediate layers should prefer
// [fmt.Errorf] with a "%w" verb over wrapping in another Error, except to
// add additional [ErrorKind] information.
type Error struct {
	Inner   error
	Kind    ErrorKind
	Message string
	Op      string
}

var (
	_ error                       = (*Error)(nil)
	_ interface{ Is(error) bool } = (*Error)(nil)
	_ interface{ Unwrap() error } = (*Error)(nil)
)

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	b.WriteString("[")
	b.WriteString(string(e.Kind))
	b.WriteString("]: ")
	if e.Message != "" {
		b.WriteString(e.Message)
	}
	if e.Message != "" && e.Inner != nil {
		b.WriteString(": ")
	}
	if e.Op == "" && e.Message == "" {
		b.Reset()
	}
	if e.Inner != nil {
		b.WriteString(e.Inner.Error())
	}
	return b.String()
}

// Is enables [errors.Is].
//
// It compares the error kind. Callers should compare against a declared
// [ErrorKind] rather than a specific *Error value.
func (e *Error) Is(kind error) bool {
	return errors.Is(e.Kind, kind)
}

// Unwrap enables [errors.Unwrap].
func (e *Error) Unwrap() error {
	return e.Inner
}

// ErrorKind classifies an [Error] into one of the taxonomy members described
// by the repository-metadata engine's error handling design.
//
// If unsure which kind applies, use [ErrInternal].
type ErrorKind string

// Error implements error.
func (k ErrorKind) Error() string { return string(k) }

// Defined error kinds. These map 1:1 onto the engine's error taxonomy:
// fetch-layer failures, store-layer lookup failures, parse/verification
// failures, and lock-layer failures.
const (
	ErrInternal ErrorKind = "internal" // non-specific internal error

	// Fetch-layer.
	ErrOffline              ErrorKind = "offline"               // network required but network=false
	ErrFailedToDownload     ErrorKind = "failed to download"    // retry budget exhausted
	ErrTransport            ErrorKind = "transport"             // underlying HTTP/IO failure
	ErrCancelled            ErrorKind = "cancelled"             // operation cancelled
	ErrContentTypeMismatch  ErrorKind = "content type mismatch" // unexpected Content-Type
	ErrSizeMismatch         ErrorKind = "size mismatch"          // unexpected size
	ErrChecksumMismatch     ErrorKind = "checksum mismatch"      // unexpected checksum
	ErrNoLocations          ErrorKind = "no locations"           // location pool empty

	// Store-layer lookup.
	ErrNotEnabled      ErrorKind = "not enabled"      // store disabled
	ErrArrayIsEmpty    ErrorKind = "array is empty"   // StoreArray has no members
	ErrFailedToFind    ErrorKind = "failed to find"   // lookup found nothing
	ErrMultipleMatches ErrorKind = "multiple matches" // lookup expected exactly one
	ErrNoSupport       ErrorKind = "not supported"    // operation unsupported by this store/kind

	// Parse/verification.
	ErrRecoverable ErrorKind = "recoverable" // caller should retry after invalidating cache
	ErrMalformed   ErrorKind = "malformed"   // structurally invalid input
	ErrNoData      ErrorKind = "no data"     // structurally valid but empty/absent

	// Lock-layer.
	ErrAlreadyLocked ErrorKind = "already locked" // another process holds the lock
	ErrNotLocked     ErrorKind = "not locked"     // release without a held lock
	ErrPermission    ErrorKind = "permission"     // filesystem permission error
)
