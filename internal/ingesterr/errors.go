// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package ingesterr provides structured error handling for the ingestion
// engine.
//
// It defines Error, a type that carries a Kind (one of the error kinds
// enumerated in the ingestion framework's error design), a user-facing
// message, and an optional wrapped cause. Kind drives local recovery
// policy upstream (retry at the work-unit level, fatal the job, skip a
// cascade target, ...) without callers needing to string-match messages.
package ingesterr

import (
	"errors"
	"fmt"
)

// Kind categorizes an ingestion error for recovery/surfacing policy.
type Kind string

const (
	// Transport covers FTP/HTTPS failures. Retried up to 3x by the
	// caller before surfacing.
	Transport Kind = "transport"

	// ChecksumMismatch is raised when a computed digest disagrees with
	// an expected one. Fatal to the enclosing job.
	ChecksumMismatch Kind = "checksum_mismatch"

	// Parse covers parser failures. The owning work unit retries up to
	// its configured max_retries, then fails.
	Parse Kind = "parse"

	// DuplicateSlug is a catalog upsert conflict on a unique key.
	DuplicateSlug Kind = "duplicate_slug"

	// NotFound covers missing catalog rows or object-store keys.
	NotFound Kind = "not_found"

	// VersionMissing signals a coordinator operation against a job row
	// that does not exist or is missing required version linkage.
	// Always fatal.
	VersionMissing Kind = "version_missing"

	// CascadeFailure covers a single-dependent failure during cascade
	// propagation. Logged and skipped; the cascade continues.
	CascadeFailure Kind = "cascade_failure"

	// ConfigInvalid covers startup configuration validation failures.
	ConfigInvalid Kind = "config_invalid"
)

// Error is an ingestion error carrying a Kind for programmatic recovery
// decisions plus a human-readable message and optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is an *Error of the given kind, looking through
// wrapped errors.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Transportf builds a Transport error.
func Transportf(cause error, format string, args ...any) *Error {
	return New(Transport, fmt.Sprintf(format, args...), cause)
}

// ChecksumMismatchf builds a ChecksumMismatch error.
func ChecksumMismatchf(format string, args ...any) *Error {
	return New(ChecksumMismatch, fmt.Sprintf(format, args...), nil)
}

// Parsef builds a Parse error.
func Parsef(cause error, format string, args ...any) *Error {
	return New(Parse, fmt.Sprintf(format, args...), cause)
}

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...), nil)
}

// DuplicateSlugf builds a DuplicateSlug error.
func DuplicateSlugf(format string, args ...any) *Error {
	return New(DuplicateSlug, fmt.Sprintf(format, args...), nil)
}

// VersionMissingf builds a VersionMissing error.
func VersionMissingf(format string, args ...any) *Error {
	return New(VersionMissing, fmt.Sprintf(format, args...), nil)
}

// CascadeFailuref builds a CascadeFailure error.
func CascadeFailuref(cause error, format string, args ...any) *Error {
	return New(CascadeFailure, fmt.Sprintf(format, args...), cause)
}

// ConfigInvalidf builds a ConfigInvalid error.
func ConfigInvalidf(cause error, format string, args ...any) *Error {
	return New(ConfigInvalid, fmt.Sprintf(format, args...), cause)
}
