// Copyright 2025 Flux Point Studios
//
// Package poierrors defines the PoI SDK error taxonomy shared across
// every core package (C1-C7). Errors are matched by Kind, not by
// message text, so tests and callers can branch on failure category
// without parsing strings.

package poierrors

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a PoI error. Kinds are grouped the
// same way as the taxonomy: input, run-state, integrity, encoding,
// external and policy failures.
type Kind string

const (
	// Input errors: surfaced synchronously, never swallowed.
	KindInvalidInput       Kind = "invalid-input"
	KindMissingField       Kind = "missing-required-field"
	KindInvalidHashFormat  Kind = "invalid-hash-format"
	KindDepthExceeded      Kind = "depth-exceeded"
	KindCircularReference  Kind = "circular-reference"
	KindUnsupportedType    Kind = "unsupported-type"

	// Run-state errors: fatal to the offending call, the run continues.
	KindRecordingNotStarted     Kind = "recording-not-started"
	KindRecordingFinalized      Kind = "recording-already-finalized"
	KindSpanNotOpen             Kind = "span-not-open"
	KindSpanAlreadyClosed       Kind = "span-already-closed"
	KindInvalidBatchItem        Kind = "invalid-batch-item"

	// Integrity errors: fatal to the verify call, findings accumulate.
	KindHashMismatch           Kind = "hash-mismatch"
	KindMerkleMismatch         Kind = "merkle-mismatch"
	KindManifestHashMismatch   Kind = "manifest-hash-mismatch"
	KindChunkMissing           Kind = "chunk-missing"
	KindChunkSizeMismatch      Kind = "chunk-size-mismatch"
	KindCommitmentMismatch     Kind = "commitment-mismatch"

	// Encoding errors: fatal to the chunk operation.
	KindCanonicalizationFailed Kind = "canonicalization-failed"
	KindCompressionFailed      Kind = "compression-failed"
	KindEncryptionFailed       Kind = "encryption-failed"
	KindDecryptionFailed       Kind = "decryption-failed"

	// External errors: submission/storage retryable with backoff;
	// network-mismatch and unauthorized are not.
	KindStorageWriteFailed Kind = "storage-write-failed"
	KindStorageReadFailed  Kind = "storage-read-failed"
	KindStorageNotFound    Kind = "storage-not-found"
	KindSubmissionFailed   Kind = "submission-failed"
	KindNetworkTimeout     Kind = "network-timeout"
	KindNetworkMismatch    Kind = "network-mismatch"
	KindRateLimited        Kind = "rate-limited"
	KindUnauthorized       Kind = "unauthorized"

	// Policy errors: reported to the caller, datum unchanged.
	KindSettlementTimeout Kind = "settlement-timeout"
	KindSettlementFailed  Kind = "settlement-failed"
)

// Error is the PoI SDK's typed error. It carries a Kind for
// programmatic matching, a human message, and an optional underlying
// cause for Unwrap.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error that wraps an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and
// false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err is a PoI error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Retryable reports whether the external-facing error kind should be
// retried with backoff. storage-write-failed, storage-read-failed,
// submission-failed, network-timeout and rate-limited are transient;
// every other kind, including network-mismatch, unauthorized and
// storage-not-found, is not retried.
func Retryable(kind Kind) bool {
	switch kind {
	case KindNetworkMismatch, KindUnauthorized:
		return false
	case KindStorageWriteFailed, KindStorageReadFailed, KindSubmissionFailed,
		KindNetworkTimeout, KindRateLimited:
		return true
	default:
		return false
	}
}
