// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pldmerr defines the fatal error taxonomy shared by the decoder,
// encoder, and schema loader. CRC_MISMATCH is deliberately not part of this
// taxonomy: it is a non-fatal condition surfaced as a return value, never an
// error.
package pldmerr

import (
	"errors"
	"fmt"
)

// Kind identifies which class of fatal error occurred, per the error
// taxonomy. Callers use errors.Is against the sentinel Kind values below.
type Kind error

var (
	// Truncated means the input buffer was shorter than a resolved length
	// required.
	Truncated Kind = errors.New("TRUNCATED")

	// SchemaError means a schema node was missing a required attribute, used
	// an unknown data_type, or had an arithmetic expression with an
	// unresolved operand.
	SchemaError Kind = errors.New("SCHEMA_ERROR")

	// DecodeError means string bytes failed to decode for the declared
	// encoding, or a timestamp was malformed.
	DecodeError Kind = errors.New("DECODE_ERROR")

	// Bounds means a vendor-defined sub-traversal would exceed its declared
	// length.
	Bounds Kind = errors.New("BOUNDS")

	// IOError means a filesystem read or write failed.
	IOError Kind = errors.New("IO_ERROR")
)

// FieldError wraps a Kind with the schema field path and byte offset at
// which it occurred, so the orchestrator can report where a traversal
// failed.
type FieldError struct {
	Kind   Kind
	Path   string
	Offset int
	Err    error
}

func (e *FieldError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v at field %q (offset %d): %v", e.Kind, e.Path, e.Offset, e.Err)
	}
	return fmt.Sprintf("%v at field %q (offset %d)", e.Kind, e.Path, e.Offset)
}

func (e *FieldError) Unwrap() error { return e.Kind }

// New builds a FieldError for the given kind, field path and offset,
// optionally wrapping an underlying cause.
func New(kind Kind, path string, offset int, cause error) *FieldError {
	return &FieldError{Kind: kind, Path: path, Offset: offset, Err: cause}
}
