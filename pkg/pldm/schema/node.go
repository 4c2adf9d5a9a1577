// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package schema

// NodeKind tags the shape of a schema Node, the tagged variant described
// in spec §3: Scalar, Decode-qualified scalar, Record group, Nested object,
// or Root.
type NodeKind int

const (
	// KindRoot is the ordered sequence of top-level fields.
	KindRoot NodeKind = iota
	// KindScalar has length, data_type, and no decode table.
	KindScalar
	// KindDecodeScalar has length, data_type (direct or field-indirect),
	// and a decode table (raw-key -> symbol, or the "Vendor Defined"
	// nested-schema branch).
	KindDecodeScalar
	// KindRecordGroup has count plus nested child fields that repeat.
	KindRecordGroup
	// KindNestedObject is a named grouping with child fields, no
	// length/count of its own.
	KindNestedObject
)

// Node is one field of the schema tree.
type Node struct {
	Name string
	Kind NodeKind

	// Scalar / DecodeScalar
	Length          *Expr
	DataType        DataType
	RawDataTypeField string // non-empty when data_type is itself a field reference (decode branch 3 in spec §4.3)

	// Role marks a scalar that the decoder/encoder must treat specially:
	// "header_checksum" is excluded from its own checksum accumulator and
	// compared against the computed CRC-32 (spec §5). "payload_checksum" is
	// loaded from the schema but no code consults it: pipeline.Repack finds
	// the payload checksum by its field name, PLDMFWPackagePayloadChecksum.
	// Everything else about these fields — length, data_type, position — is
	// ordinary schema-driven scalar decoding.
	Role string

	// DecodeScalar only
	Decode           map[string]string // canonical decimal key -> symbolic name
	DecodeReverse    map[string]string // symbolic name -> canonical decimal key
	VendorDefined    *Node             // nested schema for the "Vendor Defined" branch
	VendorDiscriminator string        // sibling field name whose decoded symbol gates the Vendor Defined branch

	// RecordGroup
	Count     *Expr
	PreCount  []*Node // fields appearing once before the repeating block
	Children  []*Node // Root/NestedObject: all children; RecordGroup: the repeating fields
}
