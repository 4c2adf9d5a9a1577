// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package schema

// DataType is the closed set of scalar encodings a schema field may
// declare, per spec §3.
type DataType string

// Canonical data types.
const (
	Int       DataType = "int"
	HexLE     DataType = "hex-le"
	HexBE     DataType = "hex-be"
	UUID      DataType = "UUID"
	ASCII     DataType = "ASCII"
	UTF8      DataType = "UTF8"
	UTF16     DataType = "UTF16"
	UTF16LE   DataType = "UTF16LE"
	UTF16BE   DataType = "UTF16BE"
	Timestamp DataType = "timestamp"
)

// aliases retains the spec-1.0.0 vocabulary documented in spec §3: "hex"
// (LE hex), "special_decode" (LE integer as hex string), "string",
// "utf-8/16/16le/16be".
var aliases = map[string]DataType{
	"hex":            HexLE,
	"special_decode": HexLE,
	"string":         ASCII,
	"utf-8":          UTF8,
	"utf-16":         UTF16,
	"utf-16le":       UTF16LE,
	"utf-16be":       UTF16BE,
}

// canonical is the set of data types recognized without translation.
var canonical = map[DataType]bool{
	Int: true, HexLE: true, HexBE: true, UUID: true, ASCII: true,
	UTF8: true, UTF16: true, UTF16LE: true, UTF16BE: true, Timestamp: true,
}

// NormalizeDataType maps a raw schema data_type string (canonical or a
// spec-1.0.0 alias) to its canonical DataType. The caller must never
// hard-code which spec version uses which spelling; this is the single
// place aliasing is resolved, per spec §9's design note on deriving keys
// from the schema.
func NormalizeDataType(raw string) (DataType, bool) {
	if canonical[DataType(raw)] {
		return DataType(raw), true
	}
	if dt, ok := aliases[raw]; ok {
		return dt, true
	}
	return "", false
}
