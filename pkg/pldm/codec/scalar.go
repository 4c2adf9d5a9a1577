// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package codec implements the primitive encode/decode functions keyed by
// a schema field's data_type, per spec §4.1. These are pure functions: no
// traversal state, no schema awareness beyond the data_type/length pair
// they are handed.
package codec

import (
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/doc"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/pldmerr"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/schema"
)

// maxIntBytes bounds the "int" data type to widths DSP0267 actually uses
// (u8/u16/u32/u64); every integer field in the spec document fits in 8
// bytes, so decode/encode work with a native uint64 instead of math/big.
const maxIntBytes = 8

// DecodeScalar decodes raw bytes per data_type into a document Value.
// len(raw) is authoritative; dt must already be a canonical schema.DataType
// (see schema.NormalizeDataType).
func DecodeScalar(raw []byte, dt schema.DataType) (*doc.Value, error) {
	switch dt {
	case schema.Int:
		if len(raw) > maxIntBytes {
			return nil, fmt.Errorf("%w: int field of %d bytes exceeds %d-byte limit", pldmerr.DecodeError, len(raw), maxIntBytes)
		}
		var v uint64
		for i := len(raw) - 1; i >= 0; i-- {
			v = v<<8 | uint64(raw[i])
		}
		return doc.NewInt(int64(v)), nil

	case schema.HexLE:
		if len(raw) == 0 {
			return doc.NewString(""), nil
		}
		rev := make([]byte, len(raw))
		for i, b := range raw {
			rev[len(raw)-1-i] = b
		}
		n := new(big.Int).SetBytes(rev)
		return doc.NewString(fmt.Sprintf("%#x", n)), nil

	case schema.HexBE, schema.UUID:
		n := new(big.Int).SetBytes(raw)
		return doc.NewString(fmt.Sprintf("%#x", n)), nil

	case schema.ASCII:
		if !utf8.Valid(raw) {
			return nil, fmt.Errorf("%w: ASCII field is not valid UTF-8", pldmerr.DecodeError)
		}
		return doc.NewString(string(raw)), nil

	case schema.UTF8:
		if !utf8.Valid(raw) {
			return nil, fmt.Errorf("%w: UTF8 field is not valid UTF-8", pldmerr.DecodeError)
		}
		return doc.NewString(string(raw)), nil

	case schema.UTF16:
		s, err := decodeUTF16(raw, unicode.LittleEndian, unicode.UseBOM)
		if err != nil {
			return nil, err
		}
		return doc.NewString(s), nil

	case schema.UTF16LE:
		s, err := decodeUTF16(raw, unicode.LittleEndian, unicode.IgnoreBOM)
		if err != nil {
			return nil, err
		}
		return doc.NewString(s), nil

	case schema.UTF16BE:
		s, err := decodeUTF16(raw, unicode.BigEndian, unicode.IgnoreBOM)
		if err != nil {
			return nil, err
		}
		return doc.NewString(s), nil

	case schema.Timestamp:
		s, err := DecodeTimestamp(raw)
		if err != nil {
			return nil, err
		}
		return doc.NewString(s), nil

	default:
		return nil, fmt.Errorf("%w: unknown data_type %q", pldmerr.SchemaError, dt)
	}
}

func decodeUTF16(raw []byte, endian unicode.Endianness, bom unicode.BOMPolicy) (string, error) {
	dec := unicode.UTF16(endian, bom).NewDecoder()
	out, err := dec.Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("%w: UTF-16 decode failed: %v", pldmerr.DecodeError, err)
	}
	return string(out), nil
}

// EncodeScalar encodes a document Value back into length bytes per
// data_type. Integer values encode little-endian, zero-padded to length.
// Hex strings may carry an optional "0x" prefix. String types emit their
// raw decoded bytes verbatim; the caller (the encoder, walking the schema)
// is responsible for length matching, per spec §4.1.
func EncodeScalar(v *doc.Value, dt schema.DataType, length int) ([]byte, error) {
	switch dt {
	case schema.Int:
		i, ok := v.AsInt()
		if !ok {
			return nil, fmt.Errorf("%w: expected integer value", pldmerr.SchemaError)
		}
		return encodeUint(uint64(i), length)

	case schema.HexLE:
		s, ok := v.AsString()
		if !ok {
			return nil, fmt.Errorf("%w: expected hex string value", pldmerr.SchemaError)
		}
		if s == "" {
			return make([]byte, length), nil
		}
		n, err := parseHex(s)
		if err != nil {
			return nil, err
		}
		be, err := fillBytes(n, length)
		if err != nil {
			return nil, err
		}
		le := make([]byte, length)
		for i, b := range be {
			le[length-1-i] = b
		}
		return le, nil

	case schema.HexBE, schema.UUID:
		s, ok := v.AsString()
		if !ok {
			return nil, fmt.Errorf("%w: expected hex string value", pldmerr.SchemaError)
		}
		n, err := parseHex(s)
		if err != nil {
			return nil, err
		}
		return fillBytes(n, length)

	case schema.ASCII, schema.UTF8:
		s, ok := v.AsString()
		if !ok {
			return nil, fmt.Errorf("%w: expected string value", pldmerr.SchemaError)
		}
		return []byte(s), nil

	case schema.UTF16:
		return encodeUTF16(v, unicode.LittleEndian, unicode.UseBOM)

	case schema.UTF16LE:
		return encodeUTF16(v, unicode.LittleEndian, unicode.IgnoreBOM)

	case schema.UTF16BE:
		return encodeUTF16(v, unicode.BigEndian, unicode.IgnoreBOM)

	case schema.Timestamp:
		s, ok := v.AsString()
		if !ok {
			return nil, fmt.Errorf("%w: expected timestamp string value", pldmerr.SchemaError)
		}
		return EncodeTimestamp(s)

	default:
		return nil, fmt.Errorf("%w: unknown data_type %q", pldmerr.SchemaError, dt)
	}
}

func encodeUTF16(v *doc.Value, endian unicode.Endianness, bom unicode.BOMPolicy) ([]byte, error) {
	s, ok := v.AsString()
	if !ok {
		return nil, fmt.Errorf("%w: expected string value", pldmerr.SchemaError)
	}
	enc := unicode.UTF16(endian, bom).NewEncoder()
	out, err := enc.Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: UTF-16 encode failed: %v", pldmerr.DecodeError, err)
	}
	return out, nil
}

func parseHex(s string) (*big.Int, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("%w: invalid hex string %q", pldmerr.SchemaError, s)
	}
	return n, nil
}

func fillBytes(n *big.Int, length int) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("%w: negative length", pldmerr.SchemaError)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value cannot be encoded", pldmerr.SchemaError)
	}
	if (n.BitLen()+7)/8 > length {
		return nil, fmt.Errorf("%w: hex value requires more than %d bytes", pldmerr.SchemaError, length)
	}
	buf := make([]byte, length)
	n.FillBytes(buf)
	return buf, nil
}

func encodeUint(v uint64, length int) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("%w: negative length", pldmerr.SchemaError)
	}
	if length < maxIntBytes && v >= uint64(1)<<uint(length*8) {
		return nil, fmt.Errorf("%w: integer %d overflows %d-byte field", pldmerr.SchemaError, v, length)
	}
	buf := make([]byte, length)
	for i := 0; i < length && i < maxIntBytes; i++ {
		buf[i] = byte(v >> uint(8*i))
	}
	return buf, nil
}
