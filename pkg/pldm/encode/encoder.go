// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package encode is the inverse interpreter to pkg/pldm/decode: it walks a
// schema.Node tree against a header.json document tree and emits bytes,
// recomputing the header checksum. A payload-checksum field is encoded from
// its document value like any other scalar; the caller patches that value
// and encodes again once the component image payload CRC is known.
package encode

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strconv"

	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/codec"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/doc"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/pldmerr"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/schema"
)

const vendorDefinedSymbol = "Vendor Defined"

// Result is everything a header encode produces.
type Result struct {
	Bytes []byte
	// HeaderChecksumOffset is the byte offset of the 4-byte header checksum
	// field within Bytes, or -1 if the schema has no header_checksum field.
	// Nothing in this module reads it: pipeline.Repack re-runs Encode after
	// patching the payload checksum into the document.
	HeaderChecksumOffset int
	HeaderChecksum        uint32
}

type encoder struct {
	buf       []byte
	accum     []byte
	info      *doc.OMap
	regionEnd int // remaining bytes permitted in the current bounded region, -1 if unbounded

	checksumOffset int
	checksum       uint32
}

// Encode walks root against document, emitting bytes.
func Encode(document *doc.Value, root *schema.Node) (*Result, error) {
	if document.Kind != doc.KindMap {
		return nil, fmt.Errorf("%w: document root must be an object", pldmerr.SchemaError)
	}
	e := &encoder{regionEnd: -1, checksumOffset: -1}
	scope := doc.NewScope(nil, document.Map)
	codes := schema.NewCodeScope(nil)
	if err := e.walkChildren(root.Children, document.Map, scope, codes); err != nil {
		return nil, err
	}
	return &Result{Bytes: e.buf, HeaderChecksumOffset: e.checksumOffset, HeaderChecksum: e.checksum}, nil
}

func (e *encoder) ctx(scope *doc.Scope) schema.Context {
	c := schema.Context{Scope: scope, Info: e.info}
	if e.regionEnd >= 0 {
		c.HasRemaining = true
		c.Remaining = e.regionEnd
	}
	return c
}

func (e *encoder) write(raw []byte) error {
	if e.regionEnd >= 0 {
		if len(raw) > e.regionEnd {
			return pldmerr.New(pldmerr.Bounds, "", len(e.buf), fmt.Errorf("write of %d bytes would exceed the declared Vendor Defined region", len(raw)))
		}
		e.regionEnd -= len(raw)
	}
	e.buf = append(e.buf, raw...)
	return nil
}

func (e *encoder) walkChildren(children []*schema.Node, target *doc.OMap, scope *doc.Scope, codes *schema.CodeScope) error {
	for _, child := range children {
		if err := e.walkNode(child, target, scope, codes); err != nil {
			return withPath(err, child.Name)
		}
		if child.Name == "PackageVersionString" && e.info == nil {
			e.info = scope.Object().Snapshot()
		}
	}
	return nil
}

func (e *encoder) walkNode(node *schema.Node, target *doc.OMap, scope *doc.Scope, codes *schema.CodeScope) error {
	switch node.Kind {
	case schema.KindScalar:
		return e.walkScalar(node, target, scope)

	case schema.KindDecodeScalar:
		code, err := e.walkDecodeScalar(node, target, scope, codes)
		if err != nil {
			return err
		}
		codes.Set(node.Name, code)
		return nil

	case schema.KindRecordGroup:
		return e.walkRecordGroup(node, target, scope)

	case schema.KindNestedObject:
		v, ok := target.Get(node.Name)
		if !ok || v.Kind != doc.KindMap {
			return fmt.Errorf("%w: field %q missing or not an object in document", pldmerr.SchemaError, node.Name)
		}
		childScope := doc.NewScope(scope, v.Map)
		childCodes := schema.NewCodeScope(codes)
		return e.walkChildren(node.Children, v.Map, childScope, childCodes)

	default:
		return fmt.Errorf("%w: unknown schema node kind for %q", pldmerr.SchemaError, node.Name)
	}
}

func (e *encoder) walkScalar(node *schema.Node, target *doc.OMap, scope *doc.Scope) error {
	length, err := node.Length.Resolve(e.ctx(scope))
	if err != nil {
		return err
	}

	if node.Role == "header_checksum" {
		if length != 4 {
			return fmt.Errorf("%w: header_checksum field must be 4 bytes, got %d", pldmerr.SchemaError, length)
		}
		e.checksum = crc32.ChecksumIEEE(e.accum)
		e.checksumOffset = len(e.buf)
		raw := make([]byte, 4)
		binary.LittleEndian.PutUint32(raw, e.checksum)
		return e.write(raw)
	}

	v, ok := target.Get(node.Name)
	if !ok {
		return fmt.Errorf("%w: field %q missing from document", pldmerr.SchemaError, node.Name)
	}
	raw, err := codec.EncodeScalar(v, node.DataType, length)
	if err != nil {
		return err
	}
	if len(raw) != length {
		return fmt.Errorf("%w: field %q encoded to %d bytes, schema declares %d", pldmerr.SchemaError, node.Name, len(raw), length)
	}
	if err := e.write(raw); err != nil {
		return err
	}
	e.accum = append(e.accum, raw...)
	return nil
}

func (e *encoder) walkDecodeScalar(node *schema.Node, target *doc.OMap, scope *doc.Scope, codes *schema.CodeScope) (int64, error) {
	v, ok := target.Get(node.Name)
	if !ok {
		return 0, fmt.Errorf("%w: field %q missing from document", pldmerr.SchemaError, node.Name)
	}

	if node.VendorDefined != nil {
		if sym, ok := e.resolveDiscriminator(scope, node.VendorDiscriminator); ok && sym == vendorDefinedSymbol {
			return 0, e.walkVendorDefined(node, v, scope, codes)
		}
	}

	length, err := node.Length.Resolve(e.ctx(scope))
	if err != nil {
		return 0, err
	}

	dt, code, encodeVal, err := e.resolveDataTypeAndCode(node, v, scope, codes)
	if err != nil {
		return 0, err
	}
	raw, err := codec.EncodeScalar(encodeVal, dt, length)
	if err != nil {
		return 0, err
	}
	if len(raw) != length {
		return 0, fmt.Errorf("%w: field %q encoded to %d bytes, schema declares %d", pldmerr.SchemaError, node.Name, len(raw), length)
	}
	if err := e.write(raw); err != nil {
		return 0, err
	}
	e.accum = append(e.accum, raw...)
	return code, nil
}

// resolveDataTypeAndCode derives the data_type to encode with, the canonical
// code to publish to CodeScope for sibling branch-3 fields, and the value to
// hand to codec.EncodeScalar. For a branch-1 field (node owns its own decode
// table), the decoder replaces the raw numeric value with its symbol in the
// document (see decode.walkDecodeScalar); DecodeReverse inverts that symbol
// back to the numeric value EncodeScalar expects to see for an "int" field.
// A branch-3 field (node.RawDataTypeField set) never carries its own decode
// table on the document value itself, so v passes through unchanged.
func (e *encoder) resolveDataTypeAndCode(node *schema.Node, v *doc.Value, scope *doc.Scope, codes *schema.CodeScope) (schema.DataType, int64, *doc.Value, error) {
	if node.DataType != "" {
		var codeInt int64
		encodeVal := v
		if node.RawDataTypeField == "" && len(node.Decode) > 0 {
			if key, ok := node.DecodeReverse[valueAsString(v)]; ok {
				codeInt, _ = strconv.ParseInt(key, 10, 64)
				if node.DataType == schema.Int {
					encodeVal = doc.NewInt(codeInt)
				}
			} else if key, ok := schema.CanonicalKeyFromValue(v); ok {
				codeInt, _ = strconv.ParseInt(key, 10, 64)
			}
		}
		return node.DataType, codeInt, encodeVal, nil
	}
	if node.RawDataTypeField == "" {
		return "", 0, nil, fmt.Errorf("%w: field %q has neither a data_type nor an indirect data_type reference", pldmerr.SchemaError, node.Name)
	}
	code, ok := codes.Resolve(node.RawDataTypeField)
	if !ok {
		ref, rok := scope.Resolve(node.RawDataTypeField)
		if !rok {
			return "", 0, nil, fmt.Errorf("%w: unresolved data_type reference %q", pldmerr.SchemaError, node.RawDataTypeField)
		}
		i, iok := ref.AsInt()
		if !iok {
			return "", 0, nil, fmt.Errorf("%w: data_type reference %q did not resolve to a code", pldmerr.SchemaError, node.RawDataTypeField)
		}
		code = i
	}
	key := schema.CanonicalInt(code)
	sym, ok := node.Decode[key]
	if !ok {
		return "", 0, nil, fmt.Errorf("%w: no decode entry for %s=%s on field %q", pldmerr.SchemaError, node.RawDataTypeField, key, node.Name)
	}
	dt, ok := schema.NormalizeDataType(sym)
	if !ok {
		return "", 0, nil, fmt.Errorf("%w: decode table entry %q is not a known data_type", pldmerr.SchemaError, sym)
	}
	return dt, 0, v, nil
}

func (e *encoder) walkVendorDefined(node *schema.Node, v *doc.Value, scope *doc.Scope, codes *schema.CodeScope) error {
	if v.Kind != doc.KindMap {
		return fmt.Errorf("%w: field %q must be an object for its Vendor Defined branch", pldmerr.SchemaError, node.Name)
	}
	length, err := node.Length.Resolve(e.ctx(scope))
	if err != nil {
		return err
	}
	if length < 0 {
		return fmt.Errorf("%w: negative Vendor Defined length", pldmerr.SchemaError)
	}

	start := len(e.buf)
	prevRegionEnd := e.regionEnd
	e.regionEnd = length

	subScope := doc.NewScope(scope, v.Map)
	subCodes := schema.NewCodeScope(codes)
	err = e.walkChildren(node.VendorDefined.Children, v.Map, subScope, subCodes)

	e.regionEnd = prevRegionEnd
	if err != nil {
		return err
	}
	if len(e.buf)-start != length {
		return pldmerr.New(pldmerr.Bounds, node.Name, start,
			fmt.Errorf("Vendor Defined sub-traversal emitted %d of %d declared bytes", len(e.buf)-start, length))
	}
	e.accum = append(e.accum, e.buf[start:]...)
	return nil
}

func (e *encoder) walkRecordGroup(node *schema.Node, target *doc.OMap, scope *doc.Scope) error {
	v, ok := target.Get(node.Name)
	if !ok || v.Kind != doc.KindList {
		return fmt.Errorf("%w: field %q missing or not an array in document", pldmerr.SchemaError, node.Name)
	}

	for i, elem := range v.List {
		if elem.Kind != doc.KindMap {
			return fmt.Errorf("%w: field %q[%d] is not an object", pldmerr.SchemaError, node.Name, i)
		}
		elemScope := doc.NewScope(scope, elem.Map)
		elemCodes := schema.NewCodeScope(nil)
		if i == 0 && len(node.PreCount) > 0 {
			if err := e.walkChildren(node.PreCount, elem.Map, elemScope, elemCodes); err != nil {
				return err
			}
		}
		if err := e.walkChildren(node.Children, elem.Map, elemScope, elemCodes); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) resolveDiscriminator(scope *doc.Scope, name string) (string, bool) {
	v, ok := scope.Resolve(name)
	if !ok {
		return "", false
	}
	return v.AsString()
}

func valueAsString(v *doc.Value) string {
	s, _ := v.AsString()
	return s
}

func withPath(err error, name string) error {
	if fe, ok := err.(*pldmerr.FieldError); ok && fe.Path == "" {
		fe.Path = name
		return fe
	}
	return err
}
