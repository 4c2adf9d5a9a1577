// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package decode walks a schema.Node tree against a byte buffer, producing
// the header.json document tree. It is the paired interpreter to pkg/pldm/
// encode: nothing about DSP0267 field layout is hard-coded here, only the
// generic rules spec §4 describes for scalars, decode-qualified scalars,
// record groups, nested objects, and the Vendor Defined branch.
package decode

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

// Result is everything a header decode produces.
type Result struct {
	Document *doc.Value
	// HeaderChecksumPresent is true if the schema carried a field whose
	// role is "header_checksum".
	HeaderChecksumPresent bool
	// HeaderChecksumStored is the checksum value read from the package's
	// own checksum field, before any comparison.
	HeaderChecksumStored uint32
	// HeaderChecksumComputed is the CRC-32/IEEE of every header byte
	// decoded up to (not including) the checksum field itself.
	HeaderChecksumComputed uint32
	// HeaderChecksumMatch is false when the package's stored checksum
	// disagrees with HeaderChecksumComputed. This is never a fatal error
	// (spec §5): callers surface it as a diagnostic.
	HeaderChecksumMatch bool
	// Info is the process-wide snapshot captured when PackageVersionString
	// finished decoding (spec §9), exposed so callers that need one of its
	// values (such as ComponentBitmapBitLength) after the traversal do not
	// have to re-derive it.
	Info *doc.OMap
}

// decoder holds the mutable state threaded through one header traversal.
type decoder struct {
	buf       []byte
	offset    int
	accum     []byte
	info      *doc.OMap
	regionEnd int // -1 outside a bounded Vendor Defined sub-traversal

	headerChecksumSeen     bool
	headerChecksumStored   uint32
	headerChecksumComputed uint32
	headerChecksumMatch    bool
}

// Decode interprets root against buf, producing the header document.
func Decode(buf []byte, root *schema.Node) (*Result, error) {
	d := &decoder{buf: buf, regionEnd: -1}
	document := doc.NewMap()
	scope := doc.NewScope(nil, document.Map)
	codes := schema.NewCodeScope(nil)
	if err := d.walkChildren(root.Children, document.Map, scope, codes); err != nil {
		return nil, err
	}
	return &Result{
		Document:               document,
		HeaderChecksumPresent:  d.headerChecksumSeen,
		HeaderChecksumStored:   d.headerChecksumStored,
		HeaderChecksumComputed: d.headerChecksumComputed,
		HeaderChecksumMatch:    d.headerChecksumMatch,
		Info:                   d.info,
	}, nil
}

func (d *decoder) ctx(scope *doc.Scope) schema.Context {
	c := schema.Context{Scope: scope, Info: d.info}
	if d.regionEnd >= 0 {
		c.HasRemaining = true
		c.Remaining = d.regionEnd - d.offset
	}
	return c
}

// read consumes n bytes at the current offset, bounds-checked against both
// the overall buffer and, if set, the enclosing Vendor Defined region.
func (d *decoder) read(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", pldmerr.SchemaError, n)
	}
	if d.regionEnd >= 0 && d.offset+n > d.regionEnd {
		return nil, pldmerr.New(pldmerr.Bounds, "", d.offset, fmt.Errorf("read of %d bytes would exceed the declared Vendor Defined region", n))
	}
	if d.offset+n > len(d.buf) {
		return nil, pldmerr.New(pldmerr.Truncated, "", d.offset, fmt.Errorf("need %d bytes, only %d remain", n, len(d.buf)-d.offset))
	}
	raw := d.buf[d.offset : d.offset+n]
	d.offset += n
	return raw, nil
}

func (d *decoder) walkChildren(children []*schema.Node, target *doc.OMap, scope *doc.Scope, codes *schema.CodeScope) error {
	for _, child := range children {
		if err := d.walkNode(child, target, scope, codes); err != nil {
			return withPath(err, child.Name)
		}
		if child.Name == "PackageVersionString" && d.info == nil {
			d.info = scope.Object().Snapshot()
		}
	}
	return nil
}

func (d *decoder) walkNode(node *schema.Node, target *doc.OMap, scope *doc.Scope, codes *schema.CodeScope) error {
	switch node.Kind {
	case schema.KindScalar:
		return d.walkScalar(node, target, scope)

	case schema.KindDecodeScalar:
		val, code, err := d.walkDecodeScalar(node, scope, codes)
		if err != nil {
			return err
		}
		target.Set(node.Name, val)
		codes.Set(node.Name, code)
		return nil

	case schema.KindRecordGroup:
		return d.walkRecordGroup(node, target, scope)

	case schema.KindNestedObject:
		child := doc.NewMap()
		target.Set(node.Name, child)
		childScope := doc.NewScope(scope, child.Map)
		childCodes := schema.NewCodeScope(codes)
		return d.walkChildren(node.Children, child.Map, childScope, childCodes)

	default:
		return fmt.Errorf("%w: unknown schema node kind for %q", pldmerr.SchemaError, node.Name)
	}
}

func (d *decoder) walkScalar(node *schema.Node, target *doc.OMap, scope *doc.Scope) error {
	length, err := node.Length.Resolve(d.ctx(scope))
	if err != nil {
		return err
	}

	if node.Role == "header_checksum" {
		raw, err := d.read(length)
		if err != nil {
			return err
		}
		if length != 4 {
			return fmt.Errorf("%w: header_checksum field must be 4 bytes, got %d", pldmerr.SchemaError, length)
		}
		stored := binary.LittleEndian.Uint32(raw)
		computed := crc32.ChecksumIEEE(d.accum)
		d.headerChecksumSeen = true
		d.headerChecksumStored = stored
		d.headerChecksumComputed = computed
		d.headerChecksumMatch = stored == computed
		// The document stores the computed checksum, not the raw stored
		// bytes: a mismatch is reported out of band (Result.HeaderChecksum-
		// Match), never silently baked into the document.
		target.Set(node.Name, doc.NewInt(int64(computed)))
		return nil
	}

	raw, err := d.read(length)
	if err != nil {
		return err
	}
	val, err := codec.DecodeScalar(raw, node.DataType)
	if err != nil {
		return err
	}
	d.accum = append(d.accum, raw...)
	target.Set(node.Name, val)
	return nil
}

// walkDecodeScalar handles the three decode-qualified branches of spec §4.3
// and returns both the document value and the raw canonical code behind it
// (needed by a sibling branch-3 field, via CodeScope; see schema.CodeScope).
func (d *decoder) walkDecodeScalar(node *schema.Node, scope *doc.Scope, codes *schema.CodeScope) (*doc.Value, int64, error) {
	if node.VendorDefined != nil {
		if sym, ok := d.resolveDiscriminator(scope, node.VendorDiscriminator); ok && sym == vendorDefinedSymbol {
			v, err := d.walkVendorDefined(node, scope, codes)
			return v, 0, err
		}
	}

	length, err := node.Length.Resolve(d.ctx(scope))
	if err != nil {
		return nil, 0, err
	}
	raw, err := d.read(length)
	if err != nil {
		return nil, 0, err
	}
	d.accum = append(d.accum, raw...)

	dt, err := d.resolveDataType(node, scope, codes)
	if err != nil {
		return nil, 0, err
	}
	val, err := codec.DecodeScalar(raw, dt)
	if err != nil {
		return nil, 0, err
	}

	code, hasCode := schema.CanonicalKeyFromValue(val)
	var codeInt int64
	if hasCode {
		codeInt, _ = strconv.ParseInt(code, 10, 64)
	}

	if node.RawDataTypeField == "" && len(node.Decode) > 0 {
		if hasCode {
			if sym, ok := node.Decode[code]; ok {
				return doc.NewString(sym), codeInt, nil
			}
		}
	}
	return val, codeInt, nil
}

func (d *decoder) walkVendorDefined(node *schema.Node, scope *doc.Scope, codes *schema.CodeScope) (*doc.Value, error) {
	length, err := node.Length.Resolve(d.ctx(scope))
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, fmt.Errorf("%w: negative Vendor Defined length", pldmerr.SchemaError)
	}
	if d.regionEnd >= 0 && d.offset+length > d.regionEnd {
		return nil, pldmerr.New(pldmerr.Bounds, node.Name, d.offset, fmt.Errorf("Vendor Defined region of %d bytes exceeds its enclosing region", length))
	}
	if d.offset+length > len(d.buf) {
		return nil, pldmerr.New(pldmerr.Truncated, node.Name, d.offset, fmt.Errorf("Vendor Defined region of %d bytes exceeds the input", length))
	}

	start := d.offset
	regionEnd := d.offset + length
	prevRegionEnd := d.regionEnd
	d.regionEnd = regionEnd

	sub := doc.NewMap()
	subScope := doc.NewScope(scope, sub.Map)
	subCodes := schema.NewCodeScope(codes)
	err = d.walkChildren(node.VendorDefined.Children, sub.Map, subScope, subCodes)

	d.regionEnd = prevRegionEnd
	if err != nil {
		return nil, err
	}
	if d.offset != regionEnd {
		return nil, pldmerr.New(pldmerr.Bounds, node.Name, d.offset,
			fmt.Errorf("Vendor Defined sub-traversal consumed %d of %d declared bytes", d.offset-start, length))
	}
	return sub, nil
}

func (d *decoder) walkRecordGroup(node *schema.Node, target *doc.OMap, scope *doc.Scope) error {
	count, err := node.Count.Resolve(d.ctx(scope))
	if err != nil {
		return err
	}
	if count < 0 {
		return fmt.Errorf("%w: negative record count for %q", pldmerr.SchemaError, node.Name)
	}

	list := doc.NewList()
	target.Set(node.Name, list)

	idx := 0
	if len(node.PreCount) > 0 {
		elem := doc.NewMap()
		elemScope := doc.NewScope(scope, elem.Map)
		elemCodes := schema.NewCodeScope(nil)
		if err := d.walkChildren(node.PreCount, elem.Map, elemScope, elemCodes); err != nil {
			return err
		}
		if err := d.walkChildren(node.Children, elem.Map, elemScope, elemCodes); err != nil {
			return err
		}
		list.Append(elem)
		idx = 1
	}
	for ; idx < count; idx++ {
		elem := doc.NewMap()
		elemScope := doc.NewScope(scope, elem.Map)
		elemCodes := schema.NewCodeScope(nil)
		if err := d.walkChildren(node.Children, elem.Map, elemScope, elemCodes); err != nil {
			return err
		}
		list.Append(elem)
	}
	return nil
}

func (d *decoder) resolveDiscriminator(scope *doc.Scope, name string) (string, bool) {
	v, ok := scope.Resolve(name)
	if !ok {
		return "", false
	}
	return v.AsString()
}

func (d *decoder) resolveDataType(node *schema.Node, scope *doc.Scope, codes *schema.CodeScope) (schema.DataType, error) {
	if node.DataType != "" {
		return node.DataType, nil
	}
	if node.RawDataTypeField == "" {
		return "", fmt.Errorf("%w: field %q has neither a data_type nor an indirect data_type reference", pldmerr.SchemaError, node.Name)
	}
	code, ok := codes.Resolve(node.RawDataTypeField)
	if !ok {
		v, sok := scope.Resolve(node.RawDataTypeField)
		if !sok {
			return "", fmt.Errorf("%w: unresolved data_type reference %q", pldmerr.SchemaError, node.RawDataTypeField)
		}
		i, iok := v.AsInt()
		if !iok {
			return "", fmt.Errorf("%w: data_type reference %q did not resolve to a code", pldmerr.SchemaError, node.RawDataTypeField)
		}
		code = i
	}
	key := schema.CanonicalInt(code)
	sym, ok := node.Decode[key]
	if !ok {
		return "", fmt.Errorf("%w: no decode entry for %s=%s on field %q", pldmerr.SchemaError, node.RawDataTypeField, key, node.Name)
	}
	dt, ok := schema.NormalizeDataType(sym)
	if !ok {
		return "", fmt.Errorf("%w: decode table entry %q is not a known data_type", pldmerr.SchemaError, sym)
	}
	return dt, nil
}

func withPath(err error, name string) error {
	var fe *pldmerr.FieldError
	if e, ok := err.(*pldmerr.FieldError); ok {
		fe = e
	}
	if fe != nil && fe.Path == "" {
		fe.Path = name
		return fe
	}
	return err
}
