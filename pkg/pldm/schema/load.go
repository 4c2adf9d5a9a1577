// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package schema loads and represents the declarative JSON documents
// (spec/pldm_spec_<version>.json) that describe a PLDM firmware update
// package's header layout: field names, lengths, data types, repetition
// counts, vendor-defined branches, and decode tables. The decoder and
// encoder are interpreters over this tree; nothing about DSP0267 field
// layout is hard-coded in Go.
package schema

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/pldmerr"
)

// errSchema is the sentinel every schema-load/expression error wraps, so
// callers can errors.Is(err, pldmerr.SchemaError).
var errSchema = pldmerr.SchemaError

const vendorDefinedSymbol = "Vendor Defined"

// defaultVendorDiscriminator is the one concrete instance spec §3/§4.3
// names explicitly: FirmwareDeviceIDRecords[*].AdditionalDescriptors[*].
// AdditionalDescriptorType gates
// whether AdditionalDescriptorIdentifierData is read as a Vendor Defined
// sub-record. A schema document may override this per-field with an
// optional "vendor_discriminator" attribute alongside "decode", since
// nothing in spec §3 promises the peer field is always named this.
const defaultVendorDiscriminator = "AdditionalDescriptorType"

// Load reads and parses a schema document from path.
func Load(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading schema %s: %v", pldmerr.IOError, path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses a schema document already read into memory.
func LoadBytes(data []byte) (*Node, error) {
	raw, err := parseRawJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errSchema, err)
	}

	var errs *multierror.Error
	root, buildErr := buildNode("<root>", raw, &errs)
	if buildErr != nil {
		errs = multierror.Append(errs, buildErr)
	}
	if errs.ErrorOrNil() != nil {
		return nil, fmt.Errorf("%w: %v", errSchema, errs.ErrorOrNil())
	}
	if root.Kind != KindNestedObject && root.Kind != KindRoot {
		return nil, fmt.Errorf("%w: schema document root must be an object of top-level fields", errSchema)
	}
	root.Kind = KindRoot
	return root, nil
}

// buildNode classifies rv (object/string/number) by which reserved
// attribute keys it carries — "decode", "length", "count", or none — per
// spec §3's tagged-variant description, and recurses into children.
// Non-fatal per-field problems are appended to errs so the loader reports
// every malformed node in one pass (spec §9's go-multierror-style
// aggregation), not just the first.
func buildNode(name string, rv rawValue, errs **multierror.Error) (*Node, error) {
	if rv.kind != rawObject {
		return nil, fmt.Errorf("field %q: expected an object, got a scalar", name)
	}
	_, hasDecode := rv.get("decode")
	_, hasLength := rv.get("length")
	_, hasCount := rv.get("count")

	switch {
	case hasDecode:
		return buildDecodeScalar(name, rv, errs)
	case hasLength:
		return buildScalar(name, rv)
	case hasCount:
		return buildRecordGroup(name, rv, errs)
	default:
		return buildNestedObject(name, rv, errs)
	}
}

func buildScalar(name string, rv rawValue) (*Node, error) {
	lengthRaw, ok := rv.get("length")
	if !ok {
		return nil, fmt.Errorf("field %q: missing length", name)
	}
	length, err := ParseExpr(lengthRaw)
	if err != nil {
		return nil, fmt.Errorf("field %q: %v", name, err)
	}
	dtRaw, ok := rv.get("data_type")
	if !ok || dtRaw.kind != rawString {
		return nil, fmt.Errorf("field %q: missing or non-string data_type", name)
	}
	dt, ok := NormalizeDataType(dtRaw.str)
	if !ok {
		return nil, fmt.Errorf("field %q: unknown data_type %q", name, dtRaw.str)
	}
	node := &Node{Name: name, Kind: KindScalar, Length: length, DataType: dt}
	if roleRaw, ok := rv.get("role"); ok && roleRaw.kind == rawString {
		node.Role = roleRaw.str
	}
	return node, nil
}

func buildDecodeScalar(name string, rv rawValue, errs **multierror.Error) (*Node, error) {
	lengthRaw, ok := rv.get("length")
	if !ok {
		return nil, fmt.Errorf("field %q: decode-qualified field missing length", name)
	}
	length, err := ParseExpr(lengthRaw)
	if err != nil {
		return nil, fmt.Errorf("field %q: %v", name, err)
	}

	node := &Node{Name: name, Kind: KindDecodeScalar, Length: length}

	dtRaw, ok := rv.get("data_type")
	if !ok || dtRaw.kind != rawString {
		return nil, fmt.Errorf("field %q: missing or non-string data_type", name)
	}
	if dt, ok := NormalizeDataType(dtRaw.str); ok {
		node.DataType = dt
	} else {
		// data_type is itself an indirect field reference (spec §4.3,
		// decode branch 3): the referenced field's previously-decoded
		// value is a code looked up in this same decode table.
		node.RawDataTypeField = dtRaw.str
	}

	node.VendorDiscriminator = defaultVendorDiscriminator
	if discRaw, ok := rv.get("vendor_discriminator"); ok && discRaw.kind == rawString {
		node.VendorDiscriminator = discRaw.str
	}

	decodeRaw, _ := rv.get("decode")
	if decodeRaw.kind != rawObject {
		return nil, fmt.Errorf("field %q: decode must be an object", name)
	}
	node.Decode = map[string]string{}
	node.DecodeReverse = map[string]string{}
	for _, f := range decodeRaw.obj {
		if f.key == vendorDefinedSymbol {
			if f.val.kind != rawObject {
				*errs = multierror.Append(*errs, fmt.Errorf("field %q: %q decode entry must be a nested schema object", name, vendorDefinedSymbol))
				continue
			}
			sub, err := buildNode(name+".VendorDefined", f.val, errs)
			if err != nil {
				*errs = multierror.Append(*errs, err)
				continue
			}
			sub.Kind = KindNestedObject
			node.VendorDefined = sub
			continue
		}
		if f.val.kind != rawString {
			*errs = multierror.Append(*errs, fmt.Errorf("field %q: decode entry %q must map to a string", name, f.key))
			continue
		}
		key, err := canonicalIntKey(f.key)
		if err != nil {
			*errs = multierror.Append(*errs, fmt.Errorf("field %q: decode key %q: %v", name, f.key, err))
			continue
		}
		node.Decode[key] = f.val.str
		node.DecodeReverse[f.val.str] = key
	}
	return node, nil
}

func buildRecordGroup(name string, rv rawValue, errs **multierror.Error) (*Node, error) {
	countRaw, _ := rv.get("count")
	count, err := ParseExpr(countRaw)
	if err != nil {
		return nil, fmt.Errorf("field %q: %v", name, err)
	}
	countIdx := rv.indexOf("count")

	node := &Node{Name: name, Kind: KindRecordGroup, Count: count}
	for i, f := range rv.obj {
		if f.key == "count" {
			continue
		}
		child, err := buildNode(f.key, f.val, errs)
		if err != nil {
			*errs = multierror.Append(*errs, fmt.Errorf("field %q: %v", name, err))
			continue
		}
		if i < countIdx {
			node.PreCount = append(node.PreCount, child)
		} else {
			node.Children = append(node.Children, child)
		}
	}
	return node, nil
}

func buildNestedObject(name string, rv rawValue, errs **multierror.Error) (*Node, error) {
	node := &Node{Name: name, Kind: KindNestedObject}
	for _, f := range rv.obj {
		child, err := buildNode(f.key, f.val, errs)
		if err != nil {
			*errs = multierror.Append(*errs, fmt.Errorf("field %q: %v", name, err))
			continue
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// canonicalIntKey normalizes a JSON decode key — decimal ("18") or hex
// ("0x12") — to a canonical decimal string, so that lookups compare by
// integer value regardless of which spelling a particular spec version
// used (spec §4.2).
func canonicalIntKey(raw string) (string, error) {
	n, err := strconv.ParseInt(raw, 0, 64)
	if err != nil {
		return "", errors.New("not an integer")
	}
	return strconv.FormatInt(n, 10), nil
}

// CanonicalInt normalizes an arbitrary integer to the same decimal-string
// form canonicalIntKey produces, so decoded scalar values can be compared
// against a Node's Decode table.
func CanonicalInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
