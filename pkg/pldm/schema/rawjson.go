// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// rawKind tags the shape of a rawValue. Schema JSON documents never contain
// arrays (field repetition is expressed through the "count" attribute, not
// through JSON array syntax), so rawValue only needs strings, numbers, and
// ordered objects.
type rawKind int

const (
	rawString rawKind = iota
	rawNumber
	rawObject
)

type rawValue struct {
	kind rawKind
	str  string
	num  float64
	obj  []rawField
}

type rawField struct {
	key string
	val rawValue
}

// get returns the first field with the given key, preserving the schema's
// "first match wins" reading for attribute lookups.
func (r rawValue) get(key string) (rawValue, bool) {
	for _, f := range r.obj {
		if f.key == key {
			return f.val, true
		}
	}
	return rawValue{}, false
}

// indexOf returns the position of key in the ordered field list, or -1.
func (r rawValue) indexOf(key string) int {
	for i, f := range r.obj {
		if f.key == key {
			return i
		}
	}
	return -1
}

// parseRawJSON parses a schema JSON document (or a "decode"/"Vendor
// Defined" sub-object) into an order-preserving rawValue tree, using
// encoding/json's token stream the same way pkg/pldm/doc.Parse does for
// header.json documents — the schema's field order is semantically
// significant (it fixes byte-emission order, and a record group's
// pre-count/post-count split per spec §4.4), so a plain map[string]any
// decode is not sufficient.
func parseRawJSON(data []byte) (rawValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return rawValue{}, err
	}
	return parseRawToken(dec, tok)
}

func parseRawToken(dec *json.Decoder, tok json.Token) (rawValue, error) {
	switch t := tok.(type) {
	case json.Delim:
		if t != '{' {
			return rawValue{}, fmt.Errorf("schema: unsupported JSON shape %q (only objects, strings, and numbers are valid)", t)
		}
		var fields []rawField
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return rawValue{}, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return rawValue{}, fmt.Errorf("schema: expected object key, got %v", keyTok)
			}
			innerTok, err := dec.Token()
			if err != nil {
				return rawValue{}, err
			}
			val, err := parseRawToken(dec, innerTok)
			if err != nil {
				return rawValue{}, err
			}
			fields = append(fields, rawField{key: key, val: val})
		}
		if _, err := dec.Token(); err != nil { // consume '}'
			return rawValue{}, err
		}
		return rawValue{kind: rawObject, obj: fields}, nil
	case string:
		return rawValue{kind: rawString, str: t}, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return rawValue{}, fmt.Errorf("schema: malformed number %q: %w", t.String(), err)
		}
		return rawValue{kind: rawNumber, num: f}, nil
	default:
		return rawValue{}, fmt.Errorf("schema: unsupported JSON token %v (%T)", tok, tok)
	}
}
