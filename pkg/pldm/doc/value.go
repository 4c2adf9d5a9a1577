// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package doc implements the recursive, insertion-ordered document value
// type produced by the decoder and consumed by the encoder. It plays the
// role that a plain dict tree plays in the original Python implementation,
// but with an explicit tagged representation and order preserved through a
// hand-rolled JSON encoder/decoder (encoding/json's map type does not
// preserve key order, which header.json's 4-space-indented, insertion-order
// contract requires).
package doc

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Kind tags the shape of a Value.
type Kind int

const (
	// KindInt holds a JSON number decoded without loss of precision.
	KindInt Kind = iota
	// KindString holds decoded text, hex strings, and timestamp renderings.
	KindString
	// KindList holds a repeated record group's elements, in order.
	KindList
	// KindMap holds a nested object's named fields, in insertion order.
	KindMap
)

// Value is the recursive document node: Int | Text | HexString | List<Value>
// | Map<Name, Value>, per the schema model's design notes. HexString and
// Text both use KindString; the distinction is only meaningful to the
// caller's data_type, not to the document shape.
type Value struct {
	Kind Kind
	Int  int64
	Str  string
	List []*Value
	Map  *OMap
}

// NewInt builds a scalar integer value.
func NewInt(v int64) *Value { return &Value{Kind: KindInt, Int: v} }

// NewString builds a scalar text value.
func NewString(v string) *Value { return &Value{Kind: KindString, Str: v} }

// NewList builds an empty ordered list value.
func NewList() *Value { return &Value{Kind: KindList} }

// NewMap builds an empty ordered map value.
func NewMap() *Value { return &Value{Kind: KindMap, Map: NewOMap()} }

// Append adds an element to a KindList value.
func (v *Value) Append(elem *Value) { v.List = append(v.List, elem) }

// AsInt returns the integer scalar, or false if v is not a KindInt value.
func (v *Value) AsInt() (int64, bool) {
	if v == nil || v.Kind != KindInt {
		return 0, false
	}
	return v.Int, true
}

// AsString returns the string scalar, or false if v is not a KindString value.
func (v *Value) AsString() (string, bool) {
	if v == nil || v.Kind != KindString {
		return "", false
	}
	return v.Str, true
}

// Field looks up key among a KindMap value's children.
func (v *Value) Field(key string) (*Value, bool) {
	if v == nil || v.Kind != KindMap {
		return nil, false
	}
	return v.Map.Get(key)
}

// OMap is a string-keyed map that remembers insertion order.
type OMap struct {
	keys []string
	vals map[string]*Value
}

// NewOMap builds an empty ordered map.
func NewOMap() *OMap { return &OMap{vals: make(map[string]*Value)} }

// Set inserts or replaces key. A first-time insertion is appended to the
// key order; replacing an existing key keeps its original position.
func (o *OMap) Set(key string, v *Value) {
	if _, exists := o.vals[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
}

// Get looks up key in this map only (no ancestor search — see Scope for
// that).
func (o *OMap) Get(key string) (*Value, bool) {
	v, ok := o.vals[key]
	return v, ok
}

// Keys returns the keys in insertion order. Callers must not mutate the
// returned slice.
func (o *OMap) Keys() []string { return o.keys }

// Snapshot returns a shallow copy of o: same key order, same *Value
// pointers. Used to capture the process-wide "info" store at the moment
// PackageVersionString finishes decoding, without aliasing the live scope
// object that keeps growing as later header fields are added.
func (o *OMap) Snapshot() *OMap {
	s := &OMap{keys: append([]string(nil), o.keys...), vals: make(map[string]*Value, len(o.vals))}
	for k, v := range o.vals {
		s.vals[k] = v
	}
	return s
}

// Len returns the number of entries.
func (o *OMap) Len() int { return len(o.keys) }

// Marshal renders v as 4-space-indented JSON with map keys in insertion
// order, matching header.json's external format (spec.md §6).
func Marshal(v *Value) []byte {
	var buf bytes.Buffer
	v.writeJSON(&buf, 0)
	return buf.Bytes()
}

func indent(depth int) string { return strings.Repeat("    ", depth) }

func (v *Value) writeJSON(buf *bytes.Buffer, depth int) {
	switch v.Kind {
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.Int, 10))
	case KindString:
		b, _ := json.Marshal(v.Str)
		buf.Write(b)
	case KindList:
		if len(v.List) == 0 {
			buf.WriteString("[]")
			return
		}
		buf.WriteString("[\n")
		for i, elem := range v.List {
			buf.WriteString(indent(depth + 1))
			elem.writeJSON(buf, depth+1)
			if i != len(v.List)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		buf.WriteString(indent(depth))
		buf.WriteByte(']')
	case KindMap:
		keys := v.Map.Keys()
		if len(keys) == 0 {
			buf.WriteString("{}")
			return
		}
		buf.WriteString("{\n")
		for i, k := range keys {
			buf.WriteString(indent(depth + 1))
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteString(": ")
			child, _ := v.Map.Get(k)
			child.writeJSON(buf, depth+1)
			if i != len(keys)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		buf.WriteString(indent(depth))
		buf.WriteByte('}')
	}
}
