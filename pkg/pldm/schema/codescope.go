// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package schema

// CodeScope is a side-channel parallel to doc.Scope: it remembers the raw
// canonical decode-table key behind a field whose document value was
// replaced by a human-readable symbol (spec §4.2's decode-table lookup).
// A decode branch-3 field (spec §4.3) needs the sibling's *code*, not its
// symbol, to pick its own data_type out of its decode table — but the code
// itself must never appear in the document, so it cannot simply be stored
// in the document tree the way every other decoded value is.
type CodeScope struct {
	parent *CodeScope
	codes  map[string]int64
}

// NewCodeScope builds a code scope chained to parent (nil at the root).
func NewCodeScope(parent *CodeScope) *CodeScope {
	return &CodeScope{parent: parent, codes: make(map[string]int64)}
}

// Set records the canonical code behind name in this scope.
func (c *CodeScope) Set(name string, code int64) { c.codes[name] = code }

// Resolve looks up name in this scope, then each ancestor in turn.
func (c *CodeScope) Resolve(name string) (int64, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if v, ok := cur.codes[name]; ok {
			return v, true
		}
	}
	return 0, false
}
