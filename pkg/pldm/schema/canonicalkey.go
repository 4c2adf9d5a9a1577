// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package schema

import (
	"strconv"
	"strings"

	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/doc"
)

// CanonicalKeyFromValue derives a Decode-table lookup key from an already
// decoded document Value: an integer value canonicalizes directly; a hex
// string ("0x10") parses back to its integer value first. Any other shape
// (plain text, a symbol string with no hex spelling) has no canonical key.
func CanonicalKeyFromValue(v *doc.Value) (string, bool) {
	if v == nil {
		return "", false
	}
	if i, ok := v.AsInt(); ok {
		return CanonicalInt(i), true
	}
	if s, ok := v.AsString(); ok {
		trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
		if n, err := strconv.ParseInt(trimmed, 16, 64); err == nil {
			return CanonicalInt(n), true
		}
	}
	return "", false
}
