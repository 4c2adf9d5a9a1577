// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package schema

import (
	"fmt"
	"io"
	"strings"
)

// Dump pretty-prints root's field tree to w: one line per node, indented by
// nesting depth, showing the attributes relevant to that node's kind. It
// exists for cmd/pldmschema, which validates and inspects a schema document
// without touching the decode/encode traversal at all.
func Dump(root *Node, w io.Writer) {
	for _, child := range root.Children {
		dumpNode(child, w, 0)
	}
}

func dumpNode(n *Node, w io.Writer, depth int) {
	prefix := strings.Repeat("  ", depth)
	switch n.Kind {
	case KindScalar:
		fmt.Fprintf(w, "%s%s: scalar length=%s data_type=%s\n", prefix, n.Name, describeExpr(n.Length), n.DataType)
	case KindDecodeScalar:
		dt := string(n.DataType)
		if dt == "" {
			dt = "<- " + n.RawDataTypeField
		}
		fmt.Fprintf(w, "%s%s: decode length=%s data_type=%s entries=%d\n", prefix, n.Name, describeExpr(n.Length), dt, len(n.Decode))
		if n.VendorDefined != nil {
			fmt.Fprintf(w, "%s  Vendor Defined (gated by %s):\n", prefix, n.VendorDiscriminator)
			for _, child := range n.VendorDefined.Children {
				dumpNode(child, w, depth+2)
			}
		}
	case KindRecordGroup:
		fmt.Fprintf(w, "%s%s: record group count=%s\n", prefix, n.Name, describeExpr(n.Count))
		for _, child := range n.PreCount {
			fmt.Fprintf(w, "%s  [pre-count]\n", prefix)
			dumpNode(child, w, depth+2)
		}
		for _, child := range n.Children {
			dumpNode(child, w, depth+1)
		}
	case KindNestedObject, KindRoot:
		fmt.Fprintf(w, "%s%s:\n", prefix, n.Name)
		for _, child := range n.Children {
			dumpNode(child, w, depth+1)
		}
	}
}

func describeExpr(e *Expr) string {
	if e == nil {
		return "?"
	}
	switch e.Kind {
	case ExprLiteral:
		return fmt.Sprintf("%d", e.Literal)
	case ExprField:
		return e.Field
	case ExprComponentBitmapBitLength:
		return "ComponentBitmapBitLength"
	case ExprRemaining:
		return "$remaining"
	case ExprBinary:
		return fmt.Sprintf("%s%c%s", describeExpr(e.Left), e.Op, describeExpr(e.Right))
	default:
		return "?"
	}
}
