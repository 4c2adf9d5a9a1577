// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/doc"
)

// ExprKind tags the shape of a length/count expression, parsed once at
// schema load per spec §9's design note ("Expression resolution becomes a
// small evaluator ... parsed once at schema load").
type ExprKind int

const (
	// ExprLiteral is a fixed integer.
	ExprLiteral ExprKind = iota
	// ExprField is the name of a previously decoded scalar field, looked up
	// in the current or an ancestor scope.
	ExprField
	// ExprComponentBitmapBitLength is the special length token that
	// resolves to the process-wide info snapshot's ComponentBitmapBitLength,
	// divided by 8 for byte length.
	ExprComponentBitmapBitLength
	// ExprRemaining is the "$remaining" sentinel: the number of bytes left
	// in the current bounded region (a Vendor Defined sub-traversal). The
	// nested schemas spec §4.3 describes (e.g. a vendor descriptor's trailing
	// data field) need to consume "whatever is left of the declared length",
	// which the single-operator arithmetic grammar in spec §4.4 cannot
	// express on its own; this sentinel is the bounded-traversal-local
	// equivalent of ComponentBitmapBitLength's process-wide snapshot lookup.
	ExprRemaining
	// ExprBinary is "A op B", evaluated left-to-right on resolved operands.
	ExprBinary
)

// Expr is a length/count expression: integer literal; field name; the
// ComponentBitmapBitLength sentinel; or a single binary operation on two
// sub-expressions. At most one operator is permitted per expression (spec
// §4.4's tie-break rule), so Expr never needs more than one level of
// Binary nesting.
type Expr struct {
	Kind    ExprKind
	Literal int
	Field   string
	Op      byte
	Left    *Expr
	Right   *Expr
}

var operators = "+-*/"

// ParseExpr parses a schema "length" or "count" attribute value into an
// Expr. rv must be a JSON number (literal) or string (field name,
// arithmetic expression, or the ComponentBitmapBitLength sentinel).
func ParseExpr(rv rawValue) (*Expr, error) {
	switch rv.kind {
	case rawNumber:
		return &Expr{Kind: ExprLiteral, Literal: int(rv.num)}, nil
	case rawString:
		return parseExprString(rv.str)
	default:
		return nil, fmt.Errorf("%w: length/count must be a number or string", errSchema)
	}
}

func parseExprString(s string) (*Expr, error) {
	if s == "ComponentBitmapBitLength" {
		return &Expr{Kind: ExprComponentBitmapBitLength}, nil
	}
	if s == "$remaining" {
		return &Expr{Kind: ExprRemaining}, nil
	}
	if idx := strings.IndexAny(s, operators); idx > 0 {
		left := s[:idx]
		op := s[idx]
		right := s[idx+1:]
		rightExpr, err := parseOperand(right)
		if err != nil {
			return nil, fmt.Errorf("%w: bad right operand %q in expression %q: %v", errSchema, right, s, err)
		}
		return &Expr{
			Kind:  ExprBinary,
			Op:    op,
			Left:  &Expr{Kind: ExprField, Field: left},
			Right: rightExpr,
		}, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &Expr{Kind: ExprLiteral, Literal: n}, nil
	}
	return &Expr{Kind: ExprField, Field: s}, nil
}

func parseOperand(s string) (*Expr, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return &Expr{Kind: ExprLiteral, Literal: n}, nil
	}
	return &Expr{Kind: ExprField, Field: s}, nil
}

// Context carries everything Resolve needs beyond the expression itself: the
// current traversal scope, the process-wide info snapshot (nil before
// PackageVersionString has been seen), and, inside a Vendor Defined
// sub-traversal, how many bytes remain in the bounded region.
type Context struct {
	Scope     *doc.Scope
	Info      *doc.OMap
	Remaining int // bytes left in the current bounded region; meaningless unless HasRemaining
	HasRemaining bool
}

// Resolve evaluates e against ctx.
func (e *Expr) Resolve(ctx Context) (int, error) {
	switch e.Kind {
	case ExprLiteral:
		return e.Literal, nil
	case ExprField:
		v, ok := ctx.Scope.Resolve(e.Field)
		if !ok {
			return 0, fmt.Errorf("%w: unresolved field reference %q", errSchema, e.Field)
		}
		i, ok := v.AsInt()
		if !ok {
			return 0, fmt.Errorf("%w: field %q did not resolve to an integer", errSchema, e.Field)
		}
		return int(i), nil
	case ExprComponentBitmapBitLength:
		if ctx.Info == nil {
			return 0, fmt.Errorf("%w: ComponentBitmapBitLength referenced before PackageVersionString snapshot", errSchema)
		}
		v, ok := ctx.Info.Get("ComponentBitmapBitLength")
		if !ok {
			return 0, fmt.Errorf("%w: ComponentBitmapBitLength missing from info snapshot", errSchema)
		}
		i, ok := v.AsInt()
		if !ok {
			return 0, fmt.Errorf("%w: ComponentBitmapBitLength is not an integer", errSchema)
		}
		return int(i) / 8, nil
	case ExprRemaining:
		if !ctx.HasRemaining {
			return 0, fmt.Errorf("%w: $remaining used outside a bounded Vendor Defined sub-traversal", errSchema)
		}
		return ctx.Remaining, nil
	case ExprBinary:
		l, err := e.Left.Resolve(ctx)
		if err != nil {
			return 0, err
		}
		r, err := e.Right.Resolve(ctx)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case '+':
			return l + r, nil
		case '-':
			return l - r, nil
		case '*':
			return l * r, nil
		case '/':
			if r == 0 {
				return 0, fmt.Errorf("%w: division by zero", errSchema)
			}
			return l / r, nil
		default:
			return 0, fmt.Errorf("%w: unknown operator %q", errSchema, e.Op)
		}
	default:
		return 0, fmt.Errorf("%w: unknown expression kind", errSchema)
	}
}
