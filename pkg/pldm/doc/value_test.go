// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package doc

import (
	"strings"
	"testing"
)

func TestOMapPreservesInsertionOrder(t *testing.T) {
	o := NewOMap()
	o.Set("z", NewInt(1))
	o.Set("a", NewInt(2))
	o.Set("m", NewInt(3))
	got := o.Keys()
	want := []string{"z", "a", "m"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestOMapReplaceKeepsPosition(t *testing.T) {
	o := NewOMap()
	o.Set("a", NewInt(1))
	o.Set("b", NewInt(2))
	o.Set("a", NewInt(99))
	if len(o.Keys()) != 2 {
		t.Fatalf("expected replace not to grow key list, got %v", o.Keys())
	}
	v, ok := o.Get("a")
	if !ok {
		t.Fatal("expected key a present")
	}
	if i, _ := v.AsInt(); i != 99 {
		t.Fatalf("got %d, want 99", i)
	}
}

func TestSnapshotIsIndependentOfLaterMutation(t *testing.T) {
	o := NewOMap()
	o.Set("a", NewInt(1))
	snap := o.Snapshot()
	o.Set("b", NewInt(2))
	if snap.Len() != 1 {
		t.Fatalf("snapshot should not see later insertions, got len %d", snap.Len())
	}
	if _, ok := snap.Get("b"); ok {
		t.Fatal("snapshot should not see key added after it was taken")
	}
}

func TestMarshalPreservesKeyOrder(t *testing.T) {
	root := NewMap()
	root.Map.Set("PackageHeaderFormatRevision", NewInt(2))
	root.Map.Set("PackageHeaderSize", NewInt(64))
	root.Map.Set("PackageVersionString", NewString("1.0.0"))

	out := string(Marshal(root))
	revIdx := strings.Index(out, "PackageHeaderFormatRevision")
	sizeIdx := strings.Index(out, "PackageHeaderSize")
	verIdx := strings.Index(out, "PackageVersionString")
	if revIdx < 0 || sizeIdx < 0 || verIdx < 0 {
		t.Fatalf("expected all three keys present in %s", out)
	}
	if !(revIdx < sizeIdx && sizeIdx < verIdx) {
		t.Fatalf("key order not preserved in marshaled output: %s", out)
	}
}

func TestMarshalEmptyMapAndList(t *testing.T) {
	root := NewMap()
	root.Map.Set("Empty", NewMap())
	root.Map.Set("List", NewList())
	out := string(Marshal(root))
	if !strings.Contains(out, `"Empty": {}`) {
		t.Fatalf("expected empty map to render as {}, got %s", out)
	}
	if !strings.Contains(out, `"List": []`) {
		t.Fatalf("expected empty list to render as [], got %s", out)
	}
}

func TestFieldOnNonMapReturnsFalse(t *testing.T) {
	v := NewInt(5)
	if _, ok := v.Field("anything"); ok {
		t.Fatal("Field on a scalar value should report not-found")
	}
}

func TestScopeResolveWalksAncestors(t *testing.T) {
	root := NewOMap()
	root.Set("ComponentBitmapBitLength", NewInt(32))
	rootScope := NewScope(nil, root)

	child := NewOMap()
	child.Set("RecordLength", NewInt(10))
	childScope := NewScope(rootScope, child)

	v, ok := childScope.Resolve("ComponentBitmapBitLength")
	if !ok {
		t.Fatal("expected ComponentBitmapBitLength to resolve via ancestor scope")
	}
	if i, _ := v.AsInt(); i != 32 {
		t.Fatalf("got %d, want 32", i)
	}

	if _, ok := childScope.Resolve("NoSuchField"); ok {
		t.Fatal("expected missing field to fail resolution")
	}
}

func TestScopeLocalShadowsAncestor(t *testing.T) {
	root := NewOMap()
	root.Set("Count", NewInt(1))
	rootScope := NewScope(nil, root)

	child := NewOMap()
	child.Set("Count", NewInt(2))
	childScope := NewScope(rootScope, child)

	v, _ := childScope.Resolve("Count")
	if i, _ := v.AsInt(); i != 2 {
		t.Fatalf("expected local scope to shadow ancestor, got %d", i)
	}
}
