// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package doc

import "testing"

func TestParseRoundTripPreservesOrder(t *testing.T) {
	root := NewMap()
	root.Map.Set("b", NewInt(1))
	root.Map.Set("a", NewString("x"))
	root.Map.Set("list", NewList())
	root.List = nil

	encoded := Marshal(root)
	parsed, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	reencoded := Marshal(parsed)
	if string(encoded) != string(reencoded) {
		t.Fatalf("round trip mismatch:\nfirst:  %s\nsecond: %s", encoded, reencoded)
	}
}

func TestParseNestedStructure(t *testing.T) {
	input := []byte(`{
    "DeviceIDRecordCount": 2,
    "FirmwareDeviceIDRecords": [
        {"RecordLength": 10},
        {"RecordLength": 20}
    ]
}`)
	v, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	count, ok := v.Field("DeviceIDRecordCount")
	if !ok {
		t.Fatal("missing DeviceIDRecordCount")
	}
	if i, _ := count.AsInt(); i != 2 {
		t.Fatalf("got %d, want 2", i)
	}
	records, ok := v.Field("FirmwareDeviceIDRecords")
	if !ok || records.Kind != KindList || len(records.List) != 2 {
		t.Fatalf("expected a 2-element list, got %+v", records)
	}
	first, ok := records.List[0].Field("RecordLength")
	if !ok {
		t.Fatal("missing RecordLength on first element")
	}
	if i, _ := first.AsInt(); i != 10 {
		t.Fatalf("got %d, want 10", i)
	}
}

func TestParseRejectsNonIntegerNumber(t *testing.T) {
	if _, err := Parse([]byte(`{"x": 1.5}`)); err == nil {
		t.Fatal("expected error for non-integer JSON number")
	}
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	if _, err := Parse([]byte(`{"x": `)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}
