// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codec

import "testing"

func TestTimestampRoundTrip(t *testing.T) {
	tests := []string{
		"2021-06-15 09:30:45:000000 +0000 (0x00)",
		"1999-12-31 23:59:59:123456 -0500 (0x0f)",
	}
	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			raw, err := EncodeTimestamp(s)
			if err != nil {
				t.Fatalf("EncodeTimestamp: %v", err)
			}
			if len(raw) != timestampLen {
				t.Fatalf("got %d bytes, want %d", len(raw), timestampLen)
			}
			got, err := DecodeTimestamp(raw)
			if err != nil {
				t.Fatalf("DecodeTimestamp: %v", err)
			}
			if got != s {
				t.Fatalf("round trip mismatch: got %q, want %q", got, s)
			}
		})
	}
}

func TestEncodeTimestampDefaultsResolution(t *testing.T) {
	raw, err := EncodeTimestamp("2021-06-15 09:30:45:000000 +0000")
	if err != nil {
		t.Fatalf("EncodeTimestamp: %v", err)
	}
	if raw[12] != 0x00 {
		t.Fatalf("expected default resolution byte 0x00, got 0x%02x", raw[12])
	}
}

func TestDecodeTimestampWrongLength(t *testing.T) {
	if _, err := DecodeTimestamp(make([]byte, 10)); err == nil {
		t.Fatal("expected error for wrong-length timestamp")
	}
}

func TestEncodeTimestampMalformed(t *testing.T) {
	if _, err := EncodeTimestamp("not a timestamp"); err == nil {
		t.Fatal("expected error for malformed timestamp string")
	}
}
