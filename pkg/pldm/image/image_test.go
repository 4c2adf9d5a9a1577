// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package image

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitOrdersByOffsetButReturnsCallerOrder(t *testing.T) {
	payload := []byte{
		'A', 'A', 'A', 'A', // component 1 at offset 4
		'B', 'B', // component 0 at offset 8
		'C', 'C', 'C', // trailing remaining
	}
	payload = append([]byte{0, 0, 0, 0}, payload...)
	components := []Component{
		{Index: 0, FileName: "c0.bin", Offset: 8, Size: 2},
		{Index: 1, FileName: "c1.bin", Offset: 4, Size: 4},
	}
	extracted, remaining, err := Split(payload, components)
	require.NoError(t, err)
	require.Len(t, extracted, 2)
	require.Equal(t, 0, extracted[0].Component.Index)
	require.Equal(t, []byte("BB"), extracted[0].Data)
	require.Equal(t, 1, extracted[1].Component.Index)
	require.Equal(t, []byte("AAAA"), extracted[1].Data)
	require.Equal(t, []byte("CCC"), remaining)
}

func TestSplitRejectsOutOfBoundsComponent(t *testing.T) {
	payload := make([]byte, 4)
	components := []Component{{Index: 0, FileName: "c0.bin", Offset: 2, Size: 10}}
	_, _, err := Split(payload, components)
	require.Error(t, err)
}

func TestSplitRejectsNegativeOffsetOrSize(t *testing.T) {
	payload := make([]byte, 4)
	components := []Component{{Index: 0, FileName: "c0.bin", Offset: -1, Size: 2}}
	_, _, err := Split(payload, components)
	require.Error(t, err)
}

func TestJoinPadsGapsBetweenComponents(t *testing.T) {
	images := []Extracted{
		{Component: Component{Index: 0, Offset: 0, Size: 2}, Data: []byte("AA")},
		{Component: Component{Index: 1, Offset: 5, Size: 2}, Data: []byte("BB")},
	}
	buf, err := Join(images, []byte("TAIL"))
	require.NoError(t, err)
	require.Equal(t, []byte("AA\x00\x00\x00BBTAIL"), buf)
}

func TestJoinRejectsOffsetBehindCursor(t *testing.T) {
	images := []Extracted{
		{Component: Component{Index: 0, Offset: 0, Size: 4}, Data: []byte("AAAA")},
		{Component: Component{Index: 1, Offset: 2, Size: 2}, Data: []byte("BB")},
	}
	_, err := Join(images, nil)
	require.Error(t, err, "an offset behind the write cursor must be reported, not silently reordered")
}

func TestJoinIsOrderIndependentOnInput(t *testing.T) {
	images := []Extracted{
		{Component: Component{Index: 1, Offset: 2, Size: 2}, Data: []byte("BB")},
		{Component: Component{Index: 0, Offset: 0, Size: 2}, Data: []byte("AA")},
	}
	buf, err := Join(images, nil)
	require.NoError(t, err)
	require.Equal(t, []byte("AABB"), buf)
}

func TestPayloadChecksumMatchesDirectCRC32(t *testing.T) {
	images := []Extracted{
		{Data: []byte("AA")},
		{Data: []byte("BB")},
	}
	got := PayloadChecksum(images)

	concatenated := append(append([]byte(nil), images[0].Data...), images[1].Data...)
	var single []Extracted
	single = append(single, Extracted{Data: concatenated})
	want := PayloadChecksum(single)
	require.Equal(t, want, got, "checksum must depend only on concatenated bytes, not chunk boundaries")
}

func TestSplitThenJoinRoundTrip(t *testing.T) {
	payload := []byte("AAAABBCCC")
	components := []Component{
		{Index: 0, FileName: "c0.bin", Offset: 0, Size: 4},
		{Index: 1, FileName: "c1.bin", Offset: 4, Size: 2},
	}
	extracted, remaining, err := Split(payload, components)
	require.NoError(t, err)
	rejoined, err := Join(extracted, remaining)
	require.NoError(t, err)
	require.Equal(t, payload, rejoined)
}
