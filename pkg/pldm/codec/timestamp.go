// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package codec

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/pldmerr"
)

// timestampLen is the fixed 13-byte PLDM timestamp layout from DSP0240:
// [utc_offset:i16 LE][microsecond:u24 LE][second:u8][minute:u8][hour:u8]
// [day:u8][month:u8][year:u16 LE][utc_time_resolution:u8].
const timestampLen = 13

var timestampPattern = regexp.MustCompile(
	`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}):(\d{1,6}) ([+-]\d{4})(?: \((0x[0-9a-fA-F]{2})\))?$`)

// DecodeTimestamp renders a 13-byte DSP0240 timestamp as
// "YYYY-MM-DD HH:MM:SS:uuuuuu ±HHMM (0xRR)".
func DecodeTimestamp(raw []byte) (string, error) {
	if len(raw) != timestampLen {
		return "", fmt.Errorf("%w: timestamp must be %d bytes, got %d", pldmerr.DecodeError, timestampLen, len(raw))
	}
	utcOffset := int16(uint16(raw[0]) | uint16(raw[1])<<8)
	microsecond := uint32(raw[2]) | uint32(raw[3])<<8 | uint32(raw[4])<<16
	second := raw[5]
	minute := raw[6]
	hour := raw[7]
	day := raw[8]
	month := raw[9]
	year := uint16(raw[10]) | uint16(raw[11])<<8
	resolution := raw[12]

	t := time.Date(int(year), time.Month(month), int(day), int(hour), int(minute), int(second), 0, time.UTC)
	sign := "+"
	offset := int(utcOffset)
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("%s:%06d %s%04d (0x%02x)",
		t.Format("2006-01-02 15:04:05"), microsecond, sign, offset, resolution), nil
}

// EncodeTimestamp inverts DecodeTimestamp. If the optional "(0xRR)"
// resolution suffix is missing, resolution defaults to 0x00, per spec
// §4.1.
func EncodeTimestamp(s string) ([]byte, error) {
	m := timestampPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("%w: malformed timestamp %q", pldmerr.DecodeError, s)
	}
	datetimePart, microPart, offsetPart, resolutionPart := m[1], m[2], m[3], m[4]

	t, err := time.ParseInLocation("2006-01-02 15:04:05", datetimePart, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed timestamp %q: %v", pldmerr.DecodeError, s, err)
	}
	microsecond, err := strconv.ParseUint(padRight(microPart, 6), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed microsecond in %q: %v", pldmerr.DecodeError, s, err)
	}
	utcOffset, err := strconv.Atoi(offsetPart)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed UTC offset in %q: %v", pldmerr.DecodeError, s, err)
	}
	var resolution uint64
	if resolutionPart != "" {
		resolution, err = strconv.ParseUint(resolutionPart[2:], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed resolution in %q: %v", pldmerr.DecodeError, s, err)
		}
	}

	buf := make([]byte, timestampLen)
	off := uint16(int16(utcOffset))
	buf[0] = byte(off)
	buf[1] = byte(off >> 8)
	buf[2] = byte(microsecond)
	buf[3] = byte(microsecond >> 8)
	buf[4] = byte(microsecond >> 16)
	buf[5] = byte(t.Second())
	buf[6] = byte(t.Minute())
	buf[7] = byte(t.Hour())
	buf[8] = byte(t.Day())
	buf[9] = byte(t.Month())
	year := uint16(t.Year())
	buf[10] = byte(year)
	buf[11] = byte(year >> 8)
	buf[12] = byte(resolution)
	return buf, nil
}

func padRight(s string, width int) string {
	for len(s) < width {
		s += "0"
	}
	return s
}
