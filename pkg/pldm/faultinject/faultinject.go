// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package faultinject implements the five corruption modes spec §4.5
// describes, as a thin consumer of the decoded document and the extracted
// component images/trailing data. Every mutation takes an explicit
// *rand.Rand rather than touching the global math/rand source, so the
// library stays reproducible under test; only the CLI layer may default it
// to a time-seeded generator (spec §5's prohibition on hidden global state).
package faultinject

import (
	"fmt"
	"math/big"
	"math/rand"
	"strings"

	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/doc"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/image"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/pldmerr"
)

// Mode selects which field or payload region to corrupt.
type Mode string

const (
	Descriptor Mode = "descriptor"
	UUIDMode   Mode = "UUID"
	Image      Mode = "image"
	Signkey    Mode = "signkey"
	Largefile  Mode = "largefile"
)

// Largefile appends a uniformly chosen number of zero bytes in this range
// to remaining_firmwareData.bin (spec §4.5).
const (
	minLargefileBytes = 100 << 20
	maxLargefileBytes = 200 << 20
)

// Inject mutates document in place (for Descriptor/UUIDMode) or returns
// mutated copies of images/remaining (for Image/Signkey/Largefile); the
// caller re-encodes the header afterward (spec §4.5's "after mutation,
// re-encode via §4.4"), which recomputes PackageHeaderChecksum unconditionally
// and so needs no special handling here.
func Inject(mode Mode, document *doc.Value, images []image.Extracted, remaining []byte, rng *rand.Rand) ([]image.Extracted, []byte, error) {
	switch mode {
	case Descriptor:
		return images, remaining, injectDescriptor(document, rng)
	case UUIDMode:
		return images, remaining, injectUUID(document, rng)
	case Image:
		return bitflipImages(images), remaining, nil
	case Signkey:
		return images, bitflipFirstByte(remaining), nil
	case Largefile:
		return images, appendLargefile(remaining, rng), nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown fault-injection mode %q", pldmerr.SchemaError, mode)
	}
}

func injectDescriptor(document *doc.Value, rng *rand.Rand) error {
	area, ok := getMap(document, "FirmwareDeviceIdentificationArea")
	if !ok {
		return fmt.Errorf("%w: missing FirmwareDeviceIdentificationArea", pldmerr.SchemaError)
	}
	records, ok := getMap(area, "FirmwareDeviceIDRecords")
	if !ok || records.Kind != doc.KindList || len(records.List) == 0 {
		return fmt.Errorf("%w: no FirmwareDeviceIDRecords to corrupt", pldmerr.SchemaError)
	}
	field, ok := getMap(records.List[0], "InitialDescriptorData")
	if !ok {
		return fmt.Errorf("%w: missing InitialDescriptorData", pldmerr.SchemaError)
	}
	return bitflipHexField(field, rng)
}

// descriptorCandidate names a single UUID-typed descriptor field within the
// document: either a record's own initial descriptor, or one element of its
// AdditionalDescriptors list.
type descriptorCandidate struct {
	container *doc.Value
	field     string
}

// injectUUID fixes the historical bug spec §9 documents: rather than
// indexing FirmwareDeviceIDRecords[4] unconditionally (which may not exist,
// and may not carry a UUID descriptor even if it does), it collects every
// descriptor — initial or additional — whose type is actually "UUID" and
// chooses uniformly among those.
func injectUUID(document *doc.Value, rng *rand.Rand) error {
	area, ok := getMap(document, "FirmwareDeviceIdentificationArea")
	if !ok {
		return fmt.Errorf("%w: missing FirmwareDeviceIdentificationArea", pldmerr.SchemaError)
	}
	records, ok := getMap(area, "FirmwareDeviceIDRecords")
	if !ok || records.Kind != doc.KindList {
		return fmt.Errorf("%w: missing FirmwareDeviceIDRecords", pldmerr.SchemaError)
	}

	var candidates []descriptorCandidate
	for _, record := range records.List {
		if typ, ok := getMap(record, "InitialDescriptorType"); ok {
			if sym, ok := typ.AsString(); ok && sym == "UUID" {
				candidates = append(candidates, descriptorCandidate{record, "InitialDescriptorData"})
			}
		}
		additional, ok := getMap(record, "AdditionalDescriptors")
		if !ok || additional.Kind != doc.KindList {
			continue
		}
		for _, desc := range additional.List {
			typ, ok := getMap(desc, "AdditionalDescriptorType")
			if !ok {
				continue
			}
			if sym, ok := typ.AsString(); ok && sym == "UUID" {
				candidates = append(candidates, descriptorCandidate{desc, "AdditionalDescriptorIdentifierData"})
			}
		}
	}
	if len(candidates) == 0 {
		return fmt.Errorf("%w: no descriptor of type UUID to corrupt", pldmerr.SchemaError)
	}
	chosen := candidates[rng.Intn(len(candidates))]
	field, ok := getMap(chosen.container, chosen.field)
	if !ok {
		return fmt.Errorf("%w: missing %s", pldmerr.SchemaError, chosen.field)
	}
	return bitflipHexField(field, rng)
}

// bitflipHexField flips one randomly chosen bit per byte of v's underlying
// value, in place.
func bitflipHexField(v *doc.Value, rng *rand.Rand) error {
	s, ok := v.AsString()
	if !ok {
		return fmt.Errorf("%w: expected a hex string value to corrupt", pldmerr.SchemaError)
	}
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	n, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return fmt.Errorf("%w: %q is not a hex value", pldmerr.SchemaError, s)
	}
	raw := n.Bytes()
	if len(raw) == 0 {
		raw = []byte{0}
	}
	for i := range raw {
		raw[i] ^= 1 << uint(rng.Intn(8))
	}
	v.Str = fmt.Sprintf("%#x", new(big.Int).SetBytes(raw))
	return nil
}

func bitflipImages(images []image.Extracted) []image.Extracted {
	out := make([]image.Extracted, len(images))
	for i, img := range images {
		data := append([]byte(nil), img.Data...)
		if len(data) > 0 {
			data[0] ^= 0x02
		}
		out[i] = image.Extracted{Component: img.Component, Data: data}
	}
	return out
}

func bitflipFirstByte(remaining []byte) []byte {
	out := append([]byte(nil), remaining...)
	if len(out) > 0 {
		out[0] ^= 0x02
	}
	return out
}

func appendLargefile(remaining []byte, rng *rand.Rand) []byte {
	n := minLargefileBytes + rng.Intn(maxLargefileBytes-minLargefileBytes+1)
	out := append([]byte(nil), remaining...)
	return append(out, make([]byte, n)...)
}

func getMap(v *doc.Value, key string) (*doc.Value, bool) {
	if v == nil || v.Kind != doc.KindMap {
		return nil, false
	}
	return v.Map.Get(key)
}
