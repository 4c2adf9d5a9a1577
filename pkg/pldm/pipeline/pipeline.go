// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline is the orchestrator spec §4.6 describes: Unpack, Repack,
// DumpHeader, and ErrorInject, plus the filesystem layout and output-
// directory collision handling spec §6 specifies. Apart from schema.Load
// reading a schema document and the CLI reading its input file, it is the
// only layer that touches a filesystem path, and the only one that renders a
// human-readable summary; pkg/pldm/decode, encode, image, and faultinject
// never do file I/O of their own.
package pipeline

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/camelcase"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/microsoft/pldm-fw-pkgr/pkg/log"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/decode"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/doc"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/encode"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/faultinject"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/image"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/pldmerr"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/schema"
)

const payloadChecksumField = "PLDMFWPackagePayloadChecksum"

// UnpackResult is everything a completed unpack produced, in memory, ready
// either to be persisted (WriteUnpack) or fed straight into ErrorInject.
type UnpackResult struct {
	Document               *doc.Value
	Images                 []image.Extracted
	Remaining              []byte
	HeaderChecksumStored   uint32
	HeaderChecksumComputed uint32
	HeaderChecksumMatch    bool
	PayloadChecksumPresent bool
	PayloadChecksumStored  uint32
	PayloadChecksumComputed uint32
	PayloadChecksumMatch   bool
}

// Success reports the overall unpack health spec §4.6 asks for: header CRC
// match, and (if the package carries one) payload CRC match.
func (r *UnpackResult) Success() bool {
	if r.PayloadChecksumPresent {
		return r.HeaderChecksumMatch && r.PayloadChecksumMatch
	}
	return r.HeaderChecksumMatch
}

// Unpack decodes raw against root, then splits the payload into per-
// component images and trailing data.
func Unpack(raw []byte, root *schema.Node) (*UnpackResult, error) {
	decRes, err := decode.Decode(raw, root)
	if err != nil {
		return nil, err
	}

	sizeV, ok := decRes.Document.Field("PackageHeaderSize")
	if !ok {
		return nil, fmt.Errorf("%w: decoded document has no PackageHeaderSize", pldmerr.SchemaError)
	}
	headerSize, ok := sizeV.AsInt()
	if !ok || headerSize < 0 || int(headerSize) > len(raw) {
		return nil, pldmerr.New(pldmerr.Bounds, "PackageHeaderSize", int(headerSize), fmt.Errorf("out of range for a %d-byte package", len(raw)))
	}
	payload := raw[headerSize:]

	components, err := extractComponents(decRes.Document)
	if err != nil {
		return nil, err
	}
	images, remaining, err := image.Split(payload, components)
	if err != nil {
		return nil, err
	}

	result := &UnpackResult{
		Document:               decRes.Document,
		Images:                 images,
		Remaining:              remaining,
		HeaderChecksumStored:   decRes.HeaderChecksumStored,
		HeaderChecksumComputed: decRes.HeaderChecksumComputed,
		HeaderChecksumMatch:    decRes.HeaderChecksumMatch,
	}
	if pcV, ok := decRes.Document.Field(payloadChecksumField); ok {
		stored, _ := pcV.AsInt()
		computed := image.PayloadChecksum(images)
		result.PayloadChecksumPresent = true
		result.PayloadChecksumStored = uint32(stored)
		result.PayloadChecksumComputed = computed
		result.PayloadChecksumMatch = uint32(stored) == computed
	}
	return result, nil
}

// RepackResult is a freshly encoded package plus the intermediate header
// bytes spec §6 asks be persisted separately as a diagnostic.
type RepackResult struct {
	Bytes              []byte
	IntermediateHeader []byte
	HeaderChecksum     uint32
}

// Repack encodes headerDoc, splices in images and remaining, and — if the
// schema carries a payload-checksum field — computes the real payload CRC,
// patches it into the document, and re-emits the header once more (spec
// §4.4's single idempotent re-emission cycle).
func Repack(headerDoc *doc.Value, root *schema.Node, images []image.Extracted, remaining []byte) (*RepackResult, error) {
	first, err := encode.Encode(headerDoc, root)
	if err != nil {
		return nil, err
	}

	payload, err := image.Join(images, remaining)
	if err != nil {
		return nil, err
	}

	headerBytes := first.Bytes
	checksum := first.HeaderChecksum
	if pcV, ok := headerDoc.Field(payloadChecksumField); ok {
		pcV.Int = int64(image.PayloadChecksum(images))
		second, err := encode.Encode(headerDoc, root)
		if err != nil {
			return nil, err
		}
		headerBytes = second.Bytes
		checksum = second.HeaderChecksum
	}

	full := make([]byte, 0, len(headerBytes)+len(payload))
	full = append(full, headerBytes...)
	full = append(full, payload...)
	return &RepackResult{Bytes: full, IntermediateHeader: first.Bytes, HeaderChecksum: checksum}, nil
}

// DumpHeader decodes raw without extracting images or trailing data (spec
// §4.6's dump-header pipeline).
func DumpHeader(raw []byte, root *schema.Node) (*decode.Result, error) {
	return decode.Decode(raw, root)
}

// ErrorInject runs Unpack, applies one faultinject.Mode mutation, and
// repacks the corrupted package.
func ErrorInject(raw []byte, root *schema.Node, mode faultinject.Mode, rng *rand.Rand) (*RepackResult, error) {
	up, err := Unpack(raw, root)
	if err != nil {
		return nil, err
	}
	images, remaining, err := faultinject.Inject(mode, up.Document, up.Images, up.Remaining, rng)
	if err != nil {
		return nil, err
	}
	return Repack(up.Document, root, images, remaining)
}

// extractComponents reads ComponentImageInformationArea.ComponentImageInformation
// into the plain offset/size/name triples pkg/pldm/image operates on. These
// field names are DSP0267 constants across every schema version this codec
// supports, so addressing them directly here (instead of threading them
// through the schema) keeps pkg/pldm/image schema-agnostic.
func extractComponents(document *doc.Value) ([]image.Component, error) {
	area, ok := document.Field("ComponentImageInformationArea")
	if !ok {
		return nil, fmt.Errorf("%w: missing ComponentImageInformationArea", pldmerr.SchemaError)
	}
	list, ok := area.Field("ComponentImageInformation")
	if !ok || list.Kind != doc.KindList {
		return nil, fmt.Errorf("%w: missing ComponentImageInformation", pldmerr.SchemaError)
	}

	components := make([]image.Component, len(list.List))
	for i, elem := range list.List {
		offsetV, _ := elem.Field("ComponentLocationOffset")
		sizeV, _ := elem.Field("ComponentSize")
		idV, _ := elem.Field("ComponentIdentifier")
		verV, _ := elem.Field("ComponentVersionString")

		offset, _ := offsetV.AsInt()
		size, _ := sizeV.AsInt()
		id, _ := idV.AsInt()
		ver, _ := verV.AsString()

		components[i] = image.Component{
			Index:    i,
			FileName: fmt.Sprintf("%d_%s_image_%d.bin", id, sanitizeFileNamePart(ver), i),
			Offset:   offset,
			Size:     size,
		}
	}
	return components, nil
}

func sanitizeFileNamePart(s string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", " ", "_")
	return replacer.Replace(s)
}

// LoadImagesFromDisk reads back the per-component files and
// remaining_firmwareData.bin a prior Unpack wrote under dir, using
// document's ComponentImageInformationArea to know which file name and
// declared offset/size belongs to each component. It is the read-side
// counterpart WriteUnpack's file layout requires before a Repack can run
// against an edited header.json.
func LoadImagesFromDisk(dir string, document *doc.Value) ([]image.Extracted, []byte, error) {
	components, err := extractComponents(document)
	if err != nil {
		return nil, nil, err
	}
	images := make([]image.Extracted, len(components))
	for i, c := range components {
		data, err := os.ReadFile(filepath.Join(dir, c.FileName))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: reading %s: %v", pldmerr.IOError, c.FileName, err)
		}
		images[i] = image.Extracted{Component: c, Data: data}
	}
	remaining, err := os.ReadFile(filepath.Join(dir, "remaining_firmwareData.bin"))
	if err != nil && !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("%w: reading remaining_firmwareData.bin: %v", pldmerr.IOError, err)
	}
	return images, remaining, nil
}

// PrepareOutputDir implements spec §4.6's output-directory collision rule:
// if dir already exists, it is renamed to "<dir>_backup_<k>" for the
// smallest free positive integer k, then dir is recreated empty.
func PrepareOutputDir(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		for k := 1; ; k++ {
			candidate := fmt.Sprintf("%s_backup_%d", dir, k)
			if _, err := os.Stat(candidate); os.IsNotExist(err) {
				if err := os.Rename(dir, candidate); err != nil {
					return fmt.Errorf("%w: renaming existing %s: %v", pldmerr.IOError, dir, err)
				}
				log.Infof("existing output directory moved to %s", candidate)
				break
			}
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("%w: statting %s: %v", pldmerr.IOError, dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", pldmerr.IOError, dir, err)
	}
	return nil
}

// WriteUnpack persists an UnpackResult under outDir/unpack, per spec §6's
// layout.
func WriteUnpack(outDir string, res *UnpackResult) error {
	unpackDir := filepath.Join(outDir, "unpack")
	if err := os.MkdirAll(unpackDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", pldmerr.IOError, err)
	}
	if err := os.WriteFile(filepath.Join(unpackDir, "header.json"), doc.Marshal(res.Document), 0o644); err != nil {
		return fmt.Errorf("%w: writing header.json: %v", pldmerr.IOError, err)
	}
	for _, img := range res.Images {
		if err := os.WriteFile(filepath.Join(unpackDir, img.Component.FileName), img.Data, 0o644); err != nil {
			return fmt.Errorf("%w: writing %s: %v", pldmerr.IOError, img.Component.FileName, err)
		}
	}
	if err := os.WriteFile(filepath.Join(unpackDir, "remaining_firmwareData.bin"), res.Remaining, 0o644); err != nil {
		return fmt.Errorf("%w: writing remaining_firmwareData.bin: %v", pldmerr.IOError, err)
	}
	return nil
}

// WriteHeader persists a dump-header result under outDir/unpack/header.json
// only, skipping image/trailing extraction.
func WriteHeader(outDir string, res *decode.Result) error {
	unpackDir := filepath.Join(outDir, "unpack")
	if err := os.MkdirAll(unpackDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", pldmerr.IOError, err)
	}
	if err := os.WriteFile(filepath.Join(unpackDir, "header.json"), doc.Marshal(res.Document), 0o644); err != nil {
		return fmt.Errorf("%w: writing header.json: %v", pldmerr.IOError, err)
	}
	return nil
}

// WriteRepack persists a RepackResult under outDir/repack, plus the
// diagnostic header_info.bin at outDir's root, per spec §6's layout.
func WriteRepack(outDir string, res *RepackResult) error {
	repackDir := filepath.Join(outDir, "repack")
	if err := os.MkdirAll(repackDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", pldmerr.IOError, err)
	}
	if err := os.WriteFile(filepath.Join(repackDir, "repacked_data.fwpkg"), res.Bytes, 0o644); err != nil {
		return fmt.Errorf("%w: writing repacked_data.fwpkg: %v", pldmerr.IOError, err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "header_info.bin"), res.IntermediateHeader, 0o644); err != nil {
		return fmt.Errorf("%w: writing header_info.bin: %v", pldmerr.IOError, err)
	}
	return nil
}

// SummarizeUnpack renders a human-readable table of the extracted
// components plus the CRC diagnostics, in the teacher's go-pretty/humanize
// reporting style.
func SummarizeUnpack(res *UnpackResult) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Index", "Offset", "Size", "File"})
	for _, img := range res.Images {
		t.AppendRow(table.Row{
			img.Component.Index,
			img.Component.Offset,
			humanize.IBytes(uint64(img.Component.Size)),
			img.Component.FileName,
		})
	}

	var sb strings.Builder
	sb.WriteString(t.Render())
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Header checksum: stored=0x%08x calculated=0x%08x match=%v\n",
		res.HeaderChecksumStored, res.HeaderChecksumComputed, res.HeaderChecksumMatch))
	if res.PayloadChecksumPresent {
		sb.WriteString(fmt.Sprintf("Payload checksum: stored=0x%08x calculated=0x%08x match=%v\n",
			res.PayloadChecksumStored, res.PayloadChecksumComputed, res.PayloadChecksumMatch))
	}
	sb.WriteString(fmt.Sprintf("%s: %s\n", humanizeFieldName("RemainingFirmwareData"), humanize.IBytes(uint64(len(res.Remaining)))))
	return sb.String()
}

func humanizeFieldName(name string) string {
	return strings.Join(camelcase.Split(name), " ")
}
