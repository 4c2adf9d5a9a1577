// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/schema"
)

const testSchemaJSON = `{
	"PackageHeaderFormatRevision": {"length": 1, "data_type": "int"},
	"PackageHeaderSize": {"length": 2, "data_type": "int"},
	"ComponentBitmapBitLength": {"length": 2, "data_type": "int"},
	"PackageVersionStringType": {"length": 1, "data_type": "int"},
	"PackageVersionStringLength": {"length": 1, "data_type": "int"},
	"PackageVersionString": {
		"length": "PackageVersionStringLength",
		"data_type": "PackageVersionStringType",
		"decode": {"1": "ASCII"}
	},
	"ComponentImageInformationArea": {
		"ComponentImageCount": {"length": 2, "data_type": "int"},
		"ComponentImageInformation": {
			"count": "ComponentImageCount",
			"ComponentIdentifier": {"length": 2, "data_type": "int"},
			"ComponentLocationOffset": {"length": 4, "data_type": "int"},
			"ComponentSize": {"length": 4, "data_type": "int"},
			"ComponentVersionStringType": {"length": 1, "data_type": "int"},
			"ComponentVersionStringLength": {"length": 1, "data_type": "int"},
			"ComponentVersionString": {
				"length": "ComponentVersionStringLength",
				"data_type": "ComponentVersionStringType",
				"decode": {"1": "ASCII"}
			}
		}
	},
	"PackageHeaderChecksum": {"length": 4, "data_type": "int", "role": "header_checksum"},
	"PLDMFWPackagePayloadChecksum": {"length": 4, "data_type": "int", "role": "payload_checksum"}
}`

// buildTestPackage returns a 39-byte package: a 35-byte header (with
// placeholder zero header/payload checksums) describing a single 4-byte
// component at payload offset 0, followed by that component's 4 payload
// bytes.
func buildTestPackage() []byte {
	header := []byte{
		0x01,       // PackageHeaderFormatRevision
		0x23, 0x00, // PackageHeaderSize = 35
		0x00, 0x00, // ComponentBitmapBitLength
		0x01,                // PackageVersionStringType = ASCII
		0x03,                // PackageVersionStringLength
		'a', 'b', 'c', // PackageVersionString
		0x01, 0x00, // ComponentImageCount = 1
		0x07, 0x00, // ComponentIdentifier = 7
		0x00, 0x00, 0x00, 0x00, // ComponentLocationOffset = 0
		0x04, 0x00, 0x00, 0x00, // ComponentSize = 4
		0x01,          // ComponentVersionStringType = ASCII
		0x03,          // ComponentVersionStringLength
		'1', '.', '0', // ComponentVersionString
		0x00, 0x00, 0x00, 0x00, // PackageHeaderChecksum placeholder
		0x00, 0x00, 0x00, 0x00, // PLDMFWPackagePayloadChecksum placeholder
	}
	payload := []byte{0xaa, 0xbb, 0xcc, 0xdd}
	return append(header, payload...)
}

func loadTestSchema(t *testing.T) *schema.Node {
	t.Helper()
	root, err := schema.LoadBytes([]byte(testSchemaJSON))
	require.NoError(t, err)
	return root
}

func TestUnpackSplitsComponentAndDetectsChecksumMismatch(t *testing.T) {
	root := loadTestSchema(t)
	raw := buildTestPackage()

	up, err := Unpack(raw, root)
	require.NoError(t, err)
	require.Len(t, up.Images, 1)
	require.Equal(t, []byte{0xaa, 0xbb, 0xcc, 0xdd}, up.Images[0].Data)
	require.Empty(t, up.Remaining)
	require.True(t, up.PayloadChecksumPresent)
	// The placeholder checksum fields are zero, so neither is expected to
	// match the freshly computed CRC.
	require.False(t, up.HeaderChecksumMatch)
	require.False(t, up.Success())
}

func TestRepackProducesAVerifiablePackage(t *testing.T) {
	root := loadTestSchema(t)
	raw := buildTestPackage()

	up, err := Unpack(raw, root)
	require.NoError(t, err)

	repacked, err := Repack(up.Document, root, up.Images, up.Remaining)
	require.NoError(t, err)

	up2, err := Unpack(repacked.Bytes, root)
	require.NoError(t, err)
	require.True(t, up2.HeaderChecksumMatch)
	require.True(t, up2.PayloadChecksumPresent)
	require.True(t, up2.PayloadChecksumMatch)
	require.True(t, up2.Success())
	require.Equal(t, up.Images[0].Data, up2.Images[0].Data)
}

func TestDumpHeaderSkipsImageExtraction(t *testing.T) {
	root := loadTestSchema(t)
	raw := buildTestPackage()

	res, err := DumpHeader(raw, root)
	require.NoError(t, err)
	v, ok := res.Document.Field("PackageHeaderSize")
	require.True(t, ok)
	size, _ := v.AsInt()
	require.EqualValues(t, 35, size)
}

func TestPrepareOutputDirRenamesExistingDirectory(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "out")

	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("first"), 0o644))

	require.NoError(t, PrepareOutputDir(dir))

	backup := filepath.Join(base, "out_backup_1")
	data, err := os.ReadFile(filepath.Join(backup, "marker.txt"))
	require.NoError(t, err)
	require.Equal(t, "first", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "recreated output dir should start empty")
}

func TestPrepareOutputDirPicksSmallestFreeSuffix(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "out")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.MkdirAll(dir+"_backup_1", 0o755))

	require.NoError(t, PrepareOutputDir(dir))

	_, err := os.Stat(dir + "_backup_2")
	require.NoError(t, err, "expected _backup_2 since _backup_1 was already taken")
}

func TestWriteUnpackThenLoadImagesFromDisk(t *testing.T) {
	root := loadTestSchema(t)
	raw := buildTestPackage()
	up, err := Unpack(raw, root)
	require.NoError(t, err)

	outDir := t.TempDir()
	require.NoError(t, WriteUnpack(outDir, up))

	images, remaining, err := LoadImagesFromDisk(filepath.Join(outDir, "unpack"), up.Document)
	require.NoError(t, err)
	require.Equal(t, up.Images[0].Data, images[0].Data)
	require.Equal(t, up.Remaining, remaining)
}

func TestSummarizeUnpackRendersChecksumDiagnostics(t *testing.T) {
	root := loadTestSchema(t)
	raw := buildTestPackage()
	up, err := Unpack(raw, root)
	require.NoError(t, err)

	summary := SummarizeUnpack(up)
	require.True(t, strings.Contains(summary, "Header checksum: stored=0x00000000"))
	require.True(t, strings.Contains(summary, "Payload checksum: stored=0x00000000"))
	require.True(t, strings.Contains(summary, "7_1.0_image_0.bin"))
}
