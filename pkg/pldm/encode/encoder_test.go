// Copyright 2024 the pldm-fw-pkgr Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package encode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/decode"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/doc"
	"github.com/microsoft/pldm-fw-pkgr/pkg/pldm/schema"
)

func mustLoadSchema(t *testing.T, schemaJSON string) *schema.Node {
	t.Helper()
	root, err := schema.LoadBytes([]byte(schemaJSON))
	require.NoError(t, err)
	return root
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	root := mustLoadSchema(t, `{
		"PackageHeaderFormatRevision": {"length": 1, "data_type": "int"},
		"PackageHeaderSize": {"length": 2, "data_type": "int"},
		"DeviceIDRecordCount": {"length": 1, "data_type": "int"},
		"FirmwareDeviceIDRecords": {
			"count": "DeviceIDRecordCount",
			"RecordLength": {"length": 2, "data_type": "int"}
		},
		"PackageHeaderChecksum": {"length": 4, "data_type": "int", "role": "header_checksum"}
	}`)

	original := []byte{0x02, 0x40, 0x00, 0x02, 0x0a, 0x00, 0x14, 0x00, 0, 0, 0, 0}
	decoded, err := decode.Decode(original, root)
	require.NoError(t, err)

	encoded, err := Encode(decoded.Document, root)
	require.NoError(t, err)

	// A correct re-encode recomputes the checksum over the re-emitted
	// accumulator, which is identical to the decoder's own accumulator,
	// so the only byte range allowed to differ from the original input is
	// the checksum field itself (whose original bytes were zero filler).
	require.Equal(t, len(original), len(encoded.Bytes))
	require.Equal(t, original[:len(original)-4], encoded.Bytes[:len(encoded.Bytes)-4])
	require.Equal(t, decoded.HeaderChecksumComputed, encoded.HeaderChecksum)
}

func TestEncodeDecodeScalarChoosesDirectDataType(t *testing.T) {
	root := mustLoadSchema(t, `{
		"InitialDescriptorType": {
			"length": 2,
			"data_type": "int",
			"decode": {"2": "UUID"}
		}
	}`)
	document := doc.NewMap()
	document.Map.Set("InitialDescriptorType", doc.NewString("UUID"))

	res, err := Encode(document, root)
	require.NoError(t, err)
	require.Equal(t, []byte{0x02, 0x00}, res.Bytes)
}

func TestEncodeVendorDefinedBranch(t *testing.T) {
	root := mustLoadSchema(t, `{
		"AdditionalDescriptorType": {
			"length": 2,
			"data_type": "int",
			"decode": {"65535": "Vendor Defined"}
		},
		"AdditionalDescriptorLength": {"length": 2, "data_type": "int"},
		"AdditionalDescriptorIdentifierData": {
			"length": "AdditionalDescriptorLength",
			"data_type": "AdditionalDescriptorType",
			"decode": {
				"65535": "Vendor Defined",
				"Vendor Defined": {
					"VendorDefinedDescriptorTitleStringLength": {"length": 1, "data_type": "int"},
					"VendorDefinedDescriptorTitleString": {"length": "VendorDefinedDescriptorTitleStringLength", "data_type": "ASCII"},
					"VendorDefinedDescriptorData": {"length": "$remaining", "data_type": "hex-le"}
				}
			}
		}
	}`)

	document := doc.NewMap()
	document.Map.Set("AdditionalDescriptorType", doc.NewString("Vendor Defined"))
	document.Map.Set("AdditionalDescriptorLength", doc.NewInt(6))
	sub := doc.NewMap()
	sub.Map.Set("VendorDefinedDescriptorTitleStringLength", doc.NewInt(3))
	sub.Map.Set("VendorDefinedDescriptorTitleString", doc.NewString("foo"))
	sub.Map.Set("VendorDefinedDescriptorData", doc.NewString("0xcdab"))
	document.Map.Set("AdditionalDescriptorIdentifierData", sub)

	res, err := Encode(document, root)
	require.NoError(t, err)
	require.Equal(t, []byte{0xff, 0xff, 0x06, 0x00, 0x03, 'f', 'o', 'o', 0xab, 0xcd}, res.Bytes)
}

func TestEncodeVendorDefinedLengthMismatchErrors(t *testing.T) {
	root := mustLoadSchema(t, `{
		"AdditionalDescriptorType": {"length": 2, "data_type": "int", "decode": {"65535": "Vendor Defined"}},
		"AdditionalDescriptorLength": {"length": 2, "data_type": "int"},
		"AdditionalDescriptorIdentifierData": {
			"length": "AdditionalDescriptorLength",
			"data_type": "AdditionalDescriptorType",
			"decode": {
				"65535": "Vendor Defined",
				"Vendor Defined": {
					"VendorDefinedDescriptorTitleStringLength": {"length": 1, "data_type": "int"},
					"VendorDefinedDescriptorTitleString": {"length": "VendorDefinedDescriptorTitleStringLength", "data_type": "ASCII"}
				}
			}
		}
	}`)
	document := doc.NewMap()
	document.Map.Set("AdditionalDescriptorType", doc.NewString("Vendor Defined"))
	document.Map.Set("AdditionalDescriptorLength", doc.NewInt(10))
	sub := doc.NewMap()
	sub.Map.Set("VendorDefinedDescriptorTitleStringLength", doc.NewInt(3))
	sub.Map.Set("VendorDefinedDescriptorTitleString", doc.NewString("foo"))
	document.Map.Set("AdditionalDescriptorIdentifierData", sub)

	_, err := Encode(document, root)
	require.Error(t, err, "declared length of 10 but sub-schema only emits 4 bytes")
}

func TestEncodeMissingFieldErrors(t *testing.T) {
	root := mustLoadSchema(t, `{"PackageHeaderSize": {"length": 2, "data_type": "int"}}`)
	document := doc.NewMap()
	_, err := Encode(document, root)
	require.Error(t, err)
}

func TestEncodeRootMustBeObject(t *testing.T) {
	root := mustLoadSchema(t, `{"PackageHeaderSize": {"length": 2, "data_type": "int"}}`)
	_, err := Encode(doc.NewInt(1), root)
	require.Error(t, err)
}
