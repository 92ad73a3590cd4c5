package codec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `
version: 1
vendor:
  vendor_id: 0x414C
  product_id: 0x2024
  product_ver: 3
  vendor: ACME
  product: Sensor HAT
  uuid: 12345678-9abc-def0-fedc-ba9876543210
gpio_bank0:
  flags: 0x0001
  pins: [0, 0, 1, 1]
gpio_bank1:
  flags: 0x0002
dt_blob_hex: "d00dfeed"
custom_atoms:
  - type: 0x80
    text: serial=0042
  - type: 0x81
    hex: "deadbeef"
`

func TestParseManifest_Build(t *testing.T) {
	m, err := ParseManifest([]byte(testManifest))
	require.NoError(t, err)

	e, err := m.Build()
	require.NoError(t, err)

	assert.Equal(t, uint16(0x414C), e.VendorInfo.VendorID)
	assert.Equal(t, uint16(0x2024), e.VendorInfo.ProductID)
	assert.Equal(t, uint16(3), e.VendorInfo.ProductVer)
	assert.Equal(t, "ACME", e.VendorInfo.VendorName())
	assert.Equal(t, "Sensor HAT", e.VendorInfo.ProductName())
	assert.Equal(t, "12345678-9abc-def0-fedc-ba9876543210", e.VendorInfo.UUIDString())

	assert.Equal(t, uint16(1), e.GpioBank0.Flags)
	assert.Equal(t, byte(1), e.GpioBank0.Pins[2])
	assert.Equal(t, byte(0), e.GpioBank0.Pins[27])
	require.NotNil(t, e.GpioBank1)
	assert.Equal(t, uint16(2), e.GpioBank1.Flags)

	assert.Equal(t, []byte{0xD0, 0x0D, 0xFE, 0xED}, e.DtBlob)
	require.Len(t, e.CustomAtoms, 2)
	assert.Equal(t, []byte("serial=0042"), e.CustomAtoms[0].Data)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, e.CustomAtoms[1].Data)

	assert.Equal(t, uint16(6), e.Header.NumAtoms)
	assert.Equal(t, int(e.Header.EEPLen), len(e.Serialize()))
}

func TestParseManifest_JSON(t *testing.T) {
	m, err := ParseManifest([]byte(`{"vendor":{"vendor_id":7,"vendor":"json"},"gpio_bank0":{"flags":1,"pins":[1]}}`))
	require.NoError(t, err)

	e, err := m.Build()
	require.NoError(t, err)
	assert.Equal(t, uint16(7), e.VendorInfo.VendorID)
	assert.Equal(t, "json", e.VendorInfo.VendorName())
	assert.Equal(t, uint8(DefaultVersion), e.Header.Version)
	assert.Equal(t, [UUIDSize]byte{}, e.VendorInfo.UUID)
}

func TestManifest_AutoUUID(t *testing.T) {
	m, err := ParseManifest([]byte("vendor:\n  uuid: auto\n"))
	require.NoError(t, err)

	a, err := m.Build()
	require.NoError(t, err)
	b, err := m.Build()
	require.NoError(t, err)

	assert.NotEqual(t, [UUIDSize]byte{}, a.VendorInfo.UUID)
	assert.NotEqual(t, a.VendorInfo.UUID, b.VendorInfo.UUID)
}

func TestManifest_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		manifest string
	}{
		{name: "invalid yaml", manifest: "vendor: [unterminated"},
		{name: "bad uuid", manifest: "vendor:\n  uuid: not-a-uuid\n"},
		{name: "too many pins", manifest: "gpio_bank0:\n  pins: [0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0]\n"},
		{name: "bad dt hex", manifest: "dt_blob_hex: zz\n"},
		{name: "dt path without file", manifest: "dt_blob: overlay.dtbo\n"},
		{name: "both dt forms", manifest: "dt_blob: a\ndt_blob_hex: 00\n"},
		{name: "reserved custom type", manifest: "custom_atoms:\n  - type: 0x03\n    text: x\n"},
		{name: "custom text and hex", manifest: "custom_atoms:\n  - type: 0x80\n    text: x\n    hex: 00\n"},
		{name: "bad custom hex", manifest: "custom_atoms:\n  - type: 0x80\n    hex: xyz\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := ParseManifest([]byte(tc.manifest))
			if err == nil {
				_, err = m.Build()
			}
			assert.Error(t, err)
		})
	}
}

func TestLoadManifest_ResolvesDtBlobRelativeToManifest(t *testing.T) {
	dir := t.TempDir()
	overlay := []byte("/dts-v1/; /plugin/;")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "overlay.dtbo"), overlay, 0o644))

	path := filepath.Join(dir, "hat.yaml")
	manifest := "vendor:\n  vendor: ACME\ndt_blob: overlay.dtbo\n"
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)

	e, err := m.Build()
	require.NoError(t, err)
	assert.Equal(t, overlay, e.DtBlob)
	assert.Equal(t, uint16(3), e.Header.NumAtoms)
}

func TestLoadManifest_MissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
