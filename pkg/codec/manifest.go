package codec

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// UUIDAuto asks Manifest.Build to generate a random UUID.
const UUIDAuto = "auto"

// Manifest is a YAML (or JSON) description of a HAT EEPROM image.
//
//	version: 1
//	vendor:
//	  vendor_id: 0x414C
//	  product_id: 0x2024
//	  product_ver: 1
//	  vendor: ACME
//	  product: Sensor HAT
//	  uuid: auto
//	gpio_bank0:
//	  flags: 0x0001
//	  pins: [0, 0, 1, 1]
//	dt_blob: overlay.dtbo
//	custom_atoms:
//	  - type: 0x80
//	    text: serial=0042
type Manifest struct {
	Version     uint8            `yaml:"version" json:"version"`
	Vendor      VendorManifest   `yaml:"vendor" json:"vendor"`
	GpioBank0   GpioManifest     `yaml:"gpio_bank0" json:"gpio_bank0"`
	GpioBank1   *GpioManifest    `yaml:"gpio_bank1,omitempty" json:"gpio_bank1,omitempty"`
	DtBlob      string           `yaml:"dt_blob,omitempty" json:"dt_blob,omitempty"`
	DtBlobHex   string           `yaml:"dt_blob_hex,omitempty" json:"dt_blob_hex,omitempty"`
	CustomAtoms []CustomManifest `yaml:"custom_atoms,omitempty" json:"custom_atoms,omitempty"`

	// baseDir resolves relative dt_blob paths; empty disables file references
	baseDir string
}

// VendorManifest describes the vendor info atom.
type VendorManifest struct {
	VendorID   uint16 `yaml:"vendor_id" json:"vendor_id"`
	ProductID  uint16 `yaml:"product_id" json:"product_id"`
	ProductVer uint16 `yaml:"product_ver" json:"product_ver"`
	Vendor     string `yaml:"vendor" json:"vendor"`
	Product    string `yaml:"product" json:"product"`
	UUID       string `yaml:"uuid,omitempty" json:"uuid,omitempty"`
}

// GpioManifest describes a GPIO bank. Missing pins are zero.
type GpioManifest struct {
	Flags uint16  `yaml:"flags" json:"flags"`
	Pins  []uint8 `yaml:"pins,flow" json:"pins"`
}

// CustomManifest describes a custom atom. Exactly one of Text or Hex is set.
type CustomManifest struct {
	Type uint8  `yaml:"type" json:"type"`
	Text string `yaml:"text,omitempty" json:"text,omitempty"`
	Hex  string `yaml:"hex,omitempty" json:"hex,omitempty"`
}

// ParseManifest decodes a manifest from YAML or JSON. Manifests parsed this
// way cannot reference a dt_blob file; use dt_blob_hex or LoadManifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// LoadManifest reads a manifest file. A relative dt_blob path is resolved
// against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	m.baseDir = filepath.Dir(path)
	return m, nil
}

// Build assembles the image with a recomputed header.
func (m *Manifest) Build() (*Eeprom, error) {
	id, err := m.Vendor.uuid()
	if err != nil {
		return nil, err
	}

	bank0, err := m.GpioBank0.gpioMap()
	if err != nil {
		return nil, fmt.Errorf("gpio_bank0: %w", err)
	}

	v := m.Vendor
	e := New(NewVendorInfo(v.VendorID, v.ProductID, v.ProductVer, v.Vendor, v.Product, id), bank0)
	if m.Version != 0 {
		e.SetVersion(m.Version)
	}

	if m.GpioBank1 != nil {
		bank1, err := m.GpioBank1.gpioMap()
		if err != nil {
			return nil, fmt.Errorf("gpio_bank1: %w", err)
		}
		e.SetGpioBank1(bank1)
	}

	blob, err := m.dtBlob()
	if err != nil {
		return nil, err
	}
	if err := e.SetDtBlob(blob); err != nil {
		return nil, err
	}

	for i, c := range m.CustomAtoms {
		data, err := c.data()
		if err != nil {
			return nil, fmt.Errorf("custom_atoms[%d]: %w", i, err)
		}
		if err := e.AddCustomAtom(AtomType(c.Type), data); err != nil {
			return nil, fmt.Errorf("custom_atoms[%d]: %w", i, err)
		}
	}

	e.RecomputeHeader()
	return e, nil
}

func (v *VendorManifest) uuid() ([UUIDSize]byte, error) {
	switch strings.TrimSpace(v.UUID) {
	case "":
		return [UUIDSize]byte{}, nil
	case UUIDAuto:
		return uuid.New(), nil
	}
	id, err := uuid.Parse(v.UUID)
	if err != nil {
		return [UUIDSize]byte{}, fmt.Errorf("invalid vendor uuid %q: %w", v.UUID, err)
	}
	return id, nil
}

func (g *GpioManifest) gpioMap() (GpioMap, error) {
	if len(g.Pins) > GpioPinCount {
		return GpioMap{}, fmt.Errorf("%d pins given, bank has %d", len(g.Pins), GpioPinCount)
	}
	out := GpioMap{Flags: g.Flags}
	copy(out.Pins[:], g.Pins)
	return out, nil
}

func (m *Manifest) dtBlob() ([]byte, error) {
	switch {
	case m.DtBlob != "" && m.DtBlobHex != "":
		return nil, fmt.Errorf("dt_blob and dt_blob_hex are mutually exclusive")
	case m.DtBlobHex != "":
		blob, err := hex.DecodeString(m.DtBlobHex)
		if err != nil {
			return nil, fmt.Errorf("invalid dt_blob_hex: %w", err)
		}
		return blob, nil
	case m.DtBlob != "":
		if m.baseDir == "" {
			return nil, fmt.Errorf("dt_blob file %q cannot be resolved outside a manifest file", m.DtBlob)
		}
		path := m.DtBlob
		if !filepath.IsAbs(path) {
			path = filepath.Join(m.baseDir, path)
		}
		blob, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read dt_blob: %w", err)
		}
		return blob, nil
	}
	return nil, nil
}

func (c *CustomManifest) data() ([]byte, error) {
	switch {
	case c.Text != "" && c.Hex != "":
		return nil, fmt.Errorf("text and hex are mutually exclusive")
	case c.Hex != "":
		data, err := hex.DecodeString(c.Hex)
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
		return data, nil
	}
	return []byte(c.Text), nil
}
