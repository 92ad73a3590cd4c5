package codec

import (
	"encoding/hex"
)

// Summary is a serialization friendly view of an Eeprom, used for JSON and
// YAML output.
type Summary struct {
	Signature   string          `json:"signature" yaml:"signature"`
	Version     uint8           `json:"version" yaml:"version"`
	NumAtoms    uint16          `json:"num_atoms" yaml:"num_atoms"`
	EEPLen      uint32          `json:"eeplen" yaml:"eeplen"`
	Valid       bool            `json:"valid" yaml:"valid"`
	Vendor      VendorSummary   `json:"vendor" yaml:"vendor"`
	GpioBank0   GpioSummary     `json:"gpio_bank0" yaml:"gpio_bank0"`
	GpioBank1   *GpioSummary    `json:"gpio_bank1,omitempty" yaml:"gpio_bank1,omitempty"`
	DtBlobSize  int             `json:"dt_blob_size" yaml:"dt_blob_size"`
	CustomAtoms []CustomSummary `json:"custom_atoms,omitempty" yaml:"custom_atoms,omitempty"`
}

// VendorSummary is the display form of VendorInfo.
type VendorSummary struct {
	VendorID   uint16 `json:"vendor_id" yaml:"vendor_id"`
	ProductID  uint16 `json:"product_id" yaml:"product_id"`
	ProductVer uint16 `json:"product_ver" yaml:"product_ver"`
	Vendor     string `json:"vendor" yaml:"vendor"`
	Product    string `json:"product" yaml:"product"`
	UUID       string `json:"uuid" yaml:"uuid"`
}

// GpioSummary is the display form of a GpioMap. Pins are ints so JSON does
// not render them as base64.
type GpioSummary struct {
	Flags uint16 `json:"flags" yaml:"flags"`
	Pins  []int  `json:"pins" yaml:"pins,flow"`
}

// CustomSummary is the display form of a CustomAtom.
type CustomSummary struct {
	Type uint8  `json:"type" yaml:"type"`
	Size int    `json:"size" yaml:"size"`
	Hex  string `json:"hex" yaml:"hex"`
}

// Describe builds the display view of e.
func Describe(e *Eeprom) Summary {
	s := Summary{
		Signature: string(e.Header.Signature[:]),
		Version:   e.Header.Version,
		NumAtoms:  e.Header.NumAtoms,
		EEPLen:    e.Header.EEPLen,
		Valid:     e.IsValid(),
		Vendor: VendorSummary{
			VendorID:   e.VendorInfo.VendorID,
			ProductID:  e.VendorInfo.ProductID,
			ProductVer: e.VendorInfo.ProductVer,
			Vendor:     e.VendorInfo.VendorName(),
			Product:    e.VendorInfo.ProductName(),
			UUID:       e.VendorInfo.UUIDString(),
		},
		GpioBank0:  describeGpio(&e.GpioBank0),
		DtBlobSize: len(e.DtBlob),
	}

	if e.HasGpioBank1() {
		bank1 := describeGpio(e.GpioBank1)
		s.GpioBank1 = &bank1
	}

	for _, atom := range e.CustomAtoms {
		s.CustomAtoms = append(s.CustomAtoms, CustomSummary{
			Type: uint8(atom.Type),
			Size: len(atom.Data),
			Hex:  hex.EncodeToString(atom.Data),
		})
	}

	return s
}

func describeGpio(g *GpioMap) GpioSummary {
	pins := make([]int, len(g.Pins))
	for i, p := range g.Pins {
		pins[i] = int(p)
	}
	return GpioSummary{Flags: g.Flags, Pins: pins}
}

// Inspection is the outcome of decoding an image read from a device or file.
type Inspection struct {
	Summary       Summary       `json:"summary" yaml:"summary"`
	Size          int           `json:"size" yaml:"size"`
	HasCRC        bool          `json:"has_crc" yaml:"has_crc"`
	CRCValid      bool          `json:"crc_valid" yaml:"crc_valid"`
	TrailingBytes int           `json:"trailing_bytes" yaml:"trailing_bytes"`
	SkippedAtoms  []SkippedAtom `json:"skipped_atoms,omitempty" yaml:"skipped_atoms,omitempty"`
}

// Inspect decodes data and checks for a checksum trailer directly after the
// atom table. Anything past the trailer, such as erased cells, is ignored.
func Inspect(data []byte) (*Eeprom, *Inspection, error) {
	e, report, err := ParseWithReport(data)
	if err != nil {
		return nil, nil, err
	}

	in := &Inspection{
		Summary:       Describe(e),
		Size:          len(data),
		TrailingBytes: report.TrailingBytes,
		SkippedAtoms:  report.SkippedAtoms,
	}
	if report.TrailingBytes >= 4 {
		in.HasCRC = true
		in.CRCValid = VerifyCRC(data[:report.Consumed+4])
	}

	return e, in, nil
}
