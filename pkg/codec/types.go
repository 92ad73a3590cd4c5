package codec

import "fmt"

// Wire sizes of the fixed structures, in bytes.
const (
	HeaderSize     = 12
	AtomHeaderSize = 8
	VendorInfoSize = 54
	GpioMapSize    = 30

	// NameSize is the width of the vendor and product name fields
	NameSize = 16

	// UUIDSize is the width of the vendor info UUID field
	UUIDSize = 16

	// GpioPinCount is the number of pin function bytes per GPIO bank
	GpioPinCount = 28

	// MaxAtomDataLen is the largest payload an atom header can describe
	MaxAtomDataLen = 0xFFFF

	// MaxAtoms is the largest atom count the header can describe
	MaxAtoms = 0xFFFF

	// MaxCustomAtoms leaves room in the header count for all four
	// well-known atoms, so setting an optional atom can never overflow it
	MaxCustomAtoms = MaxAtoms - 4

	// DefaultVersion is the format version written by New
	DefaultVersion = 0x01
)

// Signature is the magic value at the start of every HAT EEPROM image.
var Signature = [4]byte{'R', '-', 'P', 'i'}

// AtomType identifies the payload carried by an atom.
type AtomType uint8

// Well-known atom types. Any other code is carried as a custom atom.
const (
	AtomVendorInfo   AtomType = 0x01
	AtomGpioMapBank0 AtomType = 0x02
	AtomDtBlob       AtomType = 0x03
	AtomGpioMapBank1 AtomType = 0x04

	// AtomCustomMin is the first code reserved for vendor-defined atoms
	AtomCustomMin AtomType = 0x80
)

// IsWellKnown reports whether t is one of the four types defined by the format.
func (t AtomType) IsWellKnown() bool {
	return t >= AtomVendorInfo && t <= AtomGpioMapBank1
}

func (t AtomType) String() string {
	switch t {
	case AtomVendorInfo:
		return "vendor_info"
	case AtomGpioMapBank0:
		return "gpio_map_bank0"
	case AtomDtBlob:
		return "dt_blob"
	case AtomGpioMapBank1:
		return "gpio_map_bank1"
	default:
		return fmt.Sprintf("custom(0x%02X)", uint8(t))
	}
}

// Header is the fixed 12-byte image header.
//
// NumAtoms and EEPLen are derived values: they are only rewritten by
// Eeprom.RecomputeHeader and are otherwise carried as read.
type Header struct {
	Signature [4]byte // always "R-Pi" for valid images
	Version   uint8   // format version
	Reserved  uint8   // written as 0
	NumAtoms  uint16  // number of atoms following the header
	EEPLen    uint32  // header + atoms, excluding any checksum trailer
}

// AtomHeader precedes every atom payload.
type AtomHeader struct {
	Type     AtomType
	Count    uint8  // always 1 for the types this format defines
	DLen     uint16 // payload length
	Reserved uint32 // written as 0
}

// VendorInfo is the mandatory type 0x01 atom.
type VendorInfo struct {
	VendorID   uint16
	ProductID  uint16
	ProductVer uint16
	Vendor     [NameSize]byte // zero padded ASCII
	Product    [NameSize]byte // zero padded ASCII
	UUID       [UUIDSize]byte
}

// GpioMap is the payload of the bank 0 (0x02) and bank 1 (0x04) atoms.
type GpioMap struct {
	Flags uint16
	Pins  [GpioPinCount]byte
}

// CustomAtom is an opaque atom of any type outside 0x01..0x04.
type CustomAtom struct {
	Type AtomType
	Data []byte
}

// Eeprom is a decoded HAT EEPROM image.
//
// VendorInfo and GpioBank0 are mandatory. DtBlob is absent when empty,
// GpioBank1 is absent when nil, and CustomAtoms keeps encounter order.
//
// The fields may be set directly, but DtBlob and each custom atom payload
// must stay within MaxAtomDataLen and CustomAtoms within MaxCustomAtoms.
// The mutators enforce this; Serialize does not, SerializeInto does.
type Eeprom struct {
	Header      Header
	VendorInfo  VendorInfo
	GpioBank0   GpioMap
	DtBlob      []byte
	GpioBank1   *GpioMap
	CustomAtoms []CustomAtom
}

// HasDtBlob reports whether a device tree blob atom is present.
func (e *Eeprom) HasDtBlob() bool {
	return len(e.DtBlob) > 0
}

// HasGpioBank1 reports whether a bank 1 GPIO map atom is present.
func (e *Eeprom) HasGpioBank1() bool {
	return e.GpioBank1 != nil
}
