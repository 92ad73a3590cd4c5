package codec

import (
	"fmt"
	"strings"
)

// New returns an image holding the two mandatory atoms under a default
// header (signature "R-Pi", version 1) with NumAtoms and EEPLen computed.
func New(vendor VendorInfo, bank0 GpioMap) *Eeprom {
	e := &Eeprom{
		Header: Header{
			Signature: Signature,
			Version:   DefaultVersion,
		},
		VendorInfo: vendor,
		GpioBank0:  bank0,
	}
	e.RecomputeHeader()
	return e
}

// IsValid is a cheap header sanity check: the signature must be "R-Pi" and
// the version non-zero. It says nothing about the checksum trailer.
func (e *Eeprom) IsValid() bool {
	return e.Header.Signature == Signature && e.Header.Version != 0
}

// RecomputeHeader derives NumAtoms and EEPLen from the current atom set.
// Mutators never call it; callers must, before serializing a changed image.
func (e *Eeprom) RecomputeHeader() {
	numAtoms := 2
	if e.HasDtBlob() {
		numAtoms++
	}
	if e.HasGpioBank1() {
		numAtoms++
	}
	numAtoms += len(e.CustomAtoms)

	e.Header.NumAtoms = uint16(numAtoms)
	e.Header.EEPLen = uint32(e.SerializedSize())
}

// SetVersion sets the header format version.
func (e *Eeprom) SetVersion(version uint8) {
	e.Header.Version = version
}

// SetVendorInfo replaces the vendor info atom.
func (e *Eeprom) SetVendorInfo(v VendorInfo) {
	e.VendorInfo = v
}

// SetGpioBank0 replaces the bank 0 GPIO map.
func (e *Eeprom) SetGpioBank0(g GpioMap) {
	e.GpioBank0 = g
}

// SetDtBlob stores a copy of blob as the device tree atom.
// An empty blob removes the atom, since a zero length DT blob decodes as absent.
func (e *Eeprom) SetDtBlob(blob []byte) error {
	if len(blob) > MaxAtomDataLen {
		return fmt.Errorf("dt blob of %d bytes: %w", len(blob), ErrAtomTooLarge)
	}
	if len(blob) == 0 {
		e.DtBlob = nil
		return nil
	}
	e.DtBlob = cloneBytes(blob)
	return nil
}

// ClearDtBlob removes the device tree atom.
func (e *Eeprom) ClearDtBlob() {
	e.DtBlob = nil
}

// SetGpioBank1 stores a copy of g as the bank 1 GPIO map.
func (e *Eeprom) SetGpioBank1(g GpioMap) {
	e.GpioBank1 = &g
}

// ClearGpioBank1 removes the bank 1 GPIO map.
func (e *Eeprom) ClearGpioBank1() {
	e.GpioBank1 = nil
}

// AddCustomAtom appends a vendor atom after any existing ones.
// Types 0x01..0x04 are rejected because they would decode as well-known atoms.
// At most MaxCustomAtoms can be held.
// An empty payload is encoded but will not survive a reparse.
func (e *Eeprom) AddCustomAtom(t AtomType, data []byte) error {
	if t.IsWellKnown() {
		return fmt.Errorf("custom atom type %s: %w", t, ErrReservedAtomType)
	}
	if len(data) > MaxAtomDataLen {
		return fmt.Errorf("custom atom 0x%02X of %d bytes: %w", uint8(t), len(data), ErrAtomTooLarge)
	}
	if len(e.CustomAtoms) >= MaxCustomAtoms {
		return fmt.Errorf("custom atom 0x%02X after %d others: %w", uint8(t), len(e.CustomAtoms), ErrTooManyAtoms)
	}
	e.CustomAtoms = append(e.CustomAtoms, CustomAtom{Type: t, Data: cloneBytes(data)})
	return nil
}

// String renders a multi-line human readable description.
func (e *Eeprom) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "HAT EEPROM %q v%d: %d atoms, %d bytes\n",
		e.Header.Signature[:], e.Header.Version, e.Header.NumAtoms, e.Header.EEPLen)

	v := &e.VendorInfo
	fmt.Fprintf(&sb, "  vendor:   %s (0x%04X)\n", v.VendorName(), v.VendorID)
	fmt.Fprintf(&sb, "  product:  %s (0x%04X) ver %d\n", v.ProductName(), v.ProductID, v.ProductVer)
	fmt.Fprintf(&sb, "  uuid:     %s\n", v.UUIDString())
	fmt.Fprintf(&sb, "  gpio[0]:  flags=0x%04X pins=%v\n", e.GpioBank0.Flags, e.GpioBank0.Pins)

	if e.HasDtBlob() {
		fmt.Fprintf(&sb, "  dt_blob:  %d bytes\n", len(e.DtBlob))
	}
	if e.HasGpioBank1() {
		fmt.Fprintf(&sb, "  gpio[1]:  flags=0x%04X pins=%v\n", e.GpioBank1.Flags, e.GpioBank1.Pins)
	}
	for i, atom := range e.CustomAtoms {
		fmt.Fprintf(&sb, "  custom[%d]: type=0x%02X %d bytes\n", i, uint8(atom.Type), len(atom.Data))
	}

	return sb.String()
}
