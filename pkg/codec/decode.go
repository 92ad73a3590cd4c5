package codec

import (
	"encoding/binary"
	"fmt"
)

// SkippedAtom describes an atom the decoder consumed but did not keep.
type SkippedAtom struct {
	Index  int      `json:"index" yaml:"index"`   // position in the atom table, 0-based
	Offset int      `json:"offset" yaml:"offset"` // byte offset of the atom header
	Type   AtomType `json:"type" yaml:"type"`     // declared type
	DLen   uint16   `json:"dlen" yaml:"dlen"`     // declared payload length
	Reason string   `json:"reason" yaml:"reason"`
}

func (s SkippedAtom) String() string {
	return fmt.Sprintf("atom %d (%s) at offset %d: %s", s.Index, s.Type, s.Offset, s.Reason)
}

// ParseReport carries decode outcomes that are not errors.
type ParseReport struct {
	// SkippedAtoms lists undersized fixed-layout atoms and empty
	// DT blob or custom atoms that were dropped during decoding
	SkippedAtoms []SkippedAtom

	// Consumed is the number of bytes covered by the header and atom table
	Consumed int

	// TrailingBytes is the number of bytes left after the declared atoms,
	// typically a checksum trailer or unprogrammed EEPROM cells
	TrailingBytes int
}

// Skipped returns the number of dropped atoms.
func (r *ParseReport) Skipped() int {
	return len(r.SkippedAtoms)
}

// Parse decodes a HAT EEPROM image.
// Bytes after the declared atoms are ignored; use VerifyCRC to check a trailer.
func Parse(data []byte) (*Eeprom, error) {
	e, _, err := ParseWithReport(data)
	return e, err
}

// ParseWithReport decodes a HAT EEPROM image and reports atoms that were
// dropped because their payload was too short for the fixed layout.
//
// The header is carried through as read: NumAtoms drives the loop exactly
// and neither NumAtoms nor EEPLen is recomputed.
func ParseWithReport(data []byte) (*Eeprom, *ParseReport, error) {
	if len(data) < HeaderSize {
		return nil, nil, fmt.Errorf("header needs %d bytes, have %d: %w", HeaderSize, len(data), ErrTooShort)
	}

	header := decodeHeader(data[:HeaderSize])
	if header.Signature != Signature {
		return nil, nil, fmt.Errorf("got %q: %w", header.Signature[:], ErrBadSignature)
	}

	e := &Eeprom{Header: header}
	report := &ParseReport{}

	var haveVendor, haveBank0 bool
	offset := HeaderSize

	for i := 0; i < int(header.NumAtoms); i++ {
		if len(data)-offset < AtomHeaderSize {
			return nil, nil, fmt.Errorf("atom %d header at offset %d: %w", i, offset, ErrTooShort)
		}
		atomOffset := offset
		ah := decodeAtomHeader(data[offset : offset+AtomHeaderSize])
		offset += AtomHeaderSize

		dlen := int(ah.DLen)
		if len(data)-offset < dlen {
			return nil, nil, fmt.Errorf("atom %d (%s) payload of %d bytes at offset %d: %w",
				i, ah.Type, dlen, offset, ErrTooShort)
		}
		payload := data[offset : offset+dlen]

		skip := func(reason string) {
			report.SkippedAtoms = append(report.SkippedAtoms, SkippedAtom{
				Index:  i,
				Offset: atomOffset,
				Type:   ah.Type,
				DLen:   ah.DLen,
				Reason: reason,
			})
		}

		switch ah.Type {
		case AtomVendorInfo:
			if dlen >= VendorInfoSize {
				e.VendorInfo = decodeVendorInfo(payload)
				haveVendor = true
			} else {
				skip(fmt.Sprintf("vendor info payload %d bytes, need %d", dlen, VendorInfoSize))
			}
		case AtomGpioMapBank0:
			if dlen >= GpioMapSize {
				e.GpioBank0 = decodeGpioMap(payload)
				haveBank0 = true
			} else {
				skip(fmt.Sprintf("GPIO bank 0 payload %d bytes, need %d", dlen, GpioMapSize))
			}
		case AtomDtBlob:
			if dlen > 0 {
				e.DtBlob = cloneBytes(payload)
			} else {
				skip("empty DT blob")
			}
		case AtomGpioMapBank1:
			if dlen >= GpioMapSize {
				bank1 := decodeGpioMap(payload)
				e.GpioBank1 = &bank1
			} else {
				skip(fmt.Sprintf("GPIO bank 1 payload %d bytes, need %d", dlen, GpioMapSize))
			}
		default:
			if dlen > 0 {
				e.CustomAtoms = append(e.CustomAtoms, CustomAtom{Type: ah.Type, Data: cloneBytes(payload)})
			} else {
				skip("empty custom atom")
			}
		}

		offset += dlen
	}

	if !haveVendor {
		return nil, nil, ErrMissingVendorInfo
	}
	if !haveBank0 {
		return nil, nil, ErrMissingGpioBank0
	}

	report.Consumed = offset
	report.TrailingBytes = len(data) - offset

	return e, report, nil
}

func decodeHeader(b []byte) Header {
	var h Header
	copy(h.Signature[:], b[0:4])
	h.Version = b[4]
	h.Reserved = b[5]
	h.NumAtoms = binary.LittleEndian.Uint16(b[6:8])
	h.EEPLen = binary.LittleEndian.Uint32(b[8:12])
	return h
}

func decodeAtomHeader(b []byte) AtomHeader {
	return AtomHeader{
		Type:     AtomType(b[0]),
		Count:    b[1],
		DLen:     binary.LittleEndian.Uint16(b[2:4]),
		Reserved: binary.LittleEndian.Uint32(b[4:8]),
	}
}

// decodeVendorInfo reads the first VendorInfoSize bytes of b; excess is ignored.
func decodeVendorInfo(b []byte) VendorInfo {
	var v VendorInfo
	v.VendorID = binary.LittleEndian.Uint16(b[0:2])
	v.ProductID = binary.LittleEndian.Uint16(b[2:4])
	v.ProductVer = binary.LittleEndian.Uint16(b[4:6])
	copy(v.Vendor[:], b[6:22])
	copy(v.Product[:], b[22:38])
	copy(v.UUID[:], b[38:VendorInfoSize])
	return v
}

// decodeGpioMap reads the first GpioMapSize bytes of b; excess is ignored.
func decodeGpioMap(b []byte) GpioMap {
	var g GpioMap
	g.Flags = binary.LittleEndian.Uint16(b[0:2])
	copy(g.Pins[:], b[2:GpioMapSize])
	return g
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
