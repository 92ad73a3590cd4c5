package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/ssargent/hatrom/pkg/checksum"
)

// SerializedSize returns the exact length Serialize will produce for the
// current atom set. It does not depend on the header's EEPLen.
func (e *Eeprom) SerializedSize() int {
	size := HeaderSize + AtomHeaderSize + VendorInfoSize + AtomHeaderSize + GpioMapSize
	if e.HasDtBlob() {
		size += AtomHeaderSize + len(e.DtBlob)
	}
	if e.HasGpioBank1() {
		size += AtomHeaderSize + GpioMapSize
	}
	for _, atom := range e.CustomAtoms {
		size += AtomHeaderSize + len(atom.Data)
	}
	return size
}

// Serialize encodes the image. Header fields are written as stored, so call
// RecomputeHeader first if the atom set changed.
func (e *Eeprom) Serialize() []byte {
	buf := make([]byte, e.SerializedSize())
	e.encode(buf)
	return buf
}

// SerializeInto encodes the image into dst and returns the number of bytes
// written. It fails with ErrBufferTooSmall if dst cannot hold SerializedSize bytes,
// and with ErrAtomTooLarge or ErrTooManyAtoms if directly assigned fields
// cannot be described by an atom header.
func (e *Eeprom) SerializeInto(dst []byte) (int, error) {
	if err := e.checkLimits(); err != nil {
		return 0, err
	}
	size := e.SerializedSize()
	if len(dst) < size {
		return 0, fmt.Errorf("need %d bytes, have %d: %w", size, len(dst), ErrBufferTooSmall)
	}
	return e.encode(dst[:size]), nil
}

// SerializeWithCRC encodes the image and appends the CRC-32 of the encoded
// bytes as a little-endian trailer.
func (e *Eeprom) SerializeWithCRC() []byte {
	size := e.SerializedSize()
	buf := make([]byte, size+checksum.Size)
	e.encode(buf[:size])
	binary.LittleEndian.PutUint32(buf[size:], checksum.Checksum(buf[:size]))
	return buf
}

// VerifyCRC reports whether the last four bytes of data are the little-endian
// CRC-32 of everything before them. Buffers shorter than the trailer fail.
func VerifyCRC(data []byte) bool {
	if len(data) < checksum.Size {
		return false
	}
	body := len(data) - checksum.Size
	stored := binary.LittleEndian.Uint32(data[body:])
	return stored == checksum.Checksum(data[:body])
}

// checkLimits reports atom set values the header fields would truncate.
func (e *Eeprom) checkLimits() error {
	if len(e.DtBlob) > MaxAtomDataLen {
		return fmt.Errorf("dt blob of %d bytes: %w", len(e.DtBlob), ErrAtomTooLarge)
	}
	for i, atom := range e.CustomAtoms {
		if len(atom.Data) > MaxAtomDataLen {
			return fmt.Errorf("custom atom %d of %d bytes: %w", i, len(atom.Data), ErrAtomTooLarge)
		}
	}
	if len(e.CustomAtoms) > MaxCustomAtoms {
		return fmt.Errorf("%d custom atoms: %w", len(e.CustomAtoms), ErrTooManyAtoms)
	}
	return nil
}

// encode writes the image into buf, which must be exactly SerializedSize bytes.
func (e *Eeprom) encode(buf []byte) int {
	off := encodeHeader(buf, e.Header)

	off += encodeAtomHeader(buf[off:], AtomVendorInfo, VendorInfoSize)
	off += encodeVendorInfo(buf[off:], &e.VendorInfo)

	off += encodeAtomHeader(buf[off:], AtomGpioMapBank0, GpioMapSize)
	off += encodeGpioMap(buf[off:], &e.GpioBank0)

	if e.HasDtBlob() {
		off += encodeAtomHeader(buf[off:], AtomDtBlob, len(e.DtBlob))
		off += copy(buf[off:], e.DtBlob)
	}

	if e.HasGpioBank1() {
		off += encodeAtomHeader(buf[off:], AtomGpioMapBank1, GpioMapSize)
		off += encodeGpioMap(buf[off:], e.GpioBank1)
	}

	for _, atom := range e.CustomAtoms {
		off += encodeAtomHeader(buf[off:], atom.Type, len(atom.Data))
		off += copy(buf[off:], atom.Data)
	}

	return off
}

func encodeHeader(b []byte, h Header) int {
	copy(b[0:4], h.Signature[:])
	b[4] = h.Version
	b[5] = 0
	binary.LittleEndian.PutUint16(b[6:8], h.NumAtoms)
	binary.LittleEndian.PutUint32(b[8:12], h.EEPLen)
	return HeaderSize
}

// encodeAtomHeader writes count=1 and reserved=0 regardless of what was decoded.
func encodeAtomHeader(b []byte, t AtomType, dlen int) int {
	b[0] = byte(t)
	b[1] = 1
	binary.LittleEndian.PutUint16(b[2:4], uint16(dlen))
	binary.LittleEndian.PutUint32(b[4:8], 0)
	return AtomHeaderSize
}

func encodeVendorInfo(b []byte, v *VendorInfo) int {
	binary.LittleEndian.PutUint16(b[0:2], v.VendorID)
	binary.LittleEndian.PutUint16(b[2:4], v.ProductID)
	binary.LittleEndian.PutUint16(b[4:6], v.ProductVer)
	copy(b[6:22], v.Vendor[:])
	copy(b[22:38], v.Product[:])
	copy(b[38:54], v.UUID[:])
	return VendorInfoSize
}

func encodeGpioMap(b []byte, g *GpioMap) int {
	binary.LittleEndian.PutUint16(b[0:2], g.Flags)
	copy(b[2:GpioMapSize], g.Pins[:])
	return GpioMapSize
}
