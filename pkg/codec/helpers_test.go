package codec

import (
	"bytes"
	"encoding/binary"
)

type rawAtom struct {
	typ   AtomType
	count uint8
	data  []byte
}

// buildRaw lays out a header and atoms byte by byte, independent of the encoder.
func buildRaw(sig string, atoms ...rawAtom) []byte {
	var buf bytes.Buffer
	buf.WriteString(sig)
	buf.WriteByte(DefaultVersion)
	buf.WriteByte(0)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(atoms)))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(0))

	for _, a := range atoms {
		count := a.count
		if count == 0 {
			count = 1
		}
		buf.WriteByte(byte(a.typ))
		buf.WriteByte(count)
		_ = binary.Write(&buf, binary.LittleEndian, uint16(len(a.data)))
		_ = binary.Write(&buf, binary.LittleEndian, uint32(0))
		buf.Write(a.data)
	}
	return buf.Bytes()
}

func vendorPayload(vendorID uint16) []byte {
	p := make([]byte, VendorInfoSize)
	binary.LittleEndian.PutUint16(p[0:2], vendorID)
	copy(p[6:], "raw vendor")
	return p
}

func gpioPayload(flags uint16) []byte {
	p := make([]byte, GpioMapSize)
	binary.LittleEndian.PutUint16(p[0:2], flags)
	for i := 2; i < GpioMapSize; i++ {
		p[i] = byte(i - 2)
	}
	return p
}

// scenarioImage is the reference image: vendor, bank 0, a 3-byte DT blob and
// one custom atom.
func scenarioImage() *Eeprom {
	var pins [GpioPinCount]byte
	for i := range pins {
		pins[i] = 1
	}

	e := New(
		NewVendorInfo(0x1234, 0x5678, 1, "testvendor", "testproduct", [UUIDSize]byte{}),
		GpioMap{Flags: 0xAA55, Pins: pins},
	)
	if err := e.SetDtBlob([]byte{1, 2, 3}); err != nil {
		panic(err)
	}
	if err := e.AddCustomAtom(0x80, []byte("custom")); err != nil {
		panic(err)
	}
	e.RecomputeHeader()
	return e
}
