// Package codec reads and writes the Raspberry Pi HAT EEPROM atom table.
//
// A HAT EEPROM image is a fixed header followed by a sequence of typed,
// length-prefixed atoms, optionally followed by a CRC-32 trailer.
//
// # Image Format
//
//	[Header(12)][Atom]...[Atom][CRC32(4), optional]
//
// Header fields:
//   - Signature: ASCII "R-Pi"
//   - Version: 8-bit format version, 0x01 when built by New
//   - Reserved: 8 bits, written as 0
//   - NumAtoms: 16-bit atom count (little-endian)
//   - EEPLen: 32-bit length of header plus atoms, excluding the trailer (little-endian)
//
// Every atom is an 8-byte header followed by its payload:
//
//	[Type(1)][Count(1)][DLen(2)][Reserved(4)][Payload(DLen)]
//
// Count is always written as 1 and Reserved as 0.
//
// # Atom Types
//
//   - 0x01 vendor info (54 bytes): vendor id, product id, product version,
//     16-byte vendor name, 16-byte product name, 16-byte UUID
//   - 0x02 GPIO map bank 0 (30 bytes): 16-bit flags, 28 pin function bytes
//   - 0x03 device tree blob (variable)
//   - 0x04 GPIO map bank 1 (30 bytes)
//   - anything else: custom atom, carried as opaque bytes in encounter order
//
// Vendor info and bank 0 are mandatory. Serialize always emits atoms in the
// order listed above, with custom atoms last.
//
// # Decoding
//
// Parse trusts NumAtoms exactly and ignores bytes that follow the last
// declared atom, which is where the CRC trailer lives. Fixed-layout atoms
// whose DLen is too small are dropped rather than rejected; ParseWithReport
// lists them:
//
//	e, report, err := codec.ParseWithReport(data)
//	if err != nil {
//	    return err
//	}
//	for _, s := range report.SkippedAtoms {
//	    log.Printf("skipped atom %d at offset %d: %s", s.Index, s.Offset, s.Reason)
//	}
//
// Decode failures wrap ErrTooShort, ErrBadSignature, ErrMissingVendorInfo
// or ErrMissingGpioBank0 and can be tested with errors.Is.
//
// # Encoding
//
// Mutators do not touch NumAtoms or EEPLen. Call RecomputeHeader after
// changing the atom set and before serializing:
//
//	e := codec.New(vendor, bank0)
//	if err := e.SetDtBlob(overlay); err != nil {
//	    return err
//	}
//	e.RecomputeHeader()
//	image := e.SerializeWithCRC()
//
// SerializeInto writes into a caller-supplied buffer of at least
// SerializedSize bytes and fails with ErrBufferTooSmall otherwise.
//
// # Thread Safety
//
// Parse, VerifyCRC and the serializers hold no shared state and may run
// concurrently on independent values. An Eeprom must not be mutated while
// another goroutine reads it.
package codec
