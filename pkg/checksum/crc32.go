// Package checksum implements the CRC-32 used for the HAT EEPROM checksum trailer.
//
// The algorithm is the reflected IEEE 802.3 CRC-32:
//
//	polynomial  0xEDB88320 (reflected form of 0x04C11DB7)
//	initial     0xFFFFFFFF
//	final XOR   0xFFFFFFFF
//
// A State is a plain value. Update returns a new State and never mutates
// the receiver, so updates may be chunked arbitrarily:
//
//	s := checksum.New()
//	s = s.Update(header)
//	s = s.Update(atoms)
//	crc := s.Finalize()
//
// The lookup table is built once at package initialization and is read-only
// afterwards, so any number of goroutines may compute checksums concurrently.
package checksum

import "hash"

const (
	// Polynomial is the reflected IEEE 802.3 polynomial
	Polynomial uint32 = 0xEDB88320

	// Size is the size of a CRC-32 checksum in bytes
	Size = 4

	initialValue uint32 = 0xFFFFFFFF
	finalXOR     uint32 = 0xFFFFFFFF
)

var table = makeTable(Polynomial)

func makeTable(poly uint32) *[256]uint32 {
	t := new([256]uint32)
	for i := range t {
		crc := uint32(i)
		for j := 0; j < 8; j++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ poly
			} else {
				crc >>= 1
			}
		}
		t[i] = crc
	}
	return t
}

// State is an in-progress CRC-32 accumulation.
type State struct {
	crc uint32
}

// New returns a fresh accumulator.
func New() State {
	return State{crc: initialValue}
}

// Update feeds p into the accumulator and returns the new state.
func (s State) Update(p []byte) State {
	crc := s.crc
	for _, b := range p {
		crc = (crc >> 8) ^ table[byte(crc)^b]
	}
	return State{crc: crc}
}

// Finalize returns the checksum of everything fed so far.
func (s State) Finalize() uint32 {
	return s.crc ^ finalXOR
}

// Checksum returns the CRC-32 of p in a single call.
func Checksum(p []byte) uint32 {
	return New().Update(p).Finalize()
}

// digest adapts State to hash.Hash32 so the engine can sit behind an io.Writer.
type digest struct {
	state State
}

// NewHash returns a hash.Hash32 backed by the engine.
func NewHash() hash.Hash32 {
	return &digest{state: New()}
}

func (d *digest) Write(p []byte) (int, error) {
	d.state = d.state.Update(p)
	return len(p), nil
}

func (d *digest) Sum32() uint32 { return d.state.Finalize() }

// Sum appends the big-endian checksum to b, matching hash/crc32.
func (d *digest) Sum(b []byte) []byte {
	s := d.Sum32()
	return append(b, byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}

func (d *digest) Reset()         { d.state = New() }
func (d *digest) Size() int      { return Size }
func (d *digest) BlockSize() int { return 1 }
