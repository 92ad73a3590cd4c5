package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// MemoryEEPROM models a 24Cxx serial EEPROM with 16-bit word addressing.
//
// It can be used directly as a Source and Sink, or as the I2CBus under an
// I2CEEPROM, in which case it behaves like the chip on the wire: a write
// starts with a two byte big-endian address, data bytes wrap inside the
// current page, and sequential reads wrap at the end of the array.
type MemoryEEPROM struct {
	mu       sync.Mutex
	data     []byte
	pageSize int
	pointer  int
	writes   int
	closed   bool
}

// NewMemoryEEPROM returns an erased (0xFF filled) array of size bytes.
func NewMemoryEEPROM(size, pageSize int) *MemoryEEPROM {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = 0xFF
	}
	return &MemoryEEPROM{data: data, pageSize: pageSize}
}

// Size returns the capacity in bytes.
func (m *MemoryEEPROM) Size() int {
	return len(m.data)
}

// Bytes returns a copy of the array contents.
func (m *MemoryEEPROM) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

// PageWrites returns the number of bus write transactions that carried data.
func (m *MemoryEEPROM) PageWrites() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// ReadImage returns a copy of the whole array.
func (m *MemoryEEPROM) ReadImage(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.Bytes(), nil
}

// WriteImage stores data at offset 0.
func (m *MemoryEEPROM) WriteImage(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(data) > len(m.data) {
		return fmt.Errorf("%d bytes into %d byte array: %w", len(data), len(m.data), ErrOutOfRange)
	}
	copy(m.data, data)
	return nil
}

// Write implements the bus side of a write transaction.
func (m *MemoryEEPROM) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, errors.New("memory eeprom: bus closed")
	}
	if len(p) < 2 {
		return 0, errors.New("memory eeprom: write without word address")
	}
	if len(m.data) == 0 {
		return 0, errors.New("memory eeprom: zero sized array")
	}

	m.pointer = (int(p[0])<<8 | int(p[1])) % len(m.data)
	payload := p[2:]
	if len(payload) == 0 {
		return len(p), nil
	}

	pageStart := m.pointer - m.pointer%m.pageSize
	for i, b := range payload {
		addr := pageStart + (m.pointer-pageStart+i)%m.pageSize
		if addr < len(m.data) {
			m.data[addr] = b
		}
	}
	m.pointer = pageStart + (m.pointer-pageStart+len(payload))%m.pageSize
	m.writes++

	return len(p), nil
}

// Read implements the bus side of a sequential read from the current address.
func (m *MemoryEEPROM) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, errors.New("memory eeprom: bus closed")
	}
	if len(m.data) == 0 {
		return 0, errors.New("memory eeprom: zero sized array")
	}

	for i := range p {
		p[i] = m.data[m.pointer]
		m.pointer = (m.pointer + 1) % len(m.data)
	}
	return len(p), nil
}

// Close marks the bus closed.
func (m *MemoryEEPROM) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
