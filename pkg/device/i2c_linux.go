//go:build linux

package device

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// i2cSlave is I2C_SLAVE from linux/i2c-dev.h: bind the fd to a 7-bit address.
const i2cSlave = 0x0703

type linuxBus struct {
	f *os.File
}

// OpenI2CBus opens an i2c-dev node such as /dev/i2c-0 and binds it to addr.
func OpenI2CBus(path string, addr uint16) (I2CBus, error) {
	if addr > 0x7F {
		return nil, fmt.Errorf("i2c address 0x%X is not a 7-bit address", addr)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	if err := unix.IoctlSetInt(int(f.Fd()), i2cSlave, int(addr)); err != nil {
		f.Close()
		return nil, fmt.Errorf("i2c ioctl I2C_SLAVE 0x%02X on %s: %w", addr, path, err)
	}

	return &linuxBus{f: f}, nil
}

func (b *linuxBus) Read(p []byte) (int, error)  { return b.f.Read(p) }
func (b *linuxBus) Write(p []byte) (int, error) { return b.f.Write(p) }
func (b *linuxBus) Close() error                { return b.f.Close() }
