//go:build !linux

package device

// OpenI2CBus is only available on linux.
func OpenI2CBus(path string, addr uint16) (I2CBus, error) {
	return nil, ErrUnsupported
}
