package device

import (
	"context"
	"fmt"
	"os"
)

// FileDevice reads and writes an image file, typically a dump of an EEPROM
// or the output of "hatrom create".
type FileDevice struct {
	Path string
}

// NewFileDevice returns a device backed by path.
func NewFileDevice(path string) *FileDevice {
	return &FileDevice{Path: path}
}

// ReadImage returns the whole file.
func (f *FileDevice) ReadImage(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return data, nil
}

// WriteImage replaces the file with data.
func (f *FileDevice) WriteImage(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.WriteFile(f.Path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write image file: %w", err)
	}
	return nil
}
