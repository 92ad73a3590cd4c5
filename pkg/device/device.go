// Package device moves raw HAT EEPROM images between the codec and storage:
// image files, an in-memory 24Cxx model and I2C EEPROMs behind /dev/i2c-N.
//
// Nothing here interprets the image. Callers parse what a Source returns
// and hand serialized bytes to a Sink.
package device

import (
	"context"
	"errors"
)

// Source produces a raw image.
type Source interface {
	ReadImage(ctx context.Context) ([]byte, error)
}

// Sink stores a raw image starting at offset 0.
type Sink interface {
	WriteImage(ctx context.Context, data []byte) error
}

// ReadWriter is a device that can be both read and programmed.
type ReadWriter interface {
	Source
	Sink
}

var (
	// ErrUnsupported is returned when the platform has no i2c-dev interface
	ErrUnsupported = errors.New("i2c-dev is only supported on linux")

	// ErrOutOfRange is returned when an image does not fit the device
	ErrOutOfRange = errors.New("image exceeds device capacity")
)
