package device

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ssargent/hatrom/pkg/logging"
)

// Defaults for a 24C32-class HAT EEPROM.
const (
	DefaultBus        = "/dev/i2c-0"
	DefaultAddress    = 0x50
	DefaultReadSize   = 32 * 1024
	DefaultPageSize   = 16
	DefaultWriteDelay = 10 * time.Millisecond

	// maxReadChunk is the largest single read i2c-dev accepts
	maxReadChunk = 8192

	// maxAddressable is the span of a two byte word address
	maxAddressable = 0x10000
)

// I2CBus is an i2c-dev style connection already bound to one slave address:
// each Write is one write transaction and each Read one read transaction.
type I2CBus interface {
	io.ReadWriteCloser
}

// Config holds the I2C EEPROM settings.
type Config struct {
	// ReadSize is the number of bytes ReadImage returns
	ReadSize int

	// PageSize is the write page of the chip; writes never cross a page
	PageSize int

	// WriteDelay is the wait after each page for the internal write cycle
	WriteDelay time.Duration

	// Logger receives per-transfer debug logs (optional)
	Logger *slog.Logger

	// Progress is called after each page or read chunk (optional)
	Progress func(done, total int)
}

func defaultConfig() Config {
	return Config{
		ReadSize:   DefaultReadSize,
		PageSize:   DefaultPageSize,
		WriteDelay: DefaultWriteDelay,
	}
}

// Option is a functional option for configuring an I2CEEPROM.
type Option func(*Config)

// WithReadSize sets the number of bytes read by ReadImage.
func WithReadSize(n int) Option {
	return func(c *Config) {
		c.ReadSize = n
	}
}

// WithPageSize sets the chip's write page size.
func WithPageSize(n int) Option {
	return func(c *Config) {
		c.PageSize = n
	}
}

// WithWriteDelay sets the wait after each page write.
//
// Example:
//
//	ee := device.NewI2CEEPROM(bus, device.WithWriteDelay(5*time.Millisecond))
func WithWriteDelay(d time.Duration) Option {
	return func(c *Config) {
		c.WriteDelay = d
	}
}

// WithLogger sets the logger for transfer diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithProgress sets a callback reporting bytes transferred so far.
func WithProgress(fn func(done, total int)) Option {
	return func(c *Config) {
		c.Progress = fn
	}
}

// I2CEEPROM reads and programs a serial EEPROM with two byte word addressing.
type I2CEEPROM struct {
	bus    I2CBus
	config Config
	logger *slog.Logger
}

// NewI2CEEPROM wraps bus. Invalid sizes fall back to the defaults.
func NewI2CEEPROM(bus I2CBus, opts ...Option) *I2CEEPROM {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ReadSize <= 0 || cfg.ReadSize > maxAddressable {
		cfg.ReadSize = DefaultReadSize
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &I2CEEPROM{bus: bus, config: cfg, logger: logger}
}

// ReadImage reads ReadSize bytes starting at address 0.
func (e *I2CEEPROM) ReadImage(ctx context.Context) ([]byte, error) {
	buf := make([]byte, e.config.ReadSize)
	if err := e.ReadAt(ctx, buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadAt fills buf starting at word address offset. The context is checked
// between chunks.
func (e *I2CEEPROM) ReadAt(ctx context.Context, buf []byte, offset int) error {
	if offset < 0 || offset+len(buf) > maxAddressable {
		return fmt.Errorf("read of %d bytes at 0x%04X: %w", len(buf), offset, ErrOutOfRange)
	}

	for done := 0; done < len(buf); {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := len(buf) - done
		if n > maxReadChunk {
			n = maxReadChunk
		}
		addr := offset + done

		if _, err := e.bus.Write(wordAddress(addr)); err != nil {
			return fmt.Errorf("failed to set read address 0x%04X: %w", addr, err)
		}
		if _, err := io.ReadFull(e.bus, buf[done:done+n]); err != nil {
			return fmt.Errorf("failed to read %d bytes at 0x%04X: %w", n, addr, err)
		}

		done += n
		e.logger.Debug("read chunk", "addr", addr, "len", n)
		e.report(done, len(buf))
	}

	return nil
}

// WriteImage programs data starting at address 0, one page at a time,
// waiting WriteDelay after each page.
func (e *I2CEEPROM) WriteImage(ctx context.Context, data []byte) error {
	if len(data) > maxAddressable {
		return fmt.Errorf("%d bytes: %w", len(data), ErrOutOfRange)
	}

	page := e.config.PageSize
	for off := 0; off < len(data); {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := page - off%page
		if n > len(data)-off {
			n = len(data) - off
		}

		msg := make([]byte, 0, 2+n)
		msg = append(msg, wordAddress(off)...)
		msg = append(msg, data[off:off+n]...)
		if _, err := e.bus.Write(msg); err != nil {
			return fmt.Errorf("failed to write page at 0x%04X: %w", off, err)
		}

		off += n
		e.logger.Debug("wrote page", "addr", off-n, "len", n)
		e.report(off, len(data))

		if err := sleepContext(ctx, e.config.WriteDelay); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the underlying bus.
func (e *I2CEEPROM) Close() error {
	return e.bus.Close()
}

func (e *I2CEEPROM) report(done, total int) {
	if e.config.Progress != nil {
		e.config.Progress(done, total)
	}
}

func wordAddress(addr int) []byte {
	return []byte{byte(addr >> 8), byte(addr)}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
