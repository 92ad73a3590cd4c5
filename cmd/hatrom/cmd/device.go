package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ssargent/hatrom/pkg/config"
	"github.com/ssargent/hatrom/pkg/device"
)

// eepromDevice is a programmable EEPROM holding an open bus
type eepromDevice interface {
	device.ReadWriter
	Close() error
}

// openDevice opens the I2C EEPROM described by cfg. Tests replace it.
var openDevice = func(cfg config.Device, logger *slog.Logger, progress func(done, total int)) (eepromDevice, error) {
	bus, err := device.OpenI2CBus(cfg.Bus, cfg.Address)
	if err != nil {
		return nil, err
	}
	return device.NewI2CEEPROM(bus,
		device.WithReadSize(cfg.ReadSize),
		device.WithPageSize(cfg.PageSize),
		device.WithWriteDelay(cfg.WriteDelay),
		device.WithLogger(logger),
		device.WithProgress(progress),
	), nil
}

// addDeviceFlags registers the flags shared by read and write
func addDeviceFlags(cmd *cobra.Command) {
	cmd.Flags().String("bus", "", "I2C bus device (default from config, /dev/i2c-0)")
	cmd.Flags().String("addr", "", "EEPROM I2C address, e.g. 0x50 (default from config)")
	cmd.Flags().Bool("progress", false, "Report transfer progress on stderr")
}

// deviceConfig applies device flags over the configured settings
func deviceConfig(cmd *cobra.Command, base config.Device) (config.Device, error) {
	cfg := base

	if cmd.Flags().Changed("bus") {
		cfg.Bus, _ = cmd.Flags().GetString("bus")
	}
	if cmd.Flags().Changed("addr") {
		raw, _ := cmd.Flags().GetString("addr")
		addr, err := strconv.ParseUint(raw, 0, 7)
		if err != nil {
			return cfg, fmt.Errorf("invalid --addr %q: want a 7-bit address such as 0x50", raw)
		}
		cfg.Address = uint16(addr)
	}
	if f := cmd.Flags().Lookup("size"); f != nil && f.Changed {
		size, _ := cmd.Flags().GetInt("size")
		if size <= 0 || size > 0x10000 {
			return cfg, fmt.Errorf("invalid --size %d: must be between 1 and 65536", size)
		}
		cfg.ReadSize = size
	}

	return cfg, nil
}

// progressReporter prints transfer progress to w when enabled
func progressReporter(cmd *cobra.Command, w io.Writer, label string) func(done, total int) {
	enabled, _ := cmd.Flags().GetBool("progress")
	if !enabled {
		return nil
	}
	return func(done, total int) {
		fmt.Fprintf(w, "\r%s %d/%d bytes", label, done, total)
		if done >= total {
			fmt.Fprintln(w)
		}
	}
}

// readImageFile loads an image from disk, or from stdin when path is "-"
func readImageFile(path string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}
