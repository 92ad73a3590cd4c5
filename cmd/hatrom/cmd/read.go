/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/hatrom/pkg/codec"
	"github.com/ssargent/hatrom/pkg/device"
)

// readCmd represents the read command
var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Dump a HAT EEPROM over I2C",
	Long: `Read the HAT EEPROM over i2c-dev and save the raw dump. When the dump
decodes, its contents are displayed as with "hatrom show".

The HATs ID EEPROM normally sits on /dev/i2c-0 at 0x50; on recent
Raspberry Pi OS releases the bus has to be enabled with
dtparam=i2c_vc=on first.

Examples:
  hatrom read -o eeprom.bin
  hatrom read --bus /dev/i2c-9 --addr 0x50 --size 4096 -o eeprom.bin`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath, _ := cmd.Flags().GetString("out")

		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		devCfg, err := deviceConfig(cmd, a.config.Device)
		if err != nil {
			return err
		}

		dev, err := openDevice(devCfg, a.logger, progressReporter(cmd, cmd.ErrOrStderr(), "read"))
		if err != nil {
			return fmt.Errorf("failed to open %s at 0x%02X: %w", devCfg.Bus, devCfg.Address, err)
		}
		defer dev.Close()

		return runRead(cmd.Context(), cmd.OutOrStdout(), a.logger, dev, outPath, a.config.Output.Format)
	},
}

func init() {
	rootCmd.AddCommand(readCmd)

	addDeviceFlags(readCmd)
	readCmd.Flags().Int("size", device.DefaultReadSize, "Number of bytes to read (default from config or HATROM_BUFFER_SIZE)")
	readCmd.Flags().StringP("out", "o", "eeprom.bin", "Output file")
}

// runRead dumps src to outPath and displays the decoded image when possible.
// An outPath of "-" streams the raw dump to w instead.
func runRead(ctx context.Context, w io.Writer, logger *slog.Logger, src device.Source, outPath, format string) error {
	image, err := src.ReadImage(ctx)
	if err != nil {
		return fmt.Errorf("failed to read EEPROM: %w", err)
	}
	logger.Info("eeprom dumped", "bytes", len(image), "out", outPath)
	if outPath == "-" {
		_, err := w.Write(image)
		return err
	}
	if err := os.WriteFile(outPath, image, 0o644); err != nil {
		return fmt.Errorf("failed to write dump: %w", err)
	}

	e, in, err := codec.Inspect(image)
	if err != nil {
		// blank or foreign EEPROMs are still worth dumping
		logger.Warn("dump is not a HAT image", "error", err)
		fmt.Fprintf(w, "Read %d bytes to %s (not a HAT image: %v)\n", len(image), outPath, err)
		return nil
	}

	if format == "table" {
		fmt.Fprintf(w, "Read %d bytes to %s\n\n", len(image), outPath)
	}
	return outputInspection(w, format, e, in)
}
