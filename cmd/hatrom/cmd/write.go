/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ssargent/hatrom/pkg/codec"
)

var errVerifyMismatch = errors.New("read back does not match the written image")

// writeCmd represents the write command
var writeCmd = &cobra.Command{
	Use:   "write <file|->",
	Short: "Program an image into a HAT EEPROM over I2C",
	Long: `Program an image into the HAT EEPROM page by page and read it back to
confirm. The image must decode, and a checksum trailer, when present,
must match; --force skips both checks.

The EEPROM write-protect pin must be released before writing.

Examples:
  hatrom write eeprom.bin
  hatrom create -m board.yaml -o - | hatrom write -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verify, _ := cmd.Flags().GetBool("verify")
		force, _ := cmd.Flags().GetBool("force")

		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		devCfg, err := deviceConfig(cmd, a.config.Device)
		if err != nil {
			return err
		}

		image, err := readImageFile(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}

		dev, err := openDevice(devCfg, a.logger, progressReporter(cmd, cmd.ErrOrStderr(), "write"))
		if err != nil {
			return fmt.Errorf("failed to open %s at 0x%02X: %w", devCfg.Bus, devCfg.Address, err)
		}
		defer dev.Close()

		if err := runWrite(cmd.Context(), a.logger, dev, image, verify, force); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes to %s at 0x%02X\n", len(image), devCfg.Bus, devCfg.Address)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(writeCmd)

	addDeviceFlags(writeCmd)
	writeCmd.Flags().Bool("verify", true, "Read the image back after writing")
	writeCmd.Flags().Bool("force", false, "Write even if the image does not decode or its checksum is wrong")
}

// runWrite programs image into dev, optionally reading it back
func runWrite(ctx context.Context, logger *slog.Logger, dev eepromDevice, image []byte, verify, force bool) error {
	_, in, err := codec.Inspect(image)
	switch {
	case err != nil && !force:
		return fmt.Errorf("refusing to write invalid image: %w", err)
	case err != nil:
		logger.Warn("writing an image that does not decode", "error", err)
	case in.HasCRC && !in.CRCValid && !force:
		return fmt.Errorf("refusing to write image: %w", errChecksumMismatch)
	}

	if err := dev.WriteImage(ctx, image); err != nil {
		return fmt.Errorf("failed to write EEPROM: %w", err)
	}
	logger.Info("eeprom programmed", "bytes", len(image))

	if !verify {
		return nil
	}

	readBack, err := dev.ReadImage(ctx)
	if err != nil {
		return fmt.Errorf("failed to read back EEPROM: %w", err)
	}
	if len(readBack) < len(image) || !bytes.Equal(readBack[:len(image)], image) {
		return errVerifyMismatch
	}
	logger.Info("eeprom verified", "bytes", len(image))
	return nil
}
