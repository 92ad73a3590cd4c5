/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/hatrom/pkg/codec"
)

// createCmd represents the create command
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Build an EEPROM image from a manifest",
	Long: `Build a HAT EEPROM image from a YAML manifest. The header is recomputed
from the atoms. A relative dt_blob path is resolved against the manifest.

Manifest example:
  vendor:
    vendor_id: 0x414C
    product_id: 0x2024
    product_ver: 1
    vendor: ACME
    product: Sensor HAT
    uuid: auto
  gpio_bank0:
    flags: 0x0001
    pins: [0, 0, 1, 1]
  dt_blob: overlay.dtbo
  custom_atoms:
    - type: 0x80
      text: serial=0042

Examples:
  hatrom create -m board.yaml -o eeprom.bin
  hatrom create -m board.yaml -o eeprom.bin --crc=false
  hatrom create -m board.yaml -o - | hatrom write -`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manifestPath, _ := cmd.Flags().GetString("manifest")
		outPath, _ := cmd.Flags().GetString("out")
		withCRC, _ := cmd.Flags().GetBool("crc")

		a, err := appFrom(cmd)
		if err != nil {
			return err
		}

		size, err := runCreate(cmd.OutOrStdout(), manifestPath, outPath, withCRC)
		if err != nil {
			return err
		}

		a.logger.Debug("image created", "manifest", manifestPath, "out", outPath, "bytes", size, "crc", withCRC)
		if outPath != "-" {
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes to %s\n", size, outPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringP("manifest", "m", "", "Manifest file (required)")
	createCmd.Flags().StringP("out", "o", "eeprom.bin", "Output image file")
	createCmd.Flags().Bool("crc", true, "Append a CRC-32 trailer")
	if err := createCmd.MarkFlagRequired("manifest"); err != nil {
		panic(err)
	}
}

// runCreate builds the image described by manifestPath and writes it to
// outPath, or to stdout when outPath is "-"
func runCreate(stdout io.Writer, manifestPath, outPath string, withCRC bool) (int, error) {
	image, err := buildImage(manifestPath, withCRC)
	if err != nil {
		return 0, err
	}
	if outPath == "-" {
		if _, err := stdout.Write(image); err != nil {
			return 0, fmt.Errorf("failed to write image: %w", err)
		}
		return len(image), nil
	}
	if err := os.WriteFile(outPath, image, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write image: %w", err)
	}
	return len(image), nil
}

func buildImage(manifestPath string, withCRC bool) ([]byte, error) {
	manifest, err := codec.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	e, err := manifest.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build image: %w", err)
	}
	if withCRC {
		return e.SerializeWithCRC(), nil
	}
	return e.Serialize(), nil
}
